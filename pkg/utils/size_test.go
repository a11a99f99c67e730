package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	testData := []struct {
		input string
		value int64
	}{
		{"0", 0},
		{"0K", 0},
		{"0KB", 0},
		{"0 ", 0},
		{"0 K", 0},
		{"0 KB", 0},

		{"512KiB", 512 * 1024},
		{"512MiB", 512 * 1024 * 1024},
		{"512GiB", 512 * 1024 * 1024 * 1024},
		{"512TiB", 512 * 1024 * 1024 * 1024 * 1024},

		{"512K", 512 * 1000},
		{"512KB", 512 * 1000},
		{"512M", 512 * 1000 * 1000},
		{"512MB", 512 * 1000 * 1000},
		{"512G", 512 * 1000 * 1000 * 1000},
		{"512GB", 512 * 1000 * 1000 * 1000},
		{"512T", 512 * 1000 * 1000 * 1000 * 1000},
		{"512TB", 512 * 1000 * 1000 * 1000 * 1000},

		{" 1GiB ", 1024 * 1024 * 1024},
	}

	for _, data := range testData {
		size, err := ParseSize(data.input)
		assert.NoError(t, err)
		assert.Equal(t, data.value, size, "input: %s", data.input)
	}
}

func TestHumanByteSize(t *testing.T) {
	testData := []struct {
		value string
		input int64
	}{
		{"0B", 0},
		{"512KiB", 512 * 1024},
		{"512.0MiB", 512 * 1024 * 1024},
		{"512.5MiB", 512*1024*1024 + 511*1024},
		{"512.00GiB", 512 * 1024 * 1024 * 1024},
	}

	for _, data := range testData {
		size := HumanByteSize(data.input)
		assert.Equal(t, data.value, size)
	}
}
