package buildlog

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/edulab/buildci/pkg/protocol"
)

// Log files are sequences of gzip members, one per append session, each
// containing JSON encoded lines. Concatenated members form a valid gzip
// stream, which is what makes appending cheap.

type lineWriter struct {
	gz  *gzip.Writer
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	gz := gzip.NewWriter(w)
	return &lineWriter{
		gz:  gz,
		enc: json.NewEncoder(gz),
	}
}

func (w *lineWriter) WriteLine(line protocol.LogLine) error {
	return w.enc.Encode(line)
}

func (w *lineWriter) Close() error {
	return w.gz.Close()
}

func readAllLines(r io.Reader) ([]protocol.LogLine, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var lines []protocol.LogLine
	dec := json.NewDecoder(gz)
	for {
		var line protocol.LogLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return nil, err
		}
		lines = append(lines, line)
	}
}
