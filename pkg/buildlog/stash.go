// Package buildlog stores build job logs and per-stage timing
// statistics for later inspection.
package buildlog

import (
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/utils"
)

type StashConfig struct {
	// Directory where log files are stored.
	Path string `mapstructure:"path"`

	// Maximum total size of the stash, e.g. "1GiB". When exceeded the
	// least recently used logs are deleted. Empty means unbounded.
	MaxSize string `mapstructure:"max_size"`
}

func (c *StashConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "/var/lib/buildci/logs"
	}
}

// MaxSizeBytes parses the configured maximum size.
func (c *StashConfig) MaxSizeBytes() (int64, error) {
	if c.MaxSize == "" {
		return 0, nil
	}
	return utils.ParseSize(c.MaxSize)
}

// CreateFs creates the stash directory and returns a filesystem rooted
// at it.
func (c *StashConfig) CreateFs() (afero.Fs, error) {
	if err := os.MkdirAll(c.Path, 0777); err != nil {
		return nil, err
	}
	return afero.NewBasePathFs(afero.NewOsFs(), c.Path), nil
}

type logFile struct {
	fs   afero.Fs
	path string
	size int64
}

func newLogFile(fs afero.Fs, path string) *logFile {
	var size int64
	if st, err := fs.Stat(path); err == nil {
		size = st.Size()
	}
	return &logFile{fs: fs, path: path, size: size}
}

func (f *logFile) Path() string {
	return f.path
}

func (f *logFile) Size() int64 {
	return f.size
}

func (f *logFile) Unlink() error {
	return f.fs.Remove(f.path)
}

// Stash is an append-only, size-bounded store of per-job log files.
// Lines within one job keep their append order; there is no ordering
// across jobs.
type Stash struct {
	mu  sync.Mutex
	fs  afero.Fs
	lru *utils.LRU[*logFile]
}

func NewStash(fs afero.Fs, maxSize int64) *Stash {
	stash := &Stash{fs: fs}

	stash.lru = utils.NewLRU[*logFile](maxSize, func(item *logFile) bool {
		log.Debug("del - log - id:", item.Path())
		item.Unlink()
		return true
	})

	// Load existing log files into the LRU.
	count := 0
	afero.Walk(fs, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		stash.lru.Add(newLogFile(fs, path))
		count++
		return nil
	})

	log.Infof("loaded %d log files into stash, size: %s",
		count, utils.HumanByteSize(stash.lru.Size()))

	return stash
}

// Append writes lines to the job's log file, preserving append order.
func (s *Stash) Append(id string, lines []protocol.LogLine) error {
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.openForAppend(id)
	if err != nil {
		return err
	}

	writer := newLineWriter(file)
	for _, line := range lines {
		if err := writer.WriteLine(line); err != nil {
			writer.Close()
			file.Close()
			return err
		}
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	s.lru.Add(newLogFile(s.fs, id))
	return nil
}

// Read returns all lines of a job's log in append order.
func (s *Stash) Read(id string) ([]protocol.LogLine, error) {
	file, err := s.fs.Open(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}
	defer file.Close()

	return readAllLines(file)
}

// Purge deletes a job's log file.
func (s *Stash) Purge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Remove(id)
	if err := s.fs.Remove(id); err != nil {
		return utils.ErrNotFound
	}

	log.Debug("del - log - id:", id)
	return nil
}

// Size returns the total size of the stash in bytes.
func (s *Stash) Size() int64 {
	return s.lru.Size()
}

func (s *Stash) openForAppend(id string) (afero.File, error) {
	file, err := s.fs.OpenFile(id, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}
