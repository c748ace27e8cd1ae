package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type (
	// Sink accepts a finished backup file.
	Sink interface {
		Save(ctx context.Context, name string, data []byte) error
	}

	// Source yields the raw bytes of a backup file.
	Source interface {
		Open(ctx context.Context) ([]byte, error)
	}
)

// DirSink writes backups into a local directory, replacing any file of
// the same name atomically.
type DirSink struct {
	Dir string
}

func (d DirSink) Save(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	tmp, err := os.CreateTemp(d.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.Dir, name)); err != nil {
		return fmt.Errorf("rename backup: %w", err)
	}
	return nil
}

// FileSource reads a backup from a local path.
type FileSource struct {
	Path string
}

func (f FileSource) Open(_ context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// BytesSource serves an in-memory backup, e.g. an uploaded request body.
type BytesSource []byte

func (b BytesSource) Open(_ context.Context) ([]byte, error) {
	return b, nil
}
