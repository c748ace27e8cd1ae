package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service runs at most one import or export at a time. Concurrent
// export requests share a single snapshot.
type Service struct {
	codec *Codec
	mu    sync.Mutex
	group singleflight.Group
	now   func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{codec: NewCodec(repo), now: time.Now}
}

// Export returns the encoded backup. The returned slice may be shared
// with concurrent callers and must not be modified.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	v, err, shared := s.group.Do("export", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.codec.Export(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "Export shared with concurrent request")
	}
	return v.([]byte), nil
}

func (s *Service) Import(ctx context.Context, data []byte) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec.Import(ctx, data)
}

// ExportTo writes a backup named after the current day to sink and
// returns the name used.
func (s *Service) ExportTo(ctx context.Context, sink Sink) (string, error) {
	data, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	name := Filename(s.now())
	if err := sink.Save(ctx, name, data); err != nil {
		return "", fmt.Errorf("save backup %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Backup written", "name", name, "bytes", len(data))
	return name, nil
}

func (s *Service) ImportFrom(ctx context.Context, src Source) (ImportResult, error) {
	data, err := src.Open(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("open backup: %w", err)
	}
	return s.Import(ctx, data)
}
