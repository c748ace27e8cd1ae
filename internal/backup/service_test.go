package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"macrotracker/internal/store/memory"
)

func TestServiceExportToDirAndImportFromFile(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	seedStore(t, src, samplePayload())

	svc := NewService(src)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	dir := filepath.Join(t.TempDir(), "backups")
	name, err := svc.ExportTo(ctx, DirSink{Dir: dir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "macro-tracker-backup-2025-06-01.json" {
		t.Fatalf("unexpected name %q", name)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatalf("expected only the backup file, found %d", len(files))
	}

	dst := NewService(memory.New())
	res, err := dst.ImportFrom(ctx, FileSource{Path: filepath.Join(dir, name)})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Inserted != 2 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestServiceImportFromMissingFile(t *testing.T) {
	svc := NewService(memory.New())
	_, err := svc.ImportFrom(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "nope.json")})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestServiceConcurrentImportAndExport(t *testing.T) {
	ctx := context.Background()
	data, err := Encode(samplePayload())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	svc := NewService(memory.New())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := svc.ImportFrom(ctx, BytesSource(data))
			if err != nil {
				t.Errorf("import: %v", err)
				return
			}
			mu.Lock()
			inserted += res.Inserted
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.Export(ctx); err != nil {
				t.Errorf("export: %v", err)
			}
		}()
	}
	wg.Wait()

	if inserted != 2 {
		t.Fatalf("entries inserted %d times across imports, want 2", inserted)
	}
	final, _ := svc.Export(ctx)
	again, _ := svc.Export(ctx)
	if !bytes.Equal(final, again) {
		t.Fatalf("exports differ after imports settled")
	}
}
