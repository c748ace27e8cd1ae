package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	applog "macrotracker/internal/log"
)

const backupMimeType = "application/json"

// DriveSink uploads backup files into one Drive folder. It satisfies
// backup.Sink.
type DriveSink struct {
	svc      *drive.Service
	folderID string
}

func NewDriveSink(ctx context.Context, folderID string, creds Credentials, opts ...option.ClientOption) (*DriveSink, error) {
	if folderID == "" {
		return nil, errors.New("missing Drive folder id")
	}
	all, err := clientOptions(ctx, creds, drive.DriveFileScope, opts)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveSink{svc: svc, folderID: folderID}, nil
}

// Save creates a new file called name. Drive allows duplicate names, so
// a second backup on the same day is kept alongside the first.
func (d *DriveSink) Save(ctx context.Context, name string, data []byte) error {
	file := &drive.File{
		Name:     name,
		Parents:  []string{d.folderID},
		MimeType: backupMimeType,
	}
	created, err := d.svc.Files.Create(file).
		Media(bytes.NewReader(data), googleapi.ContentType(backupMimeType)).
		SupportsAllDrives(true).
		Fields("id", "name").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload %s to drive: %w", name, err)
	}

	slog.InfoContext(ctx, "Uploaded backup to Drive",
		applog.FieldComponent, applog.ComponentGoogle,
		applog.FieldBackupName, name,
		applog.FieldBytes, len(data),
		"file_id", created.Id)
	return nil
}
