// Package google ships backups to Drive and mirrors weekly summaries to
// a spreadsheet.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"

	applog "macrotracker/internal/log"
)

// Credentials names a service account key, inline or on disk. When both
// are empty the client falls back to Application Default Credentials.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) IsZero() bool {
	return strings.TrimSpace(c.JSON) == "" && strings.TrimSpace(c.File) == ""
}

// clientOptions turns creds into client options for scope, followed by
// any extra options.
func clientOptions(ctx context.Context, creds Credentials, scope string, extra []option.ClientOption) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	switch {
	case strings.TrimSpace(creds.JSON) != "":
		slog.DebugContext(ctx, "Using inline service account credentials", applog.FieldComponent, applog.ComponentGoogle)
		opts = append(opts, option.WithCredentialsJSON([]byte(creds.JSON)))
	case strings.TrimSpace(creds.File) != "":
		data, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account file",
			applog.FieldComponent, applog.ComponentGoogle,
			"path", creds.File,
			applog.FieldBytes, len(data))
		opts = append(opts, option.WithCredentialsJSON(data))
	}

	opts = append(opts, option.WithScopes(scope))
	return append(opts, extra...), nil
}
