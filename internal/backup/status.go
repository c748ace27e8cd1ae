package backup

import (
	"errors"
	"fmt"
)

const (
	MsgImportFailed      = "Import failed."
	MsgExportFailed      = "Export failed."
	MsgUnsupportedSchema = "Backup is from a newer version of the app."
)

// StatusMessage is the one-line outcome shown to the user after an import.
func StatusMessage(res ImportResult, err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedSchema):
		return MsgUnsupportedSchema
	case err != nil && res == (ImportResult{}):
		return MsgImportFailed
	case res.Failed > 0:
		return fmt.Sprintf("Imported %d entries. Skipped %d. Failed %d.", res.Inserted, res.Skipped, res.Failed)
	default:
		return fmt.Sprintf("Imported %d entries. Skipped %d.", res.Inserted, res.Skipped)
	}
}
