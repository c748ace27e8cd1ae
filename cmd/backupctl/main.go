// Command backupctl exports and imports macrotracker backups against the
// configured store.
//
//	backupctl export [-dir DIR]
//	backupctl import FILE
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"macrotracker/internal/backup"
	"macrotracker/internal/cli"
	applog "macrotracker/internal/log"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: backupctl export [-dir DIR] | backupctl import FILE")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentBackup)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores := cli.InitStore(ctx, logger, cfg)
	svc := backup.NewService(stores.Store)

	var code int
	switch os.Args[1] {
	case "export":
		code = runExport(ctx, logger, svc, cfg.BackupDir, os.Args[2:])
	case "import":
		code = runImport(ctx, logger, svc, os.Args[2:])
	default:
		cli.CloseStore(logger, stores)
		usage()
	}

	cli.CloseStore(logger, stores)
	os.Exit(code)
}

func runExport(ctx context.Context, logger *applog.Logger, svc *backup.Service, defaultDir string, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fs.String("dir", defaultDir, "directory the backup file is written to")
	_ = fs.Parse(args)

	name, err := svc.ExportTo(ctx, backup.DirSink{Dir: *dir})
	if err != nil {
		logger.Error("Backup export failed", applog.FieldError, err)
		fmt.Println(backup.MsgExportFailed)
		return 1
	}
	fmt.Println(filepath.Join(*dir, name))
	return 0
}

func runImport(ctx context.Context, logger *applog.Logger, svc *backup.Service, args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	res, err := svc.ImportFrom(ctx, backup.FileSource{Path: fs.Arg(0)})
	fields := applog.NewFields().WithImport(res.Inserted, res.Skipped, res.Failed).WithError(err)
	fmt.Println(backup.StatusMessage(res, err))
	if err != nil && res == (backup.ImportResult{}) {
		logger.Error("Backup import failed", fields.ToSlice()...)
		return 1
	}
	logger.Info("Backup imported", fields.ToSlice()...)
	return 0
}
