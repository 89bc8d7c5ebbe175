package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wadjakorntonsri/trimrr/pkg/app"
	"github.com/wadjakorntonsri/trimrr/pkg/config"
)

var errUsage = errors.New("expected 'export' or 'import' subcommands")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run executes one subcommand. Deferred cleanup always runs before main
// picks an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 || (args[0] != "export" && args[0] != "import") {
		return errUsage
	}
	cmd := args[0]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	importFile := fs.String("file", "", "JSON file to import")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if cmd == "import" && *importFile == "" {
		fs.PrintDefaults()
		return fmt.Errorf("%w: import needs -file", errUsage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	repo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("failed to close store", slog.Any("err", err))
		}
	}()

	if cmd == "export" {
		return runExport(ctx, repo, stdout)
	}

	f, err := os.Open(*importFile)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer f.Close()

	res, err := runImport(ctx, repo, f, logger)
	if err != nil {
		return err
	}
	logger.Info("import finished", slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped), slog.Int("failed", res.Failed))
	return nil
}
