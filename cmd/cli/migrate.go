package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/wadjakorntonsri/trimrr/pkg/core/codegen"
	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

type importResult struct {
	Imported int
	Skipped  int // Identifier already present
	Failed   int
}

// runExport writes every link, oldest first, as an indented JSON array.
func runExport(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(links); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// runImport re-creates links from an export. Rows that could never resolve
// count as failed. Existing identifiers surface as ErrDuplicateKey from the
// store and are skipped.
func runImport(ctx context.Context, repo ports.LinkRepository, r io.Reader, logger *slog.Logger) (importResult, error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return importResult{}, fmt.Errorf("import: decode: %w", err)
	}

	var res importResult
	for i := range links {
		l := links[i]
		l.ID = 0

		if err := checkImported(&l); err != nil {
			logger.Warn("rejecting link", slog.Int("index", i), slog.String("identifier", l.Identifier()), slog.Any("err", err))
			res.Failed++
			continue
		}

		if err := repo.Create(ctx, &l); err != nil {
			if domain.IsDuplicate(err) {
				logger.Info("skipping existing identifier", slog.String("identifier", l.Identifier()))
				res.Skipped++
				continue
			}
			logger.Warn("failed to import link", slog.String("identifier", l.Identifier()), slog.Any("err", err))
			res.Failed++
			continue
		}
		res.Imported++
	}
	return res, nil
}

var (
	errIdentifierCount = errors.New("exactly one of short_code and custom_alias must be set")
	errIdentifierForm  = errors.New("identifier is not well formed")
)

// checkImported holds an exported row to the same rules as a created link.
func checkImported(l *domain.Link) error {
	if (l.ShortCode == "") == (l.CustomAlias == "") {
		return errIdentifierCount
	}
	if !codegen.IsWellFormed(l.Identifier()) {
		return errIdentifierForm
	}
	return domain.ValidateDestinationURL(l.DestinationURL)
}
