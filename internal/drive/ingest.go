package drive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andresuchdata/opsdash/internal/catalog"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/rs/zerolog/log"
)

// ImportResult reports one imported Drive file.
type ImportResult struct {
	FileID  string `json:"fileId"`
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// Importer loads raw catalog files from Drive into the catalog store.
type Importer struct {
	source FileSource
	repo   repository.CatalogRepository
}

func NewImporter(source FileSource, repo repository.CatalogRepository) *Importer {
	return &Importer{source: source, repo: repo}
}

// ImportFile downloads one CSV or XLSX file and stores its records.
func (im *Importer) ImportFile(ctx context.Context, fileID string) (*ImportResult, error) {
	f, err := im.source.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return im.importFile(ctx, f)
}

func (im *Importer) importFile(ctx context.Context, f *File) (*ImportResult, error) {
	format, err := catalog.FormatFromName(f.Name)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(im.source.DownloadFile(ctx, f.ID, pw))
	}()
	defer pr.Close()

	records, err := catalog.ParseFile(pr, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Name, err)
	}
	if err := im.repo.ImportRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("import %s: %w", f.Name, err)
	}

	log.Info().Str("file", f.Name).Int("count", len(records)).Msg("drive: catalog file imported")
	return &ImportResult{FileID: f.ID, Name: f.Name, Records: len(records)}, nil
}

// ImportFolder imports every CSV and XLSX file of a folder. Other files are
// skipped; a failing file does not stop the rest.
func (im *Importer) ImportFolder(ctx context.Context, folderID string) ([]ImportResult, error) {
	files, err := im.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	results := make([]ImportResult, 0, len(files))
	var errs []error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if _, err := catalog.FormatFromName(f.Name); err != nil {
			log.Debug().Str("file", f.Name).Msg("drive: skipping non-catalog file")
			continue
		}

		res, err := im.importFile(ctx, f)
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("drive: catalog file import failed")
			errs = append(errs, err)
			continue
		}
		results = append(results, *res)
	}
	return results, errors.Join(errs...)
}
