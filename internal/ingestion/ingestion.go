package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/logger"
	"github.com/guttosm/settlepulse/internal/storage"
)

const (
	defaultBatchSize = 2000
	maxParallelFiles = 8
	maxRowErrors     = 100
)

// exportSuffixes are the file extensions picked up when importing a directory.
var exportSuffixes = []string{".csv", ".txt", ".tsv", ".xls"}

// repoCtor is an indirection for creating the repository; tests can override this.
var repoCtor = func(db *sql.DB) storage.TransactionsRepository {
	return storage.NewTransactionsRepository(db)
}

// Options tunes a batch import.
type Options struct {
	Parallel  int  // files processed at once; 0 means min(NumCPU, 8)
	Force     bool // re-import files already present in the import log
	BatchSize int  // transactions per upsert; 0 means the default
}

// RowError describes a row that could not be classified.
type RowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// ImportReport summarizes one file. Rows counts data rows read; every row ends
// up in exactly one of Imported, Duplicates or Failed.
type ImportReport struct {
	ImportID   string        `json:"import_id"`
	File       string        `json:"file"`
	Checksum   string        `json:"checksum"`
	Skipped    bool          `json:"skipped"`
	Rows       int           `json:"rows"`
	Imported   int           `json:"imported"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Unknown    int           `json:"unknown"`
	RowErrors  []RowError    `json:"row_errors,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Importer reads export files, classifies their rows and upserts the result.
type Importer struct {
	repo       storage.TransactionsRepository
	classifier *Classifier
	batchSize  int
}

// NewImporter wires an importer. A non-positive batchSize selects the default.
func NewImporter(repo storage.TransactionsRepository, classifier *Classifier, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Importer{repo: repo, classifier: classifier, batchSize: batchSize}
}

// ImportFile imports one export.
//
// Behavior:
//   - Files are identified by the SHA-256 of their content; a file already in
//     the import log is skipped unless force is set.
//   - A missing header or required column fails the file.
//   - Rows that cannot be classified are counted and logged; they never abort
//     the file.
//   - Transactions are upserted in batches; rows that collide with the ledger
//     are counted as duplicates.
func (im *Importer) ImportFile(ctx context.Context, path string, force bool) (ImportReport, error) {
	start := time.Now()
	base := filepath.Base(path)
	log := logger.With("ingestion").With().Str("file", base).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		return ImportReport{File: base}, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	report := ImportReport{
		ImportID: uuid.NewString(),
		File:     base,
		Checksum: hex.EncodeToString(sum[:]),
	}
	log = log.With().Str("import_id", report.ImportID).Logger()

	exists, err := im.repo.HasImport(ctx, report.Checksum)
	if err != nil {
		return report, fmt.Errorf("check import log: %w", err)
	}
	if exists && !force {
		report.Skipped = true
		log.Info().Bool("skipped", true).Msg("already imported")
		return report, nil
	}

	records, err := ReadRows(bytes.NewReader(data), im.classifier.Config())
	if err != nil {
		return report, fmt.Errorf("parse: %w", err)
	}

	buf := make([]models.Transaction, 0, im.batchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := im.repo.InsertTransactions(ctx, buf)
		if err != nil {
			return err
		}
		report.Imported += n
		report.Duplicates += len(buf) - n
		buf = buf[:0]
		return nil
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Rows++

		tx, err := im.classifier.Classify(rec.Row)
		if err != nil {
			report.Failed++
			if len(report.RowErrors) < maxRowErrors {
				report.RowErrors = append(report.RowErrors, RowError{Line: rec.Line, Error: err.Error()})
			}
			log.Warn().Int("line", rec.Line).Err(err).Msg("row skipped")
			continue
		}
		if tx.Kind == models.KindUnknown {
			report.Unknown++
			log.Debug().Int("line", rec.Line).Str("business_type", tx.BusinessType).Msg("unknown business type kept")
		}

		buf = append(buf, tx)
		if len(buf) >= im.batchSize {
			if err := flush(); err != nil {
				return report, fmt.Errorf("flush batch ending line %d: %w", rec.Line, err)
			}
		}
	}
	if err := flush(); err != nil {
		return report, fmt.Errorf("final flush: %w", err)
	}

	if err := im.repo.RecordImport(ctx, storage.ImportLogEntry{
		Checksum: report.Checksum,
		ImportID: report.ImportID,
		Filename: base,
		RowCount: report.Rows,
		Imported: report.Imported,
		Failed:   report.Failed,
	}); err != nil {
		return report, fmt.Errorf("record import: %w", err)
	}

	report.Elapsed = time.Since(start)
	log.Info().
		Int("rows", report.Rows).
		Int("imported", report.Imported).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Int("unknown", report.Unknown).
		Dur("elapsed", report.Elapsed).
		Bool("force", force).
		Msg("file done")
	return report, nil
}

// ImportFiles imports paths concurrently, at most parallel at a time. The
// first file-level error cancels the files not yet finished; the reports of
// completed files are returned alongside it.
func (im *Importer) ImportFiles(ctx context.Context, paths []string, parallel int, force bool) ([]ImportReport, error) {
	maxParallel := clampParallel(parallel)
	logger.L().Info().Int("files", len(paths)).Int("max_parallel", maxParallel).Msg("import start")

	reports := make([]ImportReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParallel)

	for i, path := range paths {
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			logger.L().Info().Int("idx", i+1).Int("total", len(paths)).Str("file", filepath.Base(path)).Msg("file start")

			r, err := im.ImportFile(gctx, path, force)
			reports[i] = r
			if err != nil {
				logger.L().Error().Str("file", filepath.Base(path)).Err(err).Msg("file failed")
				return fmt.Errorf("file %s: %w", path, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return reports, err
}

// ProcessFiles is the command-line entry point: it builds a repository over db
// and imports paths with the default classifier.
func ProcessFiles(ctx context.Context, db *sql.DB, paths []string, opts Options) ([]ImportReport, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input files")
	}
	repo := repoCtor(db)
	im := NewImporter(repo, NewClassifier(DefaultClassifierConfig()), opts.BatchSize)
	return im.ImportFiles(ctx, paths, opts.Parallel, opts.Force)
}

// CollectFiles lists the export files directly under dir, sorted by name.
func CollectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, s := range exportSuffixes {
			if ext == s {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// clampParallel defaults to min(NumCPU, 8) and bounds explicit values to 1..8.
func clampParallel(parallel int) int {
	if parallel > 0 {
		if parallel > maxParallelFiles {
			return maxParallelFiles
		}
		return parallel
	}
	if c := runtime.NumCPU(); c < maxParallelFiles {
		return c
	}
	return maxParallelFiles
}
