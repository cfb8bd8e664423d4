package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"migra/pkg/archive"
	"migra/pkg/domain"
	"migra/pkg/engine"
	"migra/pkg/report"
	"migra/pkg/schema"
	"migra/pkg/storage"
)

// Consumer runs queued jobs on a worker: it loads the stored archive, parses
// the named entry again and imports it through the SQL store.
type Consumer struct {
	archives storage.Store
	store    *SQLStore
	catalog  *schema.Catalog
	analyzer *engine.Analyzer
	logger   *slog.Logger
}

func NewConsumer(archives storage.Store, store *SQLStore, catalog *schema.Catalog, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		archives: archives,
		store:    store,
		catalog:  catalog,
		analyzer: engine.NewAnalyzer(engine.Options{Logger: logger}),
		logger:   logger,
	}
}

// Handle imports the file a job names. Problems that cannot go away on a
// retry are returned as permanent errors.
func (c *Consumer) Handle(ctx context.Context, job Job) (report.FileReport, error) {
	target, ok := c.catalog.Get(job.Schema)
	if !ok {
		return report.FileReport{}, Permanent(domain.NewNotFoundError("schema", job.Schema))
	}

	data, err := c.archives.Get(ctx, job.UploadID)
	if errors.Is(err, storage.ErrNotFound) {
		return report.FileReport{}, Permanent(domain.NewNotFoundError("upload", job.UploadID))
	}
	if err != nil {
		return report.FileReport{}, fmt.Errorf("load archive %s: %w", job.UploadID, err)
	}

	entries, err := archive.Load(data)
	if err != nil {
		return report.FileReport{}, Permanent(err)
	}
	entry, ok := archive.Find(entries, job.File)
	if !ok {
		return report.FileReport{}, Permanent(domain.NewNotFoundError("file", job.File))
	}

	file, err := c.analyzer.AnalyzeEntry(entry)
	if err != nil {
		return report.FileReport{}, Permanent(err)
	}

	result := c.store.ImportFile(ctx, job.TenantID, FileRequest{
		File:    file,
		Schema:  target,
		Mapping: job.Mapping,
	})
	result.JobID = job.ID
	if result.Status == report.StatusFailed {
		return result, fmt.Errorf("import %s: %s", job.File, result.Error)
	}

	c.logger.Info("queued file imported",
		"job", job.ID,
		"tenant", job.TenantID,
		"file", job.File,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"rejected", result.Rejected,
	)
	return result, nil
}

// Handler adapts Handle to a queue consumer.
func (c *Consumer) Handler() JobHandler {
	return func(ctx context.Context, job Job) error {
		_, err := c.Handle(ctx, job)
		return err
	}
}
