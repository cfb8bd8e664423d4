package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"migra/pkg/domain"
	"migra/pkg/report"
)

// QueueExecutor hands each file to a worker instead of importing inline.
// Workers re-read the file from the stored archive, so the request must
// carry the upload id.
type QueueExecutor struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewQueueExecutor(publisher Publisher, logger *slog.Logger) *QueueExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueExecutor{publisher: publisher, logger: logger, now: time.Now}
}

func (e *QueueExecutor) Execute(ctx context.Context, req Request) (*report.ImportReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.UploadID == "" {
		return nil, domain.NewInvalidInputError("the archive of this import was not stored")
	}

	started := e.now()
	results := make([]report.FileReport, 0, len(req.Files))
	for _, fr := range req.Files {
		job := Job{
			ID:         uuid.NewString(),
			TenantID:   req.TenantID,
			UploadID:   req.UploadID,
			File:       fr.File.Name,
			Schema:     fr.Schema.Name,
			Mapping:    fr.Mapping,
			Rows:       fr.File.RowCount,
			EnqueuedAt: started.UTC(),
		}
		if err := e.publisher.Publish(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", fr.File.Name, err)
		}
		e.logger.Info("import job queued", "job", job.ID, "file", job.File, "schema", job.Schema)

		results = append(results, report.FileReport{
			File:   fr.File.Name,
			Schema: fr.Schema.Name,
			Status: report.StatusQueued,
			Rows:   fr.File.RowCount,
			JobID:  job.ID,
		})
	}

	return report.MergeResults(uuid.NewString(), req.TenantID, results, started, e.now()), nil
}
