package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"migra/pkg/domain"
	"migra/pkg/report"
)

// SQLExecutor imports every file inline, one transaction per file.
type SQLExecutor struct {
	store  *SQLStore
	logger *slog.Logger
	now    func() time.Time
}

func NewSQLExecutor(store *SQLStore, logger *slog.Logger) *SQLExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLExecutor{store: store, logger: logger, now: time.Now}
}

func (e *SQLExecutor) Execute(ctx context.Context, req Request) (*report.ImportReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	started := e.now()
	results := make([]report.FileReport, 0, len(req.Files))
	for _, fr := range req.Files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import interrupted: %w", err)
		}

		result := e.store.ImportFile(ctx, req.TenantID, fr)
		if result.Status == report.StatusFailed {
			e.logger.Warn("file import failed",
				"tenant", req.TenantID,
				"file", result.File,
				"schema", result.Schema,
				"error", result.Error,
			)
		} else {
			e.logger.Info("file imported",
				"tenant", req.TenantID,
				"file", result.File,
				"schema", result.Schema,
				"inserted", result.Inserted,
				"skipped", result.Skipped,
				"rejected", result.Rejected,
			)
		}
		results = append(results, result)
	}

	return report.MergeResults(uuid.NewString(), req.TenantID, results, started, e.now()), nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.TenantID) == "" {
		return domain.NewInvalidInputError("a target company is required")
	}
	if len(req.Files) == 0 {
		return domain.NewEmptySelectionError()
	}
	return nil
}
