package importer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"migra/pkg/domain"
)

const (
	retryHeader       = "x-retry-count"
	defaultMaxRetries = 5
)

// permanentError marks a job that will fail the same way every time.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the job is dropped instead of retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if domain.IsNotFound(err) || domain.IsUnparseableEntry(err) || domain.IsInvalidInput(err) ||
		domain.IsInvalidArchive(err) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"deadlock",
		"error 1213", // mysql deadlock
		"error 1205", // mysql lock wait timeout
		"database is locked",
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * time.Second
}

// deliveryHandler acks, retries or drops one delivery depending on how its
// job ended.
type deliveryHandler struct {
	handle     JobHandler
	republish  func(ctx context.Context, msg amqp.Publishing) error
	maxRetries int
	delay      func(attempt int) time.Duration
	logger     *slog.Logger
}

func (h *deliveryHandler) process(ctx context.Context, d amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		h.logger.Error("dropping malformed job", "messageId", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}

	err := h.handle(ctx, job)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := retryCount(d.Headers)
	if !isRetryable(err) || attempt >= h.maxRetries {
		h.logger.Error("import job failed",
			"job", job.ID,
			"file", job.File,
			"attempts", attempt+1,
			"error", err,
		)
		_ = d.Nack(false, false)
		return
	}

	next := attempt + 1
	if wait := h.delay(next); wait > 0 {
		select {
		case <-ctx.Done():
			_ = d.Nack(false, true)
			return
		case <-time.After(wait):
		}
	}

	headers := make(amqp.Table, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(next)

	pubErr := h.republish(ctx, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
		Priority:     d.Priority,
		MessageId:    d.MessageId,
		Timestamp:    time.Now(),
	})
	if pubErr != nil {
		h.logger.Warn("republish failed, requeueing", "job", job.ID, "error", pubErr)
		_ = d.Nack(false, true)
		return
	}
	h.logger.Warn("import job retried", "job", job.ID, "file", job.File, "attempt", next, "error", err)
	_ = d.Ack(false)
}

