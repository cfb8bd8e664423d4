// Package storage keeps uploaded archives so that import workers can read
// them again after the upload request has finished.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("archive not found")

// Store saves archives under the upload id they were received with.
type Store interface {
	Put(ctx context.Context, uploadID string, data []byte) error
	Get(ctx context.Context, uploadID string) ([]byte, error)
	Delete(ctx context.Context, uploadID string) error
}

// Config selects and configures a Store.
type Config struct {
	// Kind is "memory", "disk" or "s3".
	Kind string
	Dir  string
	S3   S3Config
}

// Open builds the store named by cfg.Kind. An empty kind means memory.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "disk":
		return NewDiskStore(cfg.Dir)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

func objectKey(uploadID string) (string, error) {
	id := strings.TrimSpace(uploadID)
	if id == "" {
		return "", fmt.Errorf("upload id is required")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid upload id %q", uploadID)
	}
	return "uploads/" + id + ".zip", nil
}
