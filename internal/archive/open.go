package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"certissuer/internal/config"
)

// NewFromConfig builds the uploader for the configured backend.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Uploader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("archive: config is nil")
	}
	timeout := time.Duration(cfg.Archive.TimeoutSeconds) * time.Second
	switch cfg.Archive.Backend {
	case config.ArchiveOSS:
		store, err := NewOSSStore(OSSOptions{
			Endpoint:        cfg.Archive.OSS.Endpoint,
			AccessKeyID:     cfg.Archive.OSS.AccessKeyID,
			AccessKeySecret: cfg.Archive.OSS.AccessKeySecret,
			Bucket:          cfg.Archive.OSS.Bucket,
			PublicBaseURL:   cfg.Archive.OSS.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return NewUploader(store, cfg.Archive.OSS.Prefix, timeout, logger), nil
	case config.ArchiveDrive, "":
		store, err := NewDriveStore(ctx, cfg.Archive.Drive.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return NewUploader(store, cfg.Archive.Drive.RootFolderID, timeout, logger), nil
	default:
		return nil, fmt.Errorf("archive: unsupported backend %q", cfg.Archive.Backend)
	}
}
