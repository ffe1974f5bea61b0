package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/logging"
	"certissuer/internal/services"
	"certissuer/internal/textutil"
)

// PDFMimeType is the declared content type of uploaded certificates.
const PDFMimeType = "application/pdf"

// ObjectStore is the remote storage protocol.
type ObjectStore interface {
	// FindFolder looks for a child folder of parentID named exactly name.
	FindFolder(ctx context.Context, parentID, name string) (id string, found bool, err error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	UploadFile(ctx context.Context, parentID, name, mimeType string, r io.Reader) (string, error)
	GrantPublicRead(ctx context.Context, objectID string) error
	DownloadURL(objectID string) string
}

// Result describes an archived document.
type Result struct {
	ObjectID string
	URL      string
	FolderID string
}

// Uploader resolves the folder tree and uploads documents into it.
type Uploader struct {
	store   ObjectStore
	rootID  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewUploader returns an uploader rooted at rootID. A zero timeout disables
// the per-upload deadline.
func NewUploader(store ObjectStore, rootID string, timeout time.Duration, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{
		store:   store,
		rootID:  rootID,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// FileName is the deterministic document name for rec.
func FileName(rec candidate.Record) string {
	id := strconv.FormatInt(rec.StudentID, 10)
	if rec.HasNationalID() {
		id = textutil.SanitizeFileName(rec.NationalIDOrPlaceholder())
	}
	return "certificado_" + id + ".pdf"
}

// FolderPath returns the year/course/student segments for rec.
func FolderPath(year int, rec candidate.Record) []string {
	return []string{
		strconv.Itoa(year),
		textutil.NormalizeSegment(rec.CourseName),
		textutil.NormalizeSegment(rec.DisplayName),
	}
}

// Upload archives the document at path for rec and makes it publicly readable.
func (u *Uploader) Upload(ctx context.Context, path string, rec candidate.Record) (Result, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	folderID, err := u.ensureFolders(ctx, FolderPath(u.now().Year(), rec))
	if err != nil {
		return Result{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrAsset, "uploading", "open signed document", path, err)
	}
	defer file.Close()

	name := FileName(rec)
	objectID, err := u.store.UploadFile(ctx, folderID, name, PDFMimeType, file)
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpload, "uploading", "upload file", name, err)
	}
	if err := u.store.GrantPublicRead(ctx, objectID); err != nil {
		return Result{ObjectID: objectID, FolderID: folderID},
			services.Wrap(services.ErrUpload, "uploading", "grant public read", objectID, err)
	}

	result := Result{
		ObjectID: objectID,
		URL:      u.store.DownloadURL(objectID),
		FolderID: folderID,
	}
	u.logger.Debug("certificate archived",
		logging.String("object_id", objectID),
		logging.String("folder_id", folderID),
		logging.String("file_name", name),
	)
	return result, nil
}

func (u *Uploader) ensureFolders(ctx context.Context, segments []string) (string, error) {
	parent := u.rootID
	for _, segment := range segments {
		if segment == "" {
			return "", services.Wrap(services.ErrData, "uploading", "resolve folder", "empty folder name", nil)
		}
		id, found, err := u.store.FindFolder(ctx, parent, segment)
		if err != nil {
			return "", services.Wrap(services.ErrUpload, "uploading", "find folder", segment, err)
		}
		if !found {
			id, err = u.store.CreateFolder(ctx, parent, segment)
			if err != nil {
				return "", services.Wrap(services.ErrUpload, "uploading", "create folder", fmt.Sprintf("%s under %s", segment, parent), err)
			}
			u.logger.Debug("archive folder created",
				logging.String("folder", segment),
				logging.String("folder_id", id),
				logging.String("parent_id", parent),
			)
		}
		parent = id
	}
	return parent, nil
}
