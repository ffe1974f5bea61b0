package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"certissuer/internal/textutil"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// DriveStore implements ObjectStore on Google Drive v3.
type DriveStore struct {
	svc *drive.Service
}

// NewDriveStore authenticates with a service-account credentials file.
func NewDriveStore(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*DriveStore, error) {
	all := append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveStore{svc: svc}, nil
}

func folderQuery(parentID, name string) string {
	return fmt.Sprintf("mimeType='%s' and name='%s' and '%s' in parents and trashed=false",
		driveFolderMimeType, textutil.QuoteQueryLiteral(name), textutil.QuoteQueryLiteral(parentID))
}

func (d *DriveStore) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	list, err := d.svc.Files.List().
		Q(folderQuery(parentID, name)).
		Spaces("drive").
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, err
	}
	for _, f := range list.Files {
		if f.Name == name {
			return f.Id, true, nil
		}
	}
	return "", false, nil
}

func (d *DriveStore) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	folder, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: driveFolderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return folder.Id, nil
}

func (d *DriveStore) UploadFile(ctx context.Context, parentID, name, mimeType string, r io.Reader) (string, error) {
	file, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).Media(r, googleapi.ContentType(mimeType)).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func (d *DriveStore) GrantPublicRead(ctx context.Context, objectID string) error {
	_, err := d.svc.Permissions.Create(objectID, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).SupportsAllDrives(true).Context(ctx).Do()
	return err
}

func (d *DriveStore) DownloadURL(objectID string) string {
	return DriveDownloadURL(objectID)
}

// DriveDownloadURL is the public direct-download link for a Drive file.
func DriveDownloadURL(objectID string) string {
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(objectID)
}
