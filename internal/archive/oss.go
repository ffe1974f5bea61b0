package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"certissuer/internal/textutil"
)

// folderMarker terminates the zero-byte object that stands in for a folder.
const folderMarker = "/"

type ossBucket interface {
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	SetObjectACL(objectKey string, objectACL oss.ACLType, options ...oss.Option) error
}

// OSSStore implements ObjectStore on an Alibaba Cloud OSS bucket. Folder ids
// are key prefixes; a folder exists when its marker object exists.
type OSSStore struct {
	bucket     ossBucket
	endpoint   string
	bucketName string
	publicBase string
}

// OSSOptions configures NewOSSStore.
type OSSOptions struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
}

// NewOSSStore connects to the configured bucket.
func NewOSSStore(opts OSSOptions) (*OSSStore, error) {
	client, err := oss.New(opts.Endpoint, opts.AccessKeyID, opts.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bucket, err := client.Bucket(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", opts.Bucket, err)
	}
	return newOSSStore(bucket, opts), nil
}

func newOSSStore(bucket ossBucket, opts OSSOptions) *OSSStore {
	return &OSSStore{
		bucket:     bucket,
		endpoint:   opts.Endpoint,
		bucketName: opts.Bucket,
		publicBase: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
	}
}

func ossKey(parentID, name string) string {
	name = textutil.SanitizeFileName(name)
	parentID = strings.Trim(parentID, "/")
	if parentID == "" {
		return name
	}
	return parentID + "/" + name
}

func (s *OSSStore) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	key := ossKey(parentID, name)
	ok, err := s.bucket.IsObjectExist(key+folderMarker, oss.WithContext(ctx))
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return key, true, nil
}

func (s *OSSStore) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	key := ossKey(parentID, name)
	if err := s.bucket.PutObject(key+folderMarker, bytes.NewReader(nil), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return key, nil
}

func (s *OSSStore) UploadFile(ctx context.Context, parentID, name, mimeType string, r io.Reader) (string, error) {
	key := ossKey(parentID, name)
	err := s.bucket.PutObject(key, r,
		oss.WithContext(ctx),
		oss.ContentType(mimeType),
		oss.ContentDisposition(fmt.Sprintf("attachment; filename=%q", name)),
	)
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *OSSStore) GrantPublicRead(ctx context.Context, objectID string) error {
	return s.bucket.SetObjectACL(objectID, oss.ACLPublicRead, oss.WithContext(ctx))
}

func (s *OSSStore) DownloadURL(objectID string) string {
	path := escapeKey(objectID)
	if s.publicBase != "" {
		return s.publicBase + "/" + path
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, end, path)
}

// escapeKey percent-encodes each segment of an object key, keeping the slashes.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
