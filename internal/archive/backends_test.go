package archive

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

func TestFolderQueryEscapesLiterals(t *testing.T) {
	got := folderQuery("root-1", "O'Brien")
	want := `mimeType='application/vnd.google-apps.folder' and name='O\'Brien' and 'root-1' in parents and trashed=false`
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

type fakeBucket struct {
	objects map[string]string
	acl     map[string]oss.ACLType
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]string{}, acl: map[string]oss.ACLType{}}
}

func (b *fakeBucket) IsObjectExist(key string, _ ...oss.Option) (bool, error) {
	_, ok := b.objects[key]
	return ok, nil
}

func (b *fakeBucket) PutObject(key string, r io.Reader, _ ...oss.Option) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = string(data)
	return nil
}

func (b *fakeBucket) SetObjectACL(key string, acl oss.ACLType, _ ...oss.Option) error {
	b.acl[key] = acl
	return nil
}

func TestOSSStoreUsesPrefixFolders(t *testing.T) {
	bucket := newFakeBucket()
	store := newOSSStore(bucket, OSSOptions{Endpoint: "https://oss-cn-hangzhou.aliyuncs.com", Bucket: "certs"})
	ctx := context.Background()

	if _, found, err := store.FindFolder(ctx, "certificados", "2025"); err != nil || found {
		t.Fatalf("expected missing folder, found=%v err=%v", found, err)
	}
	year, err := store.CreateFolder(ctx, "certificados", "2025")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if year != "certificados/2025" {
		t.Fatalf("unexpected folder id %q", year)
	}
	if id, found, _ := store.FindFolder(ctx, "certificados", "2025"); !found || id != year {
		t.Fatalf("expected folder to be found, got %q %v", id, found)
	}
	course, err := store.CreateFolder(ctx, year, "Excel/Avanzado")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if course != "certificados/2025/Excel-Avanzado" {
		t.Fatalf("expected slash to be sanitized, got %q", course)
	}

	key, err := store.UploadFile(ctx, course, "certificado_1.pdf", PDFMimeType, strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if err := store.GrantPublicRead(ctx, key); err != nil {
		t.Fatalf("GrantPublicRead: %v", err)
	}
	if bucket.acl[key] != oss.ACLPublicRead {
		t.Fatalf("expected public-read acl on %s", key)
	}
	want := "https://certs.oss-cn-hangzhou.aliyuncs.com/certificados/2025/Excel-Avanzado/certificado_1.pdf"
	if got := store.DownloadURL(key); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestOSSStorePublicBaseURL(t *testing.T) {
	store := newOSSStore(newFakeBucket(), OSSOptions{Bucket: "certs", PublicBaseURL: "https://cdn.example/"})
	if got := store.DownloadURL("a/b.pdf"); got != "https://cdn.example/a/b.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestOSSStoreEscapesKeySegments(t *testing.T) {
	store := newOSSStore(newFakeBucket(), OSSOptions{Endpoint: "https://oss-cn-hangzhou.aliyuncs.com", Bucket: "certs"})
	got := store.DownloadURL("2024/Primeros Auxilios/Ana Pérez/cert#1.pdf")
	want := "https://certs.oss-cn-hangzhou.aliyuncs.com/2024/Primeros%20Auxilios/Ana%20P%C3%A9rez/cert%231.pdf"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	cdn := newOSSStore(newFakeBucket(), OSSOptions{Bucket: "certs", PublicBaseURL: "https://cdn.example"})
	if got := cdn.DownloadURL("a b/c.pdf"); got != "https://cdn.example/a%20b/c.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
}
