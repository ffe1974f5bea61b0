package document_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"certissuer/internal/config"
	"certissuer/internal/document"
	"certissuer/internal/services"
	"certissuer/internal/testsupport"
)

func assemblerFor(cfg *config.Config) *document.Assembler {
	return document.NewAssembler(
		document.Material{
			CertificatePath: cfg.Signature.Certificate,
			KeyPath:         cfg.Signature.PrivateKey,
			Passphrase:      cfg.Signature.Passphrase,
		},
		document.Info{Name: "Example Academy", Location: "Lima", Reason: "Certificate issuance"},
	)
}

func pages(cfg *config.Config) []string {
	return []string{cfg.Assets.Slide1, cfg.Assets.Slide2}
}

func TestAssembleProducesSignedTwoPagePDF(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets(), testsupport.WithSigningMaterial("s3cret"))
	dir := t.TempDir()

	signed, err := assemblerFor(cfg).Assemble(context.Background(), pages(cfg), dir)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if signed.Path != filepath.Join(dir, document.SignedFileName) || signed.Pages != 2 {
		t.Fatalf("unexpected result %#v", signed)
	}
	data, err := os.ReadFile(signed.Path)
	if err != nil {
		t.Fatalf("read signed pdf: %v", err)
	}
	pageObjects := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	if pageObjects != 2 {
		t.Fatalf("expected 2 pages, found %d", pageObjects)
	}
	for _, marker := range []string{"/ByteRange", "/Sig", "Example Academy"} {
		if !bytes.Contains(data, []byte(marker)) {
			t.Fatalf("expected signed pdf to contain %q", marker)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, document.UnsignedFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected unsigned intermediate removed, stat err=%v", err)
	}
}

func TestAssembleWithUnencryptedKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets(), testsupport.WithSigningMaterial(""))
	if _, err := assemblerFor(cfg).Assemble(context.Background(), pages(cfg), t.TempDir()); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestMissingCertificateIsSigningAssetError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets())
	dir := t.TempDir()
	_, err := assemblerFor(cfg).Assemble(context.Background(), pages(cfg), dir)
	if !errors.Is(err, services.ErrSigningAsset) {
		t.Fatalf("expected signing asset error, got %v", err)
	}
	if services.Kind(err) != services.KindSigningAsset {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no output files, found %d", len(entries))
	}
}

func TestWrongPassphraseIsSigningError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets(), testsupport.WithSigningMaterial("s3cret"))
	cfg.Signature.Passphrase = "wrong"
	_, err := assemblerFor(cfg).Assemble(context.Background(), pages(cfg), t.TempDir())
	if !errors.Is(err, services.ErrSigning) || errors.Is(err, services.ErrSigningAsset) {
		t.Fatalf("expected signing error, got %v", err)
	}
}

func TestMalformedKeyIsSigningError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets(), testsupport.WithSigningMaterial(""))
	if err := os.WriteFile(cfg.Signature.PrivateKey, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("overwrite key: %v", err)
	}
	_, err := document.LoadSigner(document.Material{
		CertificatePath: cfg.Signature.Certificate,
		KeyPath:         cfg.Signature.PrivateKey,
	})
	if !errors.Is(err, services.ErrSigning) {
		t.Fatalf("expected signing error, got %v", err)
	}
}

func TestMissingPageIsAssetError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets(), testsupport.WithSigningMaterial(""))
	images := []string{cfg.Assets.Slide1, filepath.Join(t.TempDir(), "gone.png")}
	if _, err := assemblerFor(cfg).Assemble(context.Background(), images, t.TempDir()); !errors.Is(err, services.ErrAsset) {
		t.Fatalf("expected asset error, got %v", err)
	}
}
