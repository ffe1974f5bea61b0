package document

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/digitorus/pdfsign/sign"
	"github.com/go-pdf/fpdf"

	"certissuer/internal/services"
)

// Output file names inside the candidate workspace.
const (
	UnsignedFileName = "certificate.unsigned.pdf"
	SignedFileName   = "certificate.pdf"
)

// A4 landscape in millimetres.
const (
	pageWidthMM  = 297.0
	pageHeightMM = 210.0
)

// Signed is the assembled, signed document.
type Signed struct {
	Path  string
	Pages int
}

// Assembler builds and signs certificate PDFs.
type Assembler struct {
	material Material
	info     Info
	now      func() time.Time

	mu     sync.Mutex
	signer *Signer
}

// NewAssembler returns an assembler. Signing material loads on first use so
// a missing key fails the candidate rather than the process.
func NewAssembler(material Material, info Info) *Assembler {
	return &Assembler{material: material, info: info, now: time.Now}
}

func (a *Assembler) loadSigner() (*Signer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signer != nil {
		return a.signer, nil
	}
	signer, err := LoadSigner(a.material)
	if err != nil {
		return nil, err
	}
	a.signer = signer
	return signer, nil
}

// Assemble places each image on its own full-bleed page, in order, and signs
// the result into dir/certificate.pdf. The unsigned intermediate is removed.
func (a *Assembler) Assemble(ctx context.Context, images []string, dir string) (Signed, error) {
	if len(images) == 0 {
		return Signed{}, services.Wrap(services.ErrData, "assembling", "assemble pdf", "no pages to assemble", nil)
	}
	signer, err := a.loadSigner()
	if err != nil {
		return Signed{}, err
	}

	unsigned := filepath.Join(dir, UnsignedFileName)
	defer os.Remove(unsigned)
	if err := writePages(images, unsigned); err != nil {
		return Signed{}, err
	}
	if err := ctx.Err(); err != nil {
		return Signed{}, err
	}

	out := filepath.Join(dir, SignedFileName)
	if err := a.sign(signer, unsigned, out); err != nil {
		_ = os.Remove(out)
		return Signed{}, err
	}
	return Signed{Path: out, Pages: len(images)}, nil
}

func writePages(images []string, path string) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("certissuer", true)
	for _, img := range images {
		if _, err := os.Stat(img); err != nil {
			return services.Wrap(services.ErrAsset, "assembling", "add page", img, err)
		}
		pdf.AddPage()
		pdf.ImageOptions(img, 0, 0, pageWidthMM, pageHeightMM, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return services.Wrap(services.ErrAsset, "assembling", "write pdf", path, err)
	}
	return nil
}

func (a *Assembler) sign(signer *Signer, input, output string) error {
	data := sign.SignData{
		Signature: sign.SignDataSignature{
			Info: sign.SignDataSignatureInfo{
				Name:        a.info.Name,
				Location:    a.info.Location,
				Reason:      a.info.Reason,
				ContactInfo: a.info.ContactInfo,
				Date:        a.now(),
			},
			CertType:   sign.CertificationSignature,
			DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
		},
		Signer:            signer.Key,
		DigestAlgorithm:   crypto.SHA256,
		Certificate:       signer.Certificate,
		CertificateChains: [][]*x509.Certificate{signer.Chain},
	}
	if err := sign.SignFile(input, output, data); err != nil {
		return services.Wrap(services.ErrSigning, "assembling", "sign pdf", fmt.Sprintf("signer %q", a.info.Name), err)
	}
	return nil
}
