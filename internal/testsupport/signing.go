package testsupport

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/youmark/pkcs8"
)

// WithSigningMaterial writes a self-signed certificate and its private key.
// A non-empty passphrase produces an encrypted PKCS#8 key.
func WithSigningMaterial(passphrase string) ConfigOption {
	return func(b *configBuilder) {
		b.t.Helper()
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			b.t.Fatalf("generate key: %v", err)
		}
		template := &x509.Certificate{
			SerialNumber: big.NewInt(time.Now().UnixNano()),
			Subject: pkix.Name{
				CommonName:   "Example Academy",
				Organization: []string{"Example Academy"},
			},
			NotBefore:             time.Now().Add(-time.Hour),
			NotAfter:              time.Now().Add(24 * time.Hour),
			KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
			BasicConstraintsValid: true,
		}
		der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
		if err != nil {
			b.t.Fatalf("create certificate: %v", err)
		}
		writeBytes(b, b.cfg.Signature.Certificate, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

		var keyBlock *pem.Block
		if passphrase == "" {
			keyDER, err := x509.MarshalPKCS8PrivateKey(key)
			if err != nil {
				b.t.Fatalf("marshal key: %v", err)
			}
			keyBlock = &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}
		} else {
			keyDER, err := pkcs8.MarshalPrivateKey(key, []byte(passphrase), nil)
			if err != nil {
				b.t.Fatalf("encrypt key: %v", err)
			}
			keyBlock = &pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: keyDER}
		}
		writeBytes(b, b.cfg.Signature.PrivateKey, pem.EncodeToMemory(keyBlock))
		b.cfg.Signature.Passphrase = passphrase
	}
}
