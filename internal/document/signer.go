package document

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"

	"github.com/youmark/pkcs8"

	"certissuer/internal/services"
)

// Material locates the signing certificate and key.
type Material struct {
	CertificatePath string
	KeyPath         string
	Passphrase      string
}

// Info is the signer metadata embedded in the signature dictionary.
type Info struct {
	Name        string
	Location    string
	Reason      string
	ContactInfo string
}

// Signer holds parsed signing material.
type Signer struct {
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	Key         crypto.Signer
}

// LoadSigner reads and validates the certificate chain and private key.
// Missing files are signing asset errors; undecodable or mismatched material
// is a signing error.
func LoadSigner(m Material) (*Signer, error) {
	certPEM, err := readMaterial("certificate", m.CertificatePath)
	if err != nil {
		return nil, err
	}
	keyPEM, err := readMaterial("private key", m.KeyPath)
	if err != nil {
		return nil, err
	}

	certs, err := parseCertificates(certPEM)
	if err != nil {
		return nil, services.Wrap(services.ErrSigning, "assembling", "parse certificate", m.CertificatePath, err)
	}
	key, err := parsePrivateKey(keyPEM, []byte(m.Passphrase))
	if err != nil {
		return nil, services.Wrap(services.ErrSigning, "assembling", "parse private key", m.KeyPath, err)
	}
	if !publicKeysMatch(certs[0].PublicKey, key.Public()) {
		return nil, services.Wrap(services.ErrSigning, "assembling", "match key", "private key does not belong to certificate", nil)
	}
	return &Signer{Certificate: certs[0], Chain: certs, Key: key}, nil
}

func readMaterial(label, path string) ([]byte, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrSigningAsset, "assembling", "read "+label, "path not configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrSigningAsset, "assembling", "read "+label, path+" not found", err)
		}
		return nil, services.Wrap(services.ErrSigningAsset, "assembling", "read "+label, path, err)
	}
	return data, nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no PEM certificate found")
	}
	return certs, nil
}

func parsePrivateKey(data, passphrase []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	var (
		key any
		err error
	)
	switch {
	case block.Type == "ENCRYPTED PRIVATE KEY":
		if len(passphrase) == 0 {
			return nil, errors.New("key is encrypted but no passphrase is configured")
		}
		key, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, passphrase)
	case block.Type == "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case x509.IsEncryptedPEMBlock(block): //nolint:staticcheck // legacy OpenSSL keys
		der, decErr := x509.DecryptPEMBlock(block, passphrase) //nolint:staticcheck
		if decErr != nil {
			return nil, fmt.Errorf("decrypt %s: %w", block.Type, decErr)
		}
		key, err = parseTraditional(block.Type, der)
	default:
		key, err = parseTraditional(block.Type, block.Bytes)
	}
	if err != nil {
		return nil, err
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key type %T cannot sign", key)
	}
	return signer, nil
}

func parseTraditional(blockType string, der []byte) (any, error) {
	switch blockType {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(der)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(der)
	default:
		return nil, fmt.Errorf("unsupported key block %q", blockType)
	}
}

func publicKeysMatch(a, b crypto.PublicKey) bool {
	type equaler interface{ Equal(crypto.PublicKey) bool }
	if eq, ok := a.(equaler); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
