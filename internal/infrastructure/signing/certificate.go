package signing

import (
	"crypto/rsa"
	"crypto/x509"
	"os"

	"github.com/facturacion/backend/internal/domain/shared"
	"golang.org/x/crypto/pkcs12"
)

// Certificate bundles the signing key pair loaded from a PKCS#12 container.
// The container path and passphrase always come from configuration or
// environment, never from source.
type Certificate struct {
	PrivateKey *rsa.PrivateKey
	Leaf       *x509.Certificate
}

// LoadCertificate reads and decrypts a PKCS#12 container. Every failure mode
// (missing file, wrong passphrase, no usable private key) is a
// CERTIFICATE_ERROR so callers can treat them uniformly as signing
// misconfiguration.
func LoadCertificate(path, passphrase string) (*Certificate, error) {
	if path == "" {
		return nil, shared.NewCertificateError("certificate path is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewCertificateError("cannot read certificate file %s: %v", path, err)
	}

	key, leaf, err := pkcs12.Decode(data, passphrase)
	if err != nil {
		return nil, shared.NewCertificateError("cannot decode certificate %s: %v", path, err)
	}
	if leaf == nil {
		return nil, shared.NewCertificateError("certificate %s contains no X509 certificate", path)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok || rsaKey == nil {
		return nil, shared.NewCertificateError("certificate %s lacks an RSA private key", path)
	}

	return &Certificate{PrivateKey: rsaKey, Leaf: leaf}, nil
}
