package signing

import (
	"context"

	"github.com/facturacion/backend/internal/domain/shared"
)

// Disabled is a signer used when no certificate is configured. Every signing
// attempt fails with a certificate error, leaving invoices in their last
// persisted state.
type Disabled struct{}

// Sign always fails
func (Disabled) Sign(_ context.Context, _ string) (string, error) {
	return "", shared.NewCertificateError("no signing certificate configured")
}
