package billing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/facturacion/backend/internal/domain/shared"
)

// Access key field widths as defined by the tax authority.
// date(8) + docType(2) + taxId(13) + env(1) + serial(6) + sequential(9) +
// numericCode(8) + emissionType(1) = 48, plus one check digit = 49.
const (
	accessKeyBaseLength = 48
	// AccessKeyLength is the full key length including the check digit
	AccessKeyLength = 49

	accessKeyDateLayout = "02012006"
)

// AccessKey is the 49-digit identifier embedded in an electronic tax document.
// It is immutable once assigned to an invoice.
type AccessKey string

// String returns the key digits
func (k AccessKey) String() string {
	return string(k)
}

// IsZero returns true if no key has been assigned
func (k AccessKey) IsZero() bool {
	return k == ""
}

// Validate checks length, digit content and the trailing check digit
func (k AccessKey) Validate() error {
	if len(k) != AccessKeyLength {
		return shared.NewValidationError("access key must be %d digits, got %d", AccessKeyLength, len(k))
	}
	if !isDigits(string(k)) {
		return shared.NewValidationError("access key must contain only digits")
	}
	base := string(k[:accessKeyBaseLength])
	check, err := Mod11CheckDigit(base)
	if err != nil {
		return err
	}
	if int(k[accessKeyBaseLength]-'0') != check {
		return shared.NewValidationError("access key check digit mismatch")
	}
	return nil
}

// AccessKeyInput carries the fixed-width components of an access key.
// NumericCode must come from NewNumericCode, never from a predictable source.
type AccessKeyInput struct {
	EmissionDate time.Time
	DocumentType string // 2 digits, e.g. "01" for invoice
	IssuerTaxID  string // 13 digits
	Environment  string // 1 digit: 1 = test, 2 = production
	Serial       string // 6 digits: establishment + emission point
	Sequential   string // 9 digits, zero padded
	NumericCode  string // 8 digits
	EmissionType string // 1 digit
}

// GenerateAccessKey derives the 49-digit access key from its components.
// The derivation is deterministic: identical inputs always yield the same key.
func GenerateAccessKey(in AccessKeyInput) (AccessKey, error) {
	if in.EmissionDate.IsZero() {
		return "", shared.NewValidationError("emission date is required")
	}
	fields := []struct {
		name  string
		value string
		width int
	}{
		{"document type", in.DocumentType, 2},
		{"issuer tax id", in.IssuerTaxID, 13},
		{"environment", in.Environment, 1},
		{"serial", in.Serial, 6},
		{"sequential", in.Sequential, 9},
		{"numeric code", in.NumericCode, 8},
		{"emission type", in.EmissionType, 1},
	}
	for _, f := range fields {
		if len(f.value) != f.width {
			return "", shared.NewValidationError("%s must be %d digits, got %q", f.name, f.width, f.value)
		}
		if !isDigits(f.value) {
			return "", shared.NewValidationError("%s must contain only digits, got %q", f.name, f.value)
		}
	}

	base := in.EmissionDate.Format(accessKeyDateLayout) +
		in.DocumentType +
		in.IssuerTaxID +
		in.Environment +
		in.Serial +
		in.Sequential +
		in.NumericCode +
		in.EmissionType

	check, err := Mod11CheckDigit(base)
	if err != nil {
		return "", err
	}
	return AccessKey(fmt.Sprintf("%s%d", base, check)), nil
}

// Mod11CheckDigit computes the weighted checksum over a digit string.
// Digits are scanned right to left with weights cycling 2 through 7,
// then 11 - (sum mod 11), mapping 11 to 0 and 10 to 1.
func Mod11CheckDigit(base string) (int, error) {
	if len(base) == 0 {
		return 0, shared.NewValidationError("check digit base cannot be empty")
	}
	if !isDigits(base) {
		return 0, shared.NewValidationError("check digit base must contain only digits")
	}

	sum := 0
	weight := 2
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	check := 11 - (sum % 11)
	switch check {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	default:
		return check, nil
	}
}

// NewNumericCode returns the 8-digit random key component from a
// cryptographically secure source. A code seeded from the invoice id or a
// timestamp would make the access key guessable.
func NewNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate numeric code: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
