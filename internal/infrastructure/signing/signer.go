package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/facturacion/backend/internal/domain/shared"
)

const (
	canonicalizationMethod = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	signatureMethod        = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	digestMethod           = "http://www.w3.org/2000/09/xmldsig#sha1"
	envelopedTransform     = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	dsigNamespace          = "http://www.w3.org/2000/09/xmldsig#"

	documentReferenceID = "comprobante"
)

// Signer produces enveloped XML signatures over serialized tax documents.
// The serializer emits documents in canonical form already (fixed element
// order, no insignificant whitespace), so digesting the bytes as produced
// matches what a verifier computes after the enveloped transform.
type Signer struct {
	cert *Certificate
}

func NewSigner(cert *Certificate) (*Signer, error) {
	if cert == nil || cert.PrivateKey == nil || cert.Leaf == nil {
		return nil, shared.NewCertificateError("signer requires a loaded certificate")
	}
	return &Signer{cert: cert}, nil
}

// Sign embeds a ds:Signature element inside the document's root element and
// returns the signed document. The input must be the exact serializer output
// for the invoice being signed.
func (s *Signer) Sign(document string) (string, error) {
	body := stripXMLHeader(document)
	closeIdx := strings.LastIndex(body, "</")
	if closeIdx < 0 {
		return "", shared.NewSchemaError("document has no closing root element")
	}

	docDigest := sha1.Sum([]byte(body))

	signedInfo := buildSignedInfo(base64.StdEncoding.EncodeToString(docDigest[:]))
	infoDigest := sha1.Sum([]byte(signedInfo))

	sigValue, err := rsa.SignPKCS1v15(rand.Reader, s.cert.PrivateKey, crypto.SHA1, infoDigest[:])
	if err != nil {
		return "", shared.NewCertificateError("signature computation failed: %v", err)
	}

	signature := buildSignature(
		signedInfo,
		base64.StdEncoding.EncodeToString(sigValue),
		base64.StdEncoding.EncodeToString(s.cert.Leaf.Raw),
	)

	var out strings.Builder
	if header := xmlHeaderOf(document); header != "" {
		out.WriteString(header)
	}
	out.WriteString(body[:closeIdx])
	out.WriteString(signature)
	out.WriteString(body[closeIdx:])
	return out.String(), nil
}

// VerifyDigest recomputes the document digest embedded in a signed document's
// reference and checks it against the unsigned body. It exists for tests and
// diagnostic tooling rather than full signature validation, which the
// authority performs on its side.
func (s *Signer) VerifyDigest(signed string) error {
	start := strings.Index(signed, "<ds:Signature")
	end := strings.Index(signed, "</ds:Signature>")
	if start < 0 || end < 0 {
		return shared.NewSchemaError("document carries no signature element")
	}
	body := stripXMLHeader(signed[:start] + signed[end+len("</ds:Signature>"):])

	want := extractTagValue(signed, "ds:DigestValue")
	if want == "" {
		return shared.NewSchemaError("signature carries no digest value")
	}
	sum := sha1.Sum([]byte(body))
	if base64.StdEncoding.EncodeToString(sum[:]) != want {
		return shared.NewSchemaError("document digest does not match signature reference")
	}
	return nil
}

func buildSignedInfo(digestValue string) string {
	return fmt.Sprintf(
		`<ds:SignedInfo xmlns:ds="%s">`+
			`<ds:CanonicalizationMethod Algorithm="%s"></ds:CanonicalizationMethod>`+
			`<ds:SignatureMethod Algorithm="%s"></ds:SignatureMethod>`+
			`<ds:Reference URI="#%s">`+
			`<ds:Transforms>`+
			`<ds:Transform Algorithm="%s"></ds:Transform>`+
			`</ds:Transforms>`+
			`<ds:DigestMethod Algorithm="%s"></ds:DigestMethod>`+
			`<ds:DigestValue>%s</ds:DigestValue>`+
			`</ds:Reference>`+
			`</ds:SignedInfo>`,
		dsigNamespace,
		canonicalizationMethod,
		signatureMethod,
		documentReferenceID,
		envelopedTransform,
		digestMethod,
		digestValue,
	)
}

func buildSignature(signedInfo, signatureValue, certificate string) string {
	return fmt.Sprintf(
		`<ds:Signature xmlns:ds="%s">`+
			`%s`+
			`<ds:SignatureValue>%s</ds:SignatureValue>`+
			`<ds:KeyInfo>`+
			`<ds:X509Data>`+
			`<ds:X509Certificate>%s</ds:X509Certificate>`+
			`</ds:X509Data>`+
			`</ds:KeyInfo>`+
			`</ds:Signature>`,
		dsigNamespace,
		signedInfo,
		signatureValue,
		certificate,
	)
}

func stripXMLHeader(doc string) string {
	if strings.HasPrefix(doc, "<?xml") {
		if end := strings.Index(doc, "?>"); end >= 0 {
			return strings.TrimLeft(doc[end+2:], "\n")
		}
	}
	return doc
}

func xmlHeaderOf(doc string) string {
	if strings.HasPrefix(doc, "<?xml") {
		if end := strings.Index(doc, "?>"); end >= 0 {
			return doc[:end+2] + "\n"
		}
	}
	return ""
}

func extractTagValue(doc, tag string) string {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"
	start := strings.Index(doc, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.Index(doc[start:], closing)
	if end < 0 {
		return ""
	}
	return doc[start : start+end]
}
