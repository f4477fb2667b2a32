package authority

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

const soapEnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

// SOAP 1.1 request envelopes for the two authority operations. The services
// take a base64 document for reception and a bare access key for the
// authorization query.
type receptionRequest struct {
	XMLName   xml.Name `xml:"soapenv:Envelope"`
	EnvNS     string   `xml:"xmlns:soapenv,attr"`
	ServiceNS string   `xml:"xmlns:ec,attr"`
	Body      struct {
		Operation struct {
			Document string `xml:"xml"`
		} `xml:"ec:validarComprobante"`
	} `xml:"soapenv:Body"`
}

type authorizationRequest struct {
	XMLName   xml.Name `xml:"soapenv:Envelope"`
	EnvNS     string   `xml:"xmlns:soapenv,attr"`
	ServiceNS string   `xml:"xmlns:ec,attr"`
	Body      struct {
		Operation struct {
			AccessKey string `xml:"claveAccesoComprobante"`
		} `xml:"ec:autorizacionComprobante"`
	} `xml:"soapenv:Body"`
}

func newReceptionRequest(documentBase64 string) receptionRequest {
	req := receptionRequest{
		EnvNS:     soapEnvelopeNamespace,
		ServiceNS: "http://ec.gob.sri.ws.recepcion",
	}
	req.Body.Operation.Document = documentBase64
	return req
}

func newAuthorizationRequest(accessKey string) authorizationRequest {
	req := authorizationRequest{
		EnvNS:     soapEnvelopeNamespace,
		ServiceNS: "http://ec.gob.sri.ws.autorizacion",
	}
	req.Body.Operation.AccessKey = accessKey
	return req
}

// Response payloads. Element names are the authority's wire contract; the
// SOAP wrapper around them varies between environments, so decoding scans
// for the payload element instead of assuming the exact envelope shape.
type receptionResponse struct {
	Estado       string            `xml:"estado"`
	Comprobantes []receiptEnvelope `xml:"comprobantes>comprobante"`
}

type receiptEnvelope struct {
	ClaveAcceso string        `xml:"claveAcceso"`
	Mensajes    []soapMessage `xml:"mensajes>mensaje"`
}

type authorizationResponse struct {
	ClaveAcceso    string              `xml:"claveAccesoConsultada"`
	Autorizaciones []soapAuthorization `xml:"autorizaciones>autorizacion"`
}

type soapAuthorization struct {
	Estado             string        `xml:"estado"`
	NumeroAutorizacion string        `xml:"numeroAutorizacion"`
	FechaAutorizacion  string        `xml:"fechaAutorizacion"`
	Ambiente           string        `xml:"ambiente"`
	Comprobante        string        `xml:"comprobante"`
	Mensajes           []soapMessage `xml:"mensajes>mensaje"`
}

type soapMessage struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

// decodePayload scans the SOAP body for the element with the given local
// name and decodes it into dst.
func decodePayload(r io.Reader, localName string, dst any) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("element %s not found in response: %w", localName, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == localName {
			return dec.DecodeElement(dst, &start)
		}
	}
}

var authorizationDateLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339,
}

func parseAuthorizationDate(raw string) *time.Time {
	for _, layout := range authorizationDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
