package authority

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("facturacion/authority")

// ReceptionStatus is the outcome of submitting a signed document.
type ReceptionStatus string

const (
	ReceptionReceived ReceptionStatus = "RECEIVED"
	ReceptionRejected ReceptionStatus = "REJECTED"
	ReceptionUnknown  ReceptionStatus = "UNKNOWN"
)

// AuthorizationStatus is the outcome of an authorization query.
type AuthorizationStatus string

const (
	AuthorizationAuthorized    AuthorizationStatus = "AUTHORIZED"
	AuthorizationNotAuthorized AuthorizationStatus = "NOT_AUTHORIZED"
	AuthorizationRejected      AuthorizationStatus = "REJECTED"
	AuthorizationPending       AuthorizationStatus = "PENDING"
	AuthorizationUnknown       AuthorizationStatus = "UNKNOWN"
)

// Message is one authority remark attached to a reception or authorization
// response.
type Message struct {
	Identifier     string
	Text           string
	AdditionalInfo string
	Type           string
}

func (m Message) String() string {
	if m.AdditionalInfo == "" {
		return fmt.Sprintf("[%s] %s", m.Identifier, m.Text)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Identifier, m.Text, m.AdditionalInfo)
}

// ReceptionResult is the parsed reception outcome.
type ReceptionResult struct {
	Status   ReceptionStatus
	Messages []Message
}

// Reason flattens the authority messages into one line for persistence.
func (r ReceptionResult) Reason() string {
	return joinMessages(r.Messages)
}

// AuthorizationResult is the parsed authorization-query outcome.
type AuthorizationResult struct {
	Status              AuthorizationStatus
	AuthorizationNumber string
	AuthorizationDate   *time.Time
	AuthorizedDocument  string
	Messages            []Message
}

func (r AuthorizationResult) Reason() string {
	return joinMessages(r.Messages)
}

func joinMessages(msgs []Message) string {
	if len(msgs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "; ")
}

// Client talks SOAP to the tax authority's reception and authorization
// services. Transport failures (connect errors, timeouts, malformed bodies)
// surface as TRANSPORT_ERROR and are retryable; whatever the authority says
// about the document itself is carried in the result, never in the error.
type Client struct {
	httpClient       *http.Client
	receptionURL     string
	authorizationURL string
	logger           *zap.Logger
}

// NewClient builds the authority client from configuration. Connection-level
// retries happen inside the HTTP client; business-level polling policy
// belongs to the orchestrator.
func NewClient(cfg config.AuthorityConfig, logger *zap.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = cfg.RequestTimeout
	retryClient.Logger = nil

	return &Client{
		httpClient:       retryClient.StandardClient(),
		receptionURL:     cfg.ReceptionURL,
		authorizationURL: cfg.AuthorizationURL,
		logger:           logger,
	}
}

// SubmitReception sends a signed document to the reception service.
func (c *Client) SubmitReception(ctx context.Context, signedDocument string) (*ReceptionResult, error) {
	if signedDocument == "" {
		return nil, shared.NewValidationError("signed document is empty")
	}

	ctx, span := tracer.Start(ctx, "authority.SubmitReception")
	defer span.End()

	encoded := base64.StdEncoding.EncodeToString([]byte(signedDocument))
	body, err := c.call(ctx, c.receptionURL, newReceptionRequest(encoded))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reception call failed")
		return nil, err
	}

	var resp receptionResponse
	if err := decodePayload(bytes.NewReader(body), "RespuestaRecepcionComprobante", &resp); err != nil {
		wrapped := shared.NewTransportError("malformed reception response: %v", err)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, "malformed reception response")
		return nil, wrapped
	}

	result := &ReceptionResult{Status: mapReceptionStatus(resp.Estado)}
	for _, comp := range resp.Comprobantes {
		result.Messages = append(result.Messages, mapMessages(comp.Mensajes)...)
	}
	span.SetAttributes(attribute.String("authority.reception_status", string(result.Status)))

	c.logger.Info("reception response",
		zap.String("estado", resp.Estado),
		zap.String("status", string(result.Status)),
		zap.Int("messages", len(result.Messages)))
	return result, nil
}

// QueryAuthorization asks the authorization service for the current verdict
// on an access key. An empty authorization list means the authority has not
// processed the document yet and maps to PENDING.
func (c *Client) QueryAuthorization(ctx context.Context, accessKey string) (*AuthorizationResult, error) {
	if accessKey == "" {
		return nil, shared.NewValidationError("access key is empty")
	}

	ctx, span := tracer.Start(ctx, "authority.QueryAuthorization")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.access_key", accessKey))

	body, err := c.call(ctx, c.authorizationURL, newAuthorizationRequest(accessKey))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization call failed")
		return nil, err
	}

	var resp authorizationResponse
	if err := decodePayload(bytes.NewReader(body), "RespuestaAutorizacionComprobante", &resp); err != nil {
		wrapped := shared.NewTransportError("malformed authorization response: %v", err)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, "malformed authorization response")
		return nil, wrapped
	}

	if len(resp.Autorizaciones) == 0 {
		span.SetAttributes(attribute.String("authority.authorization_status", string(AuthorizationPending)))
		c.logger.Info("authorization pending", zap.String("access_key", accessKey))
		return &AuthorizationResult{Status: AuthorizationPending}, nil
	}

	auth := resp.Autorizaciones[0]
	result := &AuthorizationResult{
		Status:              mapAuthorizationStatus(auth.Estado),
		AuthorizationNumber: auth.NumeroAutorizacion,
		AuthorizationDate:   parseAuthorizationDate(auth.FechaAutorizacion),
		AuthorizedDocument:  auth.Comprobante,
		Messages:            mapMessages(auth.Mensajes),
	}
	span.SetAttributes(attribute.String("authority.authorization_status", string(result.Status)))

	c.logger.Info("authorization response",
		zap.String("access_key", accessKey),
		zap.String("estado", auth.Estado),
		zap.String("status", string(result.Status)))
	return result, nil
}

func (c *Client) call(ctx context.Context, url string, payload any) ([]byte, error) {
	if url == "" {
		return nil, shared.NewTransportError("authority endpoint is not configured")
	}

	envelope, err := xml.Marshal(payload)
	if err != nil {
		return nil, shared.NewTransportError("cannot build request envelope: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(append([]byte(xml.Header), envelope...)))
	if err != nil {
		return nil, shared.NewTransportError("cannot build request: %v", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewTransportError("authority call failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.NewTransportError("cannot read authority response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewTransportError("authority returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func mapReceptionStatus(estado string) ReceptionStatus {
	switch strings.ToUpper(strings.TrimSpace(estado)) {
	case "RECIBIDA":
		return ReceptionReceived
	case "DEVUELTA":
		return ReceptionRejected
	default:
		return ReceptionUnknown
	}
}

func mapAuthorizationStatus(estado string) AuthorizationStatus {
	switch strings.ToUpper(strings.TrimSpace(estado)) {
	case "AUTORIZADO":
		return AuthorizationAuthorized
	case "NO AUTORIZADO":
		return AuthorizationNotAuthorized
	case "RECHAZADA", "RECHAZADO":
		return AuthorizationRejected
	case "EN PROCESO", "PPR":
		return AuthorizationPending
	default:
		return AuthorizationUnknown
	}
}

func mapMessages(msgs []soapMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			Identifier:     m.Identificador,
			Text:           m.Mensaje,
			AdditionalInfo: m.InformacionAdicional,
			Type:           m.Tipo,
		})
	}
	return out
}
