package authority

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

const receptionReceivedBody = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante>
<estado>RECIBIDA</estado>
<comprobantes/>
</RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse>
</soap:Body>
</soap:Envelope>`

const receptionRejectedBody = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante>
<estado>DEVUELTA</estado>
<comprobantes>
<comprobante>
<claveAcceso>0102030405</claveAcceso>
<mensajes>
<mensaje>
<identificador>35</identificador>
<mensaje>ARCHIVO NO CUMPLE ESTRUCTURA XML</mensaje>
<informacionAdicional>linea 1</informacionAdicional>
<tipo>ERROR</tipo>
</mensaje>
</mensajes>
</comprobante>
</comprobantes>
</RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse>
</soap:Body>
</soap:Envelope>`

const authorizationAuthorizedBody = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante>
<claveAccesoConsultada>0102030405</claveAccesoConsultada>
<numeroComprobantes>1</numeroComprobantes>
<autorizaciones>
<autorizacion>
<estado>AUTORIZADO</estado>
<numeroAutorizacion>2908202601017600001230011</numeroAutorizacion>
<fechaAutorizacion>2026-08-29T10:15:30.000-05:00</fechaAutorizacion>
<ambiente>PRUEBAS</ambiente>
<comprobante>&lt;factura&gt;...&lt;/factura&gt;</comprobante>
<mensajes/>
</autorizacion>
</autorizaciones>
</RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse>
</soap:Body>
</soap:Envelope>`

const authorizationRejectedBody = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante>
<claveAccesoConsultada>0102030405</claveAccesoConsultada>
<autorizaciones>
<autorizacion>
<estado>NO AUTORIZADO</estado>
<mensajes>
<mensaje>
<identificador>60</identificador>
<mensaje>CLAVE DE ACCESO REGISTRADA</mensaje>
<tipo>ERROR</tipo>
</mensaje>
</mensajes>
</autorizacion>
</autorizaciones>
</RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse>
</soap:Body>
</soap:Envelope>`

const authorizationEmptyBody = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante>
<claveAccesoConsultada>0102030405</claveAccesoConsultada>
<numeroComprobantes>0</numeroComprobantes>
<autorizaciones/>
</RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse>
</soap:Body>
</soap:Envelope>`

func newTestClient(receptionURL, authorizationURL string) *Client {
	return NewClient(config.AuthorityConfig{
		ReceptionURL:     receptionURL,
		AuthorizationURL: authorizationURL,
		RequestTimeout:   5 * time.Second,
	}, zap.NewNop())
}

func soapServer(t *testing.T, body string, capture *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if capture != nil {
			*capture = string(payload)
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
}

func TestSubmitReception(t *testing.T) {
	t.Run("received document", func(t *testing.T) {
		var captured string
		srv := soapServer(t, receptionReceivedBody, &captured)
		defer srv.Close()

		client := newTestClient(srv.URL, "")
		result, err := client.SubmitReception(context.Background(), "<factura>signed</factura>")
		require.NoError(t, err)

		assert.Equal(t, ReceptionReceived, result.Status)
		assert.Empty(t, result.Messages)

		encoded := base64.StdEncoding.EncodeToString([]byte("<factura>signed</factura>"))
		assert.Contains(t, captured, "validarComprobante")
		assert.Contains(t, captured, encoded)
	})

	t.Run("rejected document carries authority messages", func(t *testing.T) {
		srv := soapServer(t, receptionRejectedBody, nil)
		defer srv.Close()

		client := newTestClient(srv.URL, "")
		result, err := client.SubmitReception(context.Background(), "<factura/>")
		require.NoError(t, err)

		assert.Equal(t, ReceptionRejected, result.Status)
		require.Len(t, result.Messages, 1)
		assert.Equal(t, "35", result.Messages[0].Identifier)
		assert.Contains(t, result.Reason(), "ARCHIVO NO CUMPLE ESTRUCTURA XML")
		assert.Contains(t, result.Reason(), "linea 1")
	})

	t.Run("empty document is a validation error", func(t *testing.T) {
		client := newTestClient("http://localhost:0", "")
		_, err := client.SubmitReception(context.Background(), "")
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("server error is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := newTestClient(srv.URL, "")
		_, err := client.SubmitReception(context.Background(), "<factura/>")
		assert.True(t, errors.Is(err, shared.ErrTransport))
	})

	t.Run("malformed body is a transport error", func(t *testing.T) {
		srv := soapServer(t, "<unexpected/>", nil)
		defer srv.Close()

		client := newTestClient(srv.URL, "")
		_, err := client.SubmitReception(context.Background(), "<factura/>")
		assert.True(t, errors.Is(err, shared.ErrTransport))
	})

	t.Run("unreachable endpoint is a transport error", func(t *testing.T) {
		client := newTestClient("", "")
		_, err := client.SubmitReception(context.Background(), "<factura/>")
		assert.True(t, errors.Is(err, shared.ErrTransport))
	})
}

func TestQueryAuthorization(t *testing.T) {
	t.Run("authorized document", func(t *testing.T) {
		var captured string
		srv := soapServer(t, authorizationAuthorizedBody, &captured)
		defer srv.Close()

		client := newTestClient("", srv.URL)
		result, err := client.QueryAuthorization(context.Background(), "0102030405")
		require.NoError(t, err)

		assert.Equal(t, AuthorizationAuthorized, result.Status)
		assert.Equal(t, "2908202601017600001230011", result.AuthorizationNumber)
		require.NotNil(t, result.AuthorizationDate)
		assert.Equal(t, 2026, result.AuthorizationDate.Year())
		assert.Equal(t, "<factura>...</factura>", result.AuthorizedDocument)
		assert.True(t, strings.Contains(captured, "claveAccesoComprobante"))
		assert.True(t, strings.Contains(captured, "0102030405"))
	})

	t.Run("rejected document carries the reason", func(t *testing.T) {
		srv := soapServer(t, authorizationRejectedBody, nil)
		defer srv.Close()

		client := newTestClient("", srv.URL)
		result, err := client.QueryAuthorization(context.Background(), "0102030405")
		require.NoError(t, err)

		assert.Equal(t, AuthorizationNotAuthorized, result.Status)
		assert.Contains(t, result.Reason(), "CLAVE DE ACCESO REGISTRADA")
	})

	t.Run("empty authorization list means pending", func(t *testing.T) {
		srv := soapServer(t, authorizationEmptyBody, nil)
		defer srv.Close()

		client := newTestClient("", srv.URL)
		result, err := client.QueryAuthorization(context.Background(), "0102030405")
		require.NoError(t, err)
		assert.Equal(t, AuthorizationPending, result.Status)
	})

	t.Run("empty access key is a validation error", func(t *testing.T) {
		client := newTestClient("", "http://localhost:0")
		_, err := client.QueryAuthorization(context.Background(), "")
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestClientSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	receptionSrv := soapServer(t, receptionReceivedBody, nil)
	defer receptionSrv.Close()
	authorizationSrv := soapServer(t, authorizationAuthorizedBody, nil)
	defer authorizationSrv.Close()

	client := newTestClient(receptionSrv.URL, authorizationSrv.URL)

	_, err := client.SubmitReception(context.Background(), "<factura/>")
	require.NoError(t, err)
	_, err = client.QueryAuthorization(context.Background(), "0102030405")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "authority.SubmitReception", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(),
		attribute.String("authority.reception_status", string(ReceptionReceived)))
	assert.Equal(t, "authority.QueryAuthorization", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(),
		attribute.String("authority.authorization_status", string(AuthorizationAuthorized)))
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, ReceptionReceived, mapReceptionStatus("RECIBIDA"))
	assert.Equal(t, ReceptionRejected, mapReceptionStatus("devuelta"))
	assert.Equal(t, ReceptionUnknown, mapReceptionStatus("???"))

	assert.Equal(t, AuthorizationAuthorized, mapAuthorizationStatus("AUTORIZADO"))
	assert.Equal(t, AuthorizationNotAuthorized, mapAuthorizationStatus("NO AUTORIZADO"))
	assert.Equal(t, AuthorizationRejected, mapAuthorizationStatus("RECHAZADA"))
	assert.Equal(t, AuthorizationPending, mapAuthorizationStatus("EN PROCESO"))
	assert.Equal(t, AuthorizationUnknown, mapAuthorizationStatus(""))
}
