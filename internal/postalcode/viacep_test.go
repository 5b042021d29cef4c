package postalcode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/techstore/internal/domain/address"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
}

func TestClient_Lookup(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"cep": "01310-100",
			"logradouro": "Avenida Paulista",
			"complemento": "de 612 a 1510 - lado par",
			"unidade": "",
			"bairro": "Bela Vista",
			"localidade": "São Paulo",
			"uf": "SP",
			"ibge": "3550308",
			"ddd": "11"
		}`))
	})

	loc, err := c.Lookup(context.Background(), "01310100")
	require.NoError(t, err)
	assert.Equal(t, "/01310100/json/", gotPath)
	assert.Equal(t, &address.Location{
		PostalCode: "01310-100",
		Street:     "Avenida Paulista",
		Complement: "de 612 a 1510 - lado par",
		District:   "Bela Vista",
		City:       "São Paulo",
		State:      "SP",
	}, loc)
}

func TestClient_LookupNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "boolean erro", status: http.StatusOK, body: `{"erro": true}`},
		{name: "string erro", status: http.StatusOK, body: `{"erro": "true"}`},
		{name: "bad request", status: http.StatusBadRequest, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Lookup(context.Background(), "99999999")
			require.ErrorIs(t, err, address.ErrPostalCodeNotFound)
		})
	}
}

func TestClient_LookupUpstreamFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Lookup(context.Background(), "01310100")
	require.Error(t, err)
	assert.NotErrorIs(t, err, address.ErrPostalCodeNotFound)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestClient_LookupMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Lookup(context.Background(), "01310100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
