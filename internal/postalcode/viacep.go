// Package postalcode resolves Brazilian postal codes (CEP) through ViaCEP.
package postalcode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/techstore/internal/domain/address"
)

// DefaultBaseURL is the public ViaCEP endpoint.
const DefaultBaseURL = "https://viacep.com.br/ws"

// Config configures the ViaCEP client.
type Config struct {
	BaseURL string        `default:"https://viacep.com.br/ws" usage:"ViaCEP base URL"`
	Timeout time.Duration `default:"5s" usage:"ViaCEP request timeout"`
}

// Client queries ViaCEP over an instrumented HTTP transport.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ address.Locator = (*Client)(nil)

// New creates a Client. A nil tp uses the global tracer provider.
func New(cfg Config, tp trace.TracerProvider) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
	}
}

// Lookup fetches the location of a normalized (digits only) postal code.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*address.Location, error) {
	url := fmt.Sprintf("%s/%s/json/", c.baseURL, postalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	// ViaCEP answers 400 for malformed codes; treat it like an unknown one.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, address.ErrPostalCodeNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return decodeLocation(body)
}

func decodeLocation(body []byte) (*address.Location, error) {
	var (
		loc     address.Location
		missing bool
	)
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "erro":
			// Older responses use a boolean, newer ones the string "true".
			switch d.Next() {
			case jx.Bool:
				v, err := d.Bool()
				missing = v
				return err
			case jx.String:
				v, err := d.Str()
				missing = v == "true"
				return err
			default:
				return d.Skip()
			}
		case "cep":
			dst = &loc.PostalCode
		case "logradouro":
			dst = &loc.Street
		case "complemento":
			dst = &loc.Complement
		case "bairro":
			dst = &loc.District
		case "localidade":
			dst = &loc.City
		case "uf":
			dst = &loc.State
		default:
			return d.Skip()
		}
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if missing {
		return nil, address.ErrPostalCodeNotFound
	}
	return &loc, nil
}
