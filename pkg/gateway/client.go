package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/dataflow"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrInstanceNotFound is returned when the gateway answers 404 for an
// instance name.
var ErrInstanceNotFound = errors.New("gateway instance not found")

// StatusError is any other non-2xx gateway answer.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway %s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "waconnect",
	Subsystem: "gateway",
	Name:      "requests_total",
	Help:      "Messaging gateway calls by operation and outcome.",
}, []string{"op", "outcome"})

type Options struct {
	BaseURL     string
	APIKey      string
	Integration string
	Timeout     time.Duration
}

// Client talks to an Evolution-API style messaging gateway.
type Client struct {
	baseURL     string
	apiKey      string
	integration string
	httpClient  *http.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		integration: opts.Integration,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateInstance(ctx context.Context, name string) error {
	body := gout.H{
		"instanceName": name,
		"qrcode":       true,
		"integration":  c.integration,
	}
	_, err := c.send(ctx, "create_instance", gout.New(c.httpClient).POST(c.url("/instance/create")).SetJSON(body))
	return err
}

func (c *Client) GetStatus(ctx context.Context, name string) (Payload, error) {
	return c.send(ctx, "connection_state", gout.New(c.httpClient).GET(c.url("/instance/connectionState/", name)))
}

func (c *Client) GetQrCode(ctx context.Context, name string) (Payload, error) {
	return c.send(ctx, "connect", gout.New(c.httpClient).GET(c.url("/instance/connect/", name)))
}

func (c *Client) Logout(ctx context.Context, name string) error {
	_, err := c.send(ctx, "logout", gout.New(c.httpClient).DELETE(c.url("/instance/logout/", name)))
	return err
}

func (c *Client) DeleteInstance(ctx context.Context, name string) error {
	_, err := c.send(ctx, "delete_instance", gout.New(c.httpClient).DELETE(c.url("/instance/delete/", name)))
	return err
}

// FetchInstance returns the gateway's record of one instance. Newer gateway
// builds keep the paired account here (ownerJid) rather than in the
// connection state.
func (c *Client) FetchInstance(ctx context.Context, name string) (Payload, error) {
	df := gout.New(c.httpClient).GET(c.url("/instance/fetchInstances")).
		SetQuery(gout.H{"instanceName": name})
	return c.send(ctx, "fetch_instances", df)
}

func (c *Client) url(path string, name ...string) string {
	u := c.baseURL + path
	if len(name) > 0 {
		u += url.PathEscape(name[0])
	}
	return u
}

func (c *Client) send(ctx context.Context, op string, df *dataflow.DataFlow) (Payload, error) {
	var (
		code int
		raw  []byte
	)
	err := df.WithContext(ctx).
		SetHeader(gout.H{"apikey": c.apiKey}).
		Code(&code).
		BindBody(&raw).
		Do()
	if err != nil {
		gatewayRequests.WithLabelValues(op, "transport_error").Inc()
		return nil, fmt.Errorf("gateway %s: %w", op, err)
	}

	switch {
	case code == http.StatusNotFound:
		gatewayRequests.WithLabelValues(op, "not_found").Inc()
		return nil, fmt.Errorf("gateway %s: %w", op, ErrInstanceNotFound)
	case code < 200 || code > 299:
		gatewayRequests.WithLabelValues(op, "status_error").Inc()
		return nil, &StatusError{Op: op, Code: code, Body: truncate(string(raw), 256)}
	}
	gatewayRequests.WithLabelValues(op, "ok").Inc()

	return decodePayload(raw), nil
}

// decodePayload reads an object body, or the first object of an array
// body. Anything else (some builds answer plain text) yields nil.
func decodePayload(raw []byte) Payload {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]interface{}:
		return Payload(t)
	case []interface{}:
		if len(t) > 0 {
			if first, ok := t[0].(map[string]interface{}); ok {
				return Payload(first)
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
