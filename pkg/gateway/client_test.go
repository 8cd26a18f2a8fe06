package gateway

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]interface{}
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeGateway(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeGateway, *Client) {
	t.Helper()
	fg := &fakeGateway{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, APIKey: r.Header.Get("apikey")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = stdjson.Unmarshal(b, &rec.Body)
		}
		fg.mu.Lock()
		fg.requests = append(fg.requests, rec)
		fg.mu.Unlock()
		fg.handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Options{BaseURL: srv.URL + "/", APIKey: "secret", Integration: "WHATSAPP-BAILEYS"})
	return fg, client
}

func (f *fakeGateway) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func TestClient_CreateInstance(t *testing.T) {
	fg, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"instance":{"instanceName":"shop_1","status":"created"}}`)
	})

	require.NoError(t, client.CreateInstance(context.Background(), "shop_1"))

	req := fg.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/instance/create", req.Path)
	assert.Equal(t, "secret", req.APIKey)
	assert.Equal(t, "shop_1", req.Body["instanceName"])
	assert.Equal(t, true, req.Body["qrcode"])
	assert.Equal(t, "WHATSAPP-BAILEYS", req.Body["integration"])
}

func TestClient_GetQrCode(t *testing.T) {
	fg, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"pairingCode":null,"code":"2@xyz","base64":"data:image/png;base64,QQ==","count":1}`)
	})

	body, err := client.GetQrCode(context.Background(), "shop_1")
	require.NoError(t, err)

	assert.Equal(t, "/instance/connect/shop_1", fg.last().Path)
	m := MatchQr(body)
	assert.Equal(t, QrImage, m.Kind)
	assert.Equal(t, "data:image/png;base64,QQ==", m.Value)
}

func TestClient_GetStatus(t *testing.T) {
	fg, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"instance":{"instanceName":"shop_1","state":"open"}}`)
	})

	body, err := client.GetStatus(context.Background(), "shop_1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, fg.last().Method)
	assert.Equal(t, "/instance/connectionState/shop_1", fg.last().Path)
	assert.True(t, MatchStatus(body).Paired())
}

func TestClient_NotFound(t *testing.T) {
	_, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"status":404,"error":"Not Found"}`)
	})

	_, err := client.GetStatus(context.Background(), "gone")
	assert.True(t, errors.Is(err, ErrInstanceNotFound))

	err = client.DeleteInstance(context.Background(), "gone")
	assert.True(t, errors.Is(err, ErrInstanceNotFound))
}

func TestClient_StatusError(t *testing.T) {
	fg, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"instance is not connected"}`)
	})

	err := client.Logout(context.Background(), "shop_1")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "logout", se.Op)
	assert.Equal(t, http.MethodDelete, fg.last().Method)
	assert.Equal(t, "/instance/logout/shop_1", fg.last().Path)
}

func TestClient_NonJSONSuccess(t *testing.T) {
	_, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	body, err := client.GetQrCode(context.Background(), "shop_1")
	require.NoError(t, err)
	assert.Equal(t, QrUnrecognized, MatchQr(body).Kind)
}

func TestClient_FetchInstance(t *testing.T) {
	fg, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"name":"shop_1","connectionStatus":"open","ownerJid":"5511999999999@s.whatsapp.net"}]`)
	})

	body, err := client.FetchInstance(context.Background(), "shop_1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, fg.last().Method)
	assert.Equal(t, "/instance/fetchInstances", fg.last().Path)
	assert.Equal(t, "instanceName=shop_1", fg.last().Query)
	assert.Equal(t, "5511999999999", PhoneFromOwner(MatchStatus(body).Owner))
}

func TestClient_FetchInstanceEmptyList(t *testing.T) {
	_, client := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})

	body, err := client.FetchInstance(context.Background(), "shop_1")
	require.NoError(t, err)
	assert.Empty(t, MatchStatus(body).Owner)
}
