package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/inventory"
	"github.com/fjod/storefront-cart/internal/notify"
	"github.com/fjod/storefront-cart/internal/service"
	"github.com/fjod/storefront-cart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router   http.Handler
	inv      *inventory.MemoryService
	recorder *notify.Recorder
	sessions *service.Sessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	inv := inventory.NewMemoryService()
	inv.SetProduct(domain.ProductMetadata{ID: 1, Name: "Tênis", Price: 179.9, Image: "1.jpg"})
	inv.SetStock(1, 2)
	inv.SetProduct(domain.ProductMetadata{ID: 2, Name: "Bota", Price: 99.9})
	inv.SetStock(2, 0)

	rec := &notify.Recorder{}
	sessions := service.NewSessions(inv, storage.NewMemoryStore(), func(string) notify.Notifier { return rec }, zap.NewNop(), "")
	handler := NewCartHandler(sessions, 5*time.Second, zap.NewNop())

	return &testServer{
		router:   NewRouter(handler, 5*time.Second),
		inv:      inv,
		recorder: rec,
		sessions: sessions,
	}
}

// do sends a request bound to session and decodes the JSON response into out
func (s *testServer) do(t *testing.T, method, path, body, session string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: session})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if out != nil {
		require.NoError(t, json.NewDecoder(w.Body).Decode(out))
	}
	return w
}

const session = "4b7c1f8e-1b8e-4d2a-9a64-0d6b1a0de001"

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestGetCart_IssuesSession(t *testing.T) {
	s := newTestServer(t)

	var resp CartResponseDTO
	w := s.do(t, http.MethodGet, "/cart", "", "", &resp)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Items)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestGetCart_InvalidCookieIsReplaced(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/cart", "", "../../etc", nil)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "../../etc", cookies[0].Value)
}

func TestAddProduct_Success(t *testing.T) {
	s := newTestServer(t)

	var resp CartResponseDTO
	w := s.do(t, http.MethodPost, "/cart/items", `{"product_id":1}`, session, &resp)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, domain.Product{ID: 1, Name: "Tênis", Price: 179.9, Image: "1.jpg", Amount: 1}, resp.Items[0])
	assert.Equal(t, 1, resp.Summary.Quantity)
	assert.Empty(t, w.Result().Cookies(), "existing session must be reused")
}

func TestAddProduct_OutOfStock(t *testing.T) {
	s := newTestServer(t)

	var resp ErrorResponse
	w := s.do(t, http.MethodPost, "/cart/items", `{"product_id":2}`, session, &resp)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.MsgOutOfStock, resp.Error)
	assert.Equal(t, "out_of_stock", resp.Code)
	assert.Equal(t, []string{service.MsgOutOfStock}, s.recorder.Messages())
}

func TestAddProduct_UnknownProduct(t *testing.T) {
	s := newTestServer(t)

	var resp ErrorResponse
	w := s.do(t, http.MethodPost, "/cart/items", `{"product_id":42}`, session, &resp)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, service.MsgAddFailed, resp.Error)
}

func TestAddProduct_BadRequest(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/cart/items", `{"product_id":`, session, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/cart/items", `{"product_id":0}`, session, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.recorder.Messages())
}

func TestUpdateAmount(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", `{"product_id":1}`, session, nil)

	var resp CartResponseDTO
	w := s.do(t, http.MethodPut, "/cart/items/1", `{"amount":2}`, session, &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, resp.Items[0].Amount)
	assert.Equal(t, "359.8", resp.Summary.Subtotal.String())

	var errResp ErrorResponse
	w = s.do(t, http.MethodPut, "/cart/items/1", `{"amount":3}`, session, &errResp)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.MsgOutOfStock, errResp.Error)

	w = s.do(t, http.MethodPut, "/cart/items/2", `{"amount":1}`, session, &errResp)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.MsgUpdateFailed, errResp.Error)

	w = s.do(t, http.MethodPut, "/cart/items/1", `{"amount":0}`, session, &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, resp.Items[0].Amount)

	w = s.do(t, http.MethodPut, "/cart/items/abc", `{"amount":1}`, session, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveProduct(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", `{"product_id":1}`, session, nil)

	var errResp ErrorResponse
	w := s.do(t, http.MethodDelete, "/cart/items/2", "", session, &errResp)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.MsgRemoveFailed, errResp.Error)

	var resp CartResponseDTO
	w = s.do(t, http.MethodDelete, "/cart/items/1", "", session, &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Items)
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	other := "4b7c1f8e-1b8e-4d2a-9a64-0d6b1a0de002"

	s.do(t, http.MethodPost, "/cart/items", `{"product_id":1}`, session, nil)

	var resp CartResponseDTO
	s.do(t, http.MethodGet, "/cart", "", other, &resp)
	assert.Empty(t, resp.Items)

	assert.Len(t, s.sessions.Get(context.Background(), session).Cart(), 1)
}

func TestHandleCartError_NonCartError(t *testing.T) {
	h := NewCartHandler(nil, time.Second, zap.NewNop())
	w := httptest.NewRecorder()

	h.handleCartError(w, context.Canceled)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "internal_error"))
}
