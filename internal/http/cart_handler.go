package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CartProvider returns the cart store bound to a session.
type CartProvider interface {
	Get(ctx context.Context, sessionID string) *service.CartStore
}

type CartHandler struct {
	carts   CartProvider
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartProvider, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type AddProductRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateAmountRequestDTO struct {
	Amount int `json:"amount"`
}

type CartResponseDTO struct {
	Items   []domain.Product `json:"items"`
	Summary service.Summary  `json:"summary"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart := h.carts.Get(r.Context(), getSessionID(r.Context()))
	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	cart := h.carts.Get(ctx, getSessionID(ctx))
	if err := cart.AddProduct(ctx, req.ProductID); err != nil {
		h.handleCartError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart := h.carts.Get(ctx, getSessionID(ctx))
	if err := cart.UpdateProductAmount(ctx, productID, req.Amount); err != nil {
		h.handleCartError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	cart := h.carts.Get(ctx, getSessionID(ctx))
	if err := cart.RemoveProduct(ctx, productID); err != nil {
		h.handleCartError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func (h *CartHandler) respondCart(w http.ResponseWriter, status int, cart *service.CartStore) {
	items := cart.Cart()
	h.respondJSON(w, status, CartResponseDTO{
		Items:   items,
		Summary: service.SummaryOf(items),
	})
}

// handleCartError maps the cart's error kinds to HTTP statuses. The body
// carries the same text the notifier received.
func (h *CartHandler) handleCartError(w http.ResponseWriter, err error) {
	var cartErr *service.Error
	if !errors.As(err, &cartErr) {
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var httpStatus int
	switch cartErr.Kind {
	case service.KindOutOfStock:
		httpStatus = http.StatusConflict
	case service.KindNotFound:
		httpStatus = http.StatusNotFound
	default:
		httpStatus = http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			httpStatus = http.StatusGatewayTimeout
		}
	}

	h.respondError(w, httpStatus, cartErr.Kind.String(), cartErr.Message)
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
