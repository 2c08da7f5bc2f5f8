package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rdysatrio/go-flash-reserve/internal/checkout"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
	"github.com/rdysatrio/go-flash-reserve/internal/redisx"
	"github.com/rdysatrio/go-flash-reserve/internal/reserve"
)

type ReserveHandler struct {
	Reserve  *reserve.Service
	Checkout *checkout.Service
	Repo     *orders.Repo
	Redis    *redis.Client
	Log      zerolog.Logger
}

func (h *ReserveHandler) Register(r *chi.Mux) {
	r.Post("/reservations", h.reserveOne)
	r.Post("/reservations/cart", h.reserveCart)
	r.Delete("/reservations/{sku}", h.cancel)
	r.Get("/reservations", h.listHolds)
	r.Get("/availability/{sku}", h.availability)
	r.Post("/checkout", h.doCheckout)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr: petakan error kind ke status code. ValidationError bawa semua
// pelanggaran di body, bukan cuma yg pertama.
func writeErr(w http.ResponseWriter, err error) {
	var (
		invalid      *orders.InvalidItemError
		insufficient *orders.InsufficientStockError
		validation   *orders.ValidationError
		incomplete   *orders.IncompleteCheckoutError
	)
	switch {
	case errors.As(err, &invalid), errors.Is(err, orders.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrUserNotFound), errors.Is(err, orders.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"sku":       insufficient.SKU,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "checkout validation failed",
			"violations": validation.Violations,
		})
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    err.Error(),
			"order_id": incomplete.OrderID,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

type reserveReq struct {
	UserID string `json:"user_id"`
	SKU    string `json:"sku"`
	Qty    int    `json:"qty"`
}

func (h *ReserveHandler) reserveOne(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	held, err := h.Reserve.Reserve(ctx, req.UserID, req.SKU, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sku": req.SKU, "held_qty": held})
}

type reserveCartReq struct {
	UserID string            `json:"user_id"`
	Items  []orders.CartItem `json:"items"`
}

func (h *ReserveHandler) reserveCart(w http.ResponseWriter, r *http.Request) {
	var req reserveCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	reserved, err := h.Reserve.ReserveCart(ctx, req.UserID, req.Items)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reserved": reserved})
}

func (h *ReserveHandler) cancel(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}
	qty := 0 // 0 = batalkan semua
	if q := r.URL.Query().Get("qty"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid qty"})
			return
		}
		qty = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cancelled, err := h.Reserve.Cancel(ctx, userID, sku, qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sku": sku, "cancelled_qty": cancelled})
}

func (h *ReserveHandler) listHolds(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Reserve.ListHolds(ctx, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if items == nil {
		items = []orders.CartItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ReserveHandler) availability(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	qty := 1
	if q := r.URL.Query().Get("qty"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid qty"})
			return
		}
		qty = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	av, err := h.Reserve.Check(ctx, sku, qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

type checkoutReq struct {
	UserID string `json:"user_id"`
}

func (h *ReserveHandler) doCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	receipt, err := h.Checkout.Checkout(ctx, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}

	// cache status utk GET cepat
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, receipt.OrderID)
	_ = h.Redis.Set(ctx, statusKey, `{"status":"COMPLETED"}`, redisx.TTLStatusCache).Err()

	writeJSON(w, http.StatusCreated, receipt)
}

func (h *ReserveHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) fallback DB
	status, err := h.Repo.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	b, _ := json.Marshal(map[string]any{"status": status})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *ReserveHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
