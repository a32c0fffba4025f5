package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
	"github.com/LeMinhLong2000/cart-store/internal/pricing"
	"github.com/LeMinhLong2000/cart-store/internal/store"
)

type CartHandler struct {
	manager *store.Manager
	timeout time.Duration
	log     *logrus.Logger
}

func NewCartHandler(manager *store.Manager, timeout time.Duration, log *logrus.Logger) *CartHandler {
	return &CartHandler{
		manager: manager,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ClientID     string          `json:"client_id"`
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Color        string          `json:"color"`
	Size         string          `json:"size"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock"`
	Quantity     int             `json:"quantity"`
}

type AddItemResponseDTO struct {
	ClientID string          `json:"client_id"`
	Cart     domain.Snapshot `json:"cart"`
}

type UpdateItemRequestDTO struct {
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type ShippingAddressDTO struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type PaymentMethodDTO struct {
	PaymentMethod string `json:"payment_method"`
}

type DeliveryDateIndexDTO struct {
	DeliveryDateIndex *int `json:"delivery_date_index"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	// Parse request body
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must not be empty")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	item := domain.LineItem{
		ClientID:     req.ClientID,
		ProductID:    req.ProductID,
		Name:         req.Name,
		Slug:         req.Slug,
		Category:     req.Category,
		Image:        req.Image,
		Color:        req.Color,
		Size:         req.Size,
		Price:        req.Price,
		Quantity:     req.Quantity,
		CountInStock: req.CountInStock,
	}

	clientID, err := st.AddItem(ctx, item, req.Quantity)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, AddItemResponseDTO{ClientID: clientID, Cart: st.Snapshot()})
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must not be empty")
		return
	}

	// Parse request body
	var req UpdateItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	item := domain.LineItem{ProductID: productID, Color: req.Color, Size: req.Size}
	if err := st.UpdateItem(ctx, item, req.Quantity); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must not be empty")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	// The variant is identified by product plus the color and size query params
	item := domain.LineItem{
		ProductID: productID,
		Color:     r.URL.Query().Get("color"),
		Size:      r.URL.Query().Get("size"),
	}
	if err := st.RemoveItem(ctx, item); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	if err := st.Clear(ctx); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	// Parse request body
	var req ShippingAddressDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.FullName == "" || req.Street == "" || req.City == "" || req.PostalCode == "" || req.Country == "" {
		respondError(w, http.StatusBadRequest, "invalid_address", "full_name, street, city, postal_code and country are required")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	addr := domain.ShippingAddress{
		FullName:   req.FullName,
		Street:     req.Street,
		City:       req.City,
		Province:   req.Province,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
	}
	if err := st.SetShippingAddress(ctx, addr); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	// Parse request body
	var req PaymentMethodDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.PaymentMethod == "" {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", "payment_method must not be empty")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	if err := st.SetPaymentMethod(ctx, req.PaymentMethod); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) SetDeliveryDate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	// Parse request body
	var req DeliveryDateIndexDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.DeliveryDateIndex == nil || *req.DeliveryDateIndex < 0 {
		respondError(w, http.StatusBadRequest, "invalid_delivery_option", "delivery_date_index must be a non-negative integer")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	if err := st.SetDeliveryDateIndex(ctx, *req.DeliveryDateIndex); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func (h *CartHandler) ResetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := getSessionFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing session identifier")
		return
	}

	st, err := h.manager.Store(ctx, owner)
	if err != nil {
		h.log.Errorf("failed to load cart for %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	if err := st.Reset(ctx); err != nil {
		handleStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, st.Snapshot())
}

func getSessionFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value("session_id").(string); ok {
		return sessionID
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.Errorf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleStoreError maps mutation failures onto HTTP statuses. Stock
// rejections are the caller's problem, bad delivery indexes are invalid
// input, anything else means pricing is unavailable.
func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrOutOfStock):
		respondError(w, http.StatusConflict, "out_of_stock", "requested quantity exceeds available stock")
	case errors.Is(err, pricing.ErrNoDeliveryOption):
		respondError(w, http.StatusBadRequest, "invalid_delivery_option", "no delivery option at the requested index")
	default:
		respondError(w, http.StatusBadGateway, "pricing_unavailable", "could not price the cart")
	}
}
