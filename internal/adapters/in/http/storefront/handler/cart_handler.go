// internal/adapters/in/http/storefront/handler/cart_handler.go
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	usecase "koifarm/internal/application/usecase"
	cartdom "koifarm/internal/domain/cart"
)

// DefaultCartCookie identifies the browser's cart session.
const DefaultCartCookie = "koi_cart"

// CartHandler serves the storefront cart endpoints (page, drawer and checkout summary all read the same view).
type CartHandler struct {
	registry   *usecase.CartRegistry
	logger     *zap.Logger
	cookieName string
	secure     bool
}

func NewCartHandler(registry *usecase.CartRegistry, logger *zap.Logger, secureCookie bool) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		registry:   registry,
		logger:     logger,
		cookieName: DefaultCartCookie,
		secure:     secureCookie,
	}
}

// Routes mounts the cart endpoints (expected under /api/cart).
func (h *CartHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Delete("/", h.handleClear)
	r.Post("/items", h.handleAddItem)
	r.Put("/items/{id}", h.handleUpdateQuantity)
	r.Delete("/items/{id}", h.handleRemoveItem)
	r.Get("/items/{id}/count", h.handleItemCount)
	r.Put("/open", h.handleSetOpen)
	r.Post("/toggle", h.handleToggle)
	return r
}

// -------------------------
// handlers
// -------------------------

// handleGet is read-only: no session cookie is issued and no container is kept.
func (h *CartHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req cartdom.Item
	if err := readJSON(r, &req); err != nil {
		h.logger.Info("[cart_handler] add-item invalid json", zap.Error(err))
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeErr(w, http.StatusBadRequest, "id is required")
		return
	}

	c, ok := h.open(w, r)
	if !ok {
		return
	}
	view := c.AddItem(req)
	h.logger.Debug("[cart_handler] add-item ok",
		zap.String("cartId", c.ID()),
		zap.String("itemId", req.ID),
		zap.Int("totalItems", view.TotalItems),
	)
	writeJSON(w, http.StatusOK, view)
}

type quantityReq struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityReq
	if err := readJSON(r, &req); err != nil || req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "quantity is required")
		return
	}

	c, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.UpdateQuantity(chi.URLParam(r, "id"), *req.Quantity))
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.RemoveItem(chi.URLParam(r, "id")))
}

func (h *CartHandler) handleItemCount(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	count := 0
	for _, l := range view.Lines {
		if l.ID == id {
			count = l.Quantity
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"count": count,
	})
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.ClearCart())
}

type openReq struct {
	IsOpen *bool `json:"isOpen"`
}

func (h *CartHandler) handleSetOpen(w http.ResponseWriter, r *http.Request) {
	var req openReq
	if err := readJSON(r, &req); err != nil || req.IsOpen == nil {
		writeErr(w, http.StatusBadRequest, "isOpen is required")
		return
	}
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.SetIsOpen(*req.IsOpen))
}

func (h *CartHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.ToggleCart())
}

// -------------------------
// helpers
// -------------------------

// sessionID returns the cart session id carried by the cookie ("" when absent or malformed).
func (h *CartHandler) sessionID(r *http.Request) string {
	ck, err := r.Cookie(h.cookieName)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(strings.TrimSpace(ck.Value))
	if err != nil {
		return ""
	}
	return id.String()
}

// lookup reads the cart for the request without creating a session.
func (h *CartHandler) lookup(w http.ResponseWriter, r *http.Request) (usecase.CartView, bool) {
	if h.registry == nil {
		writeErr(w, http.StatusInternalServerError, "cart handler is not configured")
		return usecase.CartView{}, false
	}

	cartID := h.sessionID(r)
	if cartID == "" {
		return usecase.CartView{Lines: []cartdom.Line{}, TotalPrice: decimal.Zero}, true
	}
	view, err := h.registry.Lookup(r.Context(), cartID)
	if err != nil {
		h.logger.Error("[cart_handler] lookup failed", zap.String("cartId", cartID), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, err.Error())
		return usecase.CartView{}, false
	}
	return view, true
}

// open resolves the cart session from the cookie, issuing a new one when absent or malformed.
func (h *CartHandler) open(w http.ResponseWriter, r *http.Request) (*usecase.CartContainer, bool) {
	if h.registry == nil {
		writeErr(w, http.StatusInternalServerError, "cart handler is not configured")
		return nil, false
	}

	cartID := h.sessionID(r)
	if cartID == "" {
		cartID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    cartID,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
		h.logger.Debug("[cart_handler] new cart session", zap.String("cartId", cartID))
	}

	c, err := h.registry.Open(r.Context(), cartID)
	if err != nil {
		h.logger.Error("[cart_handler] open failed", zap.String("cartId", cartID), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return c, true
}
