package transport

import (
	"errors"
	"net/http"

	"github.com/MrUnknown58/SSMS-Incubyte/internal/middleware"
	"github.com/MrUnknown58/SSMS-Incubyte/internal/repository"
	"github.com/MrUnknown58/SSMS-Incubyte/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateSweetRequest represents the payload for creating a sweet
type CreateSweetRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Category    string          `json:"category" validate:"required,max=100"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Description string          `json:"description"`
}

// UpdateSweetRequest represents a partial update; absent fields are left
// untouched
type UpdateSweetRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Category    *string          `json:"category" validate:"omitempty,min=1,max=100"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0"`
	Description *string          `json:"description"`
}

// QuantityRequest represents the payload for purchase and restock
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// SweetHandler handles HTTP requests for sweet and purchase operations
type SweetHandler struct {
	sweetService service.SweetService
	logger       *zap.Logger
}

// NewSweetHandler creates a new SweetHandler
func NewSweetHandler(sweetService service.SweetService, logger *zap.Logger) *SweetHandler {
	return &SweetHandler{
		sweetService: sweetService,
		logger:       logger,
	}
}

// RegisterRoutes registers all sweet routes. Every route requires
// authentication; mutating catalog routes additionally require the admin
// flag. The middleware order guarantees an unauthenticated request is
// rejected with 401 before the admin check can produce a 403, and neither
// reaches a handler.
func (h *SweetHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/sweets", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.List)
		r.Get("/search", h.Search)
		r.Get("/{id}", h.GetByID)
		r.Post("/{id}/purchase", h.Purchase)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/restock", h.Restock)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/purchases", h.PurchaseHistory)
	})
}

// respondServiceError translates service outcomes into status codes and
// stable error kinds. This is the single place where that mapping lives.
func (h *SweetHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrSweetNotFound):
		middleware.RespondWithErrorKind(w, http.StatusNotFound, middleware.KindNotFound, "sweet not found")
	case errors.Is(err, repository.ErrSweetAlreadyExists):
		middleware.RespondWithErrorKind(w, http.StatusConflict, middleware.KindConflict, "sweet with this name already exists")
	case errors.Is(err, service.ErrInsufficientStock):
		middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindInsufficientStock, "insufficient stock")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindValidationFailed, "quantity must be a positive integer")
	case errors.Is(err, service.ErrInvalidPrice):
		middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindValidationFailed, "price must be greater than zero")
	case errors.Is(err, service.ErrNegativeQuantity):
		middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindValidationFailed, "quantity must not be negative")
	case errors.Is(err, service.ErrInvalidPriceRange):
		middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindInvalidQuery, "invalid price range")
	default:
		h.logger.Error("Sweet operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *SweetHandler) sweetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithErrorKind(w, http.StatusNotFound, middleware.KindNotFound, "sweet not found")
		return uuid.Nil, false
	}
	return id, true
}

// List handles listing all sweets
func (h *SweetHandler) List(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.sweetService.List(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"sweets": sweets})
}

// Search handles filtered sweet lookup. Filters are optional and combined
// with AND semantics; malformed or inverted price bounds are rejected with
// an invalid_query kind.
func (h *SweetHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repository.SweetFilter{
		Name:     query.Get("name"),
		Category: query.Get("category"),
	}

	if raw := query.Get("minPrice"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindInvalidQuery, "invalid minPrice parameter")
			return
		}
		filter.MinPrice = &price
	}

	if raw := query.Get("maxPrice"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			middleware.RespondWithErrorKind(w, http.StatusBadRequest, middleware.KindInvalidQuery, "invalid maxPrice parameter")
			return
		}
		filter.MaxPrice = &price
	}

	sweets, err := h.sweetService.Search(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"sweets": sweets})
}

// GetByID handles retrieving a single sweet
func (h *SweetHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	sweet, err := h.sweetService.GetByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sweet)
}

// Create handles creating a new sweet
func (h *SweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSweetRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Price.IsPositive() {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "Price", Message: "Value must be greater than 0"},
		})
		return
	}

	sweet, err := h.sweetService.Create(r.Context(), service.CreateSweetInput{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("Sweet created", zap.String("sweet_id", sweet.ID.String()), zap.String("name", sweet.Name))
	middleware.RespondWithJSON(w, http.StatusCreated, sweet)
}

// Update handles partial updates to a sweet
func (h *SweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	var req UpdateSweetRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Price != nil && !req.Price.IsPositive() {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "Price", Message: "Value must be greater than 0"},
		})
		return
	}

	sweet, err := h.sweetService.Update(r.Context(), id, repository.SweetUpdate{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sweet)
}

// Delete handles archiving a sweet
func (h *SweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	if err := h.sweetService.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("Sweet deleted", zap.String("sweet_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "sweet deleted successfully"})
}

// Purchase handles buying a sweet
func (h *SweetHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid user identity")
		return
	}

	var req QuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purchase, err := h.sweetService.Purchase(r.Context(), userID, id, req.Quantity)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("Purchase completed",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("sweet_id", id.String()),
		zap.Int("quantity", purchase.Quantity),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"purchase": purchase,
		"message":  "purchase successful",
	})
}

// Restock handles adding stock to a sweet
func (h *SweetHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sweetID(w, r)
	if !ok {
		return
	}

	var req QuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sweet, err := h.sweetService.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("Sweet restocked",
		zap.String("sweet_id", id.String()),
		zap.Int("quantity", req.Quantity),
		zap.Int("new_stock", sweet.Quantity),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"sweet":   sweet,
		"message": "restock successful",
	})
}

// PurchaseHistory handles listing the caller's purchases
func (h *SweetHandler) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid user identity")
		return
	}

	purchases, err := h.sweetService.PurchaseHistory(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"purchases": purchases})
}
