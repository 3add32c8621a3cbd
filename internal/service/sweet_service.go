package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrUnknown58/SSMS-Incubyte/internal/domain"
	"github.com/MrUnknown58/SSMS-Incubyte/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientStock is an expected business outcome, not a fault:
	// the requested quantity exceeds what is currently in stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidPrice      = errors.New("price must be greater than zero")
	ErrNegativeQuantity  = errors.New("quantity must not be negative")
	ErrInvalidPriceRange = errors.New("minimum price cannot be greater than maximum price")
)

// CreateSweetInput holds the attributes for a new sweet
type CreateSweetInput struct {
	Name        string
	Category    string
	Price       decimal.Decimal
	Quantity    int
	Description string
}

// SweetService defines the interface for sweet business logic. It owns
// every quantity mutation; callers never read-modify-write stock
// themselves.
type SweetService interface {
	List(ctx context.Context) ([]*domain.Sweet, error)
	Search(ctx context.Context, filter repository.SweetFilter) ([]*domain.Sweet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error)
	Create(ctx context.Context, input CreateSweetInput) (*domain.Sweet, error)
	Update(ctx context.Context, id uuid.UUID, update repository.SweetUpdate) (*domain.Sweet, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Purchase(ctx context.Context, userID, sweetID uuid.UUID, quantity int) (*domain.Purchase, error)
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error)
	PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]*domain.Purchase, error)
}

type sweetService struct {
	sweetRepo    repository.SweetRepository
	purchaseRepo repository.PurchaseRepository
}

// NewSweetService creates a new instance of SweetService
func NewSweetService(sweetRepo repository.SweetRepository, purchaseRepo repository.PurchaseRepository) SweetService {
	return &sweetService{
		sweetRepo:    sweetRepo,
		purchaseRepo: purchaseRepo,
	}
}

// List retrieves all active sweets
func (s *sweetService) List(ctx context.Context) ([]*domain.Sweet, error) {
	sweets, err := s.sweetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweets: %w", err)
	}
	return sweets, nil
}

// Search retrieves sweets matching the filter. A filter with no criteria
// returns the same set as List.
func (s *sweetService) Search(ctx context.Context, filter repository.SweetFilter) ([]*domain.Sweet, error) {
	if filter.MinPrice != nil && filter.MinPrice.IsNegative() {
		return nil, ErrInvalidPriceRange
	}
	if filter.MaxPrice != nil && filter.MaxPrice.IsNegative() {
		return nil, ErrInvalidPriceRange
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, ErrInvalidPriceRange
	}

	sweets, err := s.sweetRepo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search sweets: %w", err)
	}
	return sweets, nil
}

// GetByID retrieves a single active sweet
func (s *sweetService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error) {
	return s.sweetRepo.FindByID(ctx, id)
}

// Create adds a new sweet to the catalog
func (s *sweetService) Create(ctx context.Context, input CreateSweetInput) (*domain.Sweet, error) {
	if !input.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if input.Quantity < 0 {
		return nil, ErrNegativeQuantity
	}

	sweet := &domain.Sweet{
		ID:          uuid.New(),
		Name:        input.Name,
		Category:    input.Category,
		Price:       input.Price,
		Quantity:    input.Quantity,
		Description: input.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.sweetRepo.Create(ctx, sweet); err != nil {
		return nil, err
	}

	return sweet, nil
}

// Update applies a partial update. Price and quantity are re-checked here
// even though request validation already rejects them, so a bad value can
// never reach the storage layer through another caller.
func (s *sweetService) Update(ctx context.Context, id uuid.UUID, update repository.SweetUpdate) (*domain.Sweet, error) {
	if update.Price != nil && !update.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if update.Quantity != nil && *update.Quantity < 0 {
		return nil, ErrNegativeQuantity
	}

	return s.sweetRepo.Update(ctx, id, update)
}

// Delete archives a sweet. Existing purchase records keep referencing the
// archived row.
func (s *sweetService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.sweetRepo.Archive(ctx, id)
}

// Purchase atomically decrements stock and records the purchase. The
// decrement and the audit record are one storage-level statement, so a
// successful call always leaves exactly one purchase record and a failed
// call leaves none. If the caller disconnects after the statement commits,
// the purchase stands; retries are not idempotent.
func (s *sweetService) Purchase(ctx context.Context, userID, sweetID uuid.UUID, quantity int) (*domain.Purchase, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	purchase, err := s.purchaseRepo.CreateForDecrement(ctx, userID, sweetID, quantity)
	if err != nil {
		if err == repository.ErrNoStockDecremented {
			// Nothing was decremented: distinguish a missing sweet from
			// insufficient stock so clients can react differently.
			if _, findErr := s.sweetRepo.FindByID(ctx, sweetID); findErr != nil {
				return nil, findErr
			}
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("failed to purchase sweet: %w", err)
	}

	return purchase, nil
}

// Restock adds quantity to current stock
func (s *sweetService) Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.sweetRepo.Restock(ctx, id, quantity)
}

// PurchaseHistory retrieves the caller's purchases, newest first
func (s *sweetService) PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]*domain.Purchase, error) {
	purchases, err := s.purchaseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase history: %w", err)
	}
	return purchases, nil
}
