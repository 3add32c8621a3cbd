package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrUnknown58/SSMS-Incubyte/internal/domain"

	"github.com/google/uuid"
)

// ErrNoStockDecremented is returned when the conditional decrement matched
// no row, either because the sweet does not exist or because the remaining
// stock is below the requested quantity. Callers disambiguate by looking
// the sweet up.
var ErrNoStockDecremented = errors.New("no stock decremented")

// PurchaseRepository defines the interface for purchase data access
type PurchaseRepository interface {
	CreateForDecrement(ctx context.Context, userID, sweetID uuid.UUID, quantity int) (*domain.Purchase, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Purchase, error)
	CountBySweet(ctx context.Context, sweetID uuid.UUID) (int, error)
}

type purchaseRepository struct {
	db *sql.DB
}

// NewPurchaseRepository creates a new instance of PurchaseRepository
func NewPurchaseRepository(db *sql.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// CreateForDecrement decrements stock and records the purchase in one SQL
// statement. The UPDATE only matches when quantity >= the requested amount,
// so two concurrent purchases can never oversell, and the INSERT reads the
// unit price from the decremented row itself, so the total price is the
// price in effect at the moment of the decrement. Either both happen or
// neither does.
func (r *purchaseRepository) CreateForDecrement(ctx context.Context, userID, sweetID uuid.UUID, quantity int) (*domain.Purchase, error) {
	query := `
		WITH decremented AS (
			UPDATE sweets
			SET quantity = quantity - $3, updated_at = NOW()
			WHERE id = $2 AND NOT archived AND quantity >= $3
			RETURNING id, price
		)
		INSERT INTO purchases (id, user_id, sweet_id, quantity, total_price, created_at)
		SELECT $4, $1, id, $3, price * $3, $5
		FROM decremented
		RETURNING id, user_id, sweet_id, quantity, total_price, created_at
	`

	purchase := &domain.Purchase{}
	err := r.db.QueryRowContext(
		ctx,
		query,
		userID,
		sweetID,
		quantity,
		uuid.New(),
		time.Now(),
	).Scan(
		&purchase.ID,
		&purchase.UserID,
		&purchase.SweetID,
		&purchase.Quantity,
		&purchase.TotalPrice,
		&purchase.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoStockDecremented
		}
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	return purchase, nil
}

// ListByUser retrieves all purchases made by a user, newest first
func (r *purchaseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Purchase, error) {
	query := `
		SELECT id, user_id, sweet_id, quantity, total_price, created_at
		FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	purchases := []*domain.Purchase{}
	for rows.Next() {
		purchase := &domain.Purchase{}
		err := rows.Scan(
			&purchase.ID,
			&purchase.UserID,
			&purchase.SweetID,
			&purchase.Quantity,
			&purchase.TotalPrice,
			&purchase.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, purchase)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}

	return purchases, nil
}

// CountBySweet returns the number of purchase records for a sweet
func (r *purchaseRepository) CountBySweet(ctx context.Context, sweetID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM purchases WHERE sweet_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, sweetID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	return count, nil
}
