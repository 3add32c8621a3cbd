package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MrUnknown58/SSMS-Incubyte/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	ErrSweetNotFound      = errors.New("sweet not found")
	ErrSweetAlreadyExists = errors.New("sweet with this name already exists")
)

// SweetFilter holds the optional search criteria. All filters are
// independently combinable with AND semantics.
type SweetFilter struct {
	Name     string           // case-insensitive substring match
	Category string           // exact match
	MinPrice *decimal.Decimal // inclusive lower bound
	MaxPrice *decimal.Decimal // inclusive upper bound
}

// SweetUpdate holds a partial update; nil fields are left untouched.
type SweetUpdate struct {
	Name        *string
	Category    *string
	Price       *decimal.Decimal
	Quantity    *int
	Description *string
}

// SweetRepository defines the interface for sweet data access
type SweetRepository interface {
	Create(ctx context.Context, sweet *domain.Sweet) error
	Update(ctx context.Context, id uuid.UUID, update SweetUpdate) (*domain.Sweet, error)
	Archive(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error)
	List(ctx context.Context) ([]*domain.Sweet, error)
	Search(ctx context.Context, filter SweetFilter) ([]*domain.Sweet, error)
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error)
}

type sweetRepository struct {
	db *sql.DB
}

// NewSweetRepository creates a new instance of SweetRepository
func NewSweetRepository(db *sql.DB) SweetRepository {
	return &sweetRepository{db: db}
}

const sweetColumns = "id, name, category, price, quantity, description, archived, created_at, updated_at"

func scanSweet(row interface{ Scan(...interface{}) error }) (*domain.Sweet, error) {
	sweet := &domain.Sweet{}
	err := row.Scan(
		&sweet.ID,
		&sweet.Name,
		&sweet.Category,
		&sweet.Price,
		&sweet.Quantity,
		&sweet.Description,
		&sweet.Archived,
		&sweet.CreatedAt,
		&sweet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sweet, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new sweet into the database using parameterized queries
func (r *sweetRepository) Create(ctx context.Context, sweet *domain.Sweet) error {
	query := `
		INSERT INTO sweets (id, name, category, price, quantity, description, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		sweet.ID,
		sweet.Name,
		sweet.Category,
		sweet.Price,
		sweet.Quantity,
		sweet.Description,
		sweet.CreatedAt,
		sweet.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSweetAlreadyExists
		}
		return fmt.Errorf("failed to create sweet: %w", err)
	}

	return nil
}

// Update applies only the provided fields to an active sweet and returns
// the updated row
func (r *sweetRepository) Update(ctx context.Context, id uuid.UUID, update SweetUpdate) (*domain.Sweet, error) {
	setClauses := []string{}
	args := []interface{}{id}
	argIndex := 2

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if update.Name != nil {
		addClause("name", *update.Name)
	}
	if update.Category != nil {
		addClause("category", *update.Category)
	}
	if update.Price != nil {
		addClause("price", *update.Price)
	}
	if update.Quantity != nil {
		addClause("quantity", *update.Quantity)
	}
	if update.Description != nil {
		addClause("description", *update.Description)
	}

	if len(setClauses) == 0 {
		return r.FindByID(ctx, id)
	}

	query := fmt.Sprintf(`
		UPDATE sweets
		SET %s, updated_at = NOW()
		WHERE id = $1 AND NOT archived
		RETURNING %s
	`, strings.Join(setClauses, ", "), sweetColumns)

	sweet, err := scanSweet(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSweetNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrSweetAlreadyExists
		}
		return nil, fmt.Errorf("failed to update sweet: %w", err)
	}

	return sweet, nil
}

// Archive soft-deletes a sweet. The row is kept so existing purchase
// records stay valid, and the name becomes reusable.
func (r *sweetRepository) Archive(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE sweets
		SET archived = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT archived
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to archive sweet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSweetNotFound
	}

	return nil
}

// FindByID retrieves an active sweet by ID using parameterized queries
func (r *sweetRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sweets
		WHERE id = $1 AND NOT archived
	`, sweetColumns)

	sweet, err := scanSweet(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSweetNotFound
		}
		return nil, fmt.Errorf("failed to find sweet by ID: %w", err)
	}

	return sweet, nil
}

// List retrieves all active sweets
func (r *sweetRepository) List(ctx context.Context) ([]*domain.Sweet, error) {
	return r.Search(ctx, SweetFilter{})
}

// Search retrieves active sweets matching the filter. An empty filter
// returns every active sweet; no matches yields an empty slice, not an
// error.
func (r *sweetRepository) Search(ctx context.Context, filter SweetFilter) ([]*domain.Sweet, error) {
	conditions := []string{"NOT archived"}
	args := []interface{}{}
	argIndex := 1

	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Name+"%")
		argIndex++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sweets
		WHERE %s
		ORDER BY name ASC
	`, sweetColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search sweets: %w", err)
	}
	defer rows.Close()

	sweets := []*domain.Sweet{}
	for rows.Next() {
		sweet, err := scanSweet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweet: %w", err)
		}
		sweets = append(sweets, sweet)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweets: %w", err)
	}

	return sweets, nil
}

// Restock atomically adds quantity to current stock. The increment is a
// single UPDATE so it cannot lose a concurrent purchase or restock on the
// same row.
func (r *sweetRepository) Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error) {
	query := fmt.Sprintf(`
		UPDATE sweets
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND NOT archived
		RETURNING %s
	`, sweetColumns)

	sweet, err := scanSweet(r.db.QueryRowContext(ctx, query, id, quantity))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSweetNotFound
		}
		return nil, fmt.Errorf("failed to restock sweet: %w", err)
	}

	return sweet, nil
}
