package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrUnknown58/SSMS-Incubyte/internal/domain"
	"github.com/MrUnknown58/SSMS-Incubyte/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSweetStore backs both repository interfaces with an in-memory map.
// The mutex makes the conditional decrement as atomic as the SQL statement
// it stands in for.
type mockSweetStore struct {
	mu        sync.Mutex
	sweets    map[uuid.UUID]*domain.Sweet
	purchases []*domain.Purchase
}

func newMockSweetStore() *mockSweetStore {
	return &mockSweetStore{
		sweets: make(map[uuid.UUID]*domain.Sweet),
	}
}

func (m *mockSweetStore) Create(ctx context.Context, sweet *domain.Sweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sweets {
		if !existing.Archived && existing.Name == sweet.Name {
			return repository.ErrSweetAlreadyExists
		}
	}
	copied := *sweet
	m.sweets[sweet.ID] = &copied
	return nil
}

func (m *mockSweetStore) Update(ctx context.Context, id uuid.UUID, update repository.SweetUpdate) (*domain.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[id]
	if !ok || sweet.Archived {
		return nil, repository.ErrSweetNotFound
	}
	if update.Name != nil {
		sweet.Name = *update.Name
	}
	if update.Category != nil {
		sweet.Category = *update.Category
	}
	if update.Price != nil {
		sweet.Price = *update.Price
	}
	if update.Quantity != nil {
		sweet.Quantity = *update.Quantity
	}
	if update.Description != nil {
		sweet.Description = *update.Description
	}
	copied := *sweet
	return &copied, nil
}

func (m *mockSweetStore) Archive(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[id]
	if !ok || sweet.Archived {
		return repository.ErrSweetNotFound
	}
	sweet.Archived = true
	return nil
}

func (m *mockSweetStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[id]
	if !ok || sweet.Archived {
		return nil, repository.ErrSweetNotFound
	}
	copied := *sweet
	return &copied, nil
}

func (m *mockSweetStore) List(ctx context.Context) ([]*domain.Sweet, error) {
	return m.Search(ctx, repository.SweetFilter{})
}

func (m *mockSweetStore) Search(ctx context.Context, filter repository.SweetFilter) ([]*domain.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Sweet{}
	for _, sweet := range m.sweets {
		if sweet.Archived {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(sweet.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.Category != "" && sweet.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && sweet.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && sweet.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		copied := *sweet
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockSweetStore) Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[id]
	if !ok || sweet.Archived {
		return nil, repository.ErrSweetNotFound
	}
	sweet.Quantity += quantity
	copied := *sweet
	return &copied, nil
}

func (m *mockSweetStore) CreateForDecrement(ctx context.Context, userID, sweetID uuid.UUID, quantity int) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[sweetID]
	if !ok || sweet.Archived || sweet.Quantity < quantity {
		return nil, repository.ErrNoStockDecremented
	}
	sweet.Quantity -= quantity
	purchase := &domain.Purchase{
		ID:         uuid.New(),
		UserID:     userID,
		SweetID:    sweetID,
		Quantity:   quantity,
		TotalPrice: sweet.Price.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt:  time.Now(),
	}
	m.purchases = append(m.purchases, purchase)
	return purchase, nil
}

func (m *mockSweetStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Purchase{}
	for _, purchase := range m.purchases {
		if purchase.UserID == userID {
			result = append(result, purchase)
		}
	}
	return result, nil
}

func (m *mockSweetStore) CountBySweet(ctx context.Context, sweetID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, purchase := range m.purchases {
		if purchase.SweetID == sweetID {
			count++
		}
	}
	return count, nil
}

func newTestSweetService(store *mockSweetStore) SweetService {
	return NewSweetService(store, store)
}

func seedSweet(t *testing.T, store *mockSweetStore, name string, price string, quantity int) *domain.Sweet {
	t.Helper()
	sweet := &domain.Sweet{
		ID:        uuid.New(),
		Name:      name,
		Category:  "chocolate",
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), sweet))
	return sweet
}

func TestPurchase_DecrementsStockAndRecordsAudit(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()
	userID := uuid.New()

	sweet := seedSweet(t, store, "Chocolate Bar", "2.50", 10)

	purchase, err := svc.Purchase(ctx, userID, sweet.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, purchase.Quantity)
	assert.True(t, purchase.TotalPrice.Equal(decimal.RequireFromString("10.00")),
		"expected total 10.00, got %s", purchase.TotalPrice)

	updated, err := svc.GetByID(ctx, sweet.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Quantity)

	count, err := store.CountBySweet(ctx, sweet.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurchase_InsufficientStockLeavesNoTrace(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	sweet := seedSweet(t, store, "Chocolate Bar", "2.50", 6)

	_, err := svc.Purchase(ctx, uuid.New(), sweet.ID, 100)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	unchanged, err := svc.GetByID(ctx, sweet.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, unchanged.Quantity)

	count, err := store.CountBySweet(ctx, sweet.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "failed purchase must not create an audit record")
}

func TestPurchase_UnknownSweetIsNotFound(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)

	_, err := svc.Purchase(context.Background(), uuid.New(), uuid.New(), 1)
	assert.ErrorIs(t, err, repository.ErrSweetNotFound)
}

func TestPurchase_RejectsNonPositiveQuantity(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	sweet := seedSweet(t, store, "Fudge", "1.00", 5)

	for _, quantity := range []int{0, -1, -100} {
		_, err := svc.Purchase(context.Background(), uuid.New(), sweet.ID, quantity)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}

	count, _ := store.CountBySweet(context.Background(), sweet.ID)
	assert.Equal(t, 0, count)
}

func TestPurchase_PriceSnapshotIsImmutable(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()
	userID := uuid.New()

	sweet := seedSweet(t, store, "Toffee", "2.00", 10)

	purchase, err := svc.Purchase(ctx, userID, sweet.ID, 3)
	require.NoError(t, err)
	require.True(t, purchase.TotalPrice.Equal(decimal.RequireFromString("6.00")))

	newPrice := decimal.RequireFromString("9.99")
	_, err = svc.Update(ctx, sweet.ID, repository.SweetUpdate{Price: &newPrice})
	require.NoError(t, err)

	history, err := svc.PurchaseHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].TotalPrice.Equal(decimal.RequireFromString("6.00")),
		"repricing a sweet must not change existing purchase records")
}

// Firing concurrent purchases whose quantities sum past the available
// stock must only let through a subset that fits, and the audit trail
// must match the successes one-to-one.
func TestPurchase_NoOversellingUnderConcurrency(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	const initialStock = 50
	const workers = 100
	const perPurchase = 2 // workers * perPurchase = 200 > 50

	sweet := seedSweet(t, store, "Bonbon", "0.75", initialStock)

	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Purchase(ctx, uuid.New(), sweet.ID, perPurchase); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	succeeded := 0
	for range successes {
		succeeded++
	}

	final, err := svc.GetByID(ctx, sweet.ID)
	require.NoError(t, err)

	assert.Equal(t, initialStock/perPurchase, succeeded, "exactly the satisfiable subset should succeed")
	assert.Equal(t, initialStock-succeeded*perPurchase, final.Quantity)
	assert.GreaterOrEqual(t, final.Quantity, 0, "stock must never go negative")

	count, err := store.CountBySweet(ctx, sweet.ID)
	require.NoError(t, err)
	assert.Equal(t, succeeded, count, "one audit record per successful purchase")
}

func TestRestock_AddsStock(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	sweet := seedSweet(t, store, "Chocolate Bar", "2.50", 6)

	updated, err := svc.Restock(ctx, sweet.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 26, updated.Quantity)

	_, err = svc.Restock(ctx, uuid.New(), 5)
	assert.ErrorIs(t, err, repository.ErrSweetNotFound)

	_, err = svc.Restock(ctx, sweet.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// Feature: sweet-shop, Property: interleaved restocks and purchases are
// order-independent under the atomicity guard
func TestProperty_RestockPurchaseCommutativity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("final quantity equals initial plus restocks minus successful purchases", prop.ForAll(
		func(initial int, restocks []int, purchases []int) bool {
			store := newMockSweetStore()
			svc := newTestSweetService(store)
			ctx := context.Background()
			sweet := seedSweet(t, store, "Caramel", "1.25", initial)

			var wg sync.WaitGroup
			restocked := 0
			var mu sync.Mutex

			for _, quantity := range restocks {
				wg.Add(1)
				go func(q int) {
					defer wg.Done()
					if _, err := svc.Restock(ctx, sweet.ID, q); err == nil {
						mu.Lock()
						restocked += q
						mu.Unlock()
					}
				}(quantity)
			}

			purchased := 0
			for _, quantity := range purchases {
				wg.Add(1)
				go func(q int) {
					defer wg.Done()
					if _, err := svc.Purchase(ctx, uuid.New(), sweet.ID, q); err == nil {
						mu.Lock()
						purchased += q
						mu.Unlock()
					}
				}(quantity)
			}

			wg.Wait()

			final, err := svc.GetByID(ctx, sweet.ID)
			if err != nil {
				return false
			}

			return final.Quantity == initial+restocked-purchased && final.Quantity >= 0
		},
		gen.IntRange(0, 50),
		gen.SliceOf(gen.IntRange(1, 10)),
		gen.SliceOf(gen.IntRange(1, 10)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSearch_EmptyFilterMatchesList(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	seedSweet(t, store, "Chocolate Bar", "2.50", 10)
	seedSweet(t, store, "Gummy Bears", "1.00", 5)
	seedSweet(t, store, "Lollipop", "0.50", 0)

	listed, err := svc.List(ctx)
	require.NoError(t, err)

	searched, err := svc.Search(ctx, repository.SweetFilter{})
	require.NoError(t, err)

	assert.Equal(t, len(listed), len(searched))
}

func TestSearch_RejectsInvalidPriceRange(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	min := decimal.RequireFromString("5.00")
	max := decimal.RequireFromString("1.00")
	_, err := svc.Search(ctx, repository.SweetFilter{MinPrice: &min, MaxPrice: &max})
	assert.ErrorIs(t, err, ErrInvalidPriceRange)

	negative := decimal.RequireFromString("-1.00")
	_, err = svc.Search(ctx, repository.SweetFilter{MinPrice: &negative})
	assert.ErrorIs(t, err, ErrInvalidPriceRange)

	_, err = svc.Search(ctx, repository.SweetFilter{MaxPrice: &negative})
	assert.ErrorIs(t, err, ErrInvalidPriceRange)
}

func TestCreate_RejectsBadPriceAndQuantity(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSweetInput{Name: "Mint", Category: "hard", Price: decimal.Zero, Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Create(ctx, CreateSweetInput{
		Name: "Mint", Category: "hard",
		Price: decimal.RequireFromString("-0.50"), Quantity: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Create(ctx, CreateSweetInput{
		Name: "Mint", Category: "hard",
		Price: decimal.RequireFromString("0.50"), Quantity: -1,
	})
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestCreate_DuplicateNameConflicts(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	seedSweet(t, store, "Chocolate Bar", "2.50", 10)

	_, err := svc.Create(ctx, CreateSweetInput{
		Name: "Chocolate Bar", Category: "chocolate",
		Price: decimal.RequireFromString("3.00"), Quantity: 5,
	})
	assert.ErrorIs(t, err, repository.ErrSweetAlreadyExists)
}

func TestUpdate_RejectsBadValuesBeforeStorage(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()

	sweet := seedSweet(t, store, "Nougat", "2.00", 4)

	zero := decimal.Zero
	_, err := svc.Update(ctx, sweet.ID, repository.SweetUpdate{Price: &zero})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	negative := -3
	_, err = svc.Update(ctx, sweet.ID, repository.SweetUpdate{Quantity: &negative})
	assert.ErrorIs(t, err, ErrNegativeQuantity)

	// Untouched fields stay as they were
	name := "Soft Nougat"
	updated, err := svc.Update(ctx, sweet.ID, repository.SweetUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Soft Nougat", updated.Name)
	assert.Equal(t, 4, updated.Quantity)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("2.00")))
}

func TestDelete_ArchivedSweetIsGoneButPurchasesRemain(t *testing.T) {
	store := newMockSweetStore()
	svc := newTestSweetService(store)
	ctx := context.Background()
	userID := uuid.New()

	sweet := seedSweet(t, store, "Marzipan", "4.00", 10)

	_, err := svc.Purchase(ctx, userID, sweet.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sweet.ID))

	_, err = svc.GetByID(ctx, sweet.ID)
	assert.ErrorIs(t, err, repository.ErrSweetNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, sweet.ID), repository.ErrSweetNotFound)

	history, err := svc.PurchaseHistory(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "archiving must not disturb the audit trail")

	// Purchasing an archived sweet reads as not found, not as out of stock
	_, err = svc.Purchase(ctx, userID, sweet.ID, 1)
	assert.ErrorIs(t, err, repository.ErrSweetNotFound)
}
