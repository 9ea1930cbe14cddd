package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-retail-pos/internal/events"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockingStore is an in-memory CheckoutStore with per-row locks. Writes are
// staged per transaction and applied only when fn returns nil.
type lockingStore struct {
	mu       sync.Mutex
	stock    map[uuid.UUID]int
	names    map[uuid.UUID]string
	prices   map[uuid.UUID]decimal.Decimal
	sales    []model.Transaction
	locks    map[uuid.UUID]chan struct{}
	lockWait time.Duration

	atomicCalls int
	lockOrders  [][]uuid.UUID

	// failure injection
	failWrite       error
	failAppendAfter int // fail the AppendSale call after this many successes; 0 disables
	holdAfterRead   time.Duration
}

func newLockingStore() *lockingStore {
	return &lockingStore{
		stock:    map[uuid.UUID]int{},
		names:    map[uuid.UUID]string{},
		prices:   map[uuid.UUID]decimal.Decimal{},
		locks:    map[uuid.UUID]chan struct{}{},
		lockWait: 2 * time.Second,
	}
}

func (s *lockingStore) addProduct(name string, stock int, price string) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[id] = stock
	s.names[id] = name
	s.prices[id] = decimal.RequireFromString(price)
	return id
}

func (s *lockingStore) stockOf(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[id]
}

func (s *lockingStore) salesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

func (s *lockingStore) lockFor(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

func (s *lockingStore) Atomic(ctx context.Context, fn func(tx repository.CheckoutTx) error) error {
	s.mu.Lock()
	s.atomicCalls++
	s.mu.Unlock()

	tx := &lockingTx{store: s, ctx: ctx, writes: map[uuid.UUID]int{}}
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range tx.writes {
		s.stock[id] = v
	}
	s.sales = append(s.sales, tx.sales...)
	return nil
}

type lockingTx struct {
	store   *lockingStore
	ctx     context.Context
	held    []chan struct{}
	writes  map[uuid.UUID]int
	sales   []model.Transaction
	appends int
}

func (t *lockingTx) ReadForUpdate(ids []uuid.UUID) (map[uuid.UUID]repository.StockSnapshot, error) {
	t.store.mu.Lock()
	t.store.lockOrders = append(t.store.lockOrders, append([]uuid.UUID(nil), ids...))
	t.store.mu.Unlock()

	for _, id := range ids {
		l := t.store.lockFor(id)
		select {
		case l <- struct{}{}:
			t.held = append(t.held, l)
		case <-time.After(t.store.lockWait):
			return nil, fmt.Errorf("%w: %s", repository.ErrLockConflict, id)
		case <-t.ctx.Done():
			return nil, t.ctx.Err()
		}
	}

	t.store.mu.Lock()
	rows := make(map[uuid.UUID]repository.StockSnapshot, len(ids))
	for _, id := range ids {
		if stock, ok := t.store.stock[id]; ok {
			rows[id] = repository.StockSnapshot{ID: id, Name: t.store.names[id], Stock: stock, Price: t.store.prices[id]}
		}
	}
	t.store.mu.Unlock()

	if t.store.holdAfterRead > 0 {
		time.Sleep(t.store.holdAfterRead)
	}
	return rows, nil
}

func (t *lockingTx) WriteStock(id uuid.UUID, newStock int, _ string) error {
	if t.store.failWrite != nil {
		return t.store.failWrite
	}
	t.writes[id] = newStock
	return nil
}

func (t *lockingTx) AppendSale(sale *model.Transaction) error {
	if t.store.failAppendAfter > 0 && t.appends >= t.store.failAppendAfter {
		return errors.New("disk full")
	}
	t.appends++
	t.sales = append(t.sales, *sale)
	return nil
}

func (t *lockingTx) releaseAll() {
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.held[i]
	}
	t.held = nil
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (r *recordingActivity) Record(userID uuid.UUID, action string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, userID.String()+":"+action)
	return r.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type checkoutFixture struct {
	store    *lockingStore
	activity *recordingActivity
	events   *recordingEvents
	svc      CheckoutService
	staff    Actor
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		store:    newLockingStore(),
		activity: &recordingActivity{},
		events:   &recordingEvents{},
		staff:    Actor{ID: uuid.New(), Name: "Sari", Email: "sari@example.com"},
	}
	f.svc = NewCheckoutService(f.store, f.activity, f.events, nil, logger.NewNop())
	return f
}

func (f *checkoutFixture) request(items ...LineItem) *CheckoutRequest {
	return &CheckoutRequest{StaffID: f.staff.ID, Items: items}
}

func TestCheckoutDecrementsStockAndRecordsSale(t *testing.T) {
	f := newCheckoutFixture()
	p := f.store.addProduct("Kopi", 10, "5.00")

	receipt, err := f.svc.Checkout(context.Background(), f.staff, f.request(LineItem{ProductID: p, Quantity: 4}))
	require.NoError(t, err)

	assert.Equal(t, 6, f.store.stockOf(p))
	require.Len(t, f.store.sales, 1)
	sale := f.store.sales[0]
	assert.Equal(t, p, sale.ProductID)
	assert.Equal(t, f.staff.ID, sale.StaffID)
	assert.Equal(t, 4, sale.Quantity)
	assert.True(t, decimal.RequireFromString("20.00").Equal(sale.TotalPrice))
	assert.Equal(t, receipt.CheckoutID, sale.CheckoutID)

	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, sale.ID, receipt.Lines[0].TransactionID)
	assert.Equal(t, 6, receipt.Lines[0].RemainingStock)
	assert.True(t, decimal.RequireFromString("20").Equal(receipt.Total))
	assert.Equal(t, 4, receipt.Units)

	assert.Equal(t, []string{f.staff.ID.String() + ":" + model.ActionCheckoutCompleted}, f.activity.entries)
	require.Equal(t, 1, f.events.count())
	assert.Equal(t, events.TypeCheckoutCompleted, f.events.events[0].Type)
	assert.Equal(t, receipt.CheckoutID.String(), f.events.events[0].Key)
}

func TestCheckoutInsufficientStockChangesNothing(t *testing.T) {
	f := newCheckoutFixture()
	p := f.store.addProduct("Teh", 3, "4.50")

	_, err := f.svc.Checkout(context.Background(), f.staff, f.request(LineItem{ProductID: p, Quantity: 5}))

	require.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, p, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)

	assert.Equal(t, 3, f.store.stockOf(p))
	assert.Zero(t, f.store.salesCount())
	assert.Empty(t, f.activity.entries)
	assert.Zero(t, f.events.count())
}

func TestCheckoutUnknownProductRollsBackWholeBatch(t *testing.T) {
	f := newCheckoutFixture()
	p := f.store.addProduct("Roti", 8, "12.00")
	missing := uuid.New()

	_, err := f.svc.Checkout(context.Background(), f.staff, f.request(
		LineItem{ProductID: p, Quantity: 2},
		LineItem{ProductID: missing, Quantity: 1},
	))

	require.ErrorIs(t, err, ErrProductNotFound)
	var nf *ProductNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, missing, nf.ProductID)
	assert.Equal(t, 8, f.store.stockOf(p))
	assert.Zero(t, f.store.salesCount())
}

func TestCheckoutRejectsBeforeTouchingStore(t *testing.T) {
	p := uuid.New()
	tests := []struct {
		name    string
		actor   func(f *checkoutFixture) Actor
		req     func(f *checkoutFixture) *CheckoutRequest
		wantErr error
	}{
		{
			name:  "staff id of someone else",
			actor: func(f *checkoutFixture) Actor { return f.staff },
			req: func(f *checkoutFixture) *CheckoutRequest {
				return &CheckoutRequest{StaffID: uuid.New(), Items: []LineItem{{ProductID: p, Quantity: 1}}}
			},
			wantErr: ErrUnauthorized,
		},
		{
			name:  "anonymous actor",
			actor: func(f *checkoutFixture) Actor { return Actor{} },
			req: func(f *checkoutFixture) *CheckoutRequest {
				return &CheckoutRequest{Items: []LineItem{{ProductID: p, Quantity: 1}}}
			},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "empty batch",
			actor:   func(f *checkoutFixture) Actor { return f.staff },
			req:     func(f *checkoutFixture) *CheckoutRequest { return f.request() },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "zero quantity",
			actor:   func(f *checkoutFixture) Actor { return f.staff },
			req:     func(f *checkoutFixture) *CheckoutRequest { return f.request(LineItem{ProductID: p, Quantity: 0}) },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "negative quantity",
			actor:   func(f *checkoutFixture) Actor { return f.staff },
			req:     func(f *checkoutFixture) *CheckoutRequest { return f.request(LineItem{ProductID: p, Quantity: -2}) },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing product id",
			actor:   func(f *checkoutFixture) Actor { return f.staff },
			req:     func(f *checkoutFixture) *CheckoutRequest { return f.request(LineItem{Quantity: 1}) },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "nil request",
			actor:   func(f *checkoutFixture) Actor { return f.staff },
			req:     func(f *checkoutFixture) *CheckoutRequest { return nil },
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			_, err := f.svc.Checkout(context.Background(), tt.actor(f), tt.req(f))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.store.atomicCalls)
		})
	}
}

func TestCheckoutUsesStoredPrice(t *testing.T) {
	f := newCheckoutFixture()
	p := f.store.addProduct("Susu", 5, "7.25")
	q := f.store.addProduct("Gula", 5, "0.10")

	receipt, err := f.svc.Checkout(context.Background(), f.staff, f.request(
		LineItem{ProductID: p, Quantity: 3},
		LineItem{ProductID: q, Quantity: 3},
	))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("21.75").Equal(receipt.Lines[0].LineTotal))
	assert.True(t, decimal.RequireFromString("0.30").Equal(receipt.Lines[1].LineTotal))
	assert.True(t, decimal.RequireFromString("22.05").Equal(receipt.Total))
}

func TestCheckoutDuplicateLinesAreCumulative(t *testing.T) {
	f := newCheckoutFixture()
	p := f.store.addProduct("Air", 5, "3.00")

	_, err := f.svc.Checkout(context.Background(), f.staff, f.request(
		LineItem{ProductID: p, Quantity: 3},
		LineItem{ProductID: p, Quantity: 3},
	))
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 5, f.store.stockOf(p))

	receipt, err := f.svc.Checkout(context.Background(), f.staff, f.request(
		LineItem{ProductID: p, Quantity: 2},
		LineItem{ProductID: p, Quantity: 3},
	))
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.stockOf(p))
	require.Len(t, receipt.Lines, 2)
	assert.Equal(t, 3, receipt.Lines[0].RemainingStock)
	assert.Equal(t, 0, receipt.Lines[1].RemainingStock)
	assert.Equal(t, 2, f.store.salesCount())
}

func TestCheckoutLocksDistinctIdsInAscendingOrder(t *testing.T) {
	f := newCheckoutFixture()
	a := f.store.addProduct("A", 10, "1.00")
	b := f.store.addProduct("B", 10, "1.00")
	c := f.store.addProduct("C", 10, "1.00")

	_, err := f.svc.Checkout(context.Background(), f.staff, f.request(
		LineItem{ProductID: c, Quantity: 1},
		LineItem{ProductID: a, Quantity: 1},
		LineItem{ProductID: b, Quantity: 1},
		LineItem{ProductID: a, Quantity: 1},
	))
	require.NoError(t, err)

	require.Len(t, f.store.lockOrders, 1)
	order := f.store.lockOrders[0]
	require.Len(t, order, 3)
	for i := 1; i < len(order); i++ {
		assert.Negative(t, bytes.Compare(order[i-1][:], order[i][:]))
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newCheckoutFixture()
		p := f.store.addProduct("Beras", 10, "15.00")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.svc.Checkout(context.Background(), f.staff, f.request(LineItem{ProductID: p, Quantity: 6}))
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
				continue
			}
			assert.True(t, errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrConflict), err)
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 4, f.store.stockOf(p))
		assert.Equal(t, 1, f.store.salesCount())
	}
}

func TestOpposingOrderBatchesDoNotDeadlock(t *testing.T) {
	f := newCheckoutFixture()
	f.store.holdAfterRead = 20 * time.Millisecond
	a := f.store.addProduct("A", 100, "2.00")
	b := f.store.addProduct("B", 100, "3.00")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(context.Background(), f.staff, f.request(
				LineItem{ProductID: a, Quantity: 1}, LineItem{ProductID: b, Quantity: 1}))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(context.Background(), f.staff, f.request(
				LineItem{ProductID: b, Quantity: 1}, LineItem{ProductID: a, Quantity: 1}))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 80, f.store.stockOf(a))
	assert.Equal(t, 80, f.store.stockOf(b))
	assert.Equal(t, 40, f.store.salesCount())

	// Stock removed equals units recorded in the ledger.
	units := 0
	for _, s := range f.store.sales {
		units += s.Quantity
	}
	assert.Equal(t, 200-(f.store.stockOf(a)+f.store.stockOf(b)), units)
}

func TestCheckoutLockTimeoutIsConflict(t *testing.T) {
	f := newCheckoutFixture()
	f.store.lockWait = 30 * time.Millisecond
	p := f.store.addProduct("Minyak", 10, "20.00")

	// Another transaction holds the row.
	held := f.store.lockFor(p)
	held <- struct{}{}
	defer func() { <-held }()

	_, err := f.svc.Checkout(context.Background(), f.staff, f.request(LineItem{ProductID: p, Quantity: 1}))

	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 10, f.store.stockOf(p))
	assert.Zero(t, f.store.salesCount())
}

func TestCheckoutCanceledWhileWaitingIsConflict(t *testing.T) {
	f := newCheckoutFixture()
	p := f.store.addProduct("Gula", 10, "15.00")

	held := f.store.lockFor(p)
	held <- struct{}{}
	defer func() { <-held }()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := f.svc.Checkout(ctx, f.staff, f.request(LineItem{ProductID: p, Quantity: 1}))

	require.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, 10, f.store.stockOf(p))
	assert.Zero(t, f.store.salesCount())
}

func TestCheckoutStorageFailureRollsBack(t *testing.T) {
	t.Run("ledger write fails midway", func(t *testing.T) {
		f := newCheckoutFixture()
		f.store.failAppendAfter = 1
		p := f.store.addProduct("P", 10, "1.00")
		q := f.store.addProduct("Q", 10, "1.00")

		_, err := f.svc.Checkout(context.Background(), f.staff, f.request(
			LineItem{ProductID: p, Quantity: 1},
			LineItem{ProductID: q, Quantity: 1},
		))

		require.ErrorIs(t, err, ErrStorage)
		assert.Equal(t, 10, f.store.stockOf(p))
		assert.Equal(t, 10, f.store.stockOf(q))
		assert.Zero(t, f.store.salesCount())
		assert.Zero(t, f.events.count())
	})

	t.Run("stock write fails", func(t *testing.T) {
		f := newCheckoutFixture()
		f.store.failWrite = errors.New("connection reset")
		p := f.store.addProduct("P", 10, "1.00")

		_, err := f.svc.Checkout(context.Background(), f.staff, f.request(LineItem{ProductID: p, Quantity: 1}))

		require.ErrorIs(t, err, ErrStorage)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, 10, f.store.stockOf(p))
	})
}

func TestCheckoutSurvivesActivityFailure(t *testing.T) {
	f := newCheckoutFixture()
	f.activity.err = errors.New("activity table locked")
	p := f.store.addProduct("P", 2, "1.00")

	_, err := f.svc.Checkout(context.Background(), f.staff, f.request(LineItem{ProductID: p, Quantity: 2}))

	require.NoError(t, err)
	assert.Equal(t, 0, f.store.stockOf(p))
}

func TestSellRequestToCheckout(t *testing.T) {
	staff, product := uuid.New(), uuid.New()
	req := (&SellRequest{StaffID: staff, ProductID: product, Quantity: 3}).ToCheckout()

	assert.Equal(t, staff, req.StaffID)
	assert.Equal(t, []LineItem{{ProductID: product, Quantity: 3}}, req.Items)
}
