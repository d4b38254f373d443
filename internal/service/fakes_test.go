package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/repo"
	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// in-memory ledger
// ----------------------------------------------------------------------------

type fakeLedger struct {
	mu         sync.Mutex
	accounts   map[string]*models.Account
	orders     map[string]*models.Order
	holds      map[string]*models.Hold
	positions  map[string]*models.Position
	executions []*models.Execution
	txErr      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts:  make(map[string]*models.Account),
		orders:    make(map[string]*models.Order),
		holds:     make(map[string]*models.Hold),
		positions: make(map[string]*models.Position),
	}
}

func posKey(accountID, stockCode string) string { return accountID + "|" + stockCode }

func (l *fakeLedger) snapshot() *fakeLedger {
	s := newFakeLedger()
	for k, v := range l.accounts {
		c := *v
		s.accounts[k] = &c
	}
	for k, v := range l.orders {
		c := *v
		s.orders[k] = &c
	}
	for k, v := range l.holds {
		c := *v
		s.holds[k] = &c
	}
	for k, v := range l.positions {
		c := *v
		s.positions[k] = &c
	}
	s.executions = append([]*models.Execution(nil), l.executions...)
	return s
}

func (l *fakeLedger) restore(s *fakeLedger) {
	l.accounts = s.accounts
	l.orders = s.orders
	l.holds = s.holds
	l.positions = s.positions
	l.executions = s.executions
}

func (l *fakeLedger) WithinTx(ctx context.Context, fn func(tx repo.LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.txErr != nil {
		return l.txErr
	}
	snap := l.snapshot()
	if err := fn(&fakeTx{l: l}); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

func (l *fakeLedger) ListOpenOrders(ctx context.Context, since time.Time, limit, offset int) ([]*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var open []*models.Order
	for _, o := range l.orders {
		if o.Active() && !o.CreatedAt.Before(since) {
			c := *o
			open = append(open, &c)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
	if offset >= len(open) {
		return nil, nil
	}
	end := offset + limit
	if end > len(open) {
		end = len(open)
	}
	return open[offset:end], nil
}

func (l *fakeLedger) TerminalOrderIDs(ctx context.Context, ids []string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, id := range ids {
		if o, ok := l.orders[id]; ok && o.Status.Terminal() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (l *fakeLedger) OrdersByAccount(ctx context.Context, accountID, status string) ([]*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Order
	for _, o := range l.orders {
		if o.AccountID == accountID && (status == "" || string(o.Status) == status) {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (l *fakeLedger) ExecutionsByAccount(ctx context.Context, accountID string, limit int) ([]*models.Execution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Execution
	for _, e := range l.executions {
		if e.AccountID == accountID {
			c := *e
			out = append(out, &c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeTx struct{ l *fakeLedger }

func (t *fakeTx) LockAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		a, ok := t.l.accounts[id]
		if !ok {
			return nil, sql.ErrNoRows
		}
		c := *a
		out[id] = &c
	}
	return out, nil
}

func (t *fakeTx) AdjustCash(ctx context.Context, accountID string, delta decimal.Decimal) error {
	a, ok := t.l.accounts[accountID]
	if !ok {
		return sql.ErrNoRows
	}
	a.Cash = a.Cash.Add(delta)
	return nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o *models.Order) error {
	c := *o
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	t.l.orders[c.ID] = &c
	return nil
}

func (t *fakeTx) OrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	o, ok := t.l.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *o
	return &c, nil
}

func (t *fakeTx) UpdateOrderFill(ctx context.Context, id string, filled int64, status models.OrderStatus) error {
	o, ok := t.l.orders[id]
	if !ok {
		return sql.ErrNoRows
	}
	o.Filled = filled
	o.Status = status
	return nil
}

func (t *fakeTx) CancelOrder(ctx context.Context, id string) error {
	o, ok := t.l.orders[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	o.Status = models.Cancelled
	o.CancelledAt = &now
	return nil
}

func (t *fakeTx) InsertHold(ctx context.Context, h *models.Hold) error {
	c := *h
	t.l.holds[c.OrderID] = &c
	return nil
}

func (t *fakeTx) HoldForOrder(ctx context.Context, orderID string) (*models.Hold, error) {
	h, ok := t.l.holds[orderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *h
	return &c, nil
}

func (t *fakeTx) ReduceHold(ctx context.Context, orderID string, amount decimal.Decimal) error {
	h, ok := t.l.holds[orderID]
	if !ok {
		return sql.ErrNoRows
	}
	h.Amount = h.Amount.Sub(amount)
	return nil
}

func (t *fakeTx) ReleaseHold(ctx context.Context, orderID string) error {
	h, ok := t.l.holds[orderID]
	if !ok {
		return sql.ErrNoRows
	}
	h.Amount = decimal.Zero
	h.Status = models.HoldReleased
	return nil
}

func (t *fakeTx) PositionForUpdate(ctx context.Context, accountID, stockCode string) (*models.Position, error) {
	p, ok := t.l.positions[posKey(accountID, stockCode)]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (t *fakeTx) SavePosition(ctx context.Context, p *models.Position) error {
	c := *p
	t.l.positions[posKey(p.AccountID, p.StockCode)] = &c
	return nil
}

func (t *fakeTx) AdjustPositionHeld(ctx context.Context, accountID, stockCode string, delta int64) error {
	p, ok := t.l.positions[posKey(accountID, stockCode)]
	if !ok {
		return sql.ErrNoRows
	}
	p.Held += delta
	return nil
}

func (t *fakeTx) InsertExecution(ctx context.Context, e *models.Execution) error {
	c := *e
	t.l.executions = append(t.l.executions, &c)
	return nil
}

// ----------------------------------------------------------------------------
// in-memory book
// ----------------------------------------------------------------------------

// fakeBook mirrors the two-key projection: a per-order value map and a
// separate side-index membership set, so the two halves can diverge the
// way a partial Redis write would leave them.
type fakeBook struct {
	mu         sync.Mutex
	values     map[string]*models.BookEntry
	indexed    map[string]bool
	subs       map[string]int
	fetchCalls int
	fetchErr   error
}

func newFakeBook() *fakeBook {
	return &fakeBook{
		values:  make(map[string]*models.BookEntry),
		indexed: make(map[string]bool),
		subs:    make(map[string]int),
	}
}

func (b *fakeBook) AddOrder(ctx context.Context, o *models.Order) error {
	if !o.Active() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[o.ID] = models.EntryFromOrder(o)
	b.indexed[o.ID] = true
	return nil
}

func (b *fakeBook) addEntry(e *models.BookEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *e
	b.values[e.OrderID] = &c
	b.indexed[e.OrderID] = true
}

// dropIndex removes only the index member, leaving the value map behind.
func (b *fakeBook) dropIndex(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.indexed, orderID)
}

func (b *fakeBook) RemoveOrder(ctx context.Context, orderID, stockCode string, side models.OrderSide) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, orderID)
	delete(b.indexed, orderID)
	return nil
}

func (b *fakeBook) UpdateRemaining(ctx context.Context, orderID, stockCode string, side models.OrderSide, remaining int64) error {
	if remaining <= 0 {
		return b.RemoveOrder(ctx, orderID, stockCode, side)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.values[orderID]; ok {
		e.Remaining = remaining
	}
	return nil
}

func (b *fakeBook) FetchMatchingEntries(ctx context.Context, stockCode string, takerSide models.OrderSide, priceLimit decimal.Decimal, maxCount int) ([]*models.BookEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	restingSide := takerSide.Opposite()
	var out []*models.BookEntry
	for id, e := range b.values {
		if !b.indexed[id] {
			continue
		}
		if e.StockCode != stockCode || e.Side != restingSide {
			continue
		}
		if takerSide == models.Sell && e.Price.LessThan(priceLimit) {
			continue
		}
		if takerSide == models.Buy && e.Price.GreaterThan(priceLimit) {
			continue
		}
		c := *e
		out = append(out, &c)
		if len(out) == maxCount {
			break
		}
	}
	return out, nil
}

func (b *fakeBook) Contains(ctx context.Context, orderID, stockCode string, side models.OrderSide) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexed[orderID], nil
}

func (b *fakeBook) IndexKeys(ctx context.Context) ([]BookKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[BookKey]bool)
	var keys []BookKey
	for id, e := range b.values {
		if !b.indexed[id] {
			continue
		}
		k := BookKey{StockCode: e.StockCode, Side: e.Side}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (b *fakeBook) OrderIDs(ctx context.Context, stockCode string, side models.OrderSide) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id, e := range b.values {
		if !b.indexed[id] {
			continue
		}
		if e.StockCode == stockCode && e.Side == side {
			ids = append(ids, e.OrderID)
		}
	}
	return ids, nil
}

func (b *fakeBook) IncrSubscribers(ctx context.Context, stockCode string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[stockCode]++
	return nil
}

func (b *fakeBook) DecrSubscribers(ctx context.Context, stockCode string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[stockCode]--
	return nil
}

// ----------------------------------------------------------------------------
// in-memory queue, lease, notifier
// ----------------------------------------------------------------------------

type fakeQueue struct {
	mu     sync.Mutex
	events map[string][]*models.FillEvent
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{events: make(map[string][]*models.FillEvent)}
}

func (q *fakeQueue) Push(ctx context.Context, stockCode string, ev *models.FillEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events[stockCode] = append(q.events[stockCode], ev)
	return nil
}

func (q *fakeQueue) PushFront(ctx context.Context, stockCode string, ev *models.FillEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events[stockCode] = append([]*models.FillEvent{ev}, q.events[stockCode]...)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context, stockCode string) (*models.FillEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.events[stockCode]
	if len(evs) == 0 {
		return nil, nil
	}
	q.events[stockCode] = evs[1:]
	return evs[0], nil
}

func (q *fakeQueue) StockCodes(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var stocks []string
	for s, evs := range q.events {
		if len(evs) > 0 {
			stocks = append(stocks, s)
		}
	}
	return stocks, nil
}

func (q *fakeQueue) len(stockCode string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events[stockCode])
}

type fakeLease struct {
	mu       sync.Mutex
	held     map[string]string
	acquires int
	releases int
	blocked  bool
}

func newFakeLease() *fakeLease {
	return &fakeLease{held: make(map[string]string)}
}

func (l *fakeLease) Acquire(ctx context.Context, stockCode string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.blocked {
		return "", false, nil
	}
	if _, ok := l.held[stockCode]; ok {
		return "", false, nil
	}
	token := "token-" + stockCode
	l.held[stockCode] = token
	return token, true, nil
}

func (l *fakeLease) Release(ctx context.Context, stockCode, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[stockCode] == token {
		delete(l.held, stockCode)
		l.releases++
	}
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	fills []*models.Execution
	err   error
}

func (n *fakeNotifier) ExecutionFilled(ctx context.Context, e *models.Execution) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.fills = append(n.fills, e)
	return nil
}

var errStoreDown = errors.New("store unavailable")
