package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/cart"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/gateway"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// --- In-memory database ---

// memDB backs the product, voucher and order repositories. WithTx holds the
// lock for the whole callback and restores a snapshot when it fails.
type memDB struct {
	mu       sync.Mutex
	products map[uuid.UUID]models.Product
	vouchers map[uuid.UUID]models.Voucher
	orders   map[uuid.UUID]models.Order
}

func newMemDB() *memDB {
	return &memDB{
		products: make(map[uuid.UUID]models.Product),
		vouchers: make(map[uuid.UUID]models.Voucher),
		orders:   make(map[uuid.UUID]models.Order),
	}
}

func (db *memDB) addProduct(name string, price int64, stock int) models.Product {
	p := models.Product{ID: uuid.New(), Name: name, Price: price, Stock: stock, Category: "bouquet"}
	db.products[p.ID] = p
	return p
}

func (db *memDB) addVoucher(v models.Voucher) models.Voucher {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Active = true
	db.vouchers[v.ID] = v
	return v
}

func (db *memDB) addOrder(o models.Order) models.Order {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	db.orders[o.ID] = o
	return o
}

func (db *memDB) product(id uuid.UUID) models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id]
}

func (db *memDB) voucher(id uuid.UUID) models.Voucher {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.vouchers[id]
}

func (db *memDB) order(id uuid.UUID) models.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.orders[id]
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) repos(locking bool) repository.Repositories {
	return repository.Repositories{
		Products: &memProducts{db: db, locking: locking},
		Vouchers: &memVouchers{db: db, locking: locking},
		Orders:   &memOrders{db: db, locking: locking},
	}
}

func (db *memDB) guard(locking bool) func() {
	if !locking {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

type memTx struct{ db *memDB }

func (t *memTx) WithTx(_ context.Context, fn func(repository.Repositories) error) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	products := make(map[uuid.UUID]models.Product, len(t.db.products))
	for k, v := range t.db.products {
		products[k] = v
	}
	vouchers := make(map[uuid.UUID]models.Voucher, len(t.db.vouchers))
	for k, v := range t.db.vouchers {
		vouchers[k] = v
	}
	orders := make(map[uuid.UUID]models.Order, len(t.db.orders))
	for k, v := range t.db.orders {
		orders[k] = v
	}

	if err := fn(t.db.repos(false)); err != nil {
		t.db.products, t.db.vouchers, t.db.orders = products, vouchers, orders
		return err
	}
	return nil
}

type memProducts struct {
	db      *memDB
	locking bool
}

func (r *memProducts) FindAll(_ context.Context, page, limit int, category string) ([]models.Product, int64, error) {
	defer r.db.guard(r.locking)()
	var all []models.Product
	for _, p := range r.db.products {
		if category == "" || p.Category == category {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	defer r.db.guard(r.locking)()
	p, ok := r.db.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memProducts) LockByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	defer r.db.guard(r.locking)()
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.db.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducts) DecrementStock(_ context.Context, id uuid.UUID, qty int) error {
	defer r.db.guard(r.locking)()
	p, ok := r.db.products[id]
	if !ok || p.Stock < qty {
		return repository.ErrInsufficientStock
	}
	p.Stock -= qty
	r.db.products[id] = p
	return nil
}

func (r *memProducts) IncrementStock(_ context.Context, id uuid.UUID, qty int) error {
	defer r.db.guard(r.locking)()
	p, ok := r.db.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Stock += qty
	r.db.products[id] = p
	return nil
}

type memVouchers struct {
	db      *memDB
	locking bool
}

func (r *memVouchers) Create(_ context.Context, v *models.Voucher) error {
	defer r.db.guard(r.locking)()
	r.db.vouchers[v.ID] = *v
	return nil
}

func (r *memVouchers) FindByCode(_ context.Context, code string) (*models.Voucher, error) {
	defer r.db.guard(r.locking)()
	for _, v := range r.db.vouchers {
		if v.Code == code && v.Active {
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memVouchers) CodeExists(_ context.Context, code string) (bool, error) {
	defer r.db.guard(r.locking)()
	for _, v := range r.db.vouchers {
		if v.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memVouchers) FindByID(_ context.Context, id uuid.UUID) (*models.Voucher, error) {
	defer r.db.guard(r.locking)()
	v, ok := r.db.vouchers[id]
	if !ok || !v.Active {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (r *memVouchers) IncrementUsedCount(_ context.Context, id uuid.UUID) error {
	defer r.db.guard(r.locking)()
	v, ok := r.db.vouchers[id]
	if !ok || (v.MaxUsage != nil && v.UsedCount >= *v.MaxUsage) {
		return repository.ErrVoucherExhausted
	}
	v.UsedCount++
	r.db.vouchers[id] = v
	return nil
}

func (r *memVouchers) Deactivate(_ context.Context, code string) error {
	defer r.db.guard(r.locking)()
	for id, v := range r.db.vouchers {
		if v.Code == code && v.Active {
			v.Active = false
			r.db.vouchers[id] = v
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memVouchers) FindAll(_ context.Context, _, _ int) ([]models.Voucher, int64, error) {
	defer r.db.guard(r.locking)()
	var out []models.Voucher
	for _, v := range r.db.vouchers {
		out = append(out, v)
	}
	return out, int64(len(out)), nil
}

type memOrders struct {
	db      *memDB
	locking bool
}

func (r *memOrders) Create(_ context.Context, o *models.Order) error {
	defer r.db.guard(r.locking)()
	r.db.orders[o.ID] = *o
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	defer r.db.guard(r.locking)()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *memOrders) FindByIDAndUserID(_ context.Context, id, userID uuid.UUID) (*models.Order, error) {
	defer r.db.guard(r.locking)()
	o, ok := r.db.orders[id]
	if !ok || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *memOrders) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrders) FindByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	defer r.db.guard(r.locking)()
	var out []models.Order
	for _, o := range r.db.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrders) FindAll(_ context.Context, _, _ int, status string) ([]models.Order, int64, error) {
	defer r.db.guard(r.locking)()
	var out []models.Order
	for _, o := range r.db.orders {
		if status == "" || string(o.Status) == status {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrders) FindPendingPayments(_ context.Context, limit int) ([]models.Order, error) {
	defer r.db.guard(r.locking)()
	var out []models.Order
	for _, o := range r.db.orders {
		if o.PaymentStatus == models.PaymentStatusPending && o.Status != models.OrderStatusCancelled && o.PaymentToken != "" {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastSyncedAt, out[j].LastSyncedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOrders) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	defer r.db.guard(r.locking)()
	o, ok := r.db.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "payment_status":
			o.PaymentStatus = v.(string)
		case "payment_token":
			o.PaymentToken = v.(string)
		case "payment_url":
			o.PaymentURL = v.(string)
		case "payment_type":
			o.PaymentType = v.(string)
		case "paid_at":
			t := v.(time.Time)
			o.PaidAt = &t
		case "cancelled_at":
			t := v.(time.Time)
			o.CancelledAt = &t
		case "last_synced_at":
			t := v.(time.Time)
			o.LastSyncedAt = &t
		case "updated_at":
			o.UpdatedAt = v.(time.Time)
		}
	}
	r.db.orders[id] = o
	return nil
}

// --- Collaborators ---

type recordedEvent struct {
	Type  string
	Key   string
	Event interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, eventType, key string, event interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Key: key, Event: event})
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeGateway struct {
	mu        sync.Mutex
	created   []*gateway.SnapRequest
	createErr error
	statuses  map[string]*gateway.TransactionStatus
	statusErr error
	queried   []string
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req *gateway.SnapRequest) (*gateway.SnapResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &gateway.SnapResponse{
		Token:       "snap-" + req.TransactionDetails.OrderID,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/" + req.TransactionDetails.OrderID,
	}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, orderID string) (*gateway.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queried = append(g.queried, orderID)
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	st, ok := g.statuses[orderID]
	if !ok {
		return nil, gateway.ErrTransactionNotFound
	}
	return st, nil
}

func newTestCart(t *testing.T) cart.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cart.NewRedisStorage(client, time.Hour)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// tickingClock advances one second per call. Safe for concurrent use.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
