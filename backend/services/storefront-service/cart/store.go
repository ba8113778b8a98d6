// Package cart holds the shopper cart: one Store used by the HTTP surface and
// by order creation, persisted per user and observable through Change events.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrEmptySelection  = errors.New("no cart items selected")
	ErrNothingStaged   = errors.New("no checkout selection")
	ErrConflict        = errors.New("cart was modified concurrently")
)

// Item is one cart line. ID equals ProductID since lines merge by product.
type Item struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image"`
	Category  string `json:"category"`
	Stock     int    `json:"stock"`
}

// Cart is the persisted blob for one user.
type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Quantity is the total number of units, shown on the header badge.
func (c *Cart) Quantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Total sums price x quantity over exactly the selected item ids.
func (c *Cart) Total(selectedIDs []string) int64 {
	selected := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}
	var total int64
	for _, it := range c.Items {
		if _, ok := selected[it.ID]; ok {
			total += it.Price * int64(it.Quantity)
		}
	}
	return total
}

func (c *Cart) find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// add merges by product id and clamps the resulting quantity to stock.
func (c *Cart) add(item Item, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if item.Stock < 1 {
		return ErrOutOfStock
	}
	item.ID = item.ProductID

	if i := c.find(item.ProductID); i >= 0 {
		qty += c.Items[i].Quantity
		item.Quantity = clamp(qty, item.Stock)
		c.Items[i] = item
		return nil
	}
	item.Quantity = clamp(qty, item.Stock)
	c.Items = append(c.Items, item)
	return nil
}

// update rejects qty < 1 without touching the cart and caps qty at stock.
func (c *Cart) update(productID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	i := c.find(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = clamp(qty, c.Items[i].Stock)
	return nil
}

func (c *Cart) remove(productIDs ...string) {
	drop := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		drop[id] = struct{}{}
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if _, ok := drop[it.ProductID]; !ok {
			kept = append(kept, it)
		}
	}
	c.Items = kept
}

func clamp(qty, stock int) int {
	if qty > stock {
		return stock
	}
	return qty
}

// Change is emitted after every successful mutation.
type Change struct {
	UserID    string
	ItemCount int
	Quantity  int
}

// Store is the single cart implementation behind the HTTP handlers and the
// order creator.
type Store interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Add(ctx context.Context, userID string, item Item, qty int) (*Cart, error)
	Update(ctx context.Context, userID, productID string, qty int) (*Cart, error)
	Remove(ctx context.Context, userID string, productIDs ...string) (*Cart, error)
	Clear(ctx context.Context, userID string) error
	Total(ctx context.Context, userID string, selectedIDs []string) (int64, error)
	// StageCheckout stores the selected lines for the checkout page.
	StageCheckout(ctx context.Context, userID string, selectedIDs []string) ([]Item, error)
	// TakeCheckout returns the staged lines once and deletes them.
	TakeCheckout(ctx context.Context, userID string) ([]Item, error)
	Subscribe(fn func(Change)) (unsubscribe func())
}

// Notifier fans Change events out to subscribers synchronously.
type Notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Change)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Change))}
}

func (n *Notifier) Subscribe(fn func(Change)) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) Notify(c Change) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, fn := range n.subs {
		fn(c)
	}
}
