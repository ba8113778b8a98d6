// Package checkout tracks the payment widget attempt for each order so the
// client only reports widget callbacks and renders what it is told.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateIdle    State = "idle"
	StateOpened  State = "opened"
	StateSuccess State = "success"
	StatePending State = "pending"
	StateError   State = "error"
	StateClosed  State = "closed"
)

// Outcome is a widget callback reported by the client.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending"
	OutcomeError   Outcome = "error"
	OutcomeClosed  Outcome = "closed"
)

var (
	ErrTokenRequired     = errors.New("payment token required to open the widget")
	ErrNoAttempt         = errors.New("no payment attempt for order")
	ErrNotOwner          = errors.New("payment attempt belongs to another user")
	ErrInvalidTransition = errors.New("invalid payment widget transition")
	ErrUnknownOutcome    = errors.New("unknown widget outcome")
)

// Attempt is the widget state of one order.
type Attempt struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"-"`
	State     State     `json:"state"`
	Token     string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Resolution tells the client what to do after a widget callback.
type Resolution struct {
	State     State  `json:"state"`
	Redirect  string `json:"redirect"`
	ClearCart bool   `json:"clearCart"`
	Message   string `json:"message"`
}

// ResolutionFor maps a settled attempt state to the client instruction.
func ResolutionFor(orderID string, state State) Resolution {
	switch state {
	case StateSuccess:
		return Resolution{State: state, Redirect: resultPath(orderID), ClearCart: true, Message: "Payment successful"}
	case StatePending:
		return Resolution{State: state, Redirect: resultPath(orderID), ClearCart: true, Message: "Waiting for your payment to complete"}
	case StateError:
		return Resolution{State: state, Redirect: "/checkout", Message: "Payment failed, please try again"}
	case StateClosed:
		return Resolution{State: state, Redirect: "/orders", Message: "Payment window closed. You can continue the payment from your orders"}
	}
	return Resolution{State: state}
}

func resultPath(orderID string) string {
	return fmt.Sprintf("/orders/%s/result", orderID)
}

func (o Outcome) state() (State, bool) {
	switch o {
	case OutcomeSuccess:
		return StateSuccess, true
	case OutcomePending:
		return StatePending, true
	case OutcomeError:
		return StateError, true
	case OutcomeClosed:
		return StateClosed, true
	}
	return "", false
}

// Tracker holds attempts in memory. Attempts untouched for longer than ttl
// are dropped by Sweep.
type Tracker struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
	ttl      time.Duration
	now      func() time.Time
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		attempts: make(map[string]*Attempt),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Open moves the attempt to opened. A new attempt starts idle; an errored one
// may be reopened. Reopening an opened attempt is a no-op. A pending or closed
// attempt is replaced so the shopper can pay later from the order list.
func (t *Tracker) Open(orderID, userID, token string) (Attempt, error) {
	if token == "" {
		return Attempt{}, ErrTokenRequired
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[orderID]
	if ok && a.UserID != userID {
		return Attempt{}, ErrNotOwner
	}
	if !ok || a.State == StatePending || a.State == StateClosed {
		a = &Attempt{OrderID: orderID, UserID: userID, State: StateIdle}
		t.attempts[orderID] = a
	}

	switch a.State {
	case StateIdle, StateError:
		a.State = StateOpened
	case StateOpened:
	default:
		return *a, ErrInvalidTransition
	}
	a.Token = token
	a.UpdatedAt = t.now()
	return *a, nil
}

// Resolve applies a widget outcome. Only an opened attempt accepts one.
func (t *Tracker) Resolve(orderID, userID string, outcome Outcome) (Resolution, error) {
	next, ok := outcome.state()
	if !ok {
		return Resolution{}, ErrUnknownOutcome
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[orderID]
	if !ok {
		return Resolution{}, ErrNoAttempt
	}
	if a.UserID != userID {
		return Resolution{}, ErrNotOwner
	}
	if a.State != StateOpened {
		return Resolution{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, next)
	}

	a.State = next
	a.UpdatedAt = t.now()
	return ResolutionFor(orderID, next), nil
}

// Status returns a copy of the attempt.
func (t *Tracker) Status(orderID, userID string) (Attempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[orderID]
	if !ok {
		return Attempt{}, ErrNoAttempt
	}
	if a.UserID != userID {
		return Attempt{}, ErrNotOwner
	}
	return *a, nil
}

// Sweep drops expired attempts and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	removed := 0
	for id, a := range t.attempts {
		if a.UpdatedAt.Before(cutoff) {
			delete(t.attempts, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}
