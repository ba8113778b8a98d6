package services

import (
	"context"
	"sync"
	"time"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/cart"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/events"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"go.uber.org/zap"
)

const cartChangeBuffer = 256

// PublishCartChanges forwards cart mutations to the events bus as
// cart_updated events. A single worker publishes them in order, off the
// request path; when the buffer is full the change is dropped and logged.
// The returned stop func unsubscribes and waits for the worker to exit.
func PublishCartChanges(ctx context.Context, store cart.Store, publisher events.Publisher, logger *zap.Logger) (stop func()) {
	changes := make(chan cart.Change, cartChangeBuffer)
	quit := make(chan struct{})
	done := make(chan struct{})

	unsubscribe := store.Subscribe(func(c cart.Change) {
		select {
		case changes <- c:
		default:
			logger.Warn("Dropped cart change event", zap.String("user_id", c.UserID))
		}
	})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case c := <-changes:
				publisher.Publish(ctx, models.EventCartUpdated, c.UserID, models.CartUpdatedEvent{
					EventType: models.EventCartUpdated,
					UserID:    c.UserID,
					ItemCount: c.ItemCount,
					Quantity:  c.Quantity,
					Timestamp: time.Now().UTC(),
				})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			close(quit)
			<-done
		})
	}
}
