package services

import (
	"context"
	"testing"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCartService_AddUsesServerPriceAndStock(t *testing.T) {
	db := newMemDB()
	rose := db.addProduct("Rose Bouquet", 120000, 3)
	svc := NewCartService(newTestCart(t), db.repos(true).Products, zap.NewNop())
	ctx := context.Background()

	c, serr := svc.AddItem(ctx, "u1", &models.AddCartItemRequest{ProductID: rose.ID.String(), Quantity: 5})
	require.Nil(t, serr)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(120000), c.Items[0].Price)
	assert.Equal(t, 3, c.Items[0].Quantity, "clamped to stock")

	count, serr := svc.Count(ctx, "u1")
	require.Nil(t, serr)
	assert.Equal(t, &models.CartCount{ItemCount: 1, Quantity: 3}, count)

	total, serr := svc.Total(ctx, "u1", []string{rose.ID.String()})
	require.Nil(t, serr)
	assert.Equal(t, int64(360000), total.Total)
}

func TestCartService_Errors(t *testing.T) {
	db := newMemDB()
	rose := db.addProduct("Rose Bouquet", 120000, 3)
	sold := db.addProduct("Sold Out Tulips", 50000, 0)
	svc := NewCartService(newTestCart(t), db.repos(true).Products, zap.NewNop())
	ctx := context.Background()

	_, serr := svc.AddItem(ctx, "u1", &models.AddCartItemRequest{ProductID: uuid.NewString(), Quantity: 1})
	require.NotNil(t, serr)
	assert.Equal(t, 404, serr.StatusCode)

	_, serr = svc.AddItem(ctx, "u1", &models.AddCartItemRequest{ProductID: sold.ID.String(), Quantity: 1})
	require.NotNil(t, serr)
	assert.Equal(t, 400, serr.StatusCode)

	_, serr = svc.AddItem(ctx, "u1", &models.AddCartItemRequest{ProductID: rose.ID.String(), Quantity: 1})
	require.Nil(t, serr)

	_, serr = svc.UpdateItem(ctx, "u1", rose.ID.String(), 0)
	require.NotNil(t, serr)
	assert.Equal(t, 400, serr.StatusCode)

	_, serr = svc.TakeCheckout(ctx, "u1")
	require.NotNil(t, serr)
	assert.Equal(t, 404, serr.StatusCode)
}

func TestCartService_CheckoutIsConsumedOnce(t *testing.T) {
	db := newMemDB()
	rose := db.addProduct("Rose Bouquet", 120000, 3)
	svc := NewCartService(newTestCart(t), db.repos(true).Products, zap.NewNop())
	ctx := context.Background()

	_, serr := svc.AddItem(ctx, "u1", &models.AddCartItemRequest{ProductID: rose.ID.String(), Quantity: 2})
	require.Nil(t, serr)

	staged, serr := svc.StageCheckout(ctx, "u1", []string{rose.ID.String()})
	require.Nil(t, serr)
	require.Len(t, staged, 1)

	taken, serr := svc.TakeCheckout(ctx, "u1")
	require.Nil(t, serr)
	assert.Equal(t, staged, taken)

	_, serr = svc.TakeCheckout(ctx, "u1")
	require.NotNil(t, serr)
	assert.Equal(t, 404, serr.StatusCode)
}

func TestProductService(t *testing.T) {
	db := newMemDB()
	rose := db.addProduct("Rose Bouquet", 120000, 3)
	db.addProduct("Lily Box", 80000, 2)
	svc := NewProductService(db.repos(true).Products, zap.NewNop())
	ctx := context.Background()

	list, serr := svc.ListProducts(ctx, 1, 1, "")
	require.Nil(t, serr)
	assert.Len(t, list.Products, 1)
	assert.Equal(t, int64(2), list.Meta.Total)
	assert.True(t, list.Meta.HasMore)

	p, serr := svc.GetProduct(ctx, rose.ID.String())
	require.Nil(t, serr)
	assert.Equal(t, "Rose Bouquet", p.Name)

	_, serr = svc.GetProduct(ctx, "rose")
	require.NotNil(t, serr)
	assert.Equal(t, 400, serr.StatusCode)

	_, serr = svc.GetProduct(ctx, uuid.NewString())
	require.NotNil(t, serr)
	assert.Equal(t, 404, serr.StatusCode)
}
