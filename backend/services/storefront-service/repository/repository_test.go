package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestProduct_DecrementStock_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DecrementStock(context.Background(), uuid.New(), 2)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProduct_DecrementStock_Insufficient(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.DecrementStock(context.Background(), uuid.New(), 5)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
}

func TestProduct_LockByIDs_UsesForUpdate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "name", "price", "stock"}).
		AddRow(id, "Rose bouquet", 250000, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" WHERE id IN`) + `.*FOR UPDATE`).
		WillReturnRows(rows)

	products, err := repo.LockByIDs(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 3, products[0].Stock)
	assert.Equal(t, int64(250000), products[0].Price)
}

func TestProduct_FindAll_FiltersCategory(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "products" WHERE category = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" WHERE category = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category"}).AddRow(uuid.New(), "Tulip", "flowers"))

	products, total, err := repo.FindAll(context.Background(), 1, 10, "flowers")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Tulip", products[0].Name)
}

func TestVoucher_IncrementUsedCount_Exhausted(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormVoucherRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "vouchers" SET "used_count"=used_count + 1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.IncrementUsedCount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrVoucherExhausted)
}

func TestVoucher_FindByCode_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormVoucherRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "vouchers"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	v, err := repo.FindByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, v)
}

func TestVoucher_CodeExists_IncludesDeletedRows(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormVoucherRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "vouchers" WHERE code = $1`) + "$").
		WithArgs("FLASH").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.CodeExists(context.Background(), "FLASH")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoucher_Deactivate_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormVoucherRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "vouchers" SET "active"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Deactivate(context.Background(), "GONE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrder_FindPendingPayments(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "status", "payment_status", "payment_token", "created_at"}).
		AddRow(id, "PENDING", "PENDING", "snap-token", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE payment_status = $1 AND status <> $2 AND payment_token <> ''`) +
		".*" + regexp.QuoteMeta(`ORDER BY last_synced_at ASC NULLS FIRST, created_at ASC LIMIT`)).
		WillReturnRows(rows)

	orders, err := repo.FindPendingPayments(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].ID)
	assert.Equal(t, "snap-token", orders[0].PaymentToken)
}

func TestOrder_UpdateFields_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateFields(context.Background(), uuid.New(), map[string]interface{}{"payment_token": "t"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrder_Create_InsertsItems(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	orderID := uuid.New()
	order := &models.Order{
		ID:          orderID,
		OrderNumber: "BS-1",
		UserID:      uuid.New(),
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: uuid.New(), Name: "Lily", Price: 100000, Quantity: 1},
		},
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orderID))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_items"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(order.Items[0].ID))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUser_FindByEmail(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role"}).
			AddRow(id, "sari", "sari@example.com", "USER"))

	u, err := repo.FindByEmail(context.Background(), "sari@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	tx := repository.NewGormTxManager(gormDB)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := tx.WithTx(context.Background(), func(repos repository.Repositories) error {
		assert.NotNil(t, repos.Products)
		assert.NotNil(t, repos.Orders)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
