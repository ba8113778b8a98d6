package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one transaction.
type Repositories struct {
	Products ProductRepository
	Vouchers VoucherRepository
	Orders   OrderRepository
}

// TxManager runs fn inside a single database transaction. A non-nil error
// from fn rolls back every write made through the given repositories.
type TxManager interface {
	WithTx(ctx context.Context, fn func(repos Repositories) error) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) TxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithTx(ctx context.Context, fn func(repos Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repositories{
			Products: NewGormProductRepository(tx),
			Vouchers: NewGormVoucherRepository(tx),
			Orders:   NewGormOrderRepository(tx),
		})
	})
}
