package repository

import (
	"context"
	"errors"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrVoucherExhausted is returned when the usage cap was reached concurrently.
var ErrVoucherExhausted = errors.New("voucher usage limit reached")

// VoucherRepository defines the interface for voucher data access.
type VoucherRepository interface {
	Create(ctx context.Context, voucher *models.Voucher) error
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	// CodeExists reports whether any voucher holds the code, including
	// deactivated and soft-deleted ones.
	CodeExists(ctx context.Context, code string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	IncrementUsedCount(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, code string) error
	FindAll(ctx context.Context, page, limit int) ([]models.Voucher, int64, error)
}

// GormVoucherRepository implements VoucherRepository using GORM.
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository.
func NewGormVoucherRepository(db *gorm.DB) VoucherRepository {
	return &GormVoucherRepository{db: db}
}

// Create inserts a new voucher into the database.
func (r *GormVoucherRepository) Create(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

// FindByCode retrieves an active voucher. Codes are stored upper-case so the
// match is exact.
func (r *GormVoucherRepository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *GormVoucherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Voucher{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByID retrieves an active voucher by primary key.
func (r *GormVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// IncrementUsedCount atomically increments used_count unless max_usage is reached.
func (r *GormVoucherRepository) IncrementUsedCount(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND (max_usage IS NULL OR used_count < max_usage)", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVoucherExhausted
	}
	return nil
}

// Deactivate soft-deactivates a voucher by setting active = false.
func (r *GormVoucherRepository) Deactivate(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("code = ?", code).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindAll retrieves paginated vouchers.
func (r *GormVoucherRepository) FindAll(ctx context.Context, page, limit int) ([]models.Voucher, int64, error) {
	var vouchers []models.Voucher
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Voucher{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}

	return vouchers, total, nil
}
