package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrVoucherFormat      = errors.New("invalid voucher code format")
	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrVoucherExpired     = errors.New("voucher has expired")
	ErrVoucherUsage       = errors.New("voucher usage limit reached")
	ErrVoucherMinPurchase = errors.New("cart total is below the voucher minimum purchase")
)

var voucherMessages = map[error]string{
	ErrVoucherFormat:      "Invalid voucher code format",
	ErrVoucherNotFound:    "Voucher not found",
	ErrVoucherExpired:     "Voucher has expired",
	ErrVoucherUsage:       "Voucher usage limit reached",
	ErrVoucherMinPurchase: "Cart total is below the voucher minimum purchase",
}

var voucherCodePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// NormalizeVoucherCode trims the code and checks its format. Lowercase input
// is malformed, not silently upper-cased.
func NormalizeVoucherCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || !voucherCodePattern.MatchString(code) {
		return "", ErrVoucherFormat
	}
	return code, nil
}

// ValidVoucherCode reports whether code is already in canonical form.
func ValidVoucherCode(code string) bool {
	return voucherCodePattern.MatchString(code)
}

// EvaluateVoucher applies the eligibility rules after lookup (expiry, usage,
// minimum purchase) and returns the discount for total. The discount never
// exceeds total.
func EvaluateVoucher(v *models.Voucher, total int64, now time.Time) (int64, error) {
	if v.ExpiryDate != nil && !now.Before(*v.ExpiryDate) {
		return 0, ErrVoucherExpired
	}
	if v.MaxUsage != nil && v.UsedCount >= *v.MaxUsage {
		return 0, ErrVoucherUsage
	}
	if v.MinPurchase != nil && total < *v.MinPurchase {
		return 0, ErrVoucherMinPurchase
	}

	var discount int64
	switch v.Type {
	case models.VoucherTypePercentage:
		discount = decimal.NewFromInt(total).
			Mul(decimal.NewFromInt(v.Discount)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		if v.MaxDiscount != nil && discount > *v.MaxDiscount {
			discount = *v.MaxDiscount
		}
	default:
		discount = v.Discount
	}

	if discount > total {
		discount = total
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// voucherRejection renders an eligibility error as a 400.
func voucherRejection(err error) *ServiceError {
	msg, ok := voucherMessages[err]
	if !ok {
		msg = "Voucher is not applicable"
	}
	return &ServiceError{StatusCode: 400, Message: msg}
}

type VoucherService interface {
	ValidateVoucher(ctx context.Context, req *models.ValidateVoucherRequest) (*models.VoucherValidation, *ServiceError)
	CreateVoucher(ctx context.Context, req *models.CreateVoucherRequest) (*models.Voucher, *ServiceError)
	GetVoucher(ctx context.Context, code string) (*models.Voucher, *ServiceError)
	DeactivateVoucher(ctx context.Context, code string) *ServiceError
	ListVouchers(ctx context.Context, page, limit int) (*models.VoucherList, *ServiceError)
}

type voucherService struct {
	repo   repository.VoucherRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewVoucherService(repo repository.VoucherRepository, logger *zap.Logger) VoucherService {
	return &voucherService{repo: repo, logger: logger, now: time.Now}
}

// ValidateVoucher checks a code against a cart total without touching usage.
func (s *voucherService) ValidateVoucher(ctx context.Context, req *models.ValidateVoucherRequest) (*models.VoucherValidation, *ServiceError) {
	code, err := NormalizeVoucherCode(req.Code)
	if err != nil {
		return nil, voucherRejection(err)
	}

	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, voucherRejection(ErrVoucherNotFound)
		}
		s.logger.Error("Failed to look up voucher", zap.String("code", code), zap.Error(err))
		return nil, errInternal("Failed to validate voucher")
	}

	discount, err := EvaluateVoucher(voucher, req.CartTotal, s.now())
	if err != nil {
		s.logger.Debug("Voucher rejected", zap.String("code", code), zap.Error(err))
		return nil, voucherRejection(err)
	}

	return &models.VoucherValidation{
		Voucher:        voucher,
		DiscountAmount: discount,
		FinalTotal:     req.CartTotal - discount,
	}, nil
}

func (s *voucherService) CreateVoucher(ctx context.Context, req *models.CreateVoucherRequest) (*models.Voucher, *ServiceError) {
	code, err := NormalizeVoucherCode(req.Code)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Validation failed", Details: map[string]string{"code": "vouchercode"}}
	}
	if req.Type == models.VoucherTypePercentage && req.Discount > 100 {
		return nil, &ServiceError{StatusCode: 400, Message: "Validation failed", Details: map[string]string{"discount": "percentage discount must be at most 100"}}
	}
	if req.ExpiryDate != nil && !req.ExpiryDate.After(s.now()) {
		return nil, &ServiceError{StatusCode: 400, Message: "Validation failed", Details: map[string]string{"expiryDate": "must be in the future"}}
	}

	// Deactivated vouchers keep their code: the unique index spans every row.
	exists, err := s.repo.CodeExists(ctx, code)
	if err != nil {
		s.logger.Error("Failed to look up voucher", zap.String("code", code), zap.Error(err))
		return nil, errInternal("Failed to create voucher")
	}
	if exists {
		return nil, &ServiceError{StatusCode: 409, Message: "Voucher code already exists"}
	}

	voucher := &models.Voucher{
		ID:          uuid.New(),
		Code:        code,
		Discount:    req.Discount,
		Type:        req.Type,
		MinPurchase: req.MinPurchase,
		MaxDiscount: req.MaxDiscount,
		ExpiryDate:  req.ExpiryDate,
		MaxUsage:    req.MaxUsage,
		Active:      true,
	}
	if err := s.repo.Create(ctx, voucher); err != nil {
		s.logger.Error("Failed to create voucher", zap.String("code", code), zap.Error(err))
		return nil, errInternal("Failed to create voucher")
	}

	s.logger.Info("Voucher created", zap.String("code", code), zap.String("type", string(voucher.Type)))
	return voucher, nil
}

func (s *voucherService) GetVoucher(ctx context.Context, code string) (*models.Voucher, *ServiceError) {
	code, err := NormalizeVoucherCode(code)
	if err != nil {
		return nil, voucherRejection(err)
	}
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Voucher not found"}
		}
		return nil, errInternal("Failed to get voucher")
	}
	return voucher, nil
}

func (s *voucherService) DeactivateVoucher(ctx context.Context, code string) *ServiceError {
	code, err := NormalizeVoucherCode(code)
	if err != nil {
		return voucherRejection(err)
	}
	if err := s.repo.Deactivate(ctx, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Voucher not found"}
		}
		s.logger.Error("Failed to deactivate voucher", zap.String("code", code), zap.Error(err))
		return errInternal("Failed to deactivate voucher")
	}
	s.logger.Info("Voucher deactivated", zap.String("code", code))
	return nil
}

func (s *voucherService) ListVouchers(ctx context.Context, page, limit int) (*models.VoucherList, *ServiceError) {
	vouchers, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list vouchers", zap.Error(err))
		return nil, errInternal("Failed to list vouchers")
	}
	return &models.VoucherList{Vouchers: vouchers, Meta: models.NewListMeta(page, limit, total)}, nil
}
