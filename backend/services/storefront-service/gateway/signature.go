package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// Signature computes SHA512(order_id + status_code + gross_amount + server_key) as hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification's signature_key in constant time.
func VerifySignature(n *TransactionStatus, serverKey string) bool {
	if n == nil || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) == 1
}

// ParseGrossAmount converts the gateway's "150000.00" into whole IDR.
func ParseGrossAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid gross_amount %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("gross_amount %q has a fractional IDR part", s)
	}
	return d.IntPart(), nil
}
