// Package gateway talks to the Midtrans Snap and Core status APIs.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	SandboxSnapURL    = "https://app.sandbox.midtrans.com"
	ProductionSnapURL = "https://app.midtrans.com"
	SandboxAPIURL     = "https://api.sandbox.midtrans.com"
	ProductionAPIURL  = "https://api.midtrans.com"
)

// ErrTransactionNotFound means the gateway has no transaction for the order
// yet, typically because the shopper never picked a payment method.
var ErrTransactionNotFound = errors.New("transaction not found")

// Error is a non-2xx answer from the gateway.
type Error struct {
	StatusCode int
	Messages   []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("midtrans returned %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Category string `json:"category,omitempty"`
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type CustomerDetails struct {
	FirstName       string   `json:"first_name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
}

type Callbacks struct {
	Finish string `json:"finish,omitempty"`
}

// SnapRequest is the body of POST /snap/v1/transactions.
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	Callbacks          *Callbacks         `json:"callbacks,omitempty"`
}

type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is both the status API answer and the HTTP notification body.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

type snapError struct {
	ErrorMessages []string `json:"error_messages"`
}

// Client is what the payment service needs from the gateway.
type Client interface {
	CreateTransaction(ctx context.Context, req *SnapRequest) (*SnapResponse, error)
	GetStatus(ctx context.Context, orderID string) (*TransactionStatus, error)
}

// MidtransClient authenticates with the server key as the basic-auth user.
type MidtransClient struct {
	http    *resty.Client
	snapURL string
	apiURL  string
}

// NewMidtransClient picks sandbox or production hosts; non-empty snapURL or
// apiURL override them.
func NewMidtransClient(serverKey string, production bool, snapURL, apiURL string) *MidtransClient {
	if snapURL == "" {
		snapURL = SandboxSnapURL
		if production {
			snapURL = ProductionSnapURL
		}
	}
	if apiURL == "" {
		apiURL = SandboxAPIURL
		if production {
			apiURL = ProductionAPIURL
		}
	}

	client := resty.New().
		SetTimeout(30*time.Second).
		SetBasicAuth(serverKey, "").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &MidtransClient{
		http:    client,
		snapURL: strings.TrimSuffix(snapURL, "/"),
		apiURL:  strings.TrimSuffix(apiURL, "/"),
	}
}

func (c *MidtransClient) CreateTransaction(ctx context.Context, req *SnapRequest) (*SnapResponse, error) {
	var out SnapResponse
	var apiErr snapError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.snapURL + "/snap/v1/transactions")
	if err != nil {
		return nil, fmt.Errorf("snap request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Messages: apiErr.ErrorMessages}
	}
	if out.Token == "" {
		return nil, &Error{StatusCode: resp.StatusCode(), Messages: []string{"empty snap token"}}
	}
	return &out, nil
}

// GetStatus queries GET /v2/{order_id}/status. The status API can answer
// HTTP 200 with status_code "404" in the body, so both forms are mapped to
// ErrTransactionNotFound.
func (c *MidtransClient) GetStatus(ctx context.Context, orderID string) (*TransactionStatus, error) {
	var out TransactionStatus

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("orderID", orderID).
		SetResult(&out).
		SetError(&out).
		Get(c.apiURL + "/v2/{orderID}/status")
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound || out.StatusCode == "404" {
		return nil, ErrTransactionNotFound
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Messages: []string{out.StatusMessage}}
	}
	return &out, nil
}
