package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var ErrInvalidGoogleToken = errors.New("invalid Google ID token")

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// TokenInfoVerifier validates ID tokens with Google's tokeninfo endpoint and
// checks that the audience is this application's client id.
type TokenInfoVerifier struct {
	http     *resty.Client
	clientID string
	endpoint string
}

func NewTokenInfoVerifier(clientID, endpoint string) *TokenInfoVerifier {
	if endpoint == "" {
		endpoint = googleTokenInfoURL
	}
	return &TokenInfoVerifier{
		http:     resty.New().SetTimeout(10 * time.Second),
		clientID: clientID,
		endpoint: endpoint,
	}
}

type tokenInfo struct {
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
}

func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if v.clientID == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID is not configured")
	}

	var info tokenInfo
	resp, err := v.http.R().
		SetContext(ctx).
		SetQueryParam("id_token", idToken).
		SetResult(&info).
		Get(v.endpoint)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	if resp.IsError() {
		return nil, ErrInvalidGoogleToken
	}
	if info.Aud != v.clientID || info.Sub == "" || info.Email == "" || info.EmailVerified != "true" {
		return nil, ErrInvalidGoogleToken
	}

	return &GoogleIdentity{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}
