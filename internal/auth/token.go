// Package auth acquires service access tokens for the study platform API
// using the client-credentials grant with a signed JWT assertion.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// assertionTTL keeps the signed assertion short-lived; the platform only
// needs it to mint the real access token.
const assertionTTL = 200 * time.Second

// TokenSource yields a bearer token for outbound API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token; used in tests and the CLI.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) { return string(s), nil }

// ServiceTokenSource exchanges an RS256 client assertion for an access
// token at the platform's identity server.
type ServiceTokenSource struct {
	client         *resty.Client
	tokenURL       string
	serviceAccount string
	key            *rsa.PrivateKey
	now            func() time.Time
}

// NewServiceTokenSource parses the PEM private key and prepares the client.
// tokenURL is the full identity-server token endpoint.
func NewServiceTokenSource(tokenURL, serviceAccount, privateKeyPEM string) (*ServiceTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	return &ServiceTokenSource{
		client:         resty.New().SetTimeout(20 * time.Second),
		tokenURL:       tokenURL,
		serviceAccount: serviceAccount,
		key:            key,
		now:            time.Now,
	}, nil
}

// Token signs a fresh assertion and posts the client-credentials grant.
func (s *ServiceTokenSource) Token(ctx context.Context) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.serviceAccount,
		"sub": s.serviceAccount,
		"aud": s.tokenURL,
		"exp": now.Add(assertionTTL).Unix(),
		"jti": uuid.NewString(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign assertion: %w", err)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"scope":                 "api",
			"grant_type":            "client_credentials",
			"client_assertion_type": "urn:ietf:params:oauth:client-assertion-type:jwt-bearer",
			"client_assertion":      assertion,
		}).
		Post(s.tokenURL)
	if err != nil {
		return "", fmt.Errorf("auth: token request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("auth: token endpoint returned %d: %s", resp.StatusCode(), resp.String())
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("auth: decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("auth: token response missing access_token")
	}
	return out.AccessToken, nil
}
