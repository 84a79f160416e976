package firestore

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	datastoreScope = "https://www.googleapis.com/auth/datastore"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionTTL is the validity window of the signed assertion itself,
	// not of the access token the endpoint returns for it.
	assertionTTL = time.Hour

	// tokenSafetyMargin is subtracted from the reported token lifetime so
	// a cached token is replaced before it can expire mid-request.
	tokenSafetyMargin = 60 * time.Second
)

// ServiceAccount holds the fields of a Google service-account key file
// that the token source needs. The private key is an RSA key in PEM form.
type ServiceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// LoadServiceAccount reads and parses a service-account key file.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return ParseServiceAccount(data)
}

// ParseServiceAccount parses service-account key JSON.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, errors.New("service account missing client_email or private_key")
	}
	return &account, nil
}

// assertionClaims is the payload of the JWT bearer assertion. Audience
// shadows the embedded claim so it marshals as a bare string, which the
// Google token endpoint requires.
type assertionClaims struct {
	Scope    string `json:"scope"`
	Audience string `json:"aud"`
	jwt.RegisteredClaims
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// tokenSource mints and caches bearer tokens for a service account via
// the OAuth2 JWT bearer grant. The cached token is owned by this instance
// and invalidated only by time; concurrent callers finding a stale cache
// may each run their own exchange, and the last writer wins. That wastes
// an exchange now and then but every winner is a valid token.
type tokenSource struct {
	account    *ServiceAccount
	signingKey *rsa.PrivateKey
	tokenURL   string
	httpClient *http.Client

	// exchanges counts completed token exchanges. Optional.
	exchanges otelmetric.Int64Counter

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(account *ServiceAccount, tokenURL string, httpClient *http.Client) (*tokenSource, error) {
	signingKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}

	if tokenURL == "" {
		tokenURL = account.TokenURI
	}
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	return &tokenSource{
		account:    account,
		signingKey: signingKey,
		tokenURL:   tokenURL,
		httpClient: httpClient,
	}, nil
}

// Token returns the cached access token, running a fresh exchange when
// the cache is empty or within the safety margin of expiry.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.token != "" && time.Now().Before(ts.expiresAt) {
		token := ts.token
		ts.mu.Unlock()
		return token, nil
	}
	ts.mu.Unlock()

	token, ttl, err := ts.exchange(ctx)
	if err != nil {
		return "", err
	}

	ts.mu.Lock()
	ts.token = token
	ts.expiresAt = time.Now().Add(ttl - tokenSafetyMargin)
	ts.mu.Unlock()

	return token, nil
}

// exchange signs a fresh assertion and trades it for an access token.
func (ts *tokenSource) exchange(ctx context.Context) (_ string, _ time.Duration, err error) {
	defer func() {
		if ts.exchanges == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		ts.exchanges.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
	}()

	assertion, err := ts.signAssertion(time.Now())
	if err != nil {
		return "", 0, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("token exchange failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token exchange failed: %s: %s", resp.Status, snippet(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("token exchange failed: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("token exchange failed: response missing access_token")
	}

	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}

func (ts *tokenSource) signAssertion(now time.Time) (string, error) {
	claims := assertionClaims{
		Scope:    datastoreScope,
		Audience: ts.tokenURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.account.ClientEmail,
			Subject:   ts.account.ClientEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token assertion: %w", err)
	}
	return signed, nil
}
