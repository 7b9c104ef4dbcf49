package github

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// maxJWTDuration is the longest JWT lifetime GitHub accepts for App
// authentication.
const maxJWTDuration = 10 * time.Minute

// tokenRefreshBuffer triggers a refresh well before the 1-hour installation
// token expiry.
const tokenRefreshBuffer = 5 * time.Minute

// InstallationToken is a GitHub App installation access token.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AppAuth mints short-lived installation tokens for a GitHub App. The MCP
// server is handed one of these instead of a long-lived PAT.
type AppAuth struct {
	mu sync.RWMutex

	appID          string
	installationID int64
	privateKey     *rsa.PrivateKey

	token     string
	expiresAt time.Time

	baseURL    string
	httpClient *http.Client
	nowFunc    func() time.Time
}

// AppAuthOption configures an AppAuth.
type AppAuthOption func(*AppAuth)

// WithBaseURL points the token exchange at a custom API base (for testing).
func WithBaseURL(url string) AppAuthOption {
	return func(a *AppAuth) { a.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used for the token exchange.
func WithHTTPClient(c *http.Client) AppAuthOption {
	return func(a *AppAuth) { a.httpClient = c }
}

// WithNowFunc sets a custom clock (for testing expiry handling).
func WithNowFunc(fn func() time.Time) AppAuthOption {
	return func(a *AppAuth) { a.nowFunc = fn }
}

// NewAppAuth validates the credentials and returns an AppAuth.
// privateKeyPEM must be a PKCS#1 or PKCS#8 RSA key.
func NewAppAuth(appID string, installationID int64, privateKeyPEM []byte, opts ...AppAuthOption) (*AppAuth, error) {
	if appID == "" {
		return nil, fmt.Errorf("app ID cannot be empty")
	}
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}

	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	a := &AppAuth{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		baseURL:        "https://api.github.com",
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		nowFunc:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Token returns a valid installation token, refreshing when the cached one
// is missing or expires within the refresh buffer.
func (a *AppAuth) Token() (string, error) {
	a.mu.RLock()
	if a.validLocked() {
		token := a.token
		a.mu.RUnlock()
		return token, nil
	}
	a.mu.RUnlock()

	return a.Refresh()
}

// Refresh forces a new token regardless of the cached one's validity.
func (a *AppAuth) Refresh() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	signed, err := a.mintJWT(maxJWTDuration)
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT: %w", err)
	}

	installToken, err := a.exchange(signed)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	a.token = installToken.Token
	a.expiresAt = installToken.ExpiresAt
	return a.token, nil
}

// ExpiresAt returns the cached token's expiry; zero when none was fetched.
func (a *AppAuth) ExpiresAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.expiresAt
}

// mintJWT signs an RS256 App JWT. GitHub rejects lifetimes over 10 minutes.
func (a *AppAuth) mintJWT(duration time.Duration) (string, error) {
	if duration <= 0 || duration > maxJWTDuration {
		return "", fmt.Errorf("JWT duration %v outside (0, %v]", duration, maxJWTDuration)
	}

	now := a.nowFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// exchange trades an App JWT for an installation access token.
func (a *AppAuth) exchange(appJWT string) (*InstallationToken, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, a.installationID)

	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var token InstallationToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &token, nil
}

func (a *AppAuth) validLocked() bool {
	if a.token == "" {
		return false
	}
	return a.expiresAt.After(a.nowFunc().Add(tokenRefreshBuffer))
}

// parsePrivateKey parses a PEM-encoded RSA private key in PKCS#1 or PKCS#8
// format.
func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

type apiError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func parseAPIError(statusCode int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("API error (status %d): %s", statusCode, string(body))
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %s (check JWT validity and expiration)", apiErr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("forbidden: %s (check App permissions)", apiErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("not found: %s (check installation ID)", apiErr.Message)
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, apiErr.Message)
	}
}
