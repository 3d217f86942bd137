package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v66/github"
	"github.com/patrickmn/go-cache"
)

// TokenSource yields the bearer credential used for tracker calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a personal access token supplied out of band.
type StaticToken string

// Token returns the token verbatim.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty GitHub token")
	}
	return string(s), nil
}

// AppAuth holds GitHub App authentication configuration
type AppAuth struct {
	AppID      string
	PrivateKey string
	Repo       string // owner/repo the installation token is scoped to

	// APIBase overrides go-github's default API endpoint (tests).
	APIBase    string
	HTTPClient *http.Client

	tokens *cache.Cache
}

// InstallationToken represents a GitHub App installation access token
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// NewAppAuth returns an AppAuth that caches installation tokens until shortly before expiry.
func NewAppAuth(appID, privateKey, repo string) *AppAuth {
	return &AppAuth{
		AppID:      appID,
		PrivateKey: privateKey,
		Repo:       repo,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// Token returns a cached installation token for a.Repo, minting a new one when needed.
func (a *AppAuth) Token(ctx context.Context) (string, error) {
	if a.tokens != nil {
		if cached, ok := a.tokens.Get(a.Repo); ok {
			return cached.(string), nil
		}
	}

	tok, err := a.GetInstallationToken(ctx, a.Repo)
	if err != nil {
		return "", err
	}

	if a.tokens != nil {
		// Refresh a minute early so in-flight requests never carry an expired token.
		ttl := time.Until(tok.ExpiresAt) - time.Minute
		if ttl > 0 {
			a.tokens.Set(a.Repo, tok.Token, ttl)
		}
	}
	return tok.Token, nil
}

// GenerateJWT creates a JWT token for GitHub App authentication
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	// Backdate iat to tolerate clock drift between us and GitHub.
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// GetInstallationToken gets an installation access token for a repository
func (a *AppAuth) GetInstallationToken(ctx context.Context, repo string) (*InstallationToken, error) {
	owner, repoName, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}

	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return nil, err
	}
	client, err := a.appClient(jwtToken)
	if err != nil {
		return nil, err
	}

	installation, _, err := client.Apps.FindRepositoryInstallation(ctx, owner, repoName)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}

	tok, _, err := client.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	return &InstallationToken{
		Token:     tok.GetToken(),
		ExpiresAt: tok.GetExpiresAt().Time,
	}, nil
}

// appClient returns a go-github client that authenticates as the App itself.
func (a *AppAuth) appClient(jwtToken string) (*gh.Client, error) {
	base := a.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 10 * time.Second}
	}
	httpClient := &http.Client{
		Timeout:   base.Timeout,
		Transport: &bearerTransport{source: StaticToken(jwtToken), base: base.Transport},
	}

	client := gh.NewClient(httpClient)
	if a.APIBase != "" {
		u, err := url.Parse(strings.TrimRight(a.APIBase, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API base %q: %w", a.APIBase, err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// ParseRepo splits "owner/repo".
func ParseRepo(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format: %s (expected owner/repo)", repo)
	}
	return parts[0], parts[1], nil
}
