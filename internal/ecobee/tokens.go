package ecobee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// refreshTokenLifetime is how long a newly issued refresh token remains valid.
const refreshTokenLifetime = 365 * 24 * time.Hour

// ErrReauthorize indicates the refresh token has expired. New credentials must be obtained out of band.
var ErrReauthorize = errors.New("refresh token expired: application must be reauthorized")

// Credentials is the layout of the credentials file.
type Credentials struct {
	ApplicationKey        string    `json:"application_key"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresOn  time.Time `json:"access_token_expires_on"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresOn time.Time `json:"refresh_token_expires_on"`
}

func (c Credentials) validate() error {
	var missing []string
	for field, value := range map[string]string{
		"application_key": c.ApplicationKey,
		"access_token":    c.AccessToken,
		"refresh_token":   c.RefreshToken,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %v", missing)
	}
	return nil
}

// Tokens holds the credentials used to access the thermostat API. It is safe for concurrent use.
//
// Refreshing is serialized: concurrent callers share a single refresh, and a caller presenting a token that has
// already been replaced receives the current token without refreshing again. Refreshed credentials are written
// back to the credentials file.
type Tokens struct {
	path           string
	tokenURL       string
	applicationKey string
	httpClient     *http.Client
	logger         *slog.Logger
	group          singleflight.Group
	lock           sync.RWMutex
	token          *oauth2.Token
	refreshExpiry  time.Time
}

// LoadTokens reads the credentials file. Tokens are refreshed against baseURL.
func LoadTokens(path string, baseURL string, httpClient *http.Client, logger *slog.Logger) (*Tokens, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	var creds Credentials
	if err = json.Unmarshal(body, &creds); err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if err = creds.validate(); err != nil {
		return nil, fmt.Errorf("credentials %s: %w", path, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Tokens{
		path:           path,
		tokenURL:       baseURL + "/token",
		applicationKey: creds.ApplicationKey,
		httpClient:     httpClient,
		logger:         logger,
		token: &oauth2.Token{
			AccessToken:  creds.AccessToken,
			TokenType:    "Bearer",
			RefreshToken: creds.RefreshToken,
			Expiry:       creds.AccessTokenExpiresOn,
		},
		refreshExpiry: creds.RefreshTokenExpiresOn,
	}, nil
}

// Token returns the current token.
func (t *Tokens) Token() *oauth2.Token {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.token
}

// Refresh replaces the access token stale. If the current token is no longer stale, it is returned as is.
func (t *Tokens) Refresh(ctx context.Context, stale string) (*oauth2.Token, error) {
	token, err, _ := t.group.Do("refresh", func() (any, error) {
		current := t.Token()
		if current.AccessToken != stale {
			return current, nil
		}
		return t.refresh(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return token.(*oauth2.Token), nil
}

func (t *Tokens) refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	t.lock.RLock()
	refreshExpiry := t.refreshExpiry
	t.lock.RUnlock()
	if !refreshExpiry.IsZero() && time.Now().After(refreshExpiry) {
		return nil, ErrReauthorize
	}

	t.logger.Info("refreshing tokens")
	query := url.Values{
		"grant_type": {"refresh_token"},
		"code":       {current.RefreshToken},
		"client_id":  {t.applicationKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w: %w", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var e tokenError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "invalid_grant" {
			return nil, fmt.Errorf("refresh: %w: %s", ErrReauthorize, e.Description)
		}
		return nil, fmt.Errorf("refresh: %w", &APIError{HTTPStatus: resp.StatusCode, Message: e.Error + ": " + e.Description})
	}

	var response tokenResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("refresh: decode: %w", err)
	}
	now := time.Now()
	token := &oauth2.Token{
		AccessToken:  response.AccessToken,
		TokenType:    response.TokenType,
		RefreshToken: response.RefreshToken,
		Expiry:       now.Add(time.Duration(response.ExpiresIn) * time.Second),
	}

	t.lock.Lock()
	t.token = token
	t.refreshExpiry = now.Add(refreshTokenLifetime)
	t.lock.Unlock()
	t.logger.Info("tokens refreshed", "expiry", token.Expiry)

	if err = t.save(); err != nil {
		t.logger.Warn("failed to save refreshed credentials", "path", t.path, "err", err)
	}
	return token, nil
}

// save writes the credentials to a temporary file and renames it to the credentials file, so a reader never sees
// a partial file.
func (t *Tokens) save() error {
	t.lock.RLock()
	creds := Credentials{
		ApplicationKey:        t.applicationKey,
		AccessToken:           t.token.AccessToken,
		AccessTokenExpiresOn:  t.token.Expiry,
		RefreshToken:          t.token.RefreshToken,
		RefreshTokenExpiresOn: t.refreshExpiry,
	}
	t.lock.RUnlock()

	body, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(t.path), ".credentials-*.json")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err = f.Write(body); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), t.path)
}
