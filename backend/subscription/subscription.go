// Package subscription implements the OAuth refresh-token backend of
// §4.2 point 4: three vendor families (anthropic-subscription,
// openai-subscription, gemini-subscription) authenticate with a
// cached {access, refresh, expires_at} token triple on disk instead
// of a static API key, refreshing within a 60s expiry window and
// persisting the result atomically. Token handling is new domain
// logic; its load-then-atomically-persist shape and single mutex per
// store are grounded on agent/persistence/file_message_store.go in
// the teacher repo. The actual request/response wire shape for each
// family is delegated to the matching native backend, constructed
// fresh with the current access token before every call.
package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/backend/anthropic"
	"github.com/JustHereToHelp/HydraMCP/backend/gemini"
	"github.com/JustHereToHelp/HydraMCP/backend/openaicompat"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// Family names the subscription vendor a token store refreshes for.
type Family string

const (
	FamilyAnthropic Family = "anthropic-subscription"
	FamilyOpenAI    Family = "openai-subscription"
	FamilyGemini    Family = "gemini-subscription"
)

// refreshWindow is how far ahead of expiry a refresh is triggered.
const refreshWindow = 60 * time.Second

// TokenSet is the on-disk credential cache for one family.
type TokenSet struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresAt int64  `json:"expires_at"` // unix millis
}

func (t TokenSet) expiresSoon(now time.Time) bool {
	return time.UnixMilli(t.ExpiresAt).Before(now.Add(refreshWindow))
}

// TokenStore owns the on-disk credential cache for one family,
// serializing load/refresh/persist behind a single mutex the way the
// teacher's message store serializes access to one JSON file.
type TokenStore struct {
	mu         sync.Mutex
	path       string
	refreshURL string
	clientID   string
	httpClient *http.Client
	cached     *TokenSet
}

func NewTokenStore(path, refreshURL, clientID string) *TokenStore {
	return &TokenStore{
		path:       path,
		refreshURL: refreshURL,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *TokenStore) loadFromDisk() (*TokenSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, types.NewError(types.ErrAuth, "reading cached credentials").WithCause(err)
	}
	var ts TokenSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, types.NewError(types.ErrAuth, "parsing cached credentials").WithCause(err)
	}
	return &ts, nil
}

func (s *TokenStore) persist(ts *TokenSet) error {
	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

func (s *TokenStore) refresh(ctx context.Context, ts *TokenSet) (*TokenSet, error) {
	body, err := json.Marshal(refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: ts.Refresh,
		ClientID:     s.clientID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrAuth, "refreshing token").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrAuth, fmt.Sprintf("token refresh failed with status %d", resp.StatusCode))
	}

	var decoded refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, types.NewError(types.ErrAuth, "decoding refresh response").WithCause(err)
	}

	next := &TokenSet{
		Access:    decoded.AccessToken,
		Refresh:   decoded.RefreshToken,
		ExpiresAt: time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second).UnixMilli(),
	}
	if next.Refresh == "" {
		next.Refresh = ts.Refresh
	}
	return next, nil
}

// AccessToken returns a currently-valid access token, loading the
// cache on first use and refreshing (then atomically rewriting the
// cache) whenever the cached token is within refreshWindow of expiry.
func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		ts, err := s.loadFromDisk()
		if err != nil {
			return "", err
		}
		s.cached = ts
	}

	if s.cached.expiresSoon(time.Now()) {
		refreshed, err := s.refresh(ctx, s.cached)
		if err != nil {
			return "", err
		}
		if err := s.persist(refreshed); err != nil {
			return "", types.NewError(types.ErrAuth, "persisting refreshed credentials").WithCause(err)
		}
		s.cached = refreshed
	}

	return s.cached.Access, nil
}

// Config configures one subscription backend instance.
type Config struct {
	Family         Family
	CredentialsDir string // base dir; the token file is <dir>/<family>.json
	RefreshURL     string
	ClientID       string
	BaseURL        string
	Timeout        time.Duration
	Models         []types.ModelInfo
}

// Backend is the OAuth refresh-token backend. It holds no vendor
// wire-format logic of its own: each call obtains the family's access
// token (cached, refreshed only when near expiry), then builds and delegates to the matching native backend instance
// for that family, reusing its Query/ListModels/HealthCheck exactly.
type Backend struct {
	cfg    Config
	store  *TokenStore
	client *backend.RateLimitedClient
	logger *zap.Logger
}

func New(cfg Config, client *backend.RateLimitedClient, logger *zap.Logger) *Backend {
	path := filepath.Join(cfg.CredentialsDir, string(cfg.Family)+".json")
	return &Backend{
		cfg:    cfg,
		store:  NewTokenStore(path, cfg.RefreshURL, cfg.ClientID),
		client: client,
		logger: logger,
	}
}

func (b *Backend) delegate(token string) backend.Backend {
	switch b.cfg.Family {
	case FamilyAnthropic:
		return anthropic.New(anthropic.Config{
			BaseURL: b.cfg.BaseURL, APIKey: token, Timeout: b.cfg.Timeout, Models: b.cfg.Models,
		}, b.client, b.logger)
	case FamilyGemini:
		return gemini.New(gemini.Config{
			BaseURL: b.cfg.BaseURL, APIKey: token, Timeout: b.cfg.Timeout, Models: b.cfg.Models,
		}, b.client, b.logger)
	default:
		return openaicompat.New(openaicompat.Config{
			BaseURL: b.cfg.BaseURL, APIKey: token, Timeout: b.cfg.Timeout, Dialect: openaicompat.DialectOpenAI, Models: b.cfg.Models,
		}, b.client, b.logger)
	}
}

func (b *Backend) HealthCheck(ctx context.Context) bool {
	token, err := b.store.AccessToken(ctx)
	if err != nil {
		if b.logger != nil {
			b.logger.Debug("subscription backend health check failed to obtain token",
				zap.String("family", string(b.cfg.Family)), zap.Error(err))
		}
		return false
	}
	return b.delegate(token).HealthCheck(ctx)
}

func (b *Backend) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if len(b.cfg.Models) > 0 {
		return b.cfg.Models, nil
	}
	token, err := b.store.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return b.delegate(token).ListModels(ctx)
}

func (b *Backend) Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error) {
	token, err := b.store.AccessToken(ctx)
	if err != nil {
		return types.QueryResponse{}, err
	}
	return b.delegate(token).Query(ctx, model, prompt, opts)
}
