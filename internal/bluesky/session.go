package bluesky

import (
	"context"
	"crypto/md5" //nolint:gosec // Cache key only
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	cacheKeyPrefix = "bluesky_credentials_"
	CacheTTL       = 600 * time.Second
)

type Credentials struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	DID        string `json:"did"`
}

func (c Credentials) Valid() bool {
	return c.AccessJwt != "" && c.DID != ""
}

type State int

const (
	StateUnauthenticated State = iota
	StateCachedValid
	StateCachedStale
)

func (s State) String() string {
	switch s {
	case StateCachedValid:
		return "cached-valid"
	case StateCachedStale:
		return "cached-stale"
	default:
		return "unauthenticated"
	}
}

type Session struct {
	Credentials

	State      State
	ObtainedAt time.Time
	// AccessExpiresAt is the unverified exp claim of the access token, zero
	// when the token carries none.
	AccessExpiresAt time.Time
}

// AccessExpired reports whether the access token is known to be expired at
// now. It never stops a publish attempt; the server has the final word.
func (s *Session) AccessExpired(now time.Time) bool {
	return !s.AccessExpiresAt.IsZero() && !now.Before(s.AccessExpiresAt)
}

// CredentialCache stores serialized credentials between runs. A miss is
// reported as ok == false with a nil error.
type CredentialCache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type sessionAPI interface {
	Host() string
	CreateSession(ctx context.Context, identifier string, password string) (Credentials, error)
	RefreshSession(ctx context.Context, refreshJwt string) (Credentials, error)
}

type SessionManager struct {
	api      sessionAPI
	cache    CredentialCache
	handle   string
	password string
	now      func() time.Time
	log      *slog.Logger
}

// NewSessionManager accepts a nil cache, in which case every run logs in.
func NewSessionManager(
	api *Client,
	cache CredentialCache,
	handle string,
	password string,
	log *slog.Logger,
) *SessionManager {
	return newSessionManager(api, cache, handle, password, log)
}

func newSessionManager(
	api sessionAPI,
	cache CredentialCache,
	handle string,
	password string,
	log *slog.Logger,
) *SessionManager {
	return &SessionManager{
		api:      api,
		cache:    cache,
		handle:   handle,
		password: password,
		now:      time.Now,
		log:      log,
	}
}

// Session returns usable credentials. Cached credentials are always
// refreshed once; when the refresh fails they are returned as they are.
func (m *SessionManager) Session(ctx context.Context) (*Session, error) {
	if cached, ok := m.cached(ctx); ok {
		session := &Session{
			Credentials:     cached,
			State:           StateCachedStale,
			ObtainedAt:      m.now(),
			AccessExpiresAt: tokenExpiry(cached.AccessJwt),
		}

		return m.Refresh(ctx, session), nil
	}

	creds, err := m.api.CreateSession(ctx, m.handle, m.password)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.store(ctx, creds)

	m.log.InfoContext(ctx, "Session is created",
		"did", creds.DID,
		"accessExpiresAt", formatExpiry(tokenExpiry(creds.AccessJwt)))

	return &Session{
		Credentials:     creds,
		State:           StateCachedValid,
		ObtainedAt:      m.now(),
		AccessExpiresAt: tokenExpiry(creds.AccessJwt),
	}, nil
}

// Refresh exchanges the refresh token for new credentials. On failure the
// given session is returned unchanged and the cache is left alone.
func (m *SessionManager) Refresh(ctx context.Context, session *Session) *Session {
	creds, err := m.api.RefreshSession(ctx, session.RefreshJwt)
	if err != nil {
		m.log.WarnContext(ctx, "Failed to refresh session, using cached credentials",
			"error", err,
			"did", session.DID,
			"accessExpiresAt", formatExpiry(session.AccessExpiresAt))

		if session.AccessExpired(m.now()) {
			m.log.WarnContext(ctx, "Cached access token is expired, publishing will likely fail",
				"did", session.DID,
				"accessExpiresAt", formatExpiry(session.AccessExpiresAt))
		}

		return session
	}

	m.store(ctx, creds)

	m.log.InfoContext(ctx, "Session is refreshed",
		"did", creds.DID,
		"accessExpiresAt", formatExpiry(tokenExpiry(creds.AccessJwt)))

	return &Session{
		Credentials:     creds,
		State:           StateCachedValid,
		ObtainedAt:      m.now(),
		AccessExpiresAt: tokenExpiry(creds.AccessJwt),
	}
}

func (m *SessionManager) cached(ctx context.Context) (Credentials, bool) {
	if m.cache == nil {
		return Credentials{}, false
	}

	raw, ok, err := m.cache.Get(ctx, m.cacheKey())
	if err != nil {
		m.log.WarnContext(ctx, "Failed to read cached credentials",
			"error", err)

		return Credentials{}, false
	}

	if !ok {
		return Credentials{}, false
	}

	var creds Credentials
	if err = json.Unmarshal(raw, &creds); err != nil || !creds.Valid() {
		m.log.WarnContext(ctx, "Failed to decode cached credentials",
			"error", errors.Join(err, errInvalidCredentials(creds)))

		return Credentials{}, false
	}

	return creds, true
}

func (m *SessionManager) store(ctx context.Context, creds Credentials) {
	if m.cache == nil {
		return
	}

	raw, err := json.Marshal(creds)
	if err != nil {
		m.log.ErrorContext(ctx, "Failed to encode credentials",
			"error", err)

		return
	}

	if err = m.cache.Set(ctx, m.cacheKey(), raw, CacheTTL); err != nil {
		m.log.WarnContext(ctx, "Failed to cache credentials",
			"error", err)
	}
}

func (m *SessionManager) cacheKey() string {
	return CacheKey(m.api.Host(), m.handle, m.password)
}

// CacheKey is stable across processes sharing the same account.
func CacheKey(host, handle, password string) string {
	sum := md5.Sum([]byte(handle + host + password)) //nolint:gosec // Not a password hash, key derivation only

	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func errInvalidCredentials(c Credentials) error {
	if c.Valid() {
		return nil
	}

	return errors.New("missing access token or did")
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.UTC()
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}
