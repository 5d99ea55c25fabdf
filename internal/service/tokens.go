package service

import (
	"errors"
	"time"

	"github.com/imagiseum/gallery/internal/utils"
)

// DefaultTokenTTL is the validity window of an issued token.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrTokenExpired and ErrTokenInvalid stay internal: the guard folds
	// both into ErrUnauthenticated.
	ErrTokenExpired = utils.ErrTokenExpired
	ErrTokenInvalid = utils.ErrTokenInvalid
)

// Tokens issues and verifies self-contained signed bearer tokens. No
// session state is kept, so a token cannot be revoked before it expires;
// logging out only means the client drops it.
type Tokens struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token service signing with secret. A non-positive
// ttl falls back to DefaultTokenTTL.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source and returns t.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID uint64) (utils.AccessToken, error) {
	if userID == 0 {
		return utils.AccessToken{}, errors.New("issue token: empty user id")
	}
	return utils.NewAccessToken(t.secret, userID, t.ttl, t.now())
}

// Verify returns the user id carried by raw, or ErrTokenExpired /
// ErrTokenInvalid.
func (t *Tokens) Verify(raw string) (uint64, error) {
	return utils.ParseAccessToken(t.secret, raw, t.now())
}
