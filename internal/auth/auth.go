// Package auth ties each browser to an anonymous session id through a signed
// cookie. There are no accounts; the id only selects the session's state.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
)

var (
	// ErrSecretMissing is returned when tokens are issued without a secret.
	ErrSecretMissing = errors.New("session secret missing")
	// ErrInvalidToken is returned for tokens that fail to parse or verify.
	ErrInvalidToken = errors.New("invalid session token")
)

type contextKey string

const sessionContextKey contextKey = "auth/session"

// SessionManager signs and validates lightweight session tokens.
type SessionManager struct {
	Secret       []byte
	Duration     time.Duration
	CookieName   string
	SecureCookie bool
	now          func() time.Time
}

// Claims captures decoded session data.
type Claims struct {
	SessionID string
	ExpiresAt time.Time
}

// Parse validates a token and returns session claims.
func (sm SessionManager) Parse(token string) (Claims, error) {
	payload, encodedSig, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, fmt.Errorf("%w: format", ErrInvalidToken)
	}
	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: decode signature: %v", ErrInvalidToken, err)
	}
	if !hmac.Equal(sm.sign(payload), sig) {
		return Claims{}, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	sessionID, rawExpiry, ok := strings.Cut(payload, "|")
	if !ok || sessionID == "" {
		return Claims{}, fmt.Errorf("%w: payload", ErrInvalidToken)
	}
	expUnix, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: parse expiry: %v", ErrInvalidToken, err)
	}
	return Claims{SessionID: sessionID, ExpiresAt: time.Unix(expUnix, 0)}, nil
}

// Issue builds a signed token for sessionID.
func (sm SessionManager) Issue(sessionID string) (string, time.Time, error) {
	if len(sm.Secret) == 0 {
		return "", time.Time{}, ErrSecretMissing
	}
	expires := sm.clock().Add(sm.sessionDuration())
	payload := fmt.Sprintf("%s|%d", sessionID, expires.Unix())
	token := payload + "." + base64.RawURLEncoding.EncodeToString(sm.sign(payload))
	return token, expires, nil
}

// Middleware makes sure every request carries a session id. Requests without
// a valid, unexpired cookie get a fresh id and a new cookie.
func (sm SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sm.cookieName()); err == nil && cookie.Value != "" {
			claims, err := sm.Parse(cookie.Value)
			if err == nil && claims.ExpiresAt.After(sm.clock()) {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims.SessionID)))
				return
			}
		}

		sessionID := uuid.NewString()
		token, expires, err := sm.Issue(sessionID)
		if err != nil {
			log.WithError(err).Error("issue session cookie")
			http.Error(w, "could not start session", http.StatusInternalServerError)
			return
		}
		cookie := sm.cookie(token, expires)
		http.SetCookie(w, &cookie)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sessionID)))
	})
}

// WithSession stores the session id in context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionContextKey, sessionID)
}

// SessionFromContext extracts the session id from context if present.
func SessionFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionContextKey).(string)
	return sessionID, ok && sessionID != ""
}

func (sm SessionManager) sign(payload string) []byte {
	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func (sm SessionManager) cookie(token string, expires time.Time) http.Cookie {
	return http.Cookie{
		Name:     sm.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(expires.Sub(sm.clock()).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.SecureCookie,
	}
}

func (sm SessionManager) cookieName() string {
	if sm.CookieName != "" {
		return sm.CookieName
	}
	return "physique_session"
}

func (sm SessionManager) sessionDuration() time.Duration {
	if sm.Duration <= 0 {
		return 24 * time.Hour
	}
	return sm.Duration
}

func (sm SessionManager) clock() time.Time {
	if sm.now != nil {
		return sm.now()
	}
	return time.Now()
}
