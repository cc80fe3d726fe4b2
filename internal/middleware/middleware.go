package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guestbook/internal/models"
	"guestbook/internal/repos"
)

type contextKey string

const userKey contextKey = "user"

const SessionCookieName = "session_id"

// ErrNoSession means the request carries no valid session
var ErrNoSession = errors.New("no session")

// SessionManager binds users to requests through a signed session cookie.
// The cookie is an HS256 JWT whose ID claim names a row in the sessions table.
type SessionManager struct {
	store  repos.Store
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewSessionManager(store repos.Store, secret string, maxAge time.Duration) *SessionManager {
	return &SessionManager{
		store:  store,
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (m *SessionManager) sign(sessionID string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	return token.SignedString(m.secret)
}

// parse verifies the cookie signature and returns the session ID
func (m *SessionManager) parse(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ID == "" {
		return "", ErrNoSession
	}
	return claims.ID, nil
}

// Login replaces every session of the user with a new one and sets the cookie
func (m *SessionManager) Login(ctx context.Context, w http.ResponseWriter, user *models.User) error {
	now := m.now()
	expiresAt := now.Add(m.maxAge)
	sessionID := uuid.NewString()

	value, err := m.sign(sessionID, expiresAt)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	var removed int64
	err = m.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		var err error
		if removed, err = r.Sessions.DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete old sessions: %w", err)
		}
		if err := r.Sessions.Create(ctx, sessionID, user.ID, expiresAt, now); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Expires:  expiresAt,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	zerolog.Ctx(ctx).Info().Int("user_id", user.ID).Int64("replaced_sessions", removed).Msg("User logged in")
	return nil
}

// Logout deletes the current session, if any, and always expires the cookie
func (m *SessionManager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if cookie, cerr := r.Cookie(SessionCookieName); cerr == nil {
		if sessionID, perr := m.parse(cookie.Value); perr == nil {
			err = m.store.Repos().Sessions.Delete(ctx, sessionID)
		}
	}

	// cleared even if the delete failed so the browser is logged out
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})

	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser resolves the user behind the session cookie.
// Returns ErrNoSession when the request is anonymous; expired sessions are deleted.
func (m *SessionManager) CurrentUser(r *http.Request) (*models.User, error) {
	if u := UserFromContext(r.Context()); u != nil {
		return u, nil
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, ErrNoSession
	}

	ctx := r.Context()
	sessionID, err := m.parse(cookie.Value)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Rejected session cookie")
		return nil, ErrNoSession
	}

	rp := m.store.Repos()
	session, err := rp.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !m.now().Before(session.ExpiresAt) {
		if err := rp.Sessions.Delete(ctx, sessionID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to delete expired session")
		}
		return nil, ErrNoSession
	}

	user, err := rp.Users.GetByID(ctx, session.UserID)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("get session user: %w", err)
	}
	return user, nil
}

// CleanupExpired removes every expired session
func (m *SessionManager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.Repos().Sessions.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zerolog.Ctx(ctx).Info().Int64("count", n).Msg("Cleaned up expired sessions")
	}
	return n, nil
}

// WithUser stores the authenticated user in the context
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user placed by Authenticate or RequireAuth, or nil
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// Authenticate resolves the user when there is one; anonymous requests pass through
func (m *SessionManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.CurrentUser(r)
		if err != nil && !errors.Is(err, ErrNoSession) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Session lookup failed")
		}
		if user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects anonymous requests to the login page
func (m *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.CurrentUser(r)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("Session lookup failed")
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAuthJSON answers anonymous API requests with 401
func (m *SessionManager) RequireAuthJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.CurrentUser(r)
		switch {
		case errors.Is(err, ErrNoSession):
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		case err != nil:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Session lookup failed")
			if r.Context().Err() != nil {
				writeJSONError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
