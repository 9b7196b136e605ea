package core

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const sessionName = "rim_session"
const sessionMaxAge = 18000 // 5h

// session value keys
const (
	sessionTokenKey = "token"
	csrfTokenKey    = "csrf_token"
)

// principalContextKey is where AuthorizeMiddleware stashes the resolved principal.
const principalContextKey = "principal"

// SessionMiddleware ensures a session cookie exists and applies consistent options.
func SessionMiddleware(cfg Config, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			// A cookie that fails to decode (tampering, SESSION_KEY rotation)
			// means no session, not a server fault; store.Get hands back a
			// fresh session alongside the error, so continue as anonymous.
			if session == nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
				c.Abort()
				return
			}
		}

		applySessionOptions(cfg, session)
		// Save to ensure options are persisted even for anonymous users.
		if err := session.Save(c.Request, c.Writer); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to persist session")
			c.Abort()
			return
		}

		c.Set("session", session)
		c.Next()
	}
}

// AuthorizeMiddleware resolves the current principal from the session registry
// and evaluates the policy for the request path. Anonymous denials get 401,
// authenticated-but-insufficient denials get 403. A registry fault is a server
// error, never an authentication failure.
func AuthorizeMiddleware(policy *Policy, registry SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionAny, _ := c.Get("session")
		sess, _ := sessionAny.(*sessions.Session)

		var principal *Principal
		if sess != nil {
			if token, _ := sess.Values[sessionTokenKey].(string); token != "" {
				p, err := registry.Resolve(c.Request.Context(), token)
				switch {
				case err == nil:
					principal = p
					_ = registry.Touch(c.Request.Context(), token)
				case errors.Is(err, ErrSessionInvalid):
					// stale or logged-out token: treat as anonymous
				default:
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session registry unavailable")
					c.Abort()
					return
				}
			}
		}

		if policy.Authorize(c.Request.URL.Path, principal) == Deny {
			if principal == nil {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			} else {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "insufficient privileges")
			}
			c.Abort()
			return
		}

		if principal != nil {
			c.Set(principalContextKey, principal)
		}
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated principal for this request, or
// nil for anonymous callers on public paths.
func CurrentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// OriginRefererMiddleware validates Origin/Referer against allowed list and sets CORS headers.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		origin = strings.ToLower(origin)
		_, ok := allowed[origin]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		// Preflight handling
		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}

// CSRFMiddleware issues and validates a per-session CSRF token.
func CSRFMiddleware(cfg Config, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionAny, ok := c.Get("session")
		var session *sessions.Session
		var err error
		if ok {
			session, _ = sessionAny.(*sessions.Session)
		}
		if session == nil {
			session, err = store.Get(c.Request, sessionName)
			if err != nil && session == nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
				c.Abort()
				return
			}
		}

		token, _ := session.Values[csrfTokenKey].(string)
		if token == "" {
			token, err = generateCSRFToken()
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue csrf token")
				c.Abort()
				return
			}
			session.Values[csrfTokenKey] = token
			applySessionOptions(cfg, session)
			if err := session.Save(c.Request, c.Writer); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to persist session")
				c.Abort()
				return
			}
		}

		if !isSafeMethod(c.Request.Method) && !csrfExemptPath(c.Request.URL.Path) {
			header := c.GetHeader("X-CSRF-Token")
			if header == "" || header != token {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "invalid csrf token")
				c.Abort()
				return
			}
		}

		// Expose token so frontend can read and reuse.
		c.Writer.Header().Set("X-CSRF-Token", token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// Paths that intentionally skip CSRF validation (e.g., login).
func csrfExemptPath(path string) bool {
	switch path {
	case "/api/auth/login":
		return true
	default:
		return false
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	maxAge := cfg.SessionTTLSeconds
	if maxAge <= 0 {
		maxAge = sessionMaxAge
	}
	session.Options.Path = "/"
	session.Options.MaxAge = maxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
