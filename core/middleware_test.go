package core

import (
	"net/http"
	"testing"

	"github.com/gorilla/sessions"
)

func TestApplySessionOptionsFollowsConfiguredTTL(t *testing.T) {
	cfg := Config{SessionTTLSeconds: 60, CookieSecure: true, CookieSameSite: "Lax"}
	sess := &sessions.Session{}
	applySessionOptions(cfg, sess)

	if sess.Options.MaxAge != 60 {
		t.Fatalf("MaxAge = %d, want 60", sess.Options.MaxAge)
	}
	if sess.Options.Path != "/" || !sess.Options.HttpOnly || !sess.Options.Secure {
		t.Fatalf("options = %+v", sess.Options)
	}
	if sess.Options.SameSite != http.SameSiteLaxMode {
		t.Fatalf("SameSite = %v", sess.Options.SameSite)
	}
}

func TestApplySessionOptionsDefaultTTL(t *testing.T) {
	sess := &sessions.Session{}
	applySessionOptions(Config{}, sess)
	if sess.Options.MaxAge != sessionMaxAge {
		t.Fatalf("MaxAge = %d, want %d", sess.Options.MaxAge, sessionMaxAge)
	}
}
