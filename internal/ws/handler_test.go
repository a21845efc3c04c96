package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"club-chat-service/internal/auth"
	"club-chat-service/internal/config"
)

type verifierStub struct {
	userID int64
	err    error
}

func (v verifierStub) Verify(string) (int64, error) {
	return v.userID, v.err
}

func identifyWith(t *testing.T, verifier verifierStub, header, query string) int64 {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(NewHub(zerolog.Nop()), verifier, config.WSConfig{}, nil, zerolog.Nop())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	target := "/ws/chat"
	if query != "" {
		target += "?token=" + query
	}
	c.Request = httptest.NewRequest("GET", target, nil)
	if header != "" {
		c.Request.Header.Set("Authorization", header)
	}
	return h.identify(c)
}

func TestIdentifyBearerHeader(t *testing.T) {
	got := identifyWith(t, verifierStub{userID: 7}, "Bearer token", "")
	if got != 7 {
		t.Fatalf("expected user 7, got %d", got)
	}
}

func TestIdentifyQueryToken(t *testing.T) {
	got := identifyWith(t, verifierStub{userID: 3}, "", "token")
	if got != 3 {
		t.Fatalf("expected user 3, got %d", got)
	}
}

func TestIdentifyMissingCredentialIsAnonymous(t *testing.T) {
	if got := identifyWith(t, verifierStub{userID: 7}, "", ""); got != 0 {
		t.Fatalf("expected anonymous, got %d", got)
	}
}

func TestIdentifyBadCredentialDegrades(t *testing.T) {
	if got := identifyWith(t, verifierStub{err: auth.ErrInvalidToken}, "Bearer bad", ""); got != 0 {
		t.Fatalf("expected anonymous on rejected credential, got %d", got)
	}
}

func TestIdentifyMalformedHeaderIsAnonymous(t *testing.T) {
	if got := identifyWith(t, verifierStub{userID: 7}, "Token abc", ""); got != 0 {
		t.Fatalf("expected anonymous on malformed scheme, got %d", got)
	}
}
