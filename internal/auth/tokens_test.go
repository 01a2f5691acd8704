package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerifyPair(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour, 24*time.Hour)
	pair := ts.IssuePair("user-1")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty tokens")
	}
	if pair.ExpiresAt <= time.Now().UnixMilli() {
		t.Fatalf("expiresAt = %d, should be in the future (millis)", pair.ExpiresAt)
	}
	uid, err := ts.VerifyAccess(pair.AccessToken)
	if err != nil || uid != "user-1" {
		t.Fatalf("VerifyAccess: uid=%q err=%v", uid, err)
	}
	uid, err = ts.VerifyRefresh(pair.RefreshToken)
	if err != nil || uid != "user-1" {
		t.Fatalf("VerifyRefresh: uid=%q err=%v", uid, err)
	}
}

func TestVerifyRejectsWrongType(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour, 24*time.Hour)
	pair := ts.IssuePair("user-1")
	if _, err := ts.VerifyAccess(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := ts.VerifyRefresh(pair.AccessToken); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour, 24*time.Hour)
	tok := ts.IssuePair("user-1").AccessToken
	segs := strings.Split(tok, ".")
	tampered := segs[0] + "." + segs[1] + "x." + segs[2]
	if _, err := ts.VerifyAccess(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
	other := NewTokenService("other-secret", time.Hour, 24*time.Hour)
	if _, err := other.VerifyAccess(tok); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
	if _, err := ts.VerifyAccess("not-a-jwt"); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	ts := &TokenService{secret: []byte("test-secret"), accessTTL: -time.Minute, refreshTTL: -time.Minute}
	tok := ts.IssuePair("user-1").AccessToken
	if _, err := ts.VerifyAccess(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestGoogleVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-123","email":"a@b.com","email_verified":true,"name":"Ada","picture":"https://p/x.png"}`))
	}))
	defer srv.Close()

	v := NewGoogleVerifier()
	v.UserInfoURL = srv.URL

	id, err := v.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "g-123" || id.Email != "a@b.com" || id.Name != "Ada" {
		t.Fatalf("identity = %+v", id)
	}
	if _, err := v.Verify(context.Background(), "bad-token"); err == nil {
		t.Fatal("invalid token accepted")
	}
}
