// Package auth provides first-party JWT issuance and OAuth identity
// verification (Apple identity tokens, Google access tokens).
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"curbside/internal/model"
)

// TokenService signs and verifies HS256 access/refresh token pairs.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

type tokenClaims struct {
	Sub  string `json:"sub"`
	Exp  int64  `json:"exp"`
	Iat  int64  `json:"iat"`
	Type string `json:"type"` // access or refresh
}

// IssuePair creates an access/refresh pair for a user. ExpiresAt is the
// access token expiry in Unix milliseconds, as clients expect.
func (t *TokenService) IssuePair(userID string) model.TokenPair {
	now := time.Now().UTC()
	return model.TokenPair{
		AccessToken:  t.sign(tokenClaims{Sub: userID, Exp: now.Add(t.accessTTL).Unix(), Iat: now.Unix(), Type: "access"}),
		RefreshToken: t.sign(tokenClaims{Sub: userID, Exp: now.Add(t.refreshTTL).Unix(), Iat: now.Unix(), Type: "refresh"}),
		ExpiresAt:    now.Add(t.accessTTL).UnixMilli(),
	}
}

// VerifyAccess returns the subject of a valid access token.
func (t *TokenService) VerifyAccess(token string) (string, error) { return t.verify(token, "access") }

// VerifyRefresh returns the subject of a valid refresh token.
func (t *TokenService) VerifyRefresh(token string) (string, error) { return t.verify(token, "refresh") }

func (t *TokenService) sign(claims tokenClaims) string {
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	signing := b64url(header) + "." + b64url(payload)
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(signing))
	return signing + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (t *TokenService) verify(token, typ string) (string, error) {
	segs := splitJWT(token)
	if segs == nil {
		return "", errors.New("invalid token format")
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return "", errors.New("bad signature")
	}
	payload, err := base64.RawURLEncoding.DecodeString(segs[1])
	if err != nil {
		return "", err
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	if claims.Type != typ {
		return "", errors.New("wrong token type")
	}
	if claims.Exp <= time.Now().Unix() {
		return "", errors.New("token expired")
	}
	if claims.Sub == "" {
		return "", errors.New("missing subject")
	}
	return claims.Sub, nil
}

func b64url(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func splitJWT(token string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			segs = append(segs, token[start:i])
			start = i + 1
		}
	}
	segs = append(segs, token[start:])
	if len(segs) != 3 {
		return nil
	}
	return segs
}
