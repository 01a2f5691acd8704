package auth

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	appleKeysURL = "https://appleid.apple.com/auth/keys"
	appleIssuer  = "https://appleid.apple.com"
)

// Identity is the verified subject returned by an OAuth provider.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// AppleVerifier validates Apple identity tokens (RS256) against Apple's
// published JWKS, with a cached key fetch.
type AppleVerifier struct {
	BundleID string
	KeysURL  string

	http      *http.Client
	mu        sync.RWMutex
	jwks      jwks
	lastFetch time.Time
	cacheTTL  time.Duration
}

type jwks struct {
	Keys []jwk `json:"keys"`
}
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

func NewAppleVerifier(bundleID string) *AppleVerifier {
	return &AppleVerifier{
		BundleID: bundleID,
		KeysURL:  appleKeysURL,
		http:     &http.Client{Timeout: 5 * time.Second},
		cacheTTL: 10 * time.Minute,
	}
}

// Verify checks an identity token's signature, issuer, audience, expiry
// and (when supplied) nonce, returning the Apple subject and email.
func (v *AppleVerifier) Verify(idToken, nonce string) (Identity, error) {
	segs := splitJWT(idToken)
	if segs == nil {
		return Identity{}, errors.New("invalid identity token")
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(segs[0])
	if err != nil {
		return Identity{}, err
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(segs[1])
	if err != nil {
		return Identity{}, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Identity{}, err
	}
	var hdr struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Identity{}, err
	}
	if hdr.Alg != "RS256" {
		return Identity{}, errors.New("unsupported alg for apple token")
	}
	pub, err := v.getRSAPublicKey(hdr.Kid)
	if err != nil {
		return Identity{}, err
	}
	h := sha256.Sum256([]byte(segs[0] + "." + segs[1]))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
		return Identity{}, errors.New("bad signature")
	}

	var claims struct {
		Iss           string `json:"iss"`
		Aud           string `json:"aud"`
		Sub           string `json:"sub"`
		Exp           int64  `json:"exp"`
		Email         string `json:"email"`
		EmailVerified any    `json:"email_verified"` // Apple sends bool or "true"
		Nonce         string `json:"nonce"`
	}
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Identity{}, err
	}
	if claims.Iss != appleIssuer {
		return Identity{}, errors.New("unexpected issuer")
	}
	if v.BundleID != "" && claims.Aud != v.BundleID {
		return Identity{}, errors.New("audience mismatch")
	}
	if claims.Exp <= time.Now().Unix() {
		return Identity{}, errors.New("token expired")
	}
	if nonce != "" && claims.Nonce != nonce {
		return Identity{}, errors.New("nonce mismatch")
	}
	if claims.Sub == "" {
		return Identity{}, errors.New("missing subject")
	}
	return Identity{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: truthy(claims.EmailVerified),
	}, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

func (v *AppleVerifier) getRSAPublicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.jwks
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.fetchJWKS(); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.jwks
		v.mu.RUnlock()
	}
	for _, k := range cached.Keys {
		if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
			nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
			if err != nil {
				return nil, err
			}
			eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
			if err != nil {
				return nil, err
			}
			// exponent is big-endian, typically 0x010001
			e := 0
			for _, b := range eBytes {
				e = (e << 8) | int(b)
			}
			return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
		}
	}
	return nil, errors.New("kid not found in JWKS")
}

func (v *AppleVerifier) fetchJWKS() error {
	req, _ := http.NewRequest(http.MethodGet, v.KeysURL, nil)
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	var j jwks
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return err
	}
	v.mu.Lock()
	v.jwks = j
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
