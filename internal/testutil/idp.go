package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// TestIdP is an in-process identity platform: it serves OIDC discovery and a JWKS
// document, and signs RS256 tokens with its key.
type TestIdP struct {
	Server *httptest.Server
	Issuer string
	KeyID  string
	Key    *rsa.PrivateKey

	jwks []byte
}

// NewTestIdP starts a discovery + JWKS server. It is closed via t.Cleanup when available.
func NewTestIdP(t TestingTB) *TestIdP {
	t.Helper()

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	idp := &TestIdP{KeyID: "test-key", Key: pk}

	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{Key: &pk.PublicKey, KeyID: idp.KeyID, Algorithm: "RS256", Use: "sig"}}}
	idp.jwks, err = json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                idp.Issuer,
			"jwks_uri":                              idp.JWKSURL(),
			"authorization_endpoint":                idp.Issuer + "/oauth2/auth",
			"token_endpoint":                        idp.Issuer + "/oauth2/token",
			"response_types_supported":              []string{"code"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(idp.jwks)
	})
	idp.Server = httptest.NewServer(mux)
	idp.Issuer = idp.Server.URL
	registerCleanup(t, idp.Server.Close)
	return idp
}

// JWKSURL returns the URL of the key set.
func (i *TestIdP) JWKSURL() string { return i.Issuer + "/keys" }

// Sign returns a compact RS256 token carrying claims, with the IdP key id in the header.
func (i *TestIdP) Sign(t TestingTB, claims jwt.MapClaims) string {
	t.Helper()
	return SignWith(t, i.Key, i.KeyID, claims)
}

// SignWith signs claims with an arbitrary RSA key.
func SignWith(t TestingTB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}
