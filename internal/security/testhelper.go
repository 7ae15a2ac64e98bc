package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"time"
)

// Fixture identity used by NewTestTokenProvider.
const (
	FixtureIssuer   = "ridehail-identity-test"
	FixtureAudience = "ridehail-apps-test"
)

var (
	testKeysOnce sync.Once
	testPrivPEM  string
	testPubPEM   string
	testKeysErr  error
)

// testKeyPEM returns a P-256 key pair generated once per process, PEM-encoded as PKCS#8 and PKIX.
func testKeyPEM() (private, public string, err error) {
	testKeysOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			testKeysErr = err
			return
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			testKeysErr = err
			return
		}
		pubDER, err := x509.MarshalPKIXPublicKey(key.Public())
		if err != nil {
			testKeysErr = err
			return
		}
		testPrivPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
		testPubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	})
	return testPrivPEM, testPubPEM, testKeysErr
}

// NewTestTokenProvider returns an ES256 TokenProvider for FixtureIssuer and FixtureAudience with a
// 15m access and 24h refresh lifetime. The key lives only in this process; tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	priv, pub, err := testKeyPEM()
	if err != nil {
		return nil, err
	}
	signer, err := ParsePrivateKey(priv)
	if err != nil {
		return nil, err
	}
	verify, err := ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, verify, FixtureIssuer, FixtureAudience, 15*time.Minute, 24*time.Hour), nil
}
