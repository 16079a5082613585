package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectStateClaims is the payload round-tripped through a provider's OAuth
// authorize flow as the `state` parameter. Signing it binds the callback to
// the startup that initiated the connect, so a guessed startup ID is not
// enough to forge a callback.
type ConnectStateClaims struct {
	StartupID uint   `json:"startup_id"`
	Provider  string `json:"provider"`
	Nonce     string `json:"nonce"`
	ExpiresAt int64  `json:"exp"`
}

func GenerateConnectState(startupID uint, provider string, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for state generation")
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	claims := ConnectStateClaims{
		StartupID: startupID,
		Provider:  provider,
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	sig := mac.Sum(nil)
	state := fmt.Sprintf("%s.%s", base64.RawURLEncoding.EncodeToString(payload), base64.RawURLEncoding.EncodeToString(sig))
	return state, nil
}

func VerifyConnectState(state, secret string) (*ConnectStateClaims, error) {
	if secret == "" {
		return nil, errors.New("secret is required for state verification")
	}
	parts := strings.SplitN(state, ".", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid state format")
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errors.New("invalid payload encoding")
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.New("invalid signature encoding")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payloadBytes)
	expected := mac.Sum(nil)
	if !hmac.Equal(sigBytes, expected) {
		return nil, errors.New("invalid state signature")
	}
	var claims ConnectStateClaims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return nil, errors.New("invalid payload")
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, errors.New("state expired")
	}
	return &claims, nil
}
