package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/scoopshop-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "scoopshop",
		SessionTTLMinutes: 60,
	}
}

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, minted, err := MintSessionToken(cfg, now, "  session-1 ")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	if minted.SessionID != "session-1" {
		t.Fatalf("expected trimmed session id, got %q", minted.SessionID)
	}

	claims, err := ParseSessionToken(cfg, token)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if claims.SessionID != "session-1" {
		t.Fatalf("expected sid session-1, got %q", claims.SessionID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected future expiry")
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		t.Fatalf("expected uuid jti, got %q", claims.ID)
	}
}

func TestMintSessionTokenGeneratesSessionID(t *testing.T) {
	_, claims, err := MintSessionToken(testJWTConfig(), time.Now(), "")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		t.Fatalf("expected generated uuid session id, got %q", claims.SessionID)
	}
}

func TestMintSessionTokenValidatesConfig(t *testing.T) {
	cases := map[string]config.JWTConfig{
		"missing secret": {Issuer: "scoopshop", SessionTTLMinutes: 5},
		"missing issuer": {Secret: "secret", SessionTTLMinutes: 5},
		"zero ttl":       {Secret: "secret", Issuer: "scoopshop"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := MintSessionToken(cfg, time.Now(), "s"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseSessionTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := MintSessionToken(cfg, time.Now().Add(-2*time.Hour), "s")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	if _, err := ParseSessionToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseSessionTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := MintSessionToken(cfg, time.Now(), "s")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}

	other := cfg
	other.Secret = "other"
	if _, err := ParseSessionToken(other, token); err == nil {
		t.Fatal("expected signature mismatch")
	}

	other = cfg
	other.Issuer = "elsewhere"
	if _, err := ParseSessionToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch")
	}

	if _, err := ParseSessionToken(cfg, strings.Repeat("x", 10)); err == nil {
		t.Fatal("expected malformed token to fail")
	}
}

func TestParseSessionTokenRequiresSessionID(t *testing.T) {
	cfg := testJWTConfig()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSessionToken(cfg, token); err == nil {
		t.Fatal("expected missing sid to be rejected")
	}
}
