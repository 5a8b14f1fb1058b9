package auth

import (
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Fatalf("ExtractToken = %q, %v", token, err)
	}

	if _, err := ExtractToken(""); err == nil {
		t.Error("empty header should fail")
	}
	if _, err := ExtractToken("abc123"); err == nil {
		t.Error("missing scheme should fail")
	}
	if _, err := ExtractToken("Basic abc123"); err == nil {
		t.Error("wrong scheme should fail")
	}
}

func TestGenerateAndVerifyTokens(t *testing.T) {
	a, err := NewLocalJWTAuth("test-secret", 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	access, refresh, err := a.GenerateTokens("user-1", "Steve", "admin")
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}

	user, err := a.VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if user.ID != "user-1" || user.Name != "Steve" || user.Role != "admin" {
		t.Errorf("claims round-trip failed: %+v", user)
	}

	claims, err := a.VerifyRefreshToken(refresh)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if claims.TokenID == "" {
		t.Error("refresh token should carry a token ID")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewLocalJWTAuth("secret-one", 0, 0)
	b, _ := NewLocalJWTAuth("secret-two", 0, 0)

	access, _, err := a.GenerateTokens("user-1", "Steve", "user")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.VerifyAccessToken(access); err == nil {
		t.Error("token signed with a different secret must not verify")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a, _ := NewLocalJWTAuth("test-secret", time.Nanosecond, 0)

	access, _, err := a.GenerateTokens("user-1", "Steve", "user")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := a.VerifyAccessToken(access); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestNewLocalJWTAuthRequiresSecret(t *testing.T) {
	if _, err := NewLocalJWTAuth("", 0, 0); err == nil {
		t.Error("empty secret must be rejected")
	}
}
