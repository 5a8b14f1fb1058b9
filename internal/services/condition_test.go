package services

import (
	"testing"
)

func TestResolveSubstitutesKnownTokens(t *testing.T) {
	p := NewPlaceholderService(true)
	p.Register("user_id", func(userID, _ string) (string, bool) {
		return userID, true
	})

	got := p.Resolve("steve", "hello %user_id%!")
	if got != "hello steve!" {
		t.Errorf("expected 'hello steve!', got %q", got)
	}
}

func TestResolveKeepsUnknownTokensRaw(t *testing.T) {
	p := NewPlaceholderService(true)

	got := p.Resolve("steve", "value is %no_such_token%")
	if got != "value is %no_such_token%" {
		t.Errorf("unknown token should stay raw, got %q", got)
	}
}

func TestResolveLonePercentPassesThrough(t *testing.T) {
	p := NewPlaceholderService(true)

	got := p.Resolve("steve", "100% done")
	if got != "100% done" {
		t.Errorf("lone percent should pass through, got %q", got)
	}
}

func TestResolveDisabledReturnsInput(t *testing.T) {
	p := NewPlaceholderService(false)
	p.Register("user_id", func(userID, _ string) (string, bool) {
		return userID, true
	})

	if p.Available() {
		t.Fatal("disabled service should not be available")
	}
	got := p.Resolve("steve", "%user_id%")
	if got != "%user_id%" {
		t.Errorf("disabled service should not substitute, got %q", got)
	}
}

func TestResolvePrefixProvider(t *testing.T) {
	p := NewPlaceholderService(true)
	p.RegisterPrefix("ctx_", func(_, token string) (string, bool) {
		if token == "ctx_zone" {
			return "spawn", true
		}
		return "", false
	})

	if got := p.Resolve("steve", "%ctx_zone%"); got != "spawn" {
		t.Errorf("expected prefix provider to resolve, got %q", got)
	}
	if got := p.Resolve("steve", "%ctx_other%"); got != "%ctx_other%" {
		t.Errorf("unresolvable prefix token should stay raw, got %q", got)
	}
}

func TestParseConditionBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{" yes ", true},
		{"1", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"%unresolved%", false},
		{"banana", false},
	}
	for _, tt := range tests {
		if got := ParseConditionBool(tt.in); got != tt.want {
			t.Errorf("ParseConditionBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEvaluateBool(t *testing.T) {
	p := NewPlaceholderService(true)
	p.Register("online", func(_, _ string) (string, bool) {
		return "true", true
	})

	if !p.EvaluateBool("steve", "%online%") {
		t.Error("expected the online token to evaluate true")
	}
	if p.EvaluateBool("steve", "%offline%") {
		t.Error("unresolved token should evaluate false")
	}
}

func TestIsPermissionCondition(t *testing.T) {
	if !IsPermissionCondition("%user_has_permission_shop.vip%") {
		t.Error("expected permission condition to be detected")
	}
	if IsPermissionCondition("%user_name%") {
		t.Error("plain placeholder should not be a permission condition")
	}
	if IsPermissionCondition("") {
		t.Error("empty condition should not be a permission condition")
	}
}

func TestBypassPermissionTokens(t *testing.T) {
	got := BypassPermissionTokens("%user_has_permission_shop.vip%")
	if got != "true" {
		t.Errorf("expected bare permission token to become 'true', got %q", got)
	}

	// Only the permission sub-checks are replaced in a compound condition.
	got = BypassPermissionTokens("%user_has_permission_a% and %ctx_flag%")
	if got != "true and %ctx_flag%" {
		t.Errorf("compound condition not bypassed correctly: %q", got)
	}

	got = BypassPermissionTokens("%ctx_flag%")
	if got != "%ctx_flag%" {
		t.Errorf("non-permission condition should be untouched, got %q", got)
	}
}
