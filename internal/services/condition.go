package services

import (
	"log"
	"strings"
	"sync"
)

// ConditionEvaluator resolves %...% placeholders against a user's current
// state and evaluates condition strings to booleans. The engine treats it
// as an opaque capability: when it is unavailable, condition-gated opens
// are denied and placeholder substitution is skipped (raw text shown).
type ConditionEvaluator interface {
	// Available reports whether the evaluator capability is usable.
	Available() bool
	// Resolve substitutes every %token% in s for the given user and
	// returns the resolved string. Unknown tokens are left as-is.
	Resolve(userID, s string) string
	// EvaluateBool resolves s and interprets the result as a boolean.
	// Anything other than "true"/"yes"/"1" (case-insensitive) is false.
	EvaluateBool(userID, s string) bool
}

// PlaceholderProvider resolves one token for a user. Providers are matched
// by exact token name first, then by registered prefix (token "ctx_hp"
// matches the provider registered under prefix "ctx_").
type PlaceholderProvider func(userID, token string) (string, bool)

// PlaceholderService is the default ConditionEvaluator: a registry of
// named placeholder providers, populated at startup by the engine wiring.
type PlaceholderService struct {
	mu       sync.RWMutex
	exact    map[string]PlaceholderProvider
	prefixes map[string]PlaceholderProvider
	enabled  bool
}

// NewPlaceholderService creates an empty placeholder registry. The enabled
// flag models the companion capability being present at all; a disabled
// service reports Available() == false regardless of registrations.
func NewPlaceholderService(enabled bool) *PlaceholderService {
	return &PlaceholderService{
		exact:    make(map[string]PlaceholderProvider),
		prefixes: make(map[string]PlaceholderProvider),
		enabled:  enabled,
	}
}

// Register adds a provider for an exact token name.
func (p *PlaceholderService) Register(token string, provider PlaceholderProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exact[token] = provider
}

// RegisterPrefix adds a provider for every token starting with prefix.
func (p *PlaceholderService) RegisterPrefix(prefix string, provider PlaceholderProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefixes[prefix] = provider
}

// Available reports whether placeholder resolution is usable.
func (p *PlaceholderService) Available() bool {
	if p == nil {
		return false
	}
	return p.enabled
}

// Resolve substitutes %token% markers in s for the given user. A lone or
// unmatched percent sign passes through untouched.
func (p *PlaceholderService) Resolve(userID, s string) string {
	if !p.Available() || !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start + 1

		token := s[start+1 : end]
		b.WriteString(s[:start])

		if value, ok := p.lookup(userID, token); ok {
			b.WriteString(value)
		} else {
			// Unknown token: keep the raw marker so misconfigured
			// conditions are visible instead of silently true/false.
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	return b.String()
}

// EvaluateBool resolves s and parses the result permissively as a boolean.
func (p *PlaceholderService) EvaluateBool(userID, s string) bool {
	return ParseConditionBool(p.Resolve(userID, s))
}

func (p *PlaceholderService) lookup(userID, token string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if provider, ok := p.exact[token]; ok {
		if v, ok := provider(userID, token); ok {
			return v, true
		}
		return "", false
	}
	for prefix, provider := range p.prefixes {
		if strings.HasPrefix(token, prefix) {
			if v, ok := provider(userID, token); ok {
				return v, true
			}
			return "", false
		}
	}
	return "", false
}

// ParseConditionBool interprets a resolved condition string permissively:
// "true", "yes" and "1" are true, everything else is false.
func ParseConditionBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

// permissionTokenPrefix marks a placeholder token as a permission-style
// check; conditions containing it are subject to administrative bypass.
const permissionTokenPrefix = "user_has_permission_"

// IsPermissionCondition reports whether a condition string contains a
// permission-style check.
func IsPermissionCondition(condition string) bool {
	return strings.Contains(condition, permissionTokenPrefix)
}

// BypassPermissionTokens replaces every %user_has_permission_...% marker
// with "true". Used for the administrative bypass: only the permission
// sub-check is bypassed, the rest of a compound condition still evaluates.
func BypassPermissionTokens(condition string) string {
	for {
		start := strings.Index(condition, "%"+permissionTokenPrefix)
		if start < 0 {
			return condition
		}
		end := strings.IndexByte(condition[start+1:], '%')
		if end < 0 {
			return condition
		}
		end += start + 1
		condition = condition[:start] + "true" + condition[end+1:]
	}
}

// RegisterBuiltinProviders wires the standard providers into the
// placeholder registry: user identity, open-menu lookup, permission checks
// and host-pushed per-user context values.
func RegisterBuiltinProviders(p *PlaceholderService, conns *ConnectionManager, perms *PermissionService, sessions *SessionService) {
	p.Register("user_id", func(userID, _ string) (string, bool) {
		return userID, true
	})

	p.Register("user_name", func(userID, _ string) (string, bool) {
		if conn, ok := conns.GetByUser(userID); ok && conn.DisplayName != "" {
			return conn.DisplayName, true
		}
		return userID, true
	})

	p.Register("open_menu", func(userID, _ string) (string, bool) {
		if sessions == nil {
			return "", false
		}
		return sessions.GetOpenMenu(userID), true
	})

	// Reports the actual grant; administrative bypass is applied by the
	// slot resolver and the open check, not here.
	p.RegisterPrefix(permissionTokenPrefix, func(userID, token string) (string, bool) {
		perm := strings.TrimPrefix(token, permissionTokenPrefix)
		if perm == "" {
			return "", false
		}
		perms.Ensure(perm)
		if perms.Holds(userID, false, perm) {
			return "true", true
		}
		return "false", true
	})

	p.RegisterPrefix("ctx_", func(userID, token string) (string, bool) {
		key := strings.TrimPrefix(token, "ctx_")
		conn, ok := conns.GetByUser(userID)
		if !ok {
			return "", false
		}
		return conn.ContextValue(key)
	})

	log.Println("✅ Built-in placeholder providers registered")
}
