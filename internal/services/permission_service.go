package services

import (
	"log"
	"sort"
	"sync"
)

// PermissionDefault controls who holds a registered permission when no
// explicit grant exists.
type PermissionDefault string

const (
	// PermissionDefaultElevated grants the permission only to elevated
	// (administrative) users unless explicitly granted.
	PermissionDefaultElevated PermissionDefault = "elevated"
	// PermissionDefaultNobody denies unless explicitly granted.
	PermissionDefaultNobody PermissionDefault = "nobody"
)

// Permission is a dynamically registered permission definition.
type Permission struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Default     PermissionDefault `json:"default"`
}

// PermissionService owns the dynamic permission registry and per-user
// grants. Registration is idempotent and cached so the hot resolution path
// never re-registers.
type PermissionService struct {
	mu          sync.RWMutex
	definitions map[string]Permission
	grants      map[string]map[string]bool // userID -> permission -> granted
}

// NewPermissionService creates an empty permission registry.
func NewPermissionService() *PermissionService {
	return &PermissionService{
		definitions: make(map[string]Permission),
		grants:      make(map[string]map[string]bool),
	}
}

// Ensure registers a permission if it is not already known. Idempotent;
// safe to call from any path, but callers on hot paths should prefer
// registering up front (catalog load does this for every permission it
// encounters).
func (p *PermissionService) Ensure(name string) {
	if name == "" {
		return
	}
	p.mu.RLock()
	_, exists := p.definitions[name]
	p.mu.RUnlock()
	if exists {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.definitions[name]; exists {
		return
	}
	p.definitions[name] = Permission{
		Name:        name,
		Description: "Dynamically registered permission for menu access",
		Default:     PermissionDefaultElevated,
	}
	log.Printf("🔑 Dynamically registered permission: %s", name)
}

// Registered reports whether a permission is known to the registry.
func (p *PermissionService) Registered(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.definitions[name]
	return ok
}

// Holds reports whether a user holds a permission. Elevated users hold
// everything. Unregistered permissions follow the elevated-only default.
func (p *PermissionService) Holds(userID string, elevated bool, name string) bool {
	if elevated {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if userGrants, ok := p.grants[userID]; ok {
		if granted, ok := userGrants[name]; ok {
			return granted
		}
	}

	// Both defaults deny for non-elevated users without an explicit grant.
	return false
}

// Grant gives a user a permission, registering it if needed.
func (p *PermissionService) Grant(userID, name string) {
	p.Ensure(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grants[userID] == nil {
		p.grants[userID] = make(map[string]bool)
	}
	p.grants[userID][name] = true
}

// Revoke removes a user's grant. An explicit revoke overrides defaults.
func (p *PermissionService) Revoke(userID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grants[userID] == nil {
		p.grants[userID] = make(map[string]bool)
	}
	p.grants[userID][name] = false
}

// Grants returns the permissions explicitly granted to a user, sorted.
func (p *PermissionService) Grants(userID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var names []string
	for name, granted := range p.grants[userID] {
		if granted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// List returns every registered permission definition, sorted by name.
func (p *PermissionService) List() []Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()

	perms := make([]Permission, 0, len(p.definitions))
	for _, def := range p.definitions {
		perms = append(perms, def)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms
}

// RegisterCommonPermissions pre-registers the permissions the default menu
// files reference, so operators see them in the registry before any menu
// is opened.
func (p *PermissionService) RegisterCommonPermissions() {
	common := []string{
		"gridmenu.reload",
		"gridmenu.command",
		"gridmenu.storage",
		"gridmenu.vip",
		"gridmenu.admin",
	}
	for _, name := range common {
		p.Ensure(name)
	}
	log.Printf("✅ Registered %d common permissions", len(common))
}
