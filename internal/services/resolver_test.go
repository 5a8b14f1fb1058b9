package services

import (
	"testing"

	"gridmenu/internal/models"
)

func item(slot, priority int, material, condition, command string) models.MenuItemDefinition {
	return models.MenuItemDefinition{
		Slot: slot,
		Template: models.ItemTemplate{
			Material: material,
			Amount:   1,
		},
		ActionCommand: command,
		Priority:      priority,
		ShowCondition: condition,
	}
}

func TestResolveSlotHighestPriorityWins(t *testing.T) {
	candidates := []models.MenuItemDefinition{
		item(0, 0, "STONE", "", ""),
		item(0, 10, "DIAMOND", "", ""),
	}

	got := ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, nil)
	if got == nil || got.Material != "DIAMOND" {
		t.Fatalf("expected DIAMOND to win, got %+v", got)
	}
}

func TestResolveSlotFileOrderBreaksTies(t *testing.T) {
	candidates := []models.MenuItemDefinition{
		item(0, 5, "FIRST", "", ""),
		item(0, 5, "SECOND", "", ""),
	}

	got := ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, nil)
	if got == nil || got.Material != "FIRST" {
		t.Fatalf("expected file order to break the tie, got %+v", got)
	}
}

func TestResolveSlotFallsThroughHiddenCandidates(t *testing.T) {
	p := NewPlaceholderService(true)
	p.Register("vip", func(_, _ string) (string, bool) { return "false", true })

	candidates := []models.MenuItemDefinition{
		item(0, 0, "BARRIER", "", ""),
		item(0, 10, "EMERALD", "%vip%", ""),
	}

	got := ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, p)
	if got == nil || got.Material != "BARRIER" {
		t.Fatalf("hidden candidate should fall through to fallback, got %+v", got)
	}
}

func TestResolveSlotEmptyWhenNothingVisible(t *testing.T) {
	p := NewPlaceholderService(true)

	candidates := []models.MenuItemDefinition{
		item(0, 0, "EMERALD", "%never%", ""),
	}

	if got := ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, p); got != nil {
		t.Fatalf("expected empty slot, got %+v", got)
	}
}

func TestResolveSlotElevatedBypassesPermissionTokens(t *testing.T) {
	candidates := []models.MenuItemDefinition{
		item(0, 10, "EMERALD", "%user_has_permission_shop.vip%", ""),
	}

	// Elevated users see permission-gated items even with no evaluator.
	got := ResolveSlot(0, candidates, ResolveUser{ID: "admin", Elevated: true}, nil)
	if got == nil || got.Material != "EMERALD" {
		t.Fatalf("elevated user should bypass the permission check, got %+v", got)
	}

	// Non-elevated users without the grant do not.
	perms := NewPermissionService()
	p := NewPlaceholderService(true)
	conns := NewConnectionManager()
	RegisterBuiltinProviders(p, conns, perms, nil)

	if got := ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, p); got != nil {
		t.Fatalf("non-elevated user without grant should not see the item, got %+v", got)
	}

	perms.Grant("steve", "shop.vip")
	got = ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, p)
	if got == nil {
		t.Fatal("granted user should see the item")
	}
}

func TestElevatedBypassKeepsRestOfCompoundCondition(t *testing.T) {
	p := NewPlaceholderService(true)
	p.RegisterPrefix("ctx_", func(_, _ string) (string, bool) { return "false", true })

	candidates := []models.MenuItemDefinition{
		item(0, 10, "EMERALD", "%ctx_combat%", ""),
	}

	// Not a permission condition, so elevation changes nothing: the
	// condition still evaluates (to false here).
	if got := ResolveSlot(0, candidates, ResolveUser{ID: "admin", Elevated: true}, p); got != nil {
		t.Fatalf("elevation must not bypass non-permission conditions, got %+v", got)
	}
}

func TestResolveSlotUnavailableEvaluatorHidesConditioned(t *testing.T) {
	disabled := NewPlaceholderService(false)

	candidates := []models.MenuItemDefinition{
		item(0, 10, "EMERALD", "%vip%", ""),
		item(0, 0, "STONE", "", ""),
	}

	// Condition-gated candidates are hidden, unconditioned ones survive.
	got := ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, disabled)
	if got == nil || got.Material != "STONE" {
		t.Fatalf("expected unconditioned fallback, got %+v", got)
	}
}

func TestMaterializeSubstitutesPlaceholders(t *testing.T) {
	p := NewPlaceholderService(true)
	p.Register("user_name", func(userID, _ string) (string, bool) { return "Steve", true })

	def := item(4, 0, "PLAYER_HEAD", "", "")
	def.Template.Name = "Profile of %user_name%"
	def.Template.Lore = []string{"Logged in as %user_name%"}

	got := ResolveSlot(4, []models.MenuItemDefinition{def}, ResolveUser{ID: "steve"}, p)
	if got == nil {
		t.Fatal("expected a rendered item")
	}
	if got.Name != "Profile of Steve" {
		t.Errorf("name not substituted: %q", got.Name)
	}
	if len(got.Lore) != 1 || got.Lore[0] != "Logged in as Steve" {
		t.Errorf("lore not substituted: %v", got.Lore)
	}
}

func TestMaterializeSkipsSubstitutionWhenUnavailable(t *testing.T) {
	disabled := NewPlaceholderService(false)

	def := item(4, 0, "PLAYER_HEAD", "", "")
	def.Template.Name = "Profile of %user_name%"

	got := ResolveSlot(4, []models.MenuItemDefinition{def}, ResolveUser{ID: "steve"}, disabled)
	if got == nil {
		t.Fatal("expected a rendered item")
	}
	if got.Name != "Profile of %user_name%" {
		t.Errorf("raw template text should be shown when evaluator is down, got %q", got.Name)
	}
}

func TestResolveSlotDoesNotMutateInput(t *testing.T) {
	candidates := []models.MenuItemDefinition{
		item(0, 1, "A", "", ""),
		item(0, 2, "B", "", ""),
		item(0, 3, "C", "", ""),
	}

	ResolveSlot(0, candidates, ResolveUser{ID: "steve"}, nil)

	if candidates[0].Template.Material != "A" || candidates[1].Template.Material != "B" || candidates[2].Template.Material != "C" {
		t.Fatal("resolver must not reorder the caller's candidate slice")
	}
}
