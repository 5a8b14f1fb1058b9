package services

import (
	"sort"

	"gridmenu/internal/models"
)

// ResolveUser is the identity a slot is resolved for.
type ResolveUser struct {
	ID       string
	Elevated bool
}

// sortCandidates orders candidates by priority descending, stable with
// respect to original definition order on ties.
func sortCandidates(candidates []models.MenuItemDefinition) []models.MenuItemDefinition {
	sorted := append([]models.MenuItemDefinition(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

// candidateVisible evaluates one candidate's show condition for a user.
// Elevated users bypass only the permission sub-checks of the condition;
// the rest of a compound condition still evaluates normally.
func candidateVisible(user ResolveUser, condition string, evaluator ConditionEvaluator) bool {
	if condition == "" {
		return true
	}
	if user.Elevated && IsPermissionCondition(condition) {
		condition = BypassPermissionTokens(condition)
		if condition == "true" {
			return true
		}
	}
	if evaluator == nil || !evaluator.Available() {
		return false
	}
	return evaluator.EvaluateBool(user.ID, condition)
}

// ResolveSlot computes the single visible item for one slot: the first
// candidate, in descending priority order, whose show condition passes.
// The winning template is materialized into a user-specialized item. A nil
// result means the slot renders empty.
//
// This runs in full both at render time and again at click time against
// the session's captured candidates, so conditions that changed in between
// are re-evaluated for dispatch correctness.
func ResolveSlot(slot int, candidates []models.MenuItemDefinition, user ResolveUser, evaluator ConditionEvaluator) *models.RenderedItem {
	def := ResolveSlotDefinition(candidates, user, evaluator)
	if def == nil {
		return nil
	}
	return materializeItem(slot, def, user, evaluator)
}

// ResolveSlotDefinition returns the winning candidate definition for a
// slot without materializing it, or nil when no candidate is visible.
func ResolveSlotDefinition(candidates []models.MenuItemDefinition, user ResolveUser, evaluator ConditionEvaluator) *models.MenuItemDefinition {
	for _, candidate := range sortCandidates(candidates) {
		if candidateVisible(user, candidate.ShowCondition, evaluator) {
			c := candidate
			return &c
		}
	}
	return nil
}

// materializeItem specializes a template for a user: color translation was
// already applied at load time, so only placeholder substitution remains.
// When the evaluator is unavailable, substitution is skipped and the raw
// template text is shown.
func materializeItem(slot int, def *models.MenuItemDefinition, user ResolveUser, evaluator ConditionEvaluator) *models.RenderedItem {
	item := &models.RenderedItem{
		Slot:     slot,
		Material: def.Template.Material,
		Amount:   def.Template.Amount,
		Name:     def.Template.Name,
	}
	if len(def.Template.Lore) > 0 {
		item.Lore = append([]string(nil), def.Template.Lore...)
	}

	if evaluator != nil && evaluator.Available() {
		item.Name = evaluator.Resolve(user.ID, item.Name)
		for i, line := range item.Lore {
			item.Lore[i] = evaluator.Resolve(user.ID, line)
		}
	}
	return item
}
