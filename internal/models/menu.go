package models

// MenuDefinition describes one configured menu from the catalog file.
// Instances are immutable after a catalog load; a reload replaces the whole
// map rather than mutating definitions in place, so sessions opened against
// an older generation keep reading consistent data.
type MenuDefinition struct {
	MenuID        string `json:"menu_id"`
	DisplayName   string `json:"display_name"`
	OpenCondition string `json:"open_condition,omitempty"` // empty = always allowed
	Permission    string `json:"permission,omitempty"`     // permission name, or %...% condition
	Escapeable    bool   `json:"escapeable"`

	// ItemSource is the path of the validated item-definition file. It is
	// set only after the file passed validation; a definition without an
	// item source never contributes items to rendering.
	ItemSource string `json:"-"`
}

// HasItemSource reports whether this menu passed item-file validation.
func (m *MenuDefinition) HasItemSource() bool {
	return m != nil && m.ItemSource != ""
}

// IsConditionPermission reports whether the permission column actually
// carries a condition string (%...%) instead of a permission name.
func (m *MenuDefinition) IsConditionPermission() bool {
	return len(m.Permission) >= 2 && m.Permission[0] == '%' && m.Permission[len(m.Permission)-1] == '%'
}

// ItemTemplate is the static, not yet user-specialized portion of a menu
// item: what to draw before placeholder substitution runs.
type ItemTemplate struct {
	Material string   `json:"material"`
	Amount   int      `json:"amount"`
	Name     string   `json:"name,omitempty"`
	Lore     []string `json:"lore,omitempty"`
}

// MenuItemDefinition is one candidate competing to occupy a slot. Multiple
// definitions may share a slot; the resolver picks at most one per user.
type MenuItemDefinition struct {
	Slot          int          `json:"slot"`
	Template      ItemTemplate `json:"template"`
	ActionCommand string       `json:"command,omitempty"`
	Priority      int          `json:"priority"`
	ShowCondition string       `json:"show_condition,omitempty"` // empty = always visible
}

// RenderedItem is a user-specialized item occupying a slot in an open menu.
type RenderedItem struct {
	Slot     int      `json:"slot"`
	Material string   `json:"material"`
	Amount   int      `json:"amount"`
	Name     string   `json:"name,omitempty"`
	Lore     []string `json:"lore,omitempty"`
}

// RenderedMenu is the container content pushed to a host client on open.
type RenderedMenu struct {
	MenuID     string         `json:"menu_id"`
	Title      string         `json:"title"`
	Size       int            `json:"size"`
	Escapeable bool           `json:"escapeable"`
	Items      []RenderedItem `json:"items"`
}
