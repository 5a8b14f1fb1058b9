package handlers

import (
	"log"
	"math/rand"
	"sort"

	"github.com/gofiber/fiber/v2"

	"gridmenu/internal/services"
)

// AdminHandler handles admin operations: catalog reloads, remote opens,
// and permission management.
type AdminHandler struct {
	catalog  *services.CatalogService
	sessions *services.SessionService
	perms    *services.PermissionService
	conns    *services.ConnectionManager
	loop     *services.LoopService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(catalog *services.CatalogService, sessions *services.SessionService, perms *services.PermissionService, conns *services.ConnectionManager, loop *services.LoopService) *AdminHandler {
	return &AdminHandler{
		catalog:  catalog,
		sessions: sessions,
		perms:    perms,
		conns:    conns,
		loop:     loop,
	}
}

// Reload re-reads every definition file from disk. Open sessions are
// closed first so nothing renders from a replaced generation.
// POST /api/admin/reload
func (h *AdminHandler) Reload(c *fiber.Ctx) error {
	adminUserID := c.Locals("user_id").(string)
	log.Printf("♻️  Admin %s requested catalog reload", adminUserID)

	var menuCount int
	var loadErrs []string
	h.loop.RunSync(func() {
		h.sessions.CloseAll()
		menus, errs := h.catalog.Load()
		menuCount = len(menus)
		loadErrs = errs
		services.CountCatalogReload()
	})

	return c.JSON(fiber.Map{
		"status":     "reloaded",
		"menus":      menuCount,
		"errors":     loadErrs,
		"generation": h.catalog.Generation(),
	})
}

// ForceReload restores the bundled default definition files over whatever
// is on disk, then reloads.
// POST /api/admin/force-reload
func (h *AdminHandler) ForceReload(c *fiber.Ctx) error {
	adminUserID := c.Locals("user_id").(string)
	log.Printf("♻️  Admin %s requested FORCED catalog reload (restoring defaults)", adminUserID)

	var menuCount int
	var loadErrs []string
	var reloadErr error
	h.loop.RunSync(func() {
		h.sessions.CloseAll()
		menus, errs, err := h.catalog.ForceReload()
		menuCount = len(menus)
		loadErrs = errs
		reloadErr = err
		services.CountCatalogReload()
	})
	if reloadErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": reloadErr.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":     "reloaded",
		"menus":      menuCount,
		"errors":     loadErrs,
		"generation": h.catalog.Generation(),
	})
}

// openRequest is the remote-open payload. Target is a user ID, "@a" for
// every connected user, or "@r" for one connected user at random.
type openRequest struct {
	MenuID string `json:"menu_id"`
	Target string `json:"target"`
}

// Open opens a menu for a target user or user group, bypassing nothing:
// each open goes through the same permission and condition gates as a
// client-requested open.
// POST /api/admin/open
func (h *AdminHandler) Open(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.MenuID == "" || req.Target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "menu_id and target are required",
		})
	}

	targets, err := h.resolveTargets(req.Target)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	adminUserID := c.Locals("user_id").(string)
	log.Printf("📖 Admin %s opening menu %s for %d user(s)", adminUserID, req.MenuID, len(targets))

	opened := 0
	denied := map[string]string{}
	h.loop.RunSync(func() {
		for _, userID := range targets {
			if _, err := h.sessions.Open(userID, req.MenuID); err != nil {
				denied[userID] = err.Error()
				continue
			}
			opened++
		}
	})

	return c.JSON(fiber.Map{
		"status": "done",
		"opened": opened,
		"denied": denied,
	})
}

// resolveTargets expands a target selector to concrete user IDs.
func (h *AdminHandler) resolveTargets(target string) ([]string, error) {
	switch target {
	case "@a":
		return h.conns.UserIDs(), nil
	case "@r":
		ids := h.conns.UserIDs()
		if len(ids) == 0 {
			return nil, fiber.NewError(fiber.StatusNotFound, "no users connected")
		}
		return []string{ids[rand.Intn(len(ids))]}, nil
	default:
		if !h.conns.HasUser(target) {
			return nil, fiber.NewError(fiber.StatusNotFound, "user is not connected: "+target)
		}
		return []string{target}, nil
	}
}

// ListMenus returns every loaded menu with its gating attributes, plus any
// validation errors from the last load.
// GET /api/admin/menus
func (h *AdminHandler) ListMenus(c *fiber.Ctx) error {
	menus := h.catalog.Menus()

	out := make([]fiber.Map, 0, len(menus))
	for _, def := range menus {
		out = append(out, fiber.Map{
			"menu_id":        def.MenuID,
			"display_name":   def.DisplayName,
			"open_condition": def.OpenCondition,
			"permission":     def.Permission,
			"escapeable":     def.Escapeable,
			"item_source":    def.ItemSource,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["menu_id"].(string) < out[j]["menu_id"].(string)
	})

	return c.JSON(fiber.Map{
		"menus":      out,
		"errors":     h.catalog.ValidationErrors(),
		"generation": h.catalog.Generation(),
	})
}

// permissionRequest is the grant/revoke payload.
type permissionRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

// GrantPermission grants a named permission to a user.
// POST /api/admin/permissions/grant
func (h *AdminHandler) GrantPermission(c *fiber.Ctx) error {
	var req permissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" || req.Permission == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and permission are required",
		})
	}

	h.perms.Grant(req.UserID, req.Permission)
	log.Printf("🔑 Admin %s granted %s to user %s", c.Locals("user_id").(string), req.Permission, req.UserID)
	return c.JSON(fiber.Map{
		"status":      "granted",
		"user_id":     req.UserID,
		"permissions": h.perms.Grants(req.UserID),
	})
}

// RevokePermission revokes a named permission from a user.
// POST /api/admin/permissions/revoke
func (h *AdminHandler) RevokePermission(c *fiber.Ctx) error {
	var req permissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" || req.Permission == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and permission are required",
		})
	}

	h.perms.Revoke(req.UserID, req.Permission)
	log.Printf("🔑 Admin %s revoked %s from user %s", c.Locals("user_id").(string), req.Permission, req.UserID)
	return c.JSON(fiber.Map{
		"status":      "revoked",
		"user_id":     req.UserID,
		"permissions": h.perms.Grants(req.UserID),
	})
}

// ListPermissions returns every registered permission and, optionally, the
// grants of one user (?user_id=...).
// GET /api/admin/permissions
func (h *AdminHandler) ListPermissions(c *fiber.Ctx) error {
	resp := fiber.Map{
		"registered": h.perms.List(),
	}
	if userID := c.Query("user_id"); userID != "" {
		resp["user_id"] = userID
		resp["grants"] = h.perms.Grants(userID)
	}
	return c.JSON(resp)
}
