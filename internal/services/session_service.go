package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"gridmenu/internal/models"
)

// forcedCloseTTL bounds how long an explicit close can be attributed as
// "forced". The marker self-expires independently of engine activity so a
// stale marker never suppresses a later, unrelated close decision.
const forcedCloseTTL = 250 * time.Millisecond

// HostBridge delivers engine effects to the host surface. The WebSocket
// gateway implements it; tests substitute fakes.
type HostBridge interface {
	// PushMenu delivers rendered container content to a user's client.
	PushMenu(userID string, menu *models.RenderedMenu)
	// PushClose tells a user's client to close its container.
	PushClose(userID string)
	// RunUserCommand executes a command as if invoked by the user.
	RunUserCommand(userID, command string)
	// RunSystemCommand executes a command as the system actor.
	RunSystemCommand(userID, command string)
}

// Open denial reasons. Denials are local control flow, not logged errors.
var (
	ErrMenuNotFound         = errors.New("menu not found")
	ErrPermissionDenied     = errors.New("you don't have permission to open this menu")
	ErrConditionNotMet      = errors.New("you cannot open this menu right now")
	ErrEvaluatorUnavailable = errors.New("cannot check permission for this menu")
)

// session is one user's open-menu state: the menu id plus the per-slot
// candidate lists captured at open time. Clicks re-resolve against these
// captured candidates, never against a fresh catalog lookup, so a session
// keeps the catalog generation that was active when it opened.
type session struct {
	userID     string
	menuID     string
	escapeable bool
	candidates map[int][]models.MenuItemDefinition
	generation int64
	openedAt   time.Time
}

// SessionService is the session engine: it owns the per-user open/close
// state machine, renders menus through the slot resolver, re-resolves
// clicks authoritatively, and tracks forced-close markers.
//
// All tables are guarded by an engine-owned lock; events for the same user
// can arrive back-to-back from the gateway and the admin surface.
type SessionService struct {
	catalog   *CatalogService
	perms     *PermissionService
	evaluator ConditionEvaluator
	conns     *ConnectionManager
	bridge    HostBridge

	forcedClose *cache.Cache // userID -> marker, TTL-expired
	dispatcher  *DispatchService

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionService creates the session engine.
func NewSessionService(catalog *CatalogService, perms *PermissionService, evaluator ConditionEvaluator, conns *ConnectionManager, bridge HostBridge) *SessionService {
	return &SessionService{
		catalog:     catalog,
		perms:       perms,
		evaluator:   evaluator,
		conns:       conns,
		bridge:      bridge,
		forcedClose: cache.New(forcedCloseTTL, time.Second),
		sessions:    make(map[string]*session),
	}
}

// SetDispatcher wires the command dispatcher (set after construction; the
// dispatcher itself needs the session engine for [close] and [open]).
func (s *SessionService) SetDispatcher(d *DispatchService) {
	s.dispatcher = d
}

// resolveUser builds the resolver identity for a user from their current
// connection (elevated flag comes from the connection's auth claims).
func (s *SessionService) resolveUser(userID string) ResolveUser {
	user := ResolveUser{ID: userID}
	if conn, ok := s.conns.GetByUser(userID); ok {
		user.Elevated = conn.Elevated
	}
	return user
}

// Open opens a menu for a user. Opening while already open (same or
// different menu) is always allowed and replaces the session state. On any
// denial no state changes and the denial reason is returned.
func (s *SessionService) Open(userID, menuID string) (*models.RenderedMenu, error) {
	def, ok := s.catalog.GetMenu(menuID)
	if !ok || !def.HasItemSource() {
		return nil, fmt.Errorf("%w: %s", ErrMenuNotFound, menuID)
	}

	user := s.resolveUser(userID)

	if err := s.checkPermission(user, def); err != nil {
		menuDenials.WithLabelValues(menuID, "permission").Inc()
		return nil, err
	}
	if err := s.checkOpenCondition(user, def); err != nil {
		menuDenials.WithLabelValues(menuID, "condition").Inc()
		return nil, err
	}

	candidates := s.catalog.CandidatesBySlot(menuID)
	menu := s.render(user, def, candidates)

	s.mu.Lock()
	s.sessions[userID] = &session{
		userID:     userID,
		menuID:     menuID,
		escapeable: def.Escapeable,
		candidates: candidates,
		generation: s.catalog.Generation(),
		openedAt:   time.Now(),
	}
	s.mu.Unlock()

	s.bridge.PushMenu(userID, menu)
	menuOpens.WithLabelValues(menuID).Inc()
	log.Printf("📖 Menu opened: %s for user %s", menuID, userID)
	return menu, nil
}

// checkPermission evaluates the menu's permission-or-condition gate.
func (s *SessionService) checkPermission(user ResolveUser, def *models.MenuDefinition) error {
	if def.Permission == "" || user.Elevated {
		return nil
	}

	if def.IsConditionPermission() {
		if s.evaluator == nil || !s.evaluator.Available() {
			log.Printf("⚠️  Menu %s uses a condition permission but no evaluator is available", def.MenuID)
			return ErrEvaluatorUnavailable
		}
		if !s.evaluator.EvaluateBool(user.ID, def.Permission) {
			return ErrPermissionDenied
		}
		return nil
	}

	s.perms.Ensure(def.Permission)
	if !s.perms.Holds(user.ID, user.Elevated, def.Permission) {
		return ErrPermissionDenied
	}
	return nil
}

// checkOpenCondition evaluates the menu's open condition. An unavailable
// evaluator degrades to deny for condition-gated opens.
func (s *SessionService) checkOpenCondition(user ResolveUser, def *models.MenuDefinition) error {
	if def.OpenCondition == "" {
		return nil
	}
	if s.evaluator == nil || !s.evaluator.Available() {
		return ErrEvaluatorUnavailable
	}
	if !s.evaluator.EvaluateBool(user.ID, def.OpenCondition) {
		return ErrConditionNotMet
	}
	return nil
}

// render resolves every distinct slot across the menu's item definitions
// into container content.
func (s *SessionService) render(user ResolveUser, def *models.MenuDefinition, candidates map[int][]models.MenuItemDefinition) *models.RenderedMenu {
	menu := &models.RenderedMenu{
		MenuID:     def.MenuID,
		Title:      def.DisplayName,
		Size:       s.catalog.ContainerSize(),
		Escapeable: def.Escapeable,
	}

	slots := make([]int, 0, len(candidates))
	for slot := range candidates {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	for _, slot := range slots {
		if item := ResolveSlot(slot, candidates[slot], user, s.evaluator); item != nil {
			menu.Items = append(menu.Items, *item)
		}
	}
	return menu
}

// HandleClick re-resolves the clicked slot against the session's captured
// candidates and dispatches the winning item's action. Returns true when
// an item occupied the slot (even with an empty action), false when the
// session is closed, the slot is empty, or no candidate is visible.
func (s *SessionService) HandleClick(userID string, slot int) bool {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	candidates, ok := sess.candidates[slot]
	if !ok || len(candidates) == 0 {
		return false
	}

	user := s.resolveUser(userID)
	def := ResolveSlotDefinition(candidates, user, s.evaluator)
	if def == nil {
		return false
	}

	menuClicks.WithLabelValues(sess.menuID).Inc()
	if def.ActionCommand == "" {
		return true
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(userID, def.ActionCommand)
	}
	return true
}

// Close transitions a user's session to closed and marks the close as
// forced for a short window, distinguishing it from a host-driven close.
func (s *SessionService) Close(userID string) {
	s.forcedClose.Set(userID, true, forcedCloseTTL)

	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	s.bridge.PushClose(userID)
	if ok {
		menuCloses.WithLabelValues(sess.menuID).Inc()
		log.Printf("📕 Menu closed: %s for user %s", sess.menuID, userID)
	}
}

// ReleaseClosed clears a user's session without the forced marker. Used
// when the host reports a close the engine should simply accept.
func (s *SessionService) ReleaseClosed(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok {
		menuCloses.WithLabelValues(sess.menuID).Inc()
		log.Printf("📕 Menu released: %s for user %s", sess.menuID, userID)
	}
}

// CloseAll closes every open session through the same path as Close.
// Runs synchronously at shutdown and at the start of a reload.
func (s *SessionService) CloseAll() {
	s.mu.RLock()
	users := make([]string, 0, len(s.sessions))
	for userID := range s.sessions {
		users = append(users, userID)
	}
	s.mu.RUnlock()

	for _, userID := range users {
		s.Close(userID)
	}
	if len(users) > 0 {
		log.Printf("📕 Closed %d open sessions", len(users))
	}
}

// GetOpenMenu returns the menu id a user has open, or "" when closed.
func (s *SessionService) GetOpenMenu(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.menuID
	}
	return ""
}

// IsEscapeable reports whether the user may close their menu without the
// engine reopening it. An active forced-close marker always wins: an
// explicit close must never be fought.
func (s *SessionService) IsEscapeable(userID string) bool {
	if s.IsForcedClose(userID) {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return true
	}
	return sess.escapeable
}

// IsForcedClose reports whether the forced-close marker is active for the
// user. The gateway uses this to avoid double-closing.
func (s *SessionService) IsForcedClose(userID string) bool {
	_, found := s.forcedClose.Get(userID)
	return found
}

// OpenSessionCount returns the number of currently open sessions.
func (s *SessionService) OpenSessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepDisconnected closes sessions for users with no live connection.
// Run periodically by the janitor; returns how many were closed.
func (s *SessionService) SweepDisconnected() int {
	s.mu.RLock()
	var stale []string
	for userID := range s.sessions {
		if !s.conns.HasUser(userID) {
			stale = append(stale, userID)
		}
	}
	s.mu.RUnlock()

	for _, userID := range stale {
		s.Close(userID)
	}
	return len(stale)
}
