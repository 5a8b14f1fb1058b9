package services

import (
	"log"
	"strings"
)

// Action prefixes, checked most-specific first.
const (
	prefixConsole = "[console]"
	prefixPlayer  = "[player]"
	prefixClose   = "[close]"
	prefixOpen    = "[open]"
)

// DispatchService interprets an item's action string and routes it to one
// of four effects: run as the user, run as the system, close the session,
// or open another menu.
type DispatchService struct {
	sessions  *SessionService
	evaluator ConditionEvaluator
	bridge    HostBridge
}

// NewDispatchService creates the command dispatcher.
func NewDispatchService(sessions *SessionService, evaluator ConditionEvaluator, bridge HostBridge) *DispatchService {
	return &DispatchService{
		sessions:  sessions,
		evaluator: evaluator,
		bridge:    bridge,
	}
}

// Dispatch routes one action string for a user. An empty action is a
// no-op. Unknown text runs verbatim as a user-invoked command.
func (d *DispatchService) Dispatch(userID, action string) {
	if action == "" {
		return
	}

	switch {
	case strings.HasPrefix(action, prefixConsole):
		command := strings.TrimSpace(action[len(prefixConsole):])
		if d.evaluator != nil && d.evaluator.Available() {
			command = d.evaluator.Resolve(userID, command)
		}
		commandDispatches.WithLabelValues("console").Inc()
		d.bridge.RunSystemCommand(userID, command)

	case strings.HasPrefix(action, prefixPlayer):
		commandDispatches.WithLabelValues("player").Inc()
		d.bridge.RunUserCommand(userID, strings.TrimSpace(action[len(prefixPlayer):]))

	case strings.HasPrefix(action, prefixClose):
		commandDispatches.WithLabelValues("close").Inc()
		d.sessions.Close(userID)

	case strings.HasPrefix(action, prefixOpen):
		menuID := strings.TrimSpace(action[len(prefixOpen):])
		commandDispatches.WithLabelValues("open").Inc()
		// Closing first sets the forced marker, so the reopen-on-close
		// policy never fights the intentional transition.
		d.sessions.Close(userID)
		if _, err := d.sessions.Open(userID, menuID); err != nil {
			log.Printf("⚠️  [open] action failed for user %s: %v", userID, err)
		}

	default:
		commandDispatches.WithLabelValues("player").Inc()
		d.bridge.RunUserCommand(userID, action)
	}
}
