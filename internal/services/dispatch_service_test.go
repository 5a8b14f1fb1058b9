package services

import "testing"

func TestDispatchPlayerPrefix(t *testing.T) {
	e := newTestEngine(t, engineIndex, engineFiles)
	e.connect("steve", false)

	e.dispatch.Dispatch("steve", "[player] spawn")
	if len(e.bridge.userCmds) != 1 || e.bridge.userCmds[0] != "spawn" {
		t.Fatalf("expected trimmed user command, got %v", e.bridge.userCmds)
	}
}

func TestDispatchConsolePrefixResolvesPlaceholders(t *testing.T) {
	e := newTestEngine(t, engineIndex, engineFiles)
	e.connect("steve", false)

	e.dispatch.Dispatch("steve", "[console] give %user_id% diamond")
	if len(e.bridge.sysCmds) != 1 || e.bridge.sysCmds[0] != "give steve diamond" {
		t.Fatalf("expected resolved system command, got %v", e.bridge.sysCmds)
	}
	if len(e.bridge.userCmds) != 0 {
		t.Error("console action must not run as the user")
	}
}

func TestDispatchBareTextRunsVerbatimAsUser(t *testing.T) {
	e := newTestEngine(t, engineIndex, engineFiles)
	e.connect("steve", false)

	e.dispatch.Dispatch("steve", "warp market")
	if len(e.bridge.userCmds) != 1 || e.bridge.userCmds[0] != "warp market" {
		t.Fatalf("bare text should run verbatim as the user, got %v", e.bridge.userCmds)
	}
}

func TestDispatchEmptyActionIsNoop(t *testing.T) {
	e := newTestEngine(t, engineIndex, engineFiles)
	e.connect("steve", false)

	e.dispatch.Dispatch("steve", "")
	if len(e.bridge.userCmds)+len(e.bridge.sysCmds) != 0 {
		t.Error("empty action must dispatch nothing")
	}
}

func TestDispatchClosePrefix(t *testing.T) {
	e := newTestEngine(t, engineIndex, engineFiles)
	e.connect("steve", false)
	e.sessions.Open("steve", "shop")

	e.dispatch.Dispatch("steve", "[close]")
	if e.sessions.GetOpenMenu("steve") != "" {
		t.Error("[close] should close the session")
	}
	if !e.sessions.IsForcedClose("steve") {
		t.Error("[close] is an engine-driven close and must set the forced marker")
	}
}

func TestDispatchOpenPrefixSwitchesMenus(t *testing.T) {
	e := newTestEngine(t, engineIndex, engineFiles)
	e.connect("steve", false)
	e.sessions.Open("steve", "shop")

	e.dispatch.Dispatch("steve", "[open] gated")
	// Target is condition-gated and denies: the old menu stays closed.
	if e.sessions.GetOpenMenu("steve") != "" {
		t.Error("failed [open] leaves the user with no menu")
	}

	e.sessions.Open("steve", "shop")
	e.dispatch.Dispatch("steve", "[open] vip")
	// vip requires a permission the user lacks.
	if got := e.sessions.GetOpenMenu("steve"); got != "" {
		t.Errorf("denied [open] target should not stick, got %q", got)
	}

	e.perms.Grant("steve", "gridmenu.vip")
	e.sessions.Open("steve", "shop")
	e.dispatch.Dispatch("steve", "[open] vip")
	if e.sessions.GetOpenMenu("steve") != "vip" {
		t.Error("[open] should transition to the target menu")
	}
}
