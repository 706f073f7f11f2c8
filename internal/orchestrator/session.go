// Package orchestrator is the Orchestrator (C11): the single long-lived
// process that, for each incoming request, resets or resumes per-session
// state, drives the Pilot/Executor turn cycle to a REPLY or step cap, and
// streams typed progress events to the client (spec.md §4.10). Grounded on
// the teacher's runtime/agent/session package for the session-keyed state
// shape, generalized from durable workflow run metadata to this module's
// simpler per-session {history, variable store} pair — sessions here are
// in-process and reset on new-session detection rather than persisted.
package orchestrator

import (
	"sync"

	"github.com/mcpilot/core/internal/pilot"
	"github.com/mcpilot/core/internal/variable"
)

// State is one session's Pilot conversation history and variable store.
// Conversational Variables survive across Pilot turns within a session; the
// AnalysisVariable store does not live here because it is reset per
// analysis invocation rather than per session (spec.md §4.5).
type State struct {
	History []pilot.Turn
	Vars    *variable.Store
}

// Manager owns one State per session id, resetting it whenever the caller
// reports a new session (spec.md §4.10 step 1: inbound history length ≤ 1).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*State
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*State)}
}

// Session returns the State for sessionID, resetting it (fresh history,
// fresh Variable store) when inboundHistoryLen is 0 or 1, or when no State
// exists yet for this id.
func (m *Manager) Session(sessionID string, inboundHistoryLen int) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || inboundHistoryLen <= 1 {
		s = &State{Vars: variable.NewStore()}
		m.sessions[sessionID] = s
	}
	return s
}
