package model

import (
	"fmt"

	"github.com/tiersync/tiersync/pkg/errclass"
)

// Scope is the isolation domain a command operates on. Each scope has its
// own lock, state record, metrics ledger and managed cache sets.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// AllScopes lists scopes in legacy-command execution order.
var AllScopes = []Scope{ScopeUser, ScopeSystem}

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeUser, ScopeSystem:
		return Scope(s), nil
	}
	return "", errclass.ErrScopeInvalid.WithMessagef("unknown scope %q (want user or system)", s)
}

// TimerUnit returns the systemd timer unit bound to this scope.
func (s Scope) TimerUnit() string {
	return fmt.Sprintf("tiersync-%s.timer", s)
}

// ServiceUnit returns the systemd service unit bound to this scope.
func (s Scope) ServiceUnit() string {
	return fmt.Sprintf("tiersync-%s.service", s)
}

// UserUnit reports whether the scope's units live in the user manager
// (systemctl --user) rather than the system manager.
func (s Scope) UserUnit() bool {
	return s == ScopeUser
}
