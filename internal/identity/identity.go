// Package identity resolves actor ids to roles and display names. The
// CRM's identity system is an external collaborator; the ledger only
// needs this lookup to gate the verification workflow.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Roles known to the ledger. The finance role is the only one with
// special meaning: it gates payment verification.
const (
	RoleFinance    = "finance"
	RoleCollection = "collection"
)

// ErrUnknownActor indicates the actor id resolved to no user.
var ErrUnknownActor = errors.New("unknown actor")

// Actor is a resolved staff member.
type Actor struct {
	ID          string
	DisplayName string
	Role        string
}

// IsFinance reports whether the actor carries the finance role.
func (a Actor) IsFinance() bool {
	return strings.EqualFold(a.Role, RoleFinance)
}

// Provider looks up actors. Implementations: Static (tests, demo mode)
// and PG (users table).
type Provider interface {
	Lookup(ctx context.Context, actorID string) (Actor, error)
}

// Static is an in-process provider backed by a fixed actor set.
type Static struct {
	mu     sync.RWMutex
	actors map[string]Actor
}

// NewStatic builds a provider from the given actors.
func NewStatic(actors ...Actor) *Static {
	s := &Static{actors: make(map[string]Actor, len(actors))}
	for _, a := range actors {
		s.actors[a.ID] = a
	}
	return s
}

// Add registers or replaces an actor.
func (s *Static) Add(a Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.ID] = a
}

func (s *Static) Lookup(ctx context.Context, actorID string) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[strings.TrimSpace(actorID)]
	if !ok {
		return Actor{}, ErrUnknownActor
	}
	return a, nil
}
