package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// PG resolves actors against the users table.
type PG struct {
	db *sql.DB
}

// NewPG wraps an open database handle.
func NewPG(db *sql.DB) *PG {
	return &PG{db: db}
}

func (p *PG) Lookup(ctx context.Context, actorID string) (Actor, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Actor{}, ErrUnknownActor
	}
	var a Actor
	err := p.db.QueryRowContext(ctx, `
		select id, display_name, role from users where id = $1
	`, actorID).Scan(&a.ID, &a.DisplayName, &a.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Actor{}, ErrUnknownActor
	}
	if err != nil {
		return Actor{}, err
	}
	return a, nil
}
