package auth

import (
	"context"

	"github.com/Montivagant/calenbot/internal/storage"
)

// IsAuthorized decides whether a user holding userRoles may invoke command.
// A command with no bindings is unrestricted; otherwise any single matching
// role suffices.
func IsAuthorized(command string, userRoles, boundRoles []string) bool {
	if len(boundRoles) == 0 {
		return true
	}
	for _, have := range userRoles {
		for _, want := range boundRoles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Gate resolves bindings and user roles from the store and applies
// IsAuthorized in front of every gated command. Administrator status is a
// platform-level capability configured at startup, independent of the
// binding table.
type Gate struct {
	store  storage.Store
	admins map[int64]struct{}
}

func NewGate(store storage.Store, adminIDs []int64) *Gate {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Gate{store: store, admins: admins}
}

func (g *Gate) IsAdmin(userID int64) bool {
	_, ok := g.admins[userID]
	return ok
}

// Allow reports whether userID may invoke command under the current bindings.
func (g *Gate) Allow(ctx context.Context, command string, userID int64) (bool, error) {
	bound, err := g.store.BindingsFor(ctx, command)
	if err != nil {
		return false, err
	}
	if len(bound) == 0 {
		return true, nil
	}

	roles, err := g.store.RolesOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return IsAuthorized(command, roles, bound), nil
}
