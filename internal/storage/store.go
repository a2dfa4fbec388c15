package storage

import (
	"context"
	"errors"

	"github.com/Montivagant/calenbot/internal/models"
)

var (
	ErrPlaceNotFound = errors.New("place not found")
	ErrPlaceExists   = errors.New("place already exists")
	// ErrSlotTaken is returned by InsertReservation when a reservation with
	// the same (place, date, time_from) already exists.
	ErrSlotTaken = errors.New("time slot already taken")
)

// Store is the durable keyed storage consumed by the scheduling core. All
// operations are atomic from the caller's perspective; implementations must
// serialize concurrent writes internally.
type Store interface {
	// Places
	PlaceExists(ctx context.Context, name string) (bool, error)
	InsertPlace(ctx context.Context, name string) error
	// DeletePlace cascades to the place's reservations; deleting an unknown
	// place is a no-op.
	DeletePlace(ctx context.Context, name string) error
	Places(ctx context.Context) ([]string, error)

	// Reservations
	ReservationsFor(ctx context.Context, place, date string) ([]models.Reservation, error)
	AllReservations(ctx context.Context, place string) ([]models.Reservation, error)
	InsertReservation(ctx context.Context, res models.Reservation) error
	DeleteReservation(ctx context.Context, place, date, timeFrom string) error
	ClearAllReservations(ctx context.Context) error

	// Command role bindings
	BindingsFor(ctx context.Context, command string) ([]string, error)
	AddBinding(ctx context.Context, command, roleID string) error
	RemoveBinding(ctx context.Context, command, roleID string) error

	// User roles and the user directory. Telegram has no server-side roles,
	// so both are kept here and maintained by the bot layer.
	RolesOf(ctx context.Context, userID int64) ([]string, error)
	GrantRole(ctx context.Context, userID int64, roleID string) error
	RevokeRole(ctx context.Context, userID int64, roleID string) error
	RememberUser(ctx context.Context, userID int64, name string) error
	// UserName returns the remembered display name, or "" when unknown.
	UserName(ctx context.Context, userID int64) (string, error)
}
