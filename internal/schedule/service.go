package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Montivagant/calenbot/internal/models"
	"github.com/Montivagant/calenbot/internal/storage"
)

// ErrSlotConflict is returned by Reserve when the requested range collides
// with a reservation that is already durable.
var ErrSlotConflict = errors.New("slot conflicts with an existing reservation")

// Service coordinates calendar mutations on top of the store. It owns the
// check-then-commit window: Reserve re-validates the requested range under a
// per-(place, date) lock so two sessions cannot both pass the pre-check and
// commit overlapping slots.
type Service struct {
	store storage.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store storage.Store) *Service {
	return &Service{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) CreatePlace(ctx context.Context, name string) error {
	return s.store.InsertPlace(ctx, name)
}

func (s *Service) DeletePlace(ctx context.Context, name string) error {
	return s.store.DeletePlace(ctx, name)
}

func (s *Service) PlaceExists(ctx context.Context, name string) (bool, error) {
	return s.store.PlaceExists(ctx, name)
}

func (s *Service) Places(ctx context.Context) ([]string, error) {
	return s.store.Places(ctx)
}

func (s *Service) Reservations(ctx context.Context, place string) ([]models.Reservation, error) {
	return s.store.AllReservations(ctx, place)
}

// ExistingIntervals returns the booked intervals for one place and date, in
// the store's evaluation order, ready for the conflict detector.
func (s *Service) ExistingIntervals(ctx context.Context, place, date string) ([]Interval, error) {
	reservations, err := s.store.ReservationsFor(ctx, place, date)
	if err != nil {
		return nil, err
	}

	intervals := make([]Interval, 0, len(reservations))
	for _, r := range reservations {
		intervals = append(intervals, Interval{From: r.TimeFrom, To: r.TimeTo})
	}
	return intervals, nil
}

// Reserve commits a finished draft. The session already ran the conflict
// checks while collecting input, but other sessions may have committed in the
// meantime, so the range is re-checked here under the slot lock before the
// single insert.
func (s *Service) Reserve(ctx context.Context, res models.Reservation) error {
	lock := s.lockFor(res.Place, res.Date)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.ExistingIntervals(ctx, res.Place, res.Date)
	if err != nil {
		return fmt.Errorf("load reservations for %s %s: %w", res.Place, res.Date, err)
	}

	conflict, err := FindRangeConflict(existing, res.TimeFrom, res.TimeTo)
	if err != nil {
		return err
	}
	if conflict != nil {
		return ErrSlotConflict
	}

	if err := s.store.InsertReservation(ctx, res); err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			return ErrSlotConflict
		}
		return err
	}
	return nil
}

func (s *Service) DeleteReservation(ctx context.Context, place, date, timeFrom string) error {
	return s.store.DeleteReservation(ctx, place, date, timeFrom)
}

func (s *Service) ClearAllReservations(ctx context.Context) error {
	return s.store.ClearAllReservations(ctx)
}

func (s *Service) lockFor(place, date string) *sync.Mutex {
	key := place + "|" + date
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
