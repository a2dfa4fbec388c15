// Package memstore implements storage.Store with in-process maps. It backs
// the test suites and the bot itself when Redis is not configured or not
// reachable at startup.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/Montivagant/calenbot/internal/models"
	"github.com/Montivagant/calenbot/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	places       map[string]struct{}
	reservations map[string]map[string][]models.Reservation // place -> date -> slots
	bindings     map[string][]string                        // command -> role IDs
	userRoles    map[int64][]string
	users        map[int64]string
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		places:       make(map[string]struct{}),
		reservations: make(map[string]map[string][]models.Reservation),
		bindings:     make(map[string][]string),
		userRoles:    make(map[int64][]string),
		users:        make(map[int64]string),
	}
}

func (s *Store) PlaceExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.places[name]
	return ok, nil
}

func (s *Store) InsertPlace(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.places[name]; ok {
		return storage.ErrPlaceExists
	}
	s.places[name] = struct{}{}
	return nil
}

func (s *Store) DeletePlace(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.places, name)
	delete(s.reservations, name)
	return nil
}

func (s *Store) Places(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.places))
	for name := range s.places {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ReservationsFor(_ context.Context, place, date string) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots := s.reservations[place][date]
	out := make([]models.Reservation, len(slots))
	copy(out, slots)
	return out, nil
}

func (s *Store) AllReservations(_ context.Context, place string) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]string, 0, len(s.reservations[place]))
	for date := range s.reservations[place] {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dateLess(dates[i], dates[j]) })

	var out []models.Reservation
	for _, date := range dates {
		out = append(out, s.reservations[place][date]...)
	}
	return out, nil
}

func (s *Store) InsertReservation(_ context.Context, res models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reservations[res.Place][res.Date] {
		if existing.TimeFrom == res.TimeFrom {
			return storage.ErrSlotTaken
		}
	}

	if s.reservations[res.Place] == nil {
		s.reservations[res.Place] = make(map[string][]models.Reservation)
	}
	s.reservations[res.Place][res.Date] = append(s.reservations[res.Place][res.Date], res)
	return nil
}

func (s *Store) DeleteReservation(_ context.Context, place, date, timeFrom string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.reservations[place][date]
	for i, r := range slots {
		if r.TimeFrom == timeFrom {
			s.reservations[place][date] = append(slots[:i], slots[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ClearAllReservations(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = make(map[string]map[string][]models.Reservation)
	return nil
}

func (s *Store) BindingsFor(_ context.Context, command string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.bindings[command]))
	copy(out, s.bindings[command])
	return out, nil
}

func (s *Store) AddBinding(_ context.Context, command, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[command] = appendUnique(s.bindings[command], roleID)
	return nil
}

func (s *Store) RemoveBinding(_ context.Context, command, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[command] = removeString(s.bindings[command], roleID)
	return nil
}

func (s *Store) RolesOf(_ context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.userRoles[userID]))
	copy(out, s.userRoles[userID])
	return out, nil
}

func (s *Store) GrantRole(_ context.Context, userID int64, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRoles[userID] = appendUnique(s.userRoles[userID], roleID)
	return nil
}

func (s *Store) RevokeRole(_ context.Context, userID int64, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRoles[userID] = removeString(s.userRoles[userID], roleID)
	return nil
}

func (s *Store) RememberUser(_ context.Context, userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = name
	return nil
}

func (s *Store) UserName(_ context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID], nil
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, have := range list {
		if have != v {
			out = append(out, have)
		}
	}
	return out
}

// dateLess orders canonical "dd/mm" dates by month, then day.
func dateLess(a, b string) bool {
	if len(a) == 5 && len(b) == 5 {
		if a[3:] != b[3:] {
			return a[3:] < b[3:]
		}
		return a[:2] < b[:2]
	}
	return a < b
}
