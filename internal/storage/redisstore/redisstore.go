// Package redisstore implements storage.Store on Redis. Places live in a set,
// the reservations of one (place, date) in a hash keyed by canonical start
// time, so the unique-start invariant is enforced by the data model itself.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Montivagant/calenbot/internal/config"
	"github.com/Montivagant/calenbot/internal/models"
	"github.com/Montivagant/calenbot/internal/storage"
	"github.com/Montivagant/calenbot/internal/timeparse"
)

const (
	keyPlaces    = "calenbot:places"
	keyResPlaces = "calenbot:resplaces" // places that currently hold reservations
	keyUsers     = "calenbot:users"
)

func reservationKey(place, date string) string {
	return fmt.Sprintf("calenbot:res:%s:%s", place, date)
}

func datesKey(place string) string {
	return "calenbot:dates:" + place
}

func bindingsKey(command string) string {
	return "calenbot:roles:" + command
}

func userRolesKey(userID int64) string {
	return "calenbot:userroles:" + strconv.FormatInt(userID, 10)
}

// NewClient creates a Redis client from the bot configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

type Store struct {
	rdb *redis.Client
}

var _ storage.Store = (*Store)(nil)

func New(client *redis.Client) *Store {
	return &Store{rdb: client}
}

func (s *Store) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

func (s *Store) PlaceExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, keyPlaces, name).Result()
	if err != nil {
		return false, fmt.Errorf("check place %q: %w", name, err)
	}
	return ok, nil
}

func (s *Store) InsertPlace(ctx context.Context, name string) error {
	added, err := s.rdb.SAdd(ctx, keyPlaces, name).Result()
	if err != nil {
		return fmt.Errorf("insert place %q: %w", name, err)
	}
	if added == 0 {
		return storage.ErrPlaceExists
	}
	return nil
}

func (s *Store) DeletePlace(ctx context.Context, name string) error {
	if err := s.rdb.SRem(ctx, keyPlaces, name).Err(); err != nil {
		return fmt.Errorf("delete place %q: %w", name, err)
	}
	return s.dropReservationsOf(ctx, name)
}

func (s *Store) Places(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, keyPlaces).Result()
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ReservationsFor(ctx context.Context, place, date string) ([]models.Reservation, error) {
	fields, err := s.rdb.HGetAll(ctx, reservationKey(place, date)).Result()
	if err != nil {
		return nil, fmt.Errorf("load reservations for %s %s: %w", place, date, err)
	}

	out := make([]models.Reservation, 0, len(fields))
	for _, raw := range fields {
		var res models.Reservation
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return nil, fmt.Errorf("decode reservation for %s %s: %w", place, date, err)
		}
		out = append(out, res)
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) AllReservations(ctx context.Context, place string) ([]models.Reservation, error) {
	dates, err := s.rdb.SMembers(ctx, datesKey(place)).Result()
	if err != nil {
		return nil, fmt.Errorf("list dates for %q: %w", place, err)
	}
	sort.Slice(dates, func(i, j int) bool { return dateLess(dates[i], dates[j]) })

	var out []models.Reservation
	for _, date := range dates {
		day, err := s.ReservationsFor(ctx, place, date)
		if err != nil {
			return nil, err
		}
		out = append(out, day...)
	}
	return out, nil
}

func (s *Store) InsertReservation(ctx context.Context, res models.Reservation) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode reservation: %w", err)
	}

	set, err := s.rdb.HSetNX(ctx, reservationKey(res.Place, res.Date), res.TimeFrom, payload).Result()
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	if !set {
		return storage.ErrSlotTaken
	}

	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, datesKey(res.Place), res.Date)
	pipe.SAdd(ctx, keyResPlaces, res.Place)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index reservation: %w", err)
	}
	return nil
}

func (s *Store) DeleteReservation(ctx context.Context, place, date, timeFrom string) error {
	if err := s.rdb.HDel(ctx, reservationKey(place, date), timeFrom).Err(); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

func (s *Store) ClearAllReservations(ctx context.Context) error {
	places, err := s.rdb.SMembers(ctx, keyResPlaces).Result()
	if err != nil {
		return fmt.Errorf("list reserved places: %w", err)
	}

	for _, place := range places {
		if err := s.dropReservationsOf(ctx, place); err != nil {
			return err
		}
	}
	return nil
}

// dropReservationsOf removes every reservation key of one place along with
// its index entries.
func (s *Store) dropReservationsOf(ctx context.Context, place string) error {
	dates, err := s.rdb.SMembers(ctx, datesKey(place)).Result()
	if err != nil {
		return fmt.Errorf("list dates for %q: %w", place, err)
	}

	pipe := s.rdb.Pipeline()
	for _, date := range dates {
		pipe.Del(ctx, reservationKey(place, date))
	}
	pipe.Del(ctx, datesKey(place))
	pipe.SRem(ctx, keyResPlaces, place)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("drop reservations of %q: %w", place, err)
	}
	return nil
}

func (s *Store) BindingsFor(ctx context.Context, command string) ([]string, error) {
	roles, err := s.rdb.SMembers(ctx, bindingsKey(command)).Result()
	if err != nil {
		return nil, fmt.Errorf("load bindings for %q: %w", command, err)
	}
	return roles, nil
}

func (s *Store) AddBinding(ctx context.Context, command, roleID string) error {
	if err := s.rdb.SAdd(ctx, bindingsKey(command), roleID).Err(); err != nil {
		return fmt.Errorf("add binding %s->%s: %w", command, roleID, err)
	}
	return nil
}

func (s *Store) RemoveBinding(ctx context.Context, command, roleID string) error {
	if err := s.rdb.SRem(ctx, bindingsKey(command), roleID).Err(); err != nil {
		return fmt.Errorf("remove binding %s->%s: %w", command, roleID, err)
	}
	return nil
}

func (s *Store) RolesOf(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.rdb.SMembers(ctx, userRolesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load roles of %d: %w", userID, err)
	}
	return roles, nil
}

func (s *Store) GrantRole(ctx context.Context, userID int64, roleID string) error {
	if err := s.rdb.SAdd(ctx, userRolesKey(userID), roleID).Err(); err != nil {
		return fmt.Errorf("grant role %s to %d: %w", roleID, userID, err)
	}
	return nil
}

func (s *Store) RevokeRole(ctx context.Context, userID int64, roleID string) error {
	if err := s.rdb.SRem(ctx, userRolesKey(userID), roleID).Err(); err != nil {
		return fmt.Errorf("revoke role %s from %d: %w", roleID, userID, err)
	}
	return nil
}

func (s *Store) RememberUser(ctx context.Context, userID int64, name string) error {
	if err := s.rdb.HSet(ctx, keyUsers, strconv.FormatInt(userID, 10), name).Err(); err != nil {
		return fmt.Errorf("remember user %d: %w", userID, err)
	}
	return nil
}

func (s *Store) UserName(ctx context.Context, userID int64) (string, error) {
	name, err := s.rdb.HGet(ctx, keyUsers, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up user %d: %w", userID, err)
	}
	return name, nil
}

func sortByStart(reservations []models.Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		a, errA := timeparse.ParseClock(reservations[i].TimeFrom)
		b, errB := timeparse.ParseClock(reservations[j].TimeFrom)
		if errA != nil || errB != nil {
			return reservations[i].TimeFrom < reservations[j].TimeFrom
		}
		return a.Before(b)
	})
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
