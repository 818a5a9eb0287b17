package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"glasscast/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Domain errors surfaced by the favorites store.
var (
	ErrAlreadyFavorite = errors.New("city is already a favorite")
	ErrNotPersisted    = errors.New("favorite has no assigned id")
)

// pgUndefinedTable is the SQLSTATE Postgres reports when the
// favorite_cities table has not been provisioned yet.
const pgUndefinedTable = "42P01"

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FavoritesStore provides CRUD on the remote favorite_cities table plus a
// read-through in-memory mirror, most-recently-added first. The mirror is
// updated only after a remote operation confirms success; IsFavorite never
// touches the network.
//
// The duplicate guard in Add is check-then-act against a table with no
// uniqueness constraint: two concurrent adds for the same city can both pass
// the check and both insert. Accepted: the window only opens when one user
// double-submits the same city.
type FavoritesStore struct {
	db     DBTX
	logger *zap.Logger

	mu    sync.Mutex
	cache []models.FavoriteCity
}

func NewFavoritesStore(db DBTX, logger *zap.Logger) *FavoritesStore {
	return &FavoritesStore{db: db, logger: logger}
}

const favoriteColumns = `id, user_id, city_name, lat, lon, created_at`

func scanFavorite(row pgx.Row) (models.FavoriteCity, error) {
	var f models.FavoriteCity
	err := row.Scan(&f.ID, &f.UserID, &f.CityName, &f.Lat, &f.Lon, &f.CreatedAt)
	return f, err
}

// List returns the user's favorites ordered by creation time descending and
// refreshes the in-memory mirror. An unprovisioned table reads as zero
// favorites rather than an error.
func (s *FavoritesStore) List(ctx context.Context, userID string) ([]models.FavoriteCity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+favoriteColumns+`
		 FROM favorite_cities
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		if isUndefinedTable(err) {
			s.logger.Warn("favorite_cities table not provisioned, treating as empty")
			s.setCache(nil)
			return []models.FavoriteCity{}, nil
		}
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var cities []models.FavoriteCity
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		cities = append(cities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	s.setCache(cities)
	return cities, nil
}

// Add inserts a favorite for the snapshot's city. A proximity match against
// the mirror fails fast with ErrAlreadyFavorite before any network call.
func (s *FavoritesStore) Add(ctx context.Context, userID string, snapshot models.WeatherSnapshot) (models.FavoriteCity, error) {
	if s.findCached(snapshot.Coordinates) != nil {
		return models.FavoriteCity{}, ErrAlreadyFavorite
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO favorite_cities (user_id, city_name, lat, lon, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING `+favoriteColumns,
		userID, snapshot.CityName, snapshot.Coordinates.Lat, snapshot.Coordinates.Lon)

	inserted, err := scanFavorite(row)
	if err != nil {
		return models.FavoriteCity{}, fmt.Errorf("failed to add favorite: %w", err)
	}

	s.mu.Lock()
	s.cache = append([]models.FavoriteCity{inserted}, s.cache...)
	s.mu.Unlock()

	s.logger.Info("Added favorite",
		zap.String("city", inserted.CityName),
		zap.String("user_id", userID))

	return inserted, nil
}

// Remove deletes the favorite by its assigned id. A city that was never
// persisted has no id and cannot be removed.
func (s *FavoritesStore) Remove(ctx context.Context, userID string, city models.FavoriteCity) error {
	if city.ID == nil {
		return ErrNotPersisted
	}

	_, err := s.db.Exec(ctx,
		`DELETE FROM favorite_cities WHERE id = $1 AND user_id = $2`,
		*city.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	s.mu.Lock()
	kept := make([]models.FavoriteCity, 0, len(s.cache))
	for _, f := range s.cache {
		if f.ID != nil && *f.ID == *city.ID {
			continue
		}
		kept = append(kept, f)
	}
	s.cache = kept
	s.mu.Unlock()

	s.logger.Info("Removed favorite",
		zap.String("city", city.CityName),
		zap.Int64("id", *city.ID))

	return nil
}

// IsFavorite reports whether a proximity match for the snapshot exists in
// the in-memory mirror. No network round-trip.
func (s *FavoritesStore) IsFavorite(snapshot models.WeatherSnapshot) bool {
	return s.findCached(snapshot.Coordinates) != nil
}

// Find returns the cached favorite matching the snapshot's coordinates, or
// nil when there is none.
func (s *FavoritesStore) Find(snapshot models.WeatherSnapshot) *models.FavoriteCity {
	return s.findCached(snapshot.Coordinates)
}

func (s *FavoritesStore) findCached(coords models.Coordinates) *models.FavoriteCity {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cache {
		if models.SameLocation(s.cache[i].Coordinates(), coords) {
			f := s.cache[i]
			return &f
		}
	}
	return nil
}

// setCache replaces the mirror with its own copy so slices already handed
// to List callers are never rewritten by later mutations.
func (s *FavoritesStore) setCache(cities []models.FavoriteCity) {
	s.mu.Lock()
	s.cache = append([]models.FavoriteCity(nil), cities...)
	s.mu.Unlock()
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
