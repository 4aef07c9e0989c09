// README: Location registry store backed by PostgreSQL, cached in memory.
package location

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"resortdispatch/internal/types"
)

// Source lists the full location registry.
type Source interface {
	ListLocations(ctx context.Context) ([]Location, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, lat, lng
		FROM locations
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		var id, typ string
		if err := rows.Scan(&id, &l.Name, &typ, &l.Position.Lat, &l.Position.Lng); err != nil {
			return nil, err
		}
		l.ID = types.ID(id)
		l.Type = Type(typ)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Registry caches a Resolver built from a Source and rebuilds it once the
// refresh interval has elapsed. A failed refresh keeps serving the previous
// snapshot when there is one.
type Registry struct {
	src     Source
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	resolver *Resolver
	loadedAt time.Time
}

func NewRegistry(src Source, refresh time.Duration) *Registry {
	return &Registry{src: src, refresh: refresh, now: time.Now}
}

func (r *Registry) Resolver(ctx context.Context) (*Resolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolver != nil && r.now().Sub(r.loadedAt) < r.refresh {
		return r.resolver, nil
	}
	locs, err := r.src.ListLocations(ctx)
	if err != nil {
		if r.resolver != nil {
			return r.resolver, nil
		}
		return nil, err
	}
	r.resolver = NewResolver(locs)
	r.loadedAt = r.now()
	return r.resolver, nil
}

// Invalidate forces the next Resolver call to reload.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.resolver = nil
	r.mu.Unlock()
}
