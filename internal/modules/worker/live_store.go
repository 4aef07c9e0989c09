// README: Live worker signal (heartbeat time + GPS) backed by a Redis hash and GEO set.
package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"resortdispatch/internal/types"
)

const (
	heartbeatKey = "dispatch:workers:heartbeat"
	geoKey       = "dispatch:workers:geo"
)

type LiveStore struct {
	redis *redis.Client
}

func NewLiveStore(redis *redis.Client) *LiveStore {
	return &LiveStore{redis: redis}
}

// RecordHeartbeat stores the heartbeat time. A heartbeat without a position
// clears the last known one, so a worker whose GPS drops falls back to the
// duration heuristics instead of a stale fix.
func (s *LiveStore) RecordHeartbeat(ctx context.Context, id types.ID, hb Heartbeat) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, heartbeatKey, string(id), strconv.FormatInt(hb.At.UnixMilli(), 10))
	if hb.Position != nil {
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      string(id),
			Longitude: hb.Position.Lng,
			Latitude:  hb.Position.Lat,
		})
	} else {
		pipe.ZRem(ctx, geoKey, string(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *LiveStore) Forget(ctx context.Context, id types.ID) error {
	pipe := s.redis.TxPipeline()
	pipe.HDel(ctx, heartbeatKey, string(id))
	pipe.ZRem(ctx, geoKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot returns the live signal of every id that has one.
func (s *LiveStore) Snapshot(ctx context.Context, ids []types.ID) (map[types.ID]Heartbeat, error) {
	out := make(map[types.ID]Heartbeat, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}

	pipe := s.redis.Pipeline()
	beats := pipe.HMGet(ctx, heartbeatKey, names...)
	positions := pipe.GeoPos(ctx, geoKey, names...)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	vals, err := beats.Result()
	if err != nil {
		return nil, err
	}
	pos, err := positions.Result()
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		raw, ok := vals[i].(string)
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		hb := Heartbeat{At: time.UnixMilli(ms)}
		if i < len(pos) && pos[i] != nil {
			hb.Position = &types.Point{Lat: pos[i].Latitude, Lng: pos[i].Longitude}
		}
		out[id] = hb
	}
	return out, nil
}

// NearbyWorkers lists workers with a known position within radiusM of p,
// nearest first.
func (s *LiveStore) NearbyWorkers(ctx context.Context, p types.Point, radiusM float64) ([]types.ID, error) {
	results, err := s.redis.GeoRadius(ctx, geoKey, p.Lng, p.Lat, &redis.GeoRadiusQuery{
		Radius: radiusM,
		Unit:   "m",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r.Name)
	}
	return ids, nil
}
