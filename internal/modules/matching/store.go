// README: Matching store backed by Redis GEO and sets.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wastelink/internal/types"
)

const (
	geoKeyPrefix      = "matching:geo:%s"
	verifiedKey       = "matching:verified"
	dispatchKeyPrefix = "matching:pickup:%s:dispatched_at"
	notifiedKeyPrefix = "matching:pickup:%s:notified"
	// Pickups that sit this long without a dispatch lookup are no longer interesting.
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) SetPosition(ctx context.Context, id types.ID, role types.Role, pos types.Point) error {
	return s.redis.GeoAdd(ctx, geoKey(role), &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// SetVerified mirrors a user's verification flag into the index.
func (s *Store) SetVerified(ctx context.Context, id types.ID, verified bool) error {
	if verified {
		return s.redis.SAdd(ctx, verifiedKey, string(id)).Err()
	}
	return s.redis.SRem(ctx, verifiedKey, string(id)).Err()
}

// Nearby returns members of the role's geo set within radiusM, nearest first.
func (s *Store) Nearby(ctx context.Context, role types.Role, p types.Point, radiusM float64) ([]Candidate, error) {
	results, err := s.redis.GeoSearchLocation(ctx, geoKey(role), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, len(results))
	for i, r := range results {
		out[i] = Candidate{
			ID:        types.ID(r.Name),
			Position:  types.Point{Lat: r.Latitude, Lng: r.Longitude},
			DistanceM: r.Dist,
		}
	}
	return out, nil
}

func (s *Store) Verified(ctx context.Context, ids []types.ID) (map[types.ID]bool, error) {
	out := make(map[types.ID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = string(id)
	}
	flags, err := s.redis.SMIsMember(ctx, verifiedKey, members...).Result()
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		out[id] = flags[i]
	}
	return out, nil
}

// RecordDispatch records the dispatch timestamp and the set of notified collectors for a pickup.
func (s *Store) RecordDispatch(ctx context.Context, pickupID types.ID, collectorIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(dispatchKeyPrefix, pickupID), time.Now().UTC().Format(time.RFC3339), keyTTL)
	if len(collectorIDs) > 0 {
		members := make([]interface{}, len(collectorIDs))
		for i, d := range collectorIDs {
			members[i] = string(d)
		}
		notifiedKey := fmt.Sprintf(notifiedKeyPrefix, pickupID)
		pipe.SAdd(ctx, notifiedKey, members...)
		pipe.Expire(ctx, notifiedKey, keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Notified returns the collectors a pickup was dispatched to.
func (s *Store) Notified(ctx context.Context, pickupID types.ID) ([]types.ID, error) {
	members, err := s.redis.SMembers(ctx, fmt.Sprintf(notifiedKeyPrefix, pickupID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.ID, len(members))
	for i, m := range members {
		out[i] = types.ID(m)
	}
	return out, nil
}

func geoKey(role types.Role) string {
	return fmt.Sprintf(geoKeyPrefix, role)
}
