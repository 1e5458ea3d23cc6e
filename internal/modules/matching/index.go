// README: GeoIndex; radius search over the collector registry that degrades to empty on failure.
package matching

import (
	"context"

	"github.com/sirupsen/logrus"

	"wastelink/internal/modules/location"
	"wastelink/internal/types"
)

type GeoStore interface {
	Nearby(ctx context.Context, role types.Role, p types.Point, radiusM float64) ([]Candidate, error)
	Verified(ctx context.Context, ids []types.ID) (map[types.ID]bool, error)
}

type Index struct {
	store  GeoStore
	logger *logrus.Logger
}

func NewIndex(store GeoStore, logger *logrus.Logger) *Index {
	return &Index{store: store, logger: logger}
}

// FindWithinRadius returns candidates matching f within radiusM of p, nearest
// first. It never fails: a malformed query or a store error yields no candidates.
func (ix *Index) FindWithinRadius(ctx context.Context, p types.Point, radiusM float64, f Filter) []Candidate {
	if !p.Valid() || radiusM <= 0 || f.Role == "" {
		return nil
	}
	hits, err := ix.store.Nearby(ctx, f.Role, p, radiusM)
	if err != nil {
		ix.logger.WithError(err).WithField("role", f.Role).Warn("geo search failed")
		return nil
	}

	// The store's own radius check is not trusted; re-measure every hit.
	within := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		d := location.DistanceMeters(p, h.Position)
		if d > radiusM {
			continue
		}
		h.DistanceM = d
		within = append(within, h)
	}

	if f.VerifiedOnly && len(within) > 0 {
		ids := make([]types.ID, len(within))
		for i, c := range within {
			ids[i] = c.ID
		}
		verified, err := ix.store.Verified(ctx, ids)
		if err != nil {
			ix.logger.WithError(err).Warn("verification lookup failed")
			return nil
		}
		kept := within[:0]
		for _, c := range within {
			if verified[c.ID] {
				kept = append(kept, c)
			}
		}
		within = kept
	}

	location.SortByDistance(within, func(c Candidate) float64 { return c.DistanceM })
	return within
}
