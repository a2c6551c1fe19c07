package location

import (
	"fmt"
	"sort"
)

// DiscoveryFilter is the criteria of an area search: center, radius, an
// optional role set (empty = no role restriction, non-empty = logical OR),
// and a minimum rating. Value-comparable after NewFilter normalization.
type DiscoveryFilter struct {
	Center    LatLng   `json:"center"`
	RadiusKm  float64  `json:"radius_km"`
	Roles     []string `json:"roles,omitempty"`
	MinRating float64  `json:"min_rating"`
}

// NewFilter builds a normalized filter: roles are de-duplicated and sorted so
// that equal criteria compare equal regardless of input order.
func NewFilter(center LatLng, radiusKm float64, roles []string, minRating float64) (DiscoveryFilter, error) {
	f := DiscoveryFilter{
		Center:    center,
		RadiusKm:  radiusKm,
		Roles:     normalizeRoles(roles),
		MinRating: minRating,
	}
	if err := f.Validate(); err != nil {
		return DiscoveryFilter{}, err
	}
	return f, nil
}

// Validate checks filter invariants. Returns ErrInvalidFilter on violation.
func (f DiscoveryFilter) Validate() error {
	if f.RadiusKm <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %.2f", ErrInvalidFilter, f.RadiusKm)
	}
	if !f.Center.Valid() {
		return fmt.Errorf("%w: center out of range (%.4f, %.4f)", ErrInvalidFilter, f.Center.Lat, f.Center.Lng)
	}
	if f.MinRating < 0 {
		return fmt.Errorf("%w: min rating must not be negative, got %.2f", ErrInvalidFilter, f.MinRating)
	}
	return nil
}

// Normalize returns a copy with the role set de-duplicated and sorted.
func (f DiscoveryFilter) Normalize() DiscoveryFilter {
	f.Roles = normalizeRoles(f.Roles)
	return f
}

// Equal reports whether two filters describe the same criteria. Both sides
// are expected to be normalized.
func (f DiscoveryFilter) Equal(o DiscoveryFilter) bool {
	if f.Center != o.Center || f.RadiusKm != o.RadiusKm || f.MinRating != o.MinRating {
		return false
	}
	if len(f.Roles) != len(o.Roles) {
		return false
	}
	for i := range f.Roles {
		if f.Roles[i] != o.Roles[i] {
			return false
		}
	}
	return true
}

// MatchesRole reports whether a role passes the filter's role set.
// An empty role set matches everything.
func (f DiscoveryFilter) MatchesRole(role string) bool {
	if len(f.Roles) == 0 {
		return true
	}
	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func normalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
