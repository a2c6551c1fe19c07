package location

import (
	"errors"
	"testing"
)

func TestNewFilter_NormalizesRoles(t *testing.T) {
	f, err := NewFilter(LatLng{Lat: 34.77, Lng: 32.42}, 5, []string{"Engineer", "Designer", "Engineer", ""}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Roles) != 2 {
		t.Fatalf("expected 2 roles after normalization, got %v", f.Roles)
	}
	if f.Roles[0] != "Designer" || f.Roles[1] != "Engineer" {
		t.Fatalf("expected sorted roles, got %v", f.Roles)
	}
}

func TestNewFilter_RejectsNonPositiveRadius(t *testing.T) {
	_, err := NewFilter(LatLng{}, 0, nil, 0)
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
	_, err = NewFilter(LatLng{}, -3, nil, 0)
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestNewFilter_RejectsBadCenter(t *testing.T) {
	_, err := NewFilter(LatLng{Lat: 120, Lng: 0}, 5, nil, 0)
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestFilter_Equal_IgnoresRoleOrder(t *testing.T) {
	a, _ := NewFilter(LatLng{Lat: 1, Lng: 2}, 5, []string{"A", "B"}, 3)
	b, _ := NewFilter(LatLng{Lat: 1, Lng: 2}, 5, []string{"B", "A"}, 3)
	if !a.Equal(b) {
		t.Fatal("filters with same role set in different order should be equal")
	}
}

func TestFilter_Equal_DetectsChanges(t *testing.T) {
	base, _ := NewFilter(LatLng{Lat: 1, Lng: 2}, 5, []string{"A"}, 3)

	radius := base
	radius.RadiusKm = 10
	if base.Equal(radius) {
		t.Fatal("radius change should break equality")
	}

	center := base
	center.Center = LatLng{Lat: 1.1, Lng: 2}
	if base.Equal(center) {
		t.Fatal("center change should break equality")
	}

	rating := base
	rating.MinRating = 4
	if base.Equal(rating) {
		t.Fatal("rating change should break equality")
	}

	roles := base
	roles.Roles = []string{"A", "B"}
	if base.Equal(roles) {
		t.Fatal("role set change should break equality")
	}
}

func TestFilter_MatchesRole(t *testing.T) {
	empty, _ := NewFilter(LatLng{}, 5, nil, 0)
	if !empty.MatchesRole("Anything") {
		t.Fatal("empty role set should match any role")
	}

	restricted, _ := NewFilter(LatLng{}, 5, []string{"Engineer", "Designer"}, 0)
	if !restricted.MatchesRole("Engineer") {
		t.Fatal("expected Engineer to match")
	}
	if restricted.MatchesRole("Manager") {
		t.Fatal("Manager should not match")
	}
}

func TestSubscriptionMode_String(t *testing.T) {
	if ModeInactive.String() != "inactive" ||
		ModeAreaSearch.String() != "area_search" ||
		ModeTargetedWatch.String() != "targeted_watch" {
		t.Fatal("unexpected mode names")
	}
}
