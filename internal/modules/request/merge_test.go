package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resortdispatch/internal/types"
)

var mergeBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ride(id string, party int, status Status, created time.Time) *Request {
	return &Request{
		ID:          types.ID(id),
		Domain:      DomainRide,
		Status:      status,
		PartySize:   party,
		Pickup:      "Main Lobby",
		Destination: "Beach Grill",
		RoomNumber:  "R" + id,
		GuestName:   "Guest " + id,
		CreatedAt:   created,
	}
}

func TestCanMerge(t *testing.T) {
	cases := []struct {
		name string
		a, b *Request
		want bool
	}{
		{"fits", ride("a", 3, StatusSearching, mergeBase), ride("b", 4, StatusSearching, mergeBase), true},
		{"exactly seven", ride("a", 6, StatusSearching, mergeBase), ride("b", 1, StatusSearching, mergeBase), true},
		{"four and four", ride("a", 4, StatusSearching, mergeBase), ride("b", 4, StatusSearching, mergeBase), false},
		{"assigned", ride("a", 1, StatusAssigned, mergeBase), ride("b", 1, StatusSearching, mergeBase), false},
		{"completed", ride("a", 1, StatusCompleted, mergeBase), ride("b", 1, StatusSearching, mergeBase), false},
		{"same request", ride("a", 1, StatusSearching, mergeBase), ride("a", 1, StatusSearching, mergeBase), false},
		{"nil", ride("a", 1, StatusSearching, mergeBase), nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanMerge(tc.a, tc.b))
		})
	}

	svc := &Request{ID: "s", Domain: DomainService, Status: StatusSearching}
	assert.False(t, CanMerge(ride("a", 1, StatusSearching, mergeBase), svc))
}

func TestMergeCombinesFields(t *testing.T) {
	early := ride("a", 2, StatusSearching, mergeBase)
	early.Notes = "wheelchair"
	late := ride("b", 3, StatusSearching, mergeBase.Add(2*time.Minute))
	late.Pickup = "Ocean Villa 12"
	late.Notes = "  "

	merged, absorbed, err := Merge(late, early)
	require.NoError(t, err)
	assert.Equal(t, early.ID, merged.ID)
	assert.Equal(t, late.ID, absorbed)
	assert.Equal(t, "Ra+Rb", merged.RoomNumber)
	assert.Equal(t, "Guest a + Guest b", merged.GuestName)
	assert.Equal(t, "wheelchair", merged.Notes)
	assert.Equal(t, 5, merged.PartySize)
	assert.Equal(t, mergeBase, merged.CreatedAt)
	assert.Equal(t, "Main Lobby", merged.Pickup, "geography comes from the earlier request")

	late.Notes = "two suitcases"
	merged, _, err = Merge(early, late)
	require.NoError(t, err)
	assert.Equal(t, "wheelchair | two suitcases", merged.Notes)
}

func TestMergeRejections(t *testing.T) {
	_, _, err := Merge(ride("a", 4, StatusSearching, mergeBase), ride("b", 4, StatusSearching, mergeBase))
	assert.ErrorIs(t, err, ErrCapacity)

	_, _, err = Merge(ride("a", 1, StatusCompleted, mergeBase), ride("b", 1, StatusSearching, mergeBase))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCombinablePairs(t *testing.T) {
	reqs := []Request{
		*ride("c", 4, StatusSearching, mergeBase.Add(3*time.Minute)),
		*ride("a", 4, StatusSearching, mergeBase),
		*ride("b", 2, StatusSearching, mergeBase.Add(time.Minute)),
		*ride("d", 1, StatusAssigned, mergeBase),
	}
	reqs[2].Destination = "Spa"

	pairs := CombinablePairs(reqs)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{A: "a", B: "b", PartySize: 6, SameRoute: false}, pairs[0])
	assert.Equal(t, Pair{A: "b", B: "c", PartySize: 6, SameRoute: false}, pairs[1])

	// a(4)+c(4) is never offered
	for _, p := range pairs {
		assert.False(t, p.A == "a" && p.B == "c")
	}
}
