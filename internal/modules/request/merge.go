// README: Manual merge of two waiting ride requests into one trip.
package request

import (
	"sort"
	"strings"

	"resortdispatch/internal/types"
)

// CanMerge reports whether a and b may share one buggy: both waiting rides
// whose parties fit together.
func CanMerge(a, b *Request) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	if a.Domain != DomainRide || b.Domain != DomainRide {
		return false
	}
	if a.Status != StatusSearching || b.Status != StatusSearching {
		return false
	}
	return a.Seats()+b.Seats() <= MaxPartySize
}

// Merge combines a and b. The earlier request survives and keeps its
// geography; the returned id is the request it absorbs.
func Merge(a, b *Request) (Request, types.ID, error) {
	if !CanMerge(a, b) {
		return Request{}, "", mergeError(a, b)
	}
	first, second := a, b
	if second.CreatedAt.Before(first.CreatedAt) ||
		(second.CreatedAt.Equal(first.CreatedAt) && second.ID < first.ID) {
		first, second = second, first
	}

	merged := *first
	merged.RoomNumber = joinNonEmpty("+", first.RoomNumber, second.RoomNumber)
	merged.GuestName = joinNonEmpty(" + ", first.GuestName, second.GuestName)
	merged.Notes = joinNonEmpty(" | ", first.Notes, second.Notes)
	merged.PartySize = first.Seats() + second.Seats()
	merged.CreatedAt = first.CreatedAt
	return merged, second.ID, nil
}

func mergeError(a, b *Request) error {
	if a != nil && b != nil && a.Seats()+b.Seats() > MaxPartySize {
		return ErrCapacity
	}
	return ErrInvalidState
}

// Pair is a combinable pair offered to the operator. The engine never merges
// on its own.
type Pair struct {
	A         types.ID `json:"idA"`
	B         types.ID `json:"idB"`
	PartySize int      `json:"partySize"`
	SameRoute bool     `json:"sameRoute"`
}

// CombinablePairs lists every pair in reqs that CanMerge accepts, ordered by
// the older request first.
func CombinablePairs(reqs []Request) []Pair {
	sorted := make([]Request, len(reqs))
	copy(sorted, reqs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var out []Pair
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			a, b := &sorted[i], &sorted[j]
			if !CanMerge(a, b) {
				continue
			}
			out = append(out, Pair{
				A:         a.ID,
				B:         b.ID,
				PartySize: a.Seats() + b.Seats(),
				SameRoute: SameRoute(a, b),
			})
		}
	}
	return out
}

// SameRoute compares pickup and destination case-insensitively.
func SameRoute(a, b *Request) bool {
	return strings.EqualFold(strings.TrimSpace(a.Pickup), strings.TrimSpace(b.Pickup)) &&
		strings.EqualFold(strings.TrimSpace(a.Destination), strings.TrimSpace(b.Destination))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
