// README: GeoResolver turns free-text location strings into coordinates.
package location

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"resortdispatch/internal/types"
)

// ErrUnresolvable is returned when no resolution rule matches. Callers choose
// the fallback (a reference point for display, a prohibitive cost for matching).
var ErrUnresolvable = errors.New("location unresolvable")

const gpsPrefix = "gps:"

var numericToken = regexp.MustCompile(`\d+`)

// Resolver is an immutable view over a location registry snapshot.
type Resolver struct {
	locations []Location
	byName    map[string]Location
	villas    []Location
}

// NewResolver indexes locs. Entries are ordered by name so that every rule
// resolves deterministically.
func NewResolver(locs []Location) *Resolver {
	sorted := make([]Location, 0, len(locs))
	for _, l := range locs {
		if strings.TrimSpace(l.Name) == "" {
			continue
		}
		sorted = append(sorted, l)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	r := &Resolver{
		locations: sorted,
		byName:    make(map[string]Location, len(sorted)),
	}
	for _, l := range sorted {
		key := normalize(l.Name)
		if _, dup := r.byName[key]; !dup {
			r.byName[key] = l
		}
		if l.Type == TypeVilla {
			r.villas = append(r.villas, l)
		}
	}
	return r
}

// Locations returns the indexed registry in resolution order.
func (r *Resolver) Locations() []Location {
	out := make([]Location, len(r.locations))
	copy(out, r.locations)
	return out
}

// Resolve applies, in order: explicit GPS literal, exact case-insensitive
// name, bidirectional substring, and the room-number villa heuristic.
func (r *Resolver) Resolve(s string) (types.Point, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return types.Point{}, ErrUnresolvable
	}
	if p, ok, err := ParseGPS(raw); ok {
		if err != nil {
			return types.Point{}, fmt.Errorf("%w: %v", ErrUnresolvable, err)
		}
		return p, nil
	}

	key := normalize(raw)
	if l, ok := r.byName[key]; ok {
		return l.Position, nil
	}

	if l, ok := r.substringMatch(key); ok {
		return l.Position, nil
	}

	// Heuristic only: guests often type "room 12" for their villa.
	if strings.Contains(key, "room") {
		if tok := numericToken.FindString(key); tok != "" {
			if l, ok := r.villaFor(tok); ok {
				return l.Position, nil
			}
		}
	}
	return types.Point{}, ErrUnresolvable
}

// substringMatch prefers the longest matching registry name.
func (r *Resolver) substringMatch(key string) (Location, bool) {
	var best Location
	found := false
	for _, l := range r.locations {
		name := normalize(l.Name)
		if !strings.Contains(name, key) && !strings.Contains(key, name) {
			continue
		}
		if !found || len(name) > len(normalize(best.Name)) {
			best = l
			found = true
		}
	}
	return best, found
}

func (r *Resolver) villaFor(number string) (Location, bool) {
	if len(r.villas) == 0 {
		return Location{}, false
	}
	for _, v := range r.villas {
		for _, tok := range numericToken.FindAllString(v.Name, -1) {
			if tok == number {
				return v, true
			}
		}
	}
	return r.villas[0], true
}

// ParseGPS parses a "GPS:<lat>,<lng>" literal. ok reports whether s looked
// like a GPS literal at all; err is set when it did but was malformed.
func ParseGPS(s string) (p types.Point, ok bool, err error) {
	raw := strings.TrimSpace(s)
	if len(raw) < len(gpsPrefix) || !strings.EqualFold(raw[:len(gpsPrefix)], gpsPrefix) {
		return types.Point{}, false, nil
	}
	parts := strings.Split(raw[len(gpsPrefix):], ",")
	if len(parts) != 2 {
		return types.Point{}, true, fmt.Errorf("gps literal %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return types.Point{}, true, fmt.Errorf("gps literal %q: latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return types.Point{}, true, fmt.Errorf("gps literal %q: longitude: %w", s, err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return types.Point{}, true, fmt.Errorf("gps literal %q: out of range", s)
	}
	return types.Point{Lat: lat, Lng: lng}, true, nil
}

// FormatGPS renders p as a literal accepted by ParseGPS.
func FormatGPS(p types.Point) string {
	return "GPS:" + strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
