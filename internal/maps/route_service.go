// README: Driving-time ETA between a worker and a pickup, via the Google Maps Directions API.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"googlemaps.github.io/maps"

	"resortdispatch/internal/types"
)

var ErrNoRoute = errors.New("no route found")

type directionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client directionsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// GetTravelEstimate returns the driving duration and a human readable
// distance between two coordinates.
func (s *RouteService) GetTravelEstimate(ctx context.Context, origin, destination types.Point) (time.Duration, string, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, "", fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, "", ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return leg.Duration, leg.Distance.HumanReadable, nil
}

// EstimateMinutes rounds the driving time up to whole minutes, at least one.
func (s *RouteService) EstimateMinutes(ctx context.Context, from, to types.Point) (int, error) {
	d, _, err := s.GetTravelEstimate(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return int(math.Max(1, math.Ceil(d.Minutes()))), nil
}

// FixedETA answers every estimate with the same placeholder.
type FixedETA int

func (f FixedETA) EstimateMinutes(context.Context, types.Point, types.Point) (int, error) {
	return int(f), nil
}
