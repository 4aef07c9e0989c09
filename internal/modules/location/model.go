// README: Location registry entries (static reference data).
package location

import "resortdispatch/internal/types"

type Type string

const (
	TypeVilla      Type = "VILLA"
	TypeFacility   Type = "FACILITY"
	TypeRestaurant Type = "RESTAURANT"
)

type Location struct {
	ID       types.ID    `json:"id"`
	Name     string      `json:"name"`
	Type     Type        `json:"type"`
	Position types.Point `json:"position"`
}
