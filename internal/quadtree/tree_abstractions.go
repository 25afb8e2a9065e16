package quadtree

import (
	"time"

	"github.com/golang/geo/r3"

	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

// Quadtree of globe tiles streamed in as the viewpoint moves. Tick and the viewpoint setters
// must be called from a single goroutine; the query methods may be called from any goroutine.
type ITileTree interface {
	// Sets the viewpoint in absolute cartesian coordinates
	SetViewpoint(viewpoint r3.Vector)

	// Moves the reference origin by delta, tile centers are translated accordingly
	ShiftReferenceOrigin(delta r3.Vector)

	// Runs result intake, finalize, LOD evaluation and deferred tree mutations
	Tick(now time.Time)

	TileCount() int
	ElevationAt(lat, lon float64) (float64, bool)
	Stats() Stats
	Lookup(code string) (TileInfo, bool)

	// Visits the live tiles depth first, stops when fn returns false
	Walk(fn func(tile ITile) bool)

	// Cancels in-flight constructions and detaches every tile
	Close()
}

type ITile interface {
	GetCode() tilecode.TileCode
	GetLevel() int
	GetParent() ITile
	GetChildren() []ITile
	IsRoot() bool
	IsLeaf() bool
	GetState() State
	IsVisible() bool
	IsChildrenVisible() bool
	IsActive() bool
	IsConstructionComplete() bool
}

type State int

const (
	StatePending State = iota
	StateConstructing
	StateAwaitingFinalize

	// Constructed but not evaluated: waiting for the parent to display it
	StateInactive

	StateDisplayed
	StateChildrenDisplayed

	// Construction failed, the tile stays pending
	StateFailed

	StateDeleted
)

var stateNames = [...]string{
	"PENDING",
	"CONSTRUCTING",
	"AWAITING_FINALIZE",
	"INACTIVE",
	"DISPLAYED",
	"CHILDREN_DISPLAYED",
	"FAILED",
	"DELETED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Stats struct {
	Tiles             int `json:"tiles"`
	Pending           int `json:"pending"`
	Constructing      int `json:"constructing"`
	AwaitingFinalize  int `json:"awaiting_finalize"`
	Inactive          int `json:"inactive"`
	Displayed         int `json:"displayed"`
	ChildrenDisplayed int `json:"children_displayed"`
	Failed            int `json:"failed"`
	MaxLevel          int `json:"max_level"`
	Queued            int `json:"queued"`

	// cumulative counters
	Created   int64 `json:"created"`
	Deleted   int64 `json:"deleted"`
	Finalized int64 `json:"finalized"`
	CacheHits int64 `json:"cache_hits"`
	Failures  int64 `json:"failures"`
	Evaluated int64 `json:"evaluated"`
	Dropped   int64 `json:"dropped"`
}

// Snapshot of a single tile
type TileInfo struct {
	Code                 string  `json:"code"`
	Level                int     `json:"level"`
	State                State   `json:"state"`
	Active               bool    `json:"active"`
	Visible              bool    `json:"visible"`
	ChildrenVisible      bool    `json:"children_visible"`
	ConstructionComplete bool    `json:"construction_complete"`
	FromCache            bool    `json:"from_cache"`
	Children             int     `json:"children"`
	DistanceFraction     float64 `json:"distance_fraction"`
}
