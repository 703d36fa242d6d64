// Package geometry converts pointer coordinates to graph coordinates
// under pan and zoom, and implements grid snapping.
package geometry

import (
	"math"

	"github.com/avendra/flowcanvas/pkg/schema"
)

// Default zoom bounds and grid size for a fresh viewport.
const (
	DefaultMinZoom  = 0.25
	DefaultMaxZoom  = 4.0
	DefaultGridSize = 20.0
)

// Viewport tracks the current pan offset and zoom factor and converts
// between screen space and graph space. Not safe for concurrent use;
// the interaction layer is its sole caller.
type Viewport struct {
	Pan      schema.Position
	zoom     float64
	minZoom  float64
	maxZoom  float64
	gridSize float64
	snapping bool
}

// NewViewport creates a viewport at zoom 1.0 with default bounds and
// grid snapping disabled.
func NewViewport() *Viewport {
	return &Viewport{
		zoom:     1.0,
		minZoom:  DefaultMinZoom,
		maxZoom:  DefaultMaxZoom,
		gridSize: DefaultGridSize,
	}
}

// SetZoomBounds configures the [min, max] zoom range and re-clamps the
// current zoom into it.
func (v *Viewport) SetZoomBounds(min, max float64) {
	if min <= 0 || max < min {
		return
	}
	v.minZoom, v.maxZoom = min, max
	v.SetZoom(v.zoom)
}

// Zoom returns the current zoom factor.
func (v *Viewport) Zoom() float64 { return v.zoom }

// SetZoom sets the zoom factor, clamped to the configured bounds.
func (v *Viewport) SetZoom(z float64) {
	v.zoom = math.Min(math.Max(z, v.minZoom), v.maxZoom)
}

// ZoomBy multiplies the current zoom by factor, clamped.
func (v *Viewport) ZoomBy(factor float64) {
	v.SetZoom(v.zoom * factor)
}

// ZoomAt zooms by factor keeping the given screen point fixed: the graph
// coordinate under the pointer stays under the pointer.
func (v *Viewport) ZoomAt(factor float64, screen schema.Position) {
	anchor := v.ToGraph(screen)
	v.ZoomBy(factor)
	v.Pan = schema.Position{
		X: screen.X - anchor.X*v.zoom,
		Y: screen.Y - anchor.Y*v.zoom,
	}
}

// Reset restores zoom 1.0 and zero pan.
func (v *Viewport) Reset() {
	v.zoom = 1.0
	v.Pan = schema.Position{}
}

// PanBy shifts the pan offset by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.Pan.X += dx
	v.Pan.Y += dy
}

// ToGraph converts a raw pointer position to graph-space coordinates.
func (v *Viewport) ToGraph(screen schema.Position) schema.Position {
	return schema.Position{
		X: (screen.X - v.Pan.X) / v.zoom,
		Y: (screen.Y - v.Pan.Y) / v.zoom,
	}
}

// ToScreen converts a graph-space position back to screen coordinates.
func (v *Viewport) ToScreen(graph schema.Position) schema.Position {
	return schema.Position{
		X: graph.X*v.zoom + v.Pan.X,
		Y: graph.Y*v.zoom + v.Pan.Y,
	}
}

// SetGrid configures the snapping lattice. size <= 0 disables snapping.
func (v *Viewport) SetGrid(size float64, enabled bool) {
	v.gridSize = size
	v.snapping = enabled && size > 0
}

// SnapEnabled reports whether grid snapping is active.
func (v *Viewport) SnapEnabled() bool { return v.snapping }

// Snap rounds a graph-space position to the nearest grid point when
// snapping is enabled. Idempotent: Snap(Snap(p)) == Snap(p).
func (v *Viewport) Snap(p schema.Position) schema.Position {
	if !v.snapping {
		return p
	}
	return schema.Position{
		X: math.Round(p.X/v.gridSize) * v.gridSize,
		Y: math.Round(p.Y/v.gridSize) * v.gridSize,
	}
}
