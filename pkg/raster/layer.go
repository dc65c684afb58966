package raster

import (
	"image"
)

// Layer is one input image placed in world space.
type Layer struct {
	// Name identifies the layer in logs and reports, usually the source file name.
	Name string
	// Image is the layer's pixels. It is shared between views and never mutated.
	Image *Image
	// Position is the world-space coordinate of the image's top-left corner.
	Position image.Point
}

// NewLayer wraps img in a layer at the origin.
func NewLayer(name string, img *Image) Layer {
	return Layer{Name: name, Image: img}
}

// Rect returns the layer footprint in world coordinates.
func (l Layer) Rect() image.Rectangle {
	return image.Rectangle{Min: l.Position, Max: l.Position.Add(l.Image.Size())}
}

// Contains reports whether world coordinate p falls inside the layer.
func (l Layer) Contains(p image.Point) bool {
	return p.In(l.Rect())
}

// Pixel returns the color at world coordinate p and whether p is inside the layer.
func (l Layer) Pixel(p image.Point) ([3]uint8, bool) {
	if !l.Contains(p) {
		return [3]uint8{}, false
	}
	q := p.Sub(l.Position)
	return l.Image.RGB(q.X, q.Y), true
}

// Center returns the geometric center of the layer in world coordinates.
func (l Layer) Center() (x, y float64) {
	return float64(l.Position.X) + float64(l.Image.W)/2,
		float64(l.Position.Y) + float64(l.Image.H)/2
}

// View is the ordered working set of layers passed between stages.
type View struct {
	Layers []Layer
}

// NewView wraps the given layers in a view, preserving their order.
func NewView(layers ...Layer) View {
	return View{Layers: layers}
}

// Len returns the number of layers.
func (v View) Len() int {
	return len(v.Layers)
}

// Clone returns a view whose layer slice is independent of v.
// Images are shared since they are immutable.
func (v View) Clone() View {
	if v.Layers == nil {
		return View{}
	}
	layers := make([]Layer, len(v.Layers))
	copy(layers, v.Layers)
	return View{Layers: layers}
}

// Positions returns every layer position in view order.
func (v View) Positions() []image.Point {
	out := make([]image.Point, len(v.Layers))
	for i, l := range v.Layers {
		out[i] = l.Position
	}
	return out
}
