package raster

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"image/draw"
)

// Image is an immutable RGB raster with 8 bits per channel.
type Image struct {
	W, H int
	// Pix holds the pixels row-major, three bytes (R, G, B) per pixel.
	Pix []uint8
}

// New allocates a black image of the given size.
// Negative dimensions are treated as zero.
func New(w, h int) *Image {
	w, h = max(w, 0), max(h, 0)
	return &Image{W: w, H: h, Pix: make([]uint8, 3*w*h)}
}

// FromImage copies src into a new RGB image. The result has its origin at
// (0, 0) regardless of src.Bounds().Min. Alpha is discarded: color channels
// keep their straight (non-premultiplied) values, so a fully transparent
// pixel keeps its color instead of turning black.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	dst := New(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *Image:
		copy(dst.Pix, s.Pix)
	case *image.NRGBA:
		for y := 0; y < dst.H; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < dst.W; x++ {
				i := dst.offset(x, y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = row[4*x], row[4*x+1], row[4*x+2]
			}
		}
	case *image.RGBA:
		for y := 0; y < dst.H; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < dst.W; x++ {
				p := row[4*x : 4*x+4 : 4*x+4]
				if p[3] != 0xff {
					c := color.NRGBAModel.Convert(color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}).(color.NRGBA)
					p = []uint8{c.R, c.G, c.B}
				}
				i := dst.offset(x, y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = p[0], p[1], p[2]
			}
		}
	case *image.YCbCr:
		// Always opaque; image/draw has a fast conversion for it.
		rgba := image.NewRGBA(image.Rect(0, 0, dst.W, dst.H))
		draw.Draw(rgba, rgba.Bounds(), s, b.Min, draw.Src)
		return FromImage(rgba)
	case *image.NRGBA64:
		for y := 0; y < dst.H; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < dst.W; x++ {
				i := dst.offset(x, y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = row[8*x], row[8*x+2], row[8*x+4]
			}
		}
	default:
		// Premultiplied sources are un-premultiplied through NRGBAModel.
		// Their fully transparent pixels carry no color and come out black.
		for y := 0; y < dst.H; y++ {
			for x := 0; x < dst.W; x++ {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				dst.SetRGB(x, y, [3]uint8{c.R, c.G, c.B})
			}
		}
	}
	return dst
}

func (m *Image) offset(x, y int) int {
	return 3 * (y*m.W + x)
}

// RGB returns the color triple at (x, y). The coordinates must be in range.
func (m *Image) RGB(x, y int) [3]uint8 {
	i := m.offset(x, y)
	return [3]uint8{m.Pix[i], m.Pix[i+1], m.Pix[i+2]}
}

// SetRGB writes the color triple at (x, y). It is intended for constructing an
// image; once handed to a Layer an Image must not be modified.
func (m *Image) SetRGB(x, y int, c [3]uint8) {
	i := m.offset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = c[0], c[1], c[2]
}

// Size returns the image dimensions as a point.
func (m *Image) Size() image.Point {
	return image.Pt(m.W, m.H)
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool {
	return m.W <= 0 || m.H <= 0
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.W, m.H) }

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return color.RGBA{A: 0xff}
	}
	c := m.RGB(x, y)
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
}

// ToRGBA converts the image into a standard library RGBA image.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	for p, q := 0, 0; p < len(m.Pix); p, q = p+3, q+4 {
		out.Pix[q], out.Pix[q+1], out.Pix[q+2], out.Pix[q+3] = m.Pix[p], m.Pix[p+1], m.Pix[p+2], 0xff
	}
	return out
}

// Digest returns a SHA-256 hex digest over the dimensions and pixel data.
// Two images with equal digests are treated as identical by caches.
func (m *Image) Digest() string {
	h := sha256.New()
	var dims [16]byte
	binary.BigEndian.PutUint64(dims[:8], uint64(m.W))
	binary.BigEndian.PutUint64(dims[8:], uint64(m.H))
	h.Write(dims[:])
	h.Write(m.Pix)
	return hex.EncodeToString(h.Sum(nil))
}
