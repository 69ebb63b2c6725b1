package raster

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ToNRGBA returns img as a zero-origin, tightly packed straight-alpha bitmap,
// copying only when the renderer handed back some other layout.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		b := n.Bounds()
		if b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
			return n
		}
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}
