package caption

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ResizeToMaxWidth downscales img so its width does not exceed maxWidth,
// preserving aspect ratio. maxWidth <= 0 disables scaling; images already
// narrow enough pass through unchanged.
func ResizeToMaxWidth(img image.Image, maxWidth int) image.Image {
	w := img.Bounds().Dx()
	if maxWidth <= 0 || w <= maxWidth {
		return img
	}
	h := img.Bounds().Dy() * maxWidth / w
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
