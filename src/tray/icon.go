package tray

import (
	"bytes"
	"image/color"
	"image/png"
	"log"

	"github.com/fogleman/gg"
)

// IconPNG is the tray icon, rendered once at startup: a dashed
// selection frame with a marker dot, on a transparent background.
var IconPNG = renderIcon()

func renderIcon() []byte {
	const size = 32
	dc := gg.NewContext(size, size)

	dc.SetColor(color.RGBA{0, 120, 212, 255})
	dc.SetLineWidth(2.5)
	dc.SetDash(4, 3)
	dc.DrawRectangle(4, 4, 24, 18)
	dc.Stroke()

	dc.SetDash()
	dc.SetColor(color.RGBA{224, 49, 49, 255})
	dc.DrawCircle(23, 24, 5)
	dc.Fill()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		log.Printf("tray: icon render failed: %v", err)
		return nil
	}
	return buf.Bytes()
}
