package annotate

import (
	"image"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font

	faceMu    sync.Mutex
	faceCache = map[float64]font.Face{}
)

func faceForSize(size float64) font.Face {
	fontOnce.Do(func() {
		// goregular ships with the toolchain's x/image fonts and
		// always parses.
		fontTTF, _ = truetype.Parse(goregular.TTF)
	})
	faceMu.Lock()
	defer faceMu.Unlock()
	if face, ok := faceCache[size]; ok {
		return face
	}
	face := truetype.NewFace(fontTTF, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	faceCache[size] = face
	return face
}

func measureText(text string, size float64) (w, h float64) {
	if size <= 0 {
		size = defaultFontSize
	}
	face := faceForSize(size)
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		lw := float64(font.MeasureString(face, line).Ceil())
		if lw > w {
			w = lw
		}
	}
	lineHeight := math.Ceil(size * 1.3)
	h = float64(len(lines)) * lineHeight
	// Even an empty item needs a clickable footprint.
	if w < size {
		w = size
	}
	return w, h
}

// Composite renders the base image plus every committed item, in
// insertion order, at native resolution. The output covers CanvasBounds,
// so items placed beyond the base image's edges stay visible. With no
// items the base image is returned unchanged.
func (e *Engine) Composite() image.Image {
	return e.render(e.items)
}

// PreviewComposite is Composite plus the in-progress drag item, for
// live rendering while the pointer is down.
func (e *Engine) PreviewComposite() image.Image {
	it, ok := e.InProgress()
	if !ok {
		return e.render(e.items)
	}
	return e.render(append(cloneItems(e.items), it))
}

func (e *Engine) render(items []Item) image.Image {
	if len(items) == 0 {
		return e.base
	}

	cb := canvasBoundsOf(e.base, items)
	w := int(math.Ceil(cb.Width))
	h := int(math.Ceil(cb.Height))

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(e.base, int(math.Round(float64(e.base.Bounds().Min.X)-cb.X)), int(math.Round(float64(e.base.Bounds().Min.Y)-cb.Y)))

	dc.Translate(-cb.X, -cb.Y)
	for _, it := range items {
		drawItem(dc, it)
	}
	return dc.Image()
}

func drawItem(dc *gg.Context, it Item) {
	dc.SetColor(it.Color)
	switch it.Kind {
	case KindStroke:
		if len(it.Points) < 2 {
			return
		}
		dc.SetLineWidth(it.Width)
		dc.SetLineCapRound()
		dc.SetLineJoinRound()
		dc.MoveTo(it.Points[0].X, it.Points[0].Y)
		for _, p := range it.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.Stroke()
	case KindArrow:
		drawArrow(dc, it)
	case KindRect:
		dc.SetLineWidth(it.Width)
		dc.DrawRectangle(it.Box.X, it.Box.Y, it.Box.Width, it.Box.Height)
		dc.Stroke()
	case KindEllipse:
		dc.SetLineWidth(it.Width)
		dc.DrawEllipse(it.Box.X+it.Box.Width/2, it.Box.Y+it.Box.Height/2, it.Box.Width/2, it.Box.Height/2)
		dc.Stroke()
	case KindText:
		drawText(dc, it)
	}
}

func drawArrow(dc *gg.Context, it Item) {
	dx := it.End.X - it.Start.X
	dy := it.End.Y - it.Start.Y
	length := math.Hypot(dx, dy)
	if length < 0.1 {
		return
	}
	dx /= length
	dy /= length

	head := arrowHeadSize(it.Width)
	const headAngle = 0.5 // radians off the shaft

	// Shaft stops where the head begins so the tip stays sharp.
	shaftX := it.End.X - head*dx
	shaftY := it.End.Y - head*dy
	dc.SetLineWidth(it.Width)
	dc.DrawLine(it.Start.X, it.Start.Y, shaftX, shaftY)
	dc.Stroke()

	baseX1 := it.End.X - head*dx + head*dy*headAngle
	baseY1 := it.End.Y - head*dy - head*dx*headAngle
	baseX2 := it.End.X - head*dx - head*dy*headAngle
	baseY2 := it.End.Y - head*dy + head*dx*headAngle
	dc.MoveTo(it.End.X, it.End.Y)
	dc.LineTo(baseX1, baseY1)
	dc.LineTo(baseX2, baseY2)
	dc.ClosePath()
	dc.Fill()
}

func drawText(dc *gg.Context, it Item) {
	size := it.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	face := faceForSize(size)
	dc.SetFontFace(face)
	ascent := float64(face.Metrics().Ascent.Ceil())
	lineHeight := math.Ceil(size * 1.3)
	for i, line := range strings.Split(it.Text, "\n") {
		dc.DrawString(line, it.Origin.X, it.Origin.Y+ascent+float64(i)*lineHeight)
	}
}
