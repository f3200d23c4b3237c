// Package caption burns a word-wrapped text bar onto the bottom of an
// image. Wrapping is deterministic for identical (image, text) input,
// which the workflow relies on to keep note burns idempotent.
package caption

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	// minBarWidth keeps captions legible on very narrow captures.
	minBarWidth = 320

	minFontSize = 13.0
	maxFontSize = 36.0
	minPadding  = 8.0
	maxPadding  = 28.0
)

// Options controls output encoding.
type Options struct {
	Quality int // JPEG quality, 10-100
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error

	faceMu    sync.Mutex
	faceCache = map[float64]font.Face{}
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	return fontTTF, fontErr
}

// faceForSize returns a cached truetype face. Faces are cached per size so
// repeated burns measure text identically.
func faceForSize(size float64) (font.Face, error) {
	f, err := loadFont()
	if err != nil {
		return nil, err
	}
	faceMu.Lock()
	defer faceMu.Unlock()
	if face, ok := faceCache[size]; ok {
		return face, nil
	}
	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	faceCache[size] = face
	return face, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Compose returns a new image: src centered above a solid caption bar
// containing text, word-wrapped, left-aligned top to bottom.
func Compose(src image.Image, text string) (image.Image, error) {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()

	fontSize := clamp(float64(srcW)/40, minFontSize, maxFontSize)
	padding := clamp(float64(srcW)/60, minPadding, maxPadding)
	face, err := faceForSize(fontSize)
	if err != nil {
		return nil, fmt.Errorf("caption font: %w", err)
	}

	barW := srcW
	if barW < minBarWidth {
		barW = minBarWidth
	}
	avail := float64(barW) - 2*padding

	lines := wrapText(text, avail, face)

	metrics := face.Metrics()
	ascent := float64(metrics.Ascent.Ceil())
	lineHeight := math.Ceil(fontSize * 1.4)
	barH := int(float64(len(lines))*lineHeight + 2*padding)

	dc := gg.NewContext(barW, srcH+barH)
	dc.SetColor(color.RGBA{R: 245, G: 245, B: 245, A: 255})
	dc.Clear()
	dc.DrawImage(src, (barW-srcW)/2, 0)

	dc.SetFontFace(face)
	dc.SetColor(color.RGBA{R: 32, G: 32, B: 32, A: 255})
	for i, line := range lines {
		y := float64(srcH) + padding + float64(i)*lineHeight + ascent
		dc.DrawString(line, padding, y)
	}
	return dc.Image(), nil
}

// Burn reads the image at path, composes the caption bar and atomically
// replaces the file, encoded per its extension.
func Burn(path, text string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	out, err := Compose(src, text)
	if err != nil {
		return err
	}
	return WriteImage(path, out, opts)
}

// WriteImage encodes img to path by extension (.png or JPEG otherwise)
// via a temp file renamed into place.
func WriteImage(path string, img image.Image, opts Options) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".caption-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	tmpName := tmp.Name()

	var encErr error
	if strings.EqualFold(filepath.Ext(path), ".png") {
		encErr = png.Encode(tmp, img)
	} else {
		q := opts.Quality
		if q < 10 || q > 100 {
			q = 85
		}
		encErr = jpeg.Encode(tmp, img, &jpeg.Options{Quality: q})
	}
	closeErr := tmp.Close()
	if encErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("encode image: %w", encErr)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flush image: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace image: %w", err)
	}
	return nil
}

// wrapText greedily packs words into lines no wider than maxWidth. A
// single word wider than a line is split by character, no hyphenation.
func wrapText(text string, maxWidth float64, face font.Face) []string {
	measure := func(s string) float64 {
		return float64(font.MeasureString(face, s).Ceil())
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := ""
		for _, w := range words {
			cand := w
			if cur != "" {
				cand = cur + " " + w
			}
			if measure(cand) <= maxWidth {
				cur = cand
				continue
			}
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			if measure(w) <= maxWidth {
				cur = w
				continue
			}
			var rest string
			lines, rest = splitWord(lines, w, maxWidth, measure)
			cur = rest
		}
		lines = append(lines, cur)
	}
	return lines
}

// splitWord flushes character-chunks of an over-wide word as full lines
// and returns the trailing partial chunk.
func splitWord(lines []string, word string, maxWidth float64, measure func(string) float64) ([]string, string) {
	cur := ""
	for _, r := range word {
		cand := cur + string(r)
		if cur != "" && measure(cand) > maxWidth {
			lines = append(lines, cur)
			cur = string(r)
			continue
		}
		cur = cand
	}
	return lines, cur
}
