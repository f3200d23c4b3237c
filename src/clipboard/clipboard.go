// Package clipboard is a mutex-guarded wrapper over the system
// pasteboard. Image and file-reference writes succeed independently.
package clipboard

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"sync"

	"golang.design/x/clipboard"
)

var writeMu sync.Mutex

// Init must be called once before any write.
func Init() error {
	return clipboard.Init()
}

// Write places plain text on the clipboard.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// WriteImage places image data on the clipboard. The pasteboard's image
// slot takes PNG, so other encodings are transcoded first.
func WriteImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty image data")
	}
	data, err := ensurePNG(data)
	if err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// ensurePNG passes PNG data through untouched and transcodes anything
// else image.Decode understands.
func ensurePNG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image for clipboard: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode clipboard png: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFileReference places a path on the clipboard as text, the closest
// portable equivalent of a file reference.
func WriteFileReference(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	return Write(path)
}

// Sink adapts this package to the workflow's clipboard interface.
type Sink struct{}

func (Sink) WriteImage(data []byte) error         { return WriteImage(data) }
func (Sink) WriteFileReference(path string) error { return WriteFileReference(path) }
