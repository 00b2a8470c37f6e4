// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// TextureStagingData holds RGBA8 pixel data for a texture pending GPU upload.
// Array and cube textures store their layers back to back.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, layer after layer.
	Pixels []byte
	// Width is the width of each layer in pixels.
	Width uint32
	// Height is the height of each layer in pixels.
	Height uint32
	// Layers is the number of array layers, 1 for a plain 2D texture and 6 for a cube.
	Layers uint32
}

// LayerSize returns the byte size of a single layer.
func (t TextureStagingData) LayerSize() int {
	return int(t.Width) * int(t.Height) * 4
}

// Layer returns the pixel bytes of layer i.
func (t TextureStagingData) Layer(i int) []byte {
	n := t.LayerSize()
	return t.Pixels[i*n : (i+1)*n]
}

// ImportedTexture represents texture data read from an image file or an in-memory image blob.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "albedo", "sky +X").
	Name string

	// Path is the file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures (PNG/JPEG).
	Data []byte

	// Width is the texture width in pixels (populated after Decode).
	Width int

	// Height is the texture height in pixels (populated after Decode).
	Height int
}

// Decode decodes the texture to raw RGBA pixel data.
// Uses either embedded Data bytes or loads from Path on disk.
// Supports PNG and JPEG formats.
//
// Returns:
//   - []byte: raw RGBA pixel data (4 bytes per pixel, row-major order)
//   - uint32: texture width in pixels
//   - uint32: texture height in pixels
//   - error: error if decoding fails
func (t *ImportedTexture) Decode() ([]byte, uint32, uint32, error) {
	img, err := t.image()
	if err != nil {
		return nil, 0, 0, err
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	t.Width = bounds.Dx()
	t.Height = bounds.Dy()

	return rgba.Pix, uint32(t.Width), uint32(t.Height), nil
}

// DecodeSquare decodes the texture and resamples it to a size x size RGBA image.
// Cube map faces must share one square size, so faces of differing resolution are
// brought to a common size with Catmull-Rom filtering.
//
// Parameters:
//   - size: the edge length of the output image in pixels
//
// Returns:
//   - []byte: raw RGBA pixel data of length size*size*4
//   - error: error if decoding fails or size is not positive
func (t *ImportedTexture) DecodeSquare(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}
	img, err := t.image()
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	t.Width = bounds.Dx()
	t.Height = bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if t.Width == size && t.Height == size {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	}
	return dst.Pix, nil
}

// image decodes the texture source into an image.Image.
func (t *ImportedTexture) image() (image.Image, error) {
	if t == nil {
		return nil, fmt.Errorf("texture is nil")
	}

	if len(t.Data) > 0 {
		img, _, err := image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedded image: %w", err)
		}
		return img, nil
	}
	if t.Path == "" {
		return nil, fmt.Errorf("texture has neither data nor path")
	}

	file, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture file %s: %w", t.Path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture file %s: %w", t.Path, err)
	}
	return img, nil
}
