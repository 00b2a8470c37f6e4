package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
)

// gltfMaterialExtractor turns glTF materials into albedo pixels plus the alpha-test flag.
type gltfMaterialExtractor struct {
	parser *gltfParser
}

func newGLTFMaterialExtractor(parser *gltfParser) *gltfMaterialExtractor {
	return &gltfMaterialExtractor{parser: parser}
}

func (e *gltfMaterialExtractor) extractAll() ([]ModelMaterial, error) {
	doc := e.parser.document
	out := make([]ModelMaterial, len(doc.Materials))
	for i := range doc.Materials {
		m, err := e.extract(i)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

// extract decodes the base color texture and multiplies it by the base color factor. A
// material without a texture becomes a single texel of its factor. MASK and BLEND materials
// are drawn alpha-tested.
func (e *gltfMaterialExtractor) extract(index int) (ModelMaterial, error) {
	mat := &e.parser.document.Materials[index]
	result := ModelMaterial{
		Name:      common.Coalesce(mat.Name, fmt.Sprintf("material_%d", index)),
		AlphaTest: mat.AlphaMode == gltfAlphaModeMask || mat.AlphaMode == gltfAlphaModeBlend,
	}

	factor := [4]float32{1, 1, 1, 1}
	var texInfo *gltfTextureInfo
	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			factor = *pbr.BaseColorFactor
		}
		texInfo = pbr.BaseColorTexture
	}

	if texInfo == nil {
		result.Albedo = solidTexel(factor)
		return result, nil
	}
	if texInfo.TexCoord != 0 {
		return ModelMaterial{}, fmt.Errorf("%w: base color uses TEXCOORD_%d", ErrUnsupported, texInfo.TexCoord)
	}

	tex, err := e.loadTexture(texInfo.Index)
	if err != nil {
		return ModelMaterial{}, fmt.Errorf("%s: base color: %w", result.Name, err)
	}
	pixels, w, h, err := tex.Decode()
	if err != nil {
		return ModelMaterial{}, fmt.Errorf("%s: base color: %w", result.Name, err)
	}
	tint(pixels, factor)
	result.Albedo = common.TextureStagingData{Pixels: pixels, Width: w, Height: h, Layers: 1}
	return result, nil
}

// loadTexture resolves a texture index to its encoded image bytes.
func (e *gltfMaterialExtractor) loadTexture(index int) (*common.ImportedTexture, error) {
	doc := e.parser.document
	if index < 0 || index >= len(doc.Textures) {
		return nil, fmt.Errorf("%w: texture %d out of range", ErrInvalidModel, index)
	}
	src := doc.Textures[index].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) {
		return nil, fmt.Errorf("%w: texture %d has no image", ErrInvalidModel, index)
	}
	img := &doc.Images[*src]
	tex := &common.ImportedTexture{Name: img.Name}

	switch {
	case img.BufferView != nil:
		data, err := e.parser.bufferView(*img.BufferView)
		if err != nil {
			return nil, err
		}
		tex.Data = data
	case strings.HasPrefix(img.URI, "data:"):
		data, _, err := decodeDataURI(img.URI)
		if err != nil {
			return nil, err
		}
		tex.Data = data
	case img.URI != "":
		tex.Path = filepath.Join(e.parser.baseDir, filepath.FromSlash(img.URI))
	default:
		return nil, fmt.Errorf("%w: image %d has no source", ErrInvalidModel, *src)
	}
	return tex, nil
}

// solidTexel encodes a linear RGBA factor as one sRGB texel.
func solidTexel(factor [4]float32) common.TextureStagingData {
	px := []byte{
		toUnorm8(shading.LinearToSRGB(factor[0])),
		toUnorm8(shading.LinearToSRGB(factor[1])),
		toUnorm8(shading.LinearToSRGB(factor[2])),
		toUnorm8(factor[3]),
	}
	return common.TextureStagingData{Pixels: px, Width: 1, Height: 1, Layers: 1}
}

// tint multiplies sRGB pixels by a linear factor in linear space. Alpha is linear already.
func tint(pixels []byte, factor [4]float32) {
	if factor == [4]float32{1, 1, 1, 1} {
		return
	}
	for i := 0; i+3 < len(pixels); i += 4 {
		for c := range 3 {
			lin := shading.SRGBToLinear(float32(pixels[i+c])/255) * factor[c]
			pixels[i+c] = toUnorm8(shading.LinearToSRGB(lin))
		}
		pixels[i+3] = toUnorm8(float32(pixels[i+3]) / 255 * factor[3])
	}
}

func toUnorm8(v float32) uint8 {
	return uint8(shading.Saturate(v)*255 + 0.5)
}
