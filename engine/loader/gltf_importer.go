package loader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// defaultMaterialName names the white material given to primitives without one.
const defaultMaterialName = "default"

// importGLTF runs the extractors over a parsed document and assembles the Model.
//
// Parameters:
//   - parser: a parser holding a loaded document
//   - fallbackName: the model name used when the default scene is unnamed
//
// Returns:
//   - *Model: the flattened model
//   - error: an extraction error
func importGLTF(parser *gltfParser, fallbackName string) (*Model, error) {
	doc := parser.document
	if doc == nil {
		return nil, fmt.Errorf("%w: no document", ErrInvalidModel)
	}

	submeshes, err := newGLTFMeshExtractor(parser).extractAll()
	if err != nil {
		return nil, fmt.Errorf("meshes: %w", err)
	}
	if len(submeshes) == 0 {
		return nil, fmt.Errorf("%w: no geometry", ErrInvalidModel)
	}
	materials, err := newGLTFMaterialExtractor(parser).extractAll()
	if err != nil {
		return nil, fmt.Errorf("materials: %w", err)
	}

	fallback := -1
	for i := range submeshes {
		if submeshes[i].Material >= 0 {
			continue
		}
		if fallback < 0 {
			fallback = len(materials)
			materials = append(materials, ModelMaterial{
				Name:   defaultMaterialName,
				Albedo: solidTexel([4]float32{1, 1, 1, 1}),
			})
		}
		submeshes[i].Material = fallback
	}

	return &Model{
		Name:      modelName(doc, fallbackName),
		Submeshes: submeshes,
		Materials: materials,
	}, nil
}

// modelName prefers the default scene's name over the file's base name.
func modelName(doc *gltfDocument, fallback string) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	if fallback == "" {
		return "model"
	}
	return strings.TrimSuffix(filepath.Base(fallback), filepath.Ext(fallback))
}
