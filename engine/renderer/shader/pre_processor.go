// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected struct and library source, substitutes macros, and collects a declarations
// list that the bind group providers use to wire GPU resources by role.
//
// The pre-processor maintains two registries:
//   - structRegistry: maps AnnotationArg keys to embedded WGSL struct or library sources and
//     their resolved type names. Used by @oxy:include (to inject the source) and
//     @oxy:group (to resolve the WGSL type name in the generated declaration).
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// maxIncludeDepth bounds library nesting.
const maxIncludeDepth = 8

// registryEntry pairs a WGSL source string (embedded from a .wgsl asset file) with the
// WGSL type name used in generated @group/@binding declarations. Libraries have no Type.
type registryEntry struct {
	// Source is the raw WGSL text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations (e.g. "FrameConstants").
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps include keys to their embedded WGSL source and type name.
	structRegistry map[AnnotationArg]registryEntry

	// addressSpaceRegistry maps address space argument keys to WGSL var<> syntax strings.
	addressSpaceRegistry map[AnnotationArg]string

	// defines holds the caller-supplied macro values.
	defines Defines

	// declarations accumulates group and provider annotations during a Process call.
	declarations []Annotation

	// resolved holds the value substituted for every macro declared during a Process call.
	resolved Defines

	// included records which keys were injected during a Process call.
	included map[AnnotationArg]bool
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with generated declarations or injected sources while collecting
// a declarations list for downstream resource wiring.
type PreProcessor interface {
	// Process takes raw WGSL shader source code and pre-processes it. @oxy:include
	// annotations are replaced with the registered source, itself pre-processed, the first
	// time a key is seen and dropped after that. @oxy:group annotations are replaced with
	// generated @group/@binding variable declarations. @oxy:provider and @oxy:define
	// annotations produce no WGSL output. Finally every declared macro is substituted.
	//
	// The declarations list is reset at the start of each call and can be retrieved
	// via Declarations() after Process returns.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code
	//   - error: an error if any annotation is malformed, a declared macro has no value, or
	//     includes nest too deeply
	Process(source string) (string, error)

	// Declarations returns the group and provider annotations collected during the most
	// recent call to Process, in source order with library annotations at their include site.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation

	// Defines returns the macro values substituted during the most recent call to Process.
	// Only macros the source declared are present.
	//
	// Returns:
	//   - Defines: the resolved macro set
	Defines() Defines
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with all registered struct types, libraries and
// address space mappings pre-populated.
//
// Parameters:
//   - defines: the macro values to substitute, may be nil when the source declares none
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(defines Defines) PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgFrameConstants:         {Source: shading.GPUFrameConstantsSource, Type: "FrameConstants"},
			AnnotationArgPointLight:             {Source: light.GPUPointLightSource, Type: "PointLight"},
			AnnotationArgFramebufferFlatElement: {Source: light.GPUFramebufferFlatElementSource, Type: "FramebufferFlatElement"},
			annotationArgVertex:                 {Source: scene.GPUVertexSource, Type: "VertexInput"},
			annotationArgShading:                {Source: shading.GPUShadingLibrarySource},
			annotationArgLightingInputs:         {Source: lightingInputsSource},
			annotationArgCompositeCommon:        {Source: compositeCommonSource},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
		defines: defines,
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	p.resolved = make(Defines)
	p.included = make(map[AnnotationArg]bool)

	out, err := p.process(source, 0)
	if err != nil {
		return "", err
	}

	// longest names first so no macro is a prefix of one substituted after it
	names := make([]string, 0, len(p.resolved))
	for name := range p.resolved {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int { return len(b) - len(a) })
	for _, name := range names {
		re := regexp.MustCompile(`\b` + name + `\b`)
		out = re.ReplaceAllLiteralString(out, p.resolved[name])
	}
	return out, nil
}

func (p *preProcessor) process(source string, depth int) (string, error) {
	if depth > maxIncludeDepth {
		return "", fmt.Errorf("includes nested deeper than %d", maxIncludeDepth)
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			key := a.Args[0]
			if p.included[key] {
				continue
			}
			entry, ok := p.structRegistry[key]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, key)
			}
			p.included[key] = true
			text, err := p.process(entry.Source, depth+1)
			if err != nil {
				return "", fmt.Errorf("include %s: %w", key, err)
			}
			out = append(out, text)
		case AnnotationTypeBindingGroup:
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			varName := string(a.Args[1])
			var wgslType string
			if inner, ok := strings.CutPrefix(string(a.Args[2]), "array<"); ok {
				inner = strings.TrimSuffix(inner, ">")
				wgslType = fmt.Sprintf("array<%s>", p.structRegistry[AnnotationArg(inner)].Type)
			} else {
				wgslType = p.structRegistry[a.Args[2]].Type
			}

			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, varName, wgslType))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		case annotationTypeDefine:
			name := string(a.Args[0])
			value, ok := p.defines[name]
			if !ok && len(a.Args) > 1 {
				value, ok = string(a.Args[1]), true
			}
			if !ok {
				return "", fmt.Errorf("line %d: no value for macro %s", i+1, name)
			}
			p.resolved[name] = value
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) Defines() Defines {
	return p.resolved
}
