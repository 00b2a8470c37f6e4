// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct and library injection, bind group declaration, resource
// provider registration and macro substitution. The parsed results are stored as Annotation
// values and consumed by the PreProcessor and the bind group providers to wire GPU resources
// to binding slots by role instead of by index.
package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects a registered struct definition or WGSL function library
	// at the annotation site. Each key is injected at most once per program; libraries may
	// carry annotations of their own, which are processed as if written in place.
	//
	// Syntax: //@oxy:include <key>
	//
	// Example: //@oxy:include frame_constants
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration and
	// records a declaration whose binding role is the variable name.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 1 storage_read lights array<point_light>
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider registers a resource provider identity for a hand-written
	// binding declaration directly below the annotation. Used for textures and samplers,
	// which have no registered struct. The optional role names the binding's purpose within
	// the provider; when omitted the role is the provider identity.
	//
	// Syntax:
	//   //@oxy:provider <group> <binding> <provider_identity>
	//   //@oxy:provider <group> <binding> <provider_identity> <binding_role>
	//
	// Example: //@oxy:provider 1 1 gbuffer gbuffer_albedo
	AnnotationTypeProvider AnnotationType = "provider"

	// annotationTypeDefine declares a macro the program needs. Every whole-word occurrence
	// of the name in the processed source is replaced with the value supplied to the
	// pre-processor, or with the default when none is supplied.
	//
	// Syntax:
	//   //@oxy:define <NAME>
	//   //@oxy:define <NAME> <default>
	//
	// Example: //@oxy:define SAMPLE_COUNT
	annotationTypeDefine AnnotationType = "define"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct or library key
	//   - group:    [0] = address space, [1] = var name, [2] = WGSL type key
	//   - provider: [0] = provider identity, [1] = binding role (optional)
	//   - define:   [0] = macro name, [1] = default value (optional)
	Args []AnnotationArg

	// Line is the 1-based line number in the source the annotation was read from.
	Line int

	// Group is the @group index for group and provider annotations. Nil otherwise.
	Group *int

	// Binding is the @binding index for group and provider annotations. Nil otherwise.
	Binding *int
}

// Role returns the binding role of a group or provider annotation.
//
// Returns:
//   - AnnotationArg: the var name of a group annotation, the explicit role or identity of a
//     provider annotation, or "" for other annotation types
func (a Annotation) Role() AnnotationArg {
	switch a.Type {
	case AnnotationTypeBindingGroup:
		return a.Args[1]
	case AnnotationTypeProvider:
		if len(a.Args) > 1 {
			return a.Args[1]
		}
		return a.Args[0]
	default:
		return ""
	}
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// These identify registered WGSL struct types. They can appear in @oxy:include annotations
// and as the type of @oxy:group annotations, optionally wrapped in array<>.

const (
	// AnnotationArgFrameConstants identifies the FrameConstants struct.
	// Source: engine/renderer/shading/assets/frame_constants.wgsl
	AnnotationArgFrameConstants AnnotationArg = "frame_constants"

	// AnnotationArgPointLight identifies the PointLight struct.
	// Source: engine/light/assets/point_light.wgsl
	AnnotationArgPointLight AnnotationArg = "point_light"

	// AnnotationArgFramebufferFlatElement identifies the packed RGBA16 lit buffer element.
	// Source: engine/light/assets/framebuffer_flat_element.wgsl
	AnnotationArgFramebufferFlatElement AnnotationArg = "framebuffer_flat_element"

	// annotationArgVertex identifies the VertexInput struct of scene meshes.
	// Source: engine/scene/assets/vertex.wgsl
	annotationArgVertex AnnotationArg = "vertex"
)

// ── Library arguments ──────────────────────────────────────────────────────────
// These identify WGSL function libraries. They can only be included.

const (
	// annotationArgShading identifies the shading function library.
	// Source: engine/renderer/shading/assets/shading.wgsl
	annotationArgShading AnnotationArg = "shading"

	// annotationArgLightingInputs identifies the G-buffer bindings and surface loader shared
	// by both lighting programs.
	// Source: engine/renderer/shader/assets/lighting_inputs.wgsl
	annotationArgLightingInputs AnnotationArg = "lighting_inputs"

	// annotationArgCompositeCommon identifies the skybox vertex stage and per-sample resolve
	// shared by both composite programs.
	// Source: engine/renderer/shader/assets/composite_common.wgsl
	annotationArgCompositeCommon AnnotationArg = "composite_common"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"

	// annotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// ── Provider identity arguments ────────────────────────────────────────────────
// These identify which renderer-level provider owns a binding.

const (
	// AnnotationArgMaterial identifies the per-mesh material provider (albedo texture and sampler).
	AnnotationArgMaterial AnnotationArg = "material"

	// AnnotationArgGBuffer identifies the G-buffer provider (three targets and depth).
	AnnotationArgGBuffer AnnotationArg = "gbuffer"

	// AnnotationArgSkybox identifies the skybox provider (cube texture and sampler).
	AnnotationArgSkybox AnnotationArg = "skybox"

	// AnnotationArgComposite identifies the composite inputs (depth and lit view).
	AnnotationArgComposite AnnotationArg = "composite"
)

// ── Binding role arguments ─────────────────────────────────────────────────────
// These name the purpose of individual bindings. Roles of group annotations are their var
// names and so also appear here.

const (
	// RoleFrameConstants is the per-frame constant block.
	RoleFrameConstants AnnotationArg = "frame_constants"

	// RoleLights is the view-space point light array.
	RoleLights AnnotationArg = "lights"

	// RoleGBufferNormalSpecular is the encoded normal and specular G-buffer target.
	RoleGBufferNormalSpecular AnnotationArg = "gbuffer_normal_specular"

	// RoleGBufferAlbedo is the albedo G-buffer target.
	RoleGBufferAlbedo AnnotationArg = "gbuffer_albedo"

	// RoleGBufferPosZGrad is the view-space z gradient G-buffer target.
	RoleGBufferPosZGrad AnnotationArg = "gbuffer_pos_zgrad"

	// RoleDepth is the G-buffer depth, sampled.
	RoleDepth AnnotationArg = "depth"

	// RoleLitBuffer is the flat packed lit buffer written by tiled lighting.
	RoleLitBuffer AnnotationArg = "lit_buffer"

	// RoleLitTexture is the lit render target written by per-pixel lighting.
	RoleLitTexture AnnotationArg = "lit_texture"

	// RoleSkybox is the skybox cube texture.
	RoleSkybox AnnotationArg = "skybox"

	// RoleLinearSampler is a filtering sampler.
	RoleLinearSampler AnnotationArg = "linear_sampler"

	// RoleAlbedoTexture is a mesh albedo texture.
	RoleAlbedoTexture AnnotationArg = "albedo_texture"
)

// validStructTypes lists the keys accepted as include arguments and as group types.
var validStructTypes = []AnnotationArg{
	AnnotationArgFrameConstants,
	AnnotationArgPointLight,
	AnnotationArgFramebufferFlatElement,
	annotationArgVertex,
}

// validLibraries lists the keys accepted only as include arguments.
var validLibraries = []AnnotationArg{
	annotationArgShading,
	annotationArgLightingInputs,
	annotationArgCompositeCommon,
}

// validAddressSpaces lists the keys accepted as group address spaces.
var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// validProviderIdentities lists the keys accepted as provider identities.
var validProviderIdentities = []AnnotationArg{
	AnnotationArgMaterial,
	AnnotationArgGBuffer,
	AnnotationArgSkybox,
	AnnotationArgComposite,
}

// validBindingRoles lists the keys accepted as provider binding roles.
var validBindingRoles = []AnnotationArg{
	RoleGBufferNormalSpecular,
	RoleGBufferAlbedo,
	RoleGBufferPosZGrad,
	RoleDepth,
	RoleLitTexture,
	RoleSkybox,
	RoleLinearSampler,
	RoleAlbedoTexture,
}

// defineNameRegex restricts macro names to upper-case identifiers so they cannot collide with
// WGSL keywords or variable names.
var defineNameRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		key := AnnotationArg(args[1])
		if !slices.Contains(validStructTypes, key) && !slices.Contains(validLibraries, key) {
			return nil, fmt.Errorf("line %d: unknown struct type or library %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{key},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		groupInt, bindingInt, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		typeArg := args[5]
		if inner, ok := strings.CutPrefix(typeArg, "array<"); ok {
			inner = strings.TrimSuffix(inner, ">")
			if !slices.Contains(validStructTypes, AnnotationArg(inner)) {
				return nil, fmt.Errorf("line %d: unknown array element type %q in @oxy group annotation", lineNum, inner)
			}
		} else if !slices.Contains(validStructTypes, AnnotationArg(typeArg)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, typeArg)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(typeArg)},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	case string(AnnotationTypeProvider):
		if len(args) < 4 || len(args) > 5 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires three or four arguments (group, binding, provider identity[, binding role])", lineNum)
		}
		groupInt, bindingInt, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validProviderIdentities, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown provider identity %q in @oxy provider annotation", lineNum, args[3])
		}
		providerArgs := []AnnotationArg{AnnotationArg(args[3])}
		if len(args) == 5 {
			if !slices.Contains(validBindingRoles, AnnotationArg(args[4])) {
				return nil, fmt.Errorf("line %d: unknown binding role %q in @oxy provider annotation", lineNum, args[4])
			}
			providerArgs = append(providerArgs, AnnotationArg(args[4]))
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    providerArgs,
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	case string(annotationTypeDefine):
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("line %d: @oxy define annotation requires a name and an optional default", lineNum)
		}
		if !defineNameRegex.MatchString(args[1]) {
			return nil, fmt.Errorf("line %d: invalid macro name %q in @oxy define annotation", lineNum, args[1])
		}
		defineArgs := []AnnotationArg{AnnotationArg(args[1])}
		if len(args) == 3 {
			defineArgs = append(defineArgs, AnnotationArg(args[2]))
		}
		return &Annotation{
			Type: annotationTypeDefine,
			Args: defineArgs,
			Line: lineNum,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// parseSlot parses the group and binding indices of a group or provider annotation.
func parseSlot(group, binding string, lineNum int) (int, int, error) {
	groupInt, err := strconv.Atoi(group)
	if err != nil || groupInt < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q", lineNum, group)
	}
	bindingInt, err := strconv.Atoi(binding)
	if err != nil || bindingInt < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q", lineNum, binding)
	}
	return groupInt, bindingInt, nil
}
