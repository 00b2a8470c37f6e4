package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// ShaderType identifies the pipeline stage a shader entry point runs in.
type ShaderType int

const (
	// ShaderTypeCompute indicates a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL stage attribute name of the shader type.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return "compute"
	}
}

// Visibility returns the bind group visibility flag of the shader type.
func (t ShaderType) Visibility() gpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return gpu.ShaderStageVertex
	case ShaderTypeFragment:
		return gpu.ShaderStageFragment
	case ShaderTypeCompute:
		return gpu.ShaderStageCompute
	default:
		return gpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
// It holds all of the persistent shader data required for pipeline creation and resource binding.
type shader struct {
	key              string
	program          string
	source           string
	shaderType       ShaderType
	bindGroupLayouts map[int]gpu.BindGroupLayout
	bindingVarNames  map[int]map[int]string
	vertexLayouts    []gpu.VertexBufferLayout
	workGroupSize    [3]uint32
	entryPoint       string
	perSample        bool

	pp PreProcessor
}

// Shader defines the interface for one pre-processed and parsed entry point of a WGSL program.
// It exposes the program source, the entry point, the bind group layouts with their binding
// roles, vertex buffer layouts, workgroup size, and the pre-processor declarations needed for
// pipeline creation and resource wiring.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	// It combines the program, the entry point and the macro set.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Program returns the program key the shader was built from.
	//
	// Returns:
	//   - string: the program key, e.g. ProgramLightingTiled
	Program() string

	// Source retrieves the pre-processed WGSL source code of the whole program.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// BindGroupLayout retrieves the bind group layout of one group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - gpu.BindGroupLayout: the layout, or an empty layout if the group is not declared
	BindGroupLayout(group int) gpu.BindGroupLayout

	// BindGroupLayouts retrieves all parsed bind group layouts. Entries are visible to this
	// shader's stage only; the pipeline builder merges the layouts of the stages it combines.
	//
	// Returns:
	//   - map[int]gpu.BindGroupLayout: layouts keyed by group index
	BindGroupLayouts() map[int]gpu.BindGroupLayout

	// BindGroupVarName retrieves the variable name for a given group and binding index, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name associated with the group and binding, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index for a given group and variable name, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index associated with the variable name, or -1 if not found
	//   - bool: true if the variable name was found, false otherwise
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames retrieves all variable names for all bind groups.
	//
	// Returns:
	//   - map[int]map[int]string: variable names keyed by group and binding index
	BindGroupVarNames() map[int]map[int]string

	// BindingForRole locates the binding that carries role.
	//
	// Parameters:
	//   - role: the binding role
	//
	// Returns:
	//   - int: the group index
	//   - int: the binding index
	//   - bool: true if some binding carries role
	BindingForRole(role AnnotationArg) (int, int, bool)

	// VertexLayouts retrieves the vertex buffer layouts of a vertex entry point, one per
	// vertex input struct parameter. Nil for other stages.
	//
	// Returns:
	//   - []gpu.VertexBufferLayout: the vertex buffer layouts
	VertexLayouts() []gpu.VertexBufferLayout

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "cs_tiled")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] as the default when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// PerSample reports whether a fragment entry point reads @builtin(sample_index) and so
	// runs once per covered sample.
	//
	// Returns:
	//   - bool: true for per-sample fragment shaders
	PerSample() bool

	// ShaderType returns the type of the shader (vertex, fragment, or compute).
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// Defines returns the macro values substituted into the program.
	//
	// Returns:
	//   - Defines: the macros the program declared, with their values
	Defines() Defines

	// Declarations returns the group and provider annotations of the program.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation

	// Stage returns the backend-neutral stage description used in pipeline descriptors.
	//
	// Returns:
	//   - gpu.ProgrammableStage: the program, entry point, source and macro set
	Stage() gpu.ProgrammableStage
}

var _ Shader = &shader{}

// NewShader builds one entry point of a registered program.
//
// Parameters:
//   - program: the program key, e.g. ProgramGBuffer
//   - shaderType: the stage the entry point must have
//   - entryPoint: the entry point function name
//   - defines: the macro values the program needs
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the program is unknown, pre-processing fails or the entry point is
//     missing or of another stage
func NewShader(program string, shaderType ShaderType, entryPoint string, defines Defines) (Shader, error) {
	source, ok := ProgramSource(program)
	if !ok {
		return nil, fmt.Errorf("shader: unknown program %q", program)
	}
	return NewShaderFromSource(program, shaderType, entryPoint, source, defines)
}

// NewShaderFromSource builds one entry point of an annotated WGSL source that is not part of
// the registered programs.
//
// Parameters:
//   - program: the key to report as the shader's program
//   - shaderType: the stage the entry point must have
//   - entryPoint: the entry point function name
//   - source: the raw annotated WGSL source
//   - defines: the macro values the source needs
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing or parsing fails
func NewShaderFromSource(program string, shaderType ShaderType, entryPoint, source string, defines Defines) (Shader, error) {
	s := &shader{
		program:    program,
		shaderType: shaderType,
		entryPoint: entryPoint,
		pp:         NewPreProcessor(defines),
	}
	if err := s.parseSource(source); err != nil {
		return nil, fmt.Errorf("shader %s:%s: %w", program, entryPoint, err)
	}
	s.key = program + ":" + entryPoint + "{" + s.pp.Defines().Key() + "}"
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Program() string {
	return s.program
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) VertexLayouts() []gpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) PerSample() bool {
	return s.perSample
}

func (s *shader) BindGroupLayout(group int) gpu.BindGroupLayout {
	return s.bindGroupLayouts[group]
}

func (s *shader) BindGroupLayouts() map[int]gpu.BindGroupLayout {
	return s.bindGroupLayouts
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	if s.bindingVarNames[group] == nil {
		return -1, false
	}
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.bindingVarNames
}

func (s *shader) BindingForRole(role AnnotationArg) (int, int, bool) {
	for g, layout := range s.bindGroupLayouts {
		if e, ok := layout.EntryForRole(string(role)); ok {
			return g, int(e.Binding), true
		}
	}
	return -1, -1, false
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) Defines() Defines {
	return s.pp.Defines()
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

func (s *shader) Stage() gpu.ProgrammableStage {
	return gpu.ProgrammableStage{
		Program:    s.program,
		EntryPoint: s.entryPoint,
		Source:     s.source,
		Defines:    s.pp.Defines(),
		PerSample:  s.perSample,
	}
}

// parseSource pre-processes the program, locates the entry point, and extracts layout
// metadata appropriate for the shader type. Vertex shaders get vertex buffer layouts parsed.
// Compute shaders get workgroup size parsed. All shader types get bind group layouts parsed,
// with binding roles taken from the pre-processor declarations.
func (s *shader) parseSource(raw string) error {
	var err error
	s.source, err = s.pp.Process(raw)
	if err != nil {
		return fmt.Errorf("pre-process: %w", err)
	}

	entries, err := parseEntryPoints(s.source)
	if err != nil {
		return err
	}
	entry, ok := entries[s.entryPoint]
	if !ok {
		return fmt.Errorf("entry point %q not found", s.entryPoint)
	}
	if entry.shaderType != s.shaderType {
		return fmt.Errorf("entry point %q is a %s entry point, not %s", s.entryPoint, entry.shaderType, s.shaderType)
	}

	switch s.shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = parseVertexLayouts(s.source, entry)
	case ShaderTypeFragment:
		s.perSample = usesSampleIndex(s.source, entry)
	case ShaderTypeCompute:
		s.workGroupSize = parseWorkgroupSize(entry.attributes)
	}

	s.bindGroupLayouts, s.bindingVarNames, err = parseBindGroupLayouts(s.source, s.shaderType.Visibility())
	if err != nil {
		return err
	}
	return s.applyRoles()
}

// applyRoles overrides the default variable-name roles with the roles the provider
// annotations declare, and rejects annotations with no matching binding declaration.
func (s *shader) applyRoles() error {
	for _, a := range s.pp.Declarations() {
		g, b := *a.Group, *a.Binding
		layout, ok := s.bindGroupLayouts[g]
		if !ok || s.bindingVarNames[g][b] == "" {
			return fmt.Errorf("line %d: @oxy %s annotation for @group(%d) @binding(%d) has no declaration", a.Line, a.Type, g, b)
		}
		for i := range layout.Entries {
			if layout.Entries[i].Binding == uint32(b) {
				layout.Entries[i].Role = string(a.Role())
			}
		}
	}
	return nil
}
