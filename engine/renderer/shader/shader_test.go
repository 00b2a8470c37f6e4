package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

func TestNewShaderAllEntryPoints(t *testing.T) {
	tests := []struct {
		program string
		typ     ShaderType
		entry   string
	}{
		{ProgramGBuffer, ShaderTypeVertex, EntryGBufferVertex},
		{ProgramGBuffer, ShaderTypeFragment, EntryGBufferOpaque},
		{ProgramGBuffer, ShaderTypeFragment, EntryGBufferAlphaTest},
		{ProgramLightingPerPixel, ShaderTypeVertex, EntryFullscreenVertex},
		{ProgramLightingPerPixel, ShaderTypeFragment, EntryLighting},
		{ProgramLightingPerPixel, ShaderTypeFragment, EntryLightingPerSample},
		{ProgramLightingTiled, ShaderTypeCompute, EntryTiled},
		{ProgramCompositeTexture, ShaderTypeVertex, EntrySkyboxVertex},
		{ProgramCompositeTexture, ShaderTypeFragment, EntryComposite},
		{ProgramCompositeBuffer, ShaderTypeVertex, EntrySkyboxVertex},
		{ProgramCompositeBuffer, ShaderTypeFragment, EntryComposite},
	}
	for _, samples := range []int{1, 4} {
		for _, tt := range tests {
			s, err := NewShader(tt.program, tt.typ, tt.entry, NewDefines(samples, 16, 128))
			if err != nil {
				t.Errorf("%s:%s (samples %d): %v", tt.program, tt.entry, samples, err)
				continue
			}
			if s.Program() != tt.program || s.EntryPoint() != tt.entry || s.ShaderType() != tt.typ {
				t.Errorf("%s:%s: identity mismatch", tt.program, tt.entry)
			}
			stage := s.Stage()
			if stage.Program != tt.program || stage.EntryPoint != tt.entry || stage.Source != s.Source() {
				t.Errorf("%s:%s: stage mismatch", tt.program, tt.entry)
			}
		}
	}
}

func TestNewShaderErrors(t *testing.T) {
	defines := NewDefines(1, 16, 128)
	if _, err := NewShader("nonexistent", ShaderTypeFragment, "fs", defines); err == nil {
		t.Error("expected an error for an unknown program")
	}
	if _, err := NewShader(ProgramGBuffer, ShaderTypeFragment, "fs_missing", defines); err == nil {
		t.Error("expected an error for a missing entry point")
	}
	if _, err := NewShader(ProgramGBuffer, ShaderTypeFragment, EntryGBufferVertex, defines); err == nil {
		t.Error("expected an error for an entry point of another stage")
	}
	if _, err := NewShader(ProgramLightingTiled, ShaderTypeCompute, EntryTiled, nil); err == nil {
		t.Error("expected an error when required macros have no value")
	}

	orphan := `
//@oxy:provider 1 0 material albedo_texture
@fragment
fn fs() -> @location(0) vec4<f32> { return vec4<f32>(0.0); }
`
	if _, err := NewShaderFromSource("orphan", ShaderTypeFragment, "fs", orphan, nil); err == nil {
		t.Error("expected an error for a provider annotation with no binding declaration")
	}
}

func TestShaderTiledMetadata(t *testing.T) {
	s, err := NewShader(ProgramLightingTiled, ShaderTypeCompute, EntryTiled, NewDefines(1, 8, 128))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if got := s.WorkgroupSize(); got != [3]uint32{8, 8, 1} {
		t.Errorf("workgroup size: got %v, want [8 8 1]", got)
	}
	if s.VertexLayouts() != nil {
		t.Error("compute shaders have no vertex layouts")
	}

	roles := []struct {
		role           AnnotationArg
		group, binding int
	}{
		{RoleFrameConstants, 0, 0},
		{RoleLights, 0, 1},
		{RoleGBufferNormalSpecular, 1, 0},
		{RoleGBufferAlbedo, 1, 1},
		{RoleGBufferPosZGrad, 1, 2},
		{RoleDepth, 1, 3},
		{RoleLitBuffer, 2, 0},
	}
	for _, r := range roles {
		g, b, ok := s.BindingForRole(r.role)
		if !ok || g != r.group || b != r.binding {
			t.Errorf("BindingForRole(%s): got (%d, %d, %v), want (%d, %d)", r.role, g, b, ok, r.group, r.binding)
		}
	}
	if _, _, ok := s.BindingForRole(RoleLitTexture); ok {
		t.Error("tiled lighting has no lit texture binding")
	}

	if b, ok := s.BindGroupFromVarName(2, "lit_buffer"); !ok || b != 0 {
		t.Errorf("BindGroupFromVarName: got (%d, %v)", b, ok)
	}
	if name := s.BindGroupVarName(1, 1); name != "gbuffer_albedo" {
		t.Errorf("BindGroupVarName(1, 1): got %q", name)
	}
	if s.Defines().Int(DefineTileDim, 0) != 8 {
		t.Errorf("resolved TILE_DIM: got %q", s.Defines()[DefineTileDim])
	}
}

func TestShaderCompositeLitBindings(t *testing.T) {
	tests := []struct {
		program string
		role    AnnotationArg
		typ     gpu.BindingType
	}{
		{ProgramCompositeTexture, RoleLitTexture, gpu.BindingTypeTexture},
		{ProgramCompositeBuffer, RoleLitBuffer, gpu.BindingTypeReadOnlyStorageBuffer},
	}
	for _, tt := range tests {
		s, err := NewShader(tt.program, ShaderTypeFragment, EntryComposite, NewDefines(1, 16, 128))
		if err != nil {
			t.Fatalf("%s: %v", tt.program, err)
		}
		g, b, ok := s.BindingForRole(tt.role)
		if !ok || g != 1 || b != 3 {
			t.Errorf("%s: lit binding at (%d, %d, %v), want (1, 3)", tt.program, g, b, ok)
			continue
		}
		e, _ := s.BindGroupLayout(1).Entry(3)
		if e.Type != tt.typ {
			t.Errorf("%s: lit binding type %d, want %d", tt.program, e.Type, tt.typ)
		}
		if _, _, ok := s.BindingForRole(RoleSkybox); !ok {
			t.Errorf("%s: skybox binding missing", tt.program)
		}
		sampler, _ := s.BindGroupLayout(1).EntryForRole(string(RoleLinearSampler))
		if sampler.Type != gpu.BindingTypeSampler {
			t.Errorf("%s: linear sampler type %d", tt.program, sampler.Type)
		}
	}
}

func TestShaderPerSampleDetection(t *testing.T) {
	tests := []struct {
		entry string
		want  bool
	}{
		{EntryLighting, false},
		{EntryLightingPerSample, true},
	}
	for _, tt := range tests {
		s, err := NewShader(ProgramLightingPerPixel, ShaderTypeFragment, tt.entry, NewDefines(4, 16, 128))
		if err != nil {
			t.Fatalf("%s: %v", tt.entry, err)
		}
		if s.PerSample() != tt.want {
			t.Errorf("%s: PerSample got %v, want %v", tt.entry, s.PerSample(), tt.want)
		}
		if s.Stage().PerSample != tt.want {
			t.Errorf("%s: stage PerSample got %v", tt.entry, s.Stage().PerSample)
		}
	}
}

func TestShaderKeyIncludesDefines(t *testing.T) {
	a, err := NewShader(ProgramLightingTiled, ShaderTypeCompute, EntryTiled, NewDefines(1, 16, 128))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	b, err := NewShader(ProgramLightingTiled, ShaderTypeCompute, EntryTiled, NewDefines(4, 16, 128))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if a.Key() == b.Key() {
		t.Errorf("shaders with different sample counts share key %q", a.Key())
	}
	c, _ := NewShader(ProgramLightingTiled, ShaderTypeCompute, EntryTiled, NewDefines(1, 16, 128))
	if a.Key() != c.Key() {
		t.Errorf("identical shaders have keys %q and %q", a.Key(), c.Key())
	}
}

func TestShaderGBufferVertexLayout(t *testing.T) {
	s, err := NewShader(ProgramGBuffer, ShaderTypeVertex, EntryGBufferVertex, NewDefines(1, 16, 128))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if len(s.VertexLayouts()) != 1 || s.VertexLayouts()[0].ArrayStride != 32 {
		t.Errorf("vertex layouts: got %+v", s.VertexLayouts())
	}
	e, ok := s.BindGroupLayout(1).EntryForRole(string(RoleAlbedoTexture))
	if !ok || e.Binding != 0 {
		t.Errorf("albedo texture role: got %+v, %v", e, ok)
	}
	if len(s.Declarations()) != 3 {
		t.Errorf("declarations: got %d, want 3", len(s.Declarations()))
	}
}

func TestCompileSPIRV(t *testing.T) {
	for _, samples := range []int{1, 4} {
		for _, program := range Programs() {
			compiled, err := CompileSPIRV(program, NewDefines(samples, 16, 128))
			if err != nil {
				t.Errorf("%s (samples %d): %v", program, samples, err)
				continue
			}
			words := compiled.Words()
			if len(words) < 5 || words[0] != spirvMagic {
				t.Errorf("%s (samples %d): module starts with %#x, want %#x", program, samples, words, spirvMagic)
				continue
			}
			if compiled.Program != program || compiled.Defines.Int(DefineSampleCount, 0) != samples {
				t.Errorf("%s (samples %d): compiled %s with %v", program, samples, compiled.Program, compiled.Defines)
			}
		}
	}

	if _, err := CompileSPIRV("missing", NewDefines(1, 16, 128)); err == nil {
		t.Error("CompileSPIRV of an unknown program succeeded")
	}
}
