package shader

import (
	"strings"
	"testing"
)

func TestProcessIncludeOnce(t *testing.T) {
	src := "//@oxy:include frame_constants\n//@oxy:include frame_constants\nfn f() {}"
	out, err := NewPreProcessor(nil).Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := strings.Count(out, "struct FrameConstants"); n != 1 {
		t.Errorf("FrameConstants injected %d times, want 1", n)
	}
	if !strings.Contains(out, "fn f() {}") {
		t.Errorf("plain source lines should pass through, got:\n%s", out)
	}
}

func TestProcessGroupDeclaration(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
		role AnnotationArg
	}{
		{
			name: "uniform struct",
			line: "//@oxy:group 0 0 storage_uniform frame_constants frame_constants",
			want: "@group(0) @binding(0) var<uniform> frame_constants: FrameConstants;",
			role: RoleFrameConstants,
		},
		{
			name: "read-only array",
			line: "//@oxy:group 0 1 storage_read lights array<point_light>",
			want: "@group(0) @binding(1) var<storage, read> lights: array<PointLight>;",
			role: RoleLights,
		},
		{
			name: "read-write array",
			line: "//@oxy:group 2 0 storage_read_write lit_buffer array<framebuffer_flat_element>",
			want: "@group(2) @binding(0) var<storage, read_write> lit_buffer: array<FramebufferFlatElement>;",
			role: RoleLitBuffer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := NewPreProcessor(nil)
			out, err := pp.Process(tt.line)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
			decls := pp.Declarations()
			if len(decls) != 1 {
				t.Fatalf("got %d declarations, want 1", len(decls))
			}
			if decls[0].Role() != tt.role {
				t.Errorf("role: got %q, want %q", decls[0].Role(), tt.role)
			}
		})
	}
}

func TestProcessProviderRole(t *testing.T) {
	src := "//@oxy:provider 1 1 gbuffer gbuffer_albedo\n//@oxy:provider 1 2 skybox"
	pp := NewPreProcessor(nil)
	out, err := pp.Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.Contains(out, "@oxy") {
		t.Errorf("provider annotations should produce no output, got %q", out)
	}
	decls := pp.Declarations()
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Role() != RoleGBufferAlbedo {
		t.Errorf("explicit role: got %q", decls[0].Role())
	}
	if decls[1].Role() != AnnotationArgSkybox {
		t.Errorf("role should default to the provider identity, got %q", decls[1].Role())
	}
	if *decls[0].Group != 1 || *decls[0].Binding != 1 {
		t.Errorf("slot: got (%d, %d), want (1, 1)", *decls[0].Group, *decls[0].Binding)
	}
}

func TestProcessDefines(t *testing.T) {
	src := "//@oxy:define TILE_DIM 8\nconst A: u32 = TILE_DIM;\nconst B: u32 = TILE_DIM_X;"

	out, err := NewPreProcessor(nil).Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(out, "const A: u32 = 8;") {
		t.Errorf("default value not substituted:\n%s", out)
	}
	if !strings.Contains(out, "TILE_DIM_X") {
		t.Errorf("substitution should match whole words only:\n%s", out)
	}

	pp := NewPreProcessor(Defines{DefineTileDim: "16"})
	out, err = pp.Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(out, "const A: u32 = 16;") {
		t.Errorf("supplied value should win over the default:\n%s", out)
	}
	if got := pp.Defines()[DefineTileDim]; got != "16" {
		t.Errorf("resolved defines: got %q, want 16", got)
	}

	if _, err := NewPreProcessor(nil).Process("//@oxy:define SAMPLE_COUNT\nlet n = SAMPLE_COUNT;"); err == nil {
		t.Error("a macro with no value and no default should be rejected")
	}
}

func TestProcessRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", "//@oxy:"},
		{"unknown type", "//@oxy:frobnicate x"},
		{"unknown include", "//@oxy:include nonexistent"},
		{"include arity", "//@oxy:include frame_constants point_light"},
		{"group arity", "//@oxy:group 0 0 storage_uniform frame_constants"},
		{"group address space", "//@oxy:group 0 0 storage_private frame_constants frame_constants"},
		{"group struct", "//@oxy:group 0 0 storage_uniform x nonexistent"},
		{"group array element", "//@oxy:group 0 0 storage_read x array<nonexistent>"},
		{"group library type", "//@oxy:group 0 0 storage_read x shading"},
		{"negative group", "//@oxy:group -1 0 storage_uniform x frame_constants"},
		{"provider identity", "//@oxy:provider 1 0 nobody"},
		{"provider role", "//@oxy:provider 1 0 gbuffer not_a_role"},
		{"define name", "//@oxy:define lower_case 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPreProcessor(nil).Process(tt.line); err == nil {
				t.Errorf("expected an error for %q", tt.line)
			}
		})
	}
}

func TestProcessIgnoresNonCommentMentions(t *testing.T) {
	src := "let s = \"@oxy:include nonexistent\";"
	out, err := NewPreProcessor(nil).Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out != src {
		t.Errorf("got %q, want the line unchanged", out)
	}
}

func TestProcessProgramsResolveEverything(t *testing.T) {
	for _, samples := range []int{1, 4} {
		for _, program := range Programs() {
			src, _ := ProgramSource(program)
			pp := NewPreProcessor(NewDefines(samples, 16, 128))
			out, err := pp.Process(src)
			if err != nil {
				t.Fatalf("%s (samples %d): %v", program, samples, err)
			}
			if strings.Contains(out, annotationPrefix) {
				t.Errorf("%s: annotations left in output", program)
			}
			for _, name := range []string{DefineSampleCount, DefineTileDim, DefineMaxLights, DefineGBufferTexture, DefineDepthTexture, DefineLitTexture} {
				if strings.Contains(out, name) {
					t.Errorf("%s: macro %s left in output", program, name)
				}
			}
			if n := strings.Count(out, "struct FrameConstants"); n != 1 {
				t.Errorf("%s: FrameConstants defined %d times", program, n)
			}
		}
	}
}

func TestProcessNestedLibraryIncludesOnce(t *testing.T) {
	src, _ := ProgramSource(ProgramLightingTiled)
	out, err := NewPreProcessor(NewDefines(1, 16, 128)).Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// point_light is reached through lighting_inputs directly and through shading
	if n := strings.Count(out, "struct PointLight"); n != 1 {
		t.Errorf("PointLight defined %d times, want 1", n)
	}
	if n := strings.Count(out, "fn accumulate_brdf"); n != 1 {
		t.Errorf("shading library injected %d times, want 1", n)
	}
}
