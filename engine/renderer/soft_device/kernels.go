package soft_device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
)

const (
	maxAttributes   = 8
	maxVaryings     = 12
	maxColorTargets = 4
)

// vertexInput is one vertex fetched for a vertex kernel. Attributes are indexed by shader location.
type vertexInput struct {
	VertexIndex   int
	InstanceIndex int
	Attributes    [maxAttributes][4]float32
}

// vertexOutput is the clip position and the interpolated outputs of one vertex.
type vertexOutput struct {
	Position [4]float32
	Varyings [maxVaryings]float32
}

// fragmentInput is one fragment invocation. Position holds the framebuffer position of the
// shading point, its depth and 1/w.
type fragmentInput struct {
	Position    [4]float32
	X, Y        int
	Sample      int
	FrontFacing bool
	Instance    int
	Varyings    [maxVaryings]float32

	tri *triangle
}

// ddx returns the change of varying i one pixel to the right.
func (in *fragmentInput) ddx(i int) float32 {
	return in.tri.varyingAt(i, in.Position[0]+1, in.Position[1]) - in.Varyings[i]
}

// ddy returns the change of varying i one pixel down.
func (in *fragmentInput) ddy(i int) float32 {
	return in.tri.varyingAt(i, in.Position[0], in.Position[1]+1) - in.Varyings[i]
}

// fragmentOutput holds the colors a fragment kernel writes, one per color target.
type fragmentOutput struct {
	Colors  [maxColorTargets][4]float32
	Discard bool
}

type vertexKernel func(b *bindings, in *vertexInput, out *vertexOutput)

type fragmentKernel func(b *bindings, in *fragmentInput, out *fragmentOutput)

// computeKernel runs every invocation of workgroup group.
type computeKernel func(b *bindings, group [3]int, size [3]uint32)

var (
	vertexKernels   = map[string]vertexKernel{}
	fragmentKernels = map[string]fragmentKernel{}
	computeKernels  = map[string]computeKernel{}

	// kernelRoles lists the binding roles each kernel reads.
	kernelRoles = map[string][]shader.AnnotationArg{}
)

func kernelKey(program, entry string) string {
	return program + ":" + entry
}

func registerVertex(program, entry string, k vertexKernel, roles ...shader.AnnotationArg) {
	vertexKernels[kernelKey(program, entry)] = k
	kernelRoles[kernelKey(program, entry)] = roles
}

func registerFragment(program, entry string, k fragmentKernel, roles ...shader.AnnotationArg) {
	fragmentKernels[kernelKey(program, entry)] = k
	kernelRoles[kernelKey(program, entry)] = roles
}

func registerCompute(program, entry string, k computeKernel, roles ...shader.AnnotationArg) {
	computeKernels[kernelKey(program, entry)] = k
	kernelRoles[kernelKey(program, entry)] = roles
}

func lookupVertexKernel(s gpu.ProgrammableStage) (vertexKernel, bool) {
	k, ok := vertexKernels[kernelKey(s.Program, s.EntryPoint)]
	return k, ok
}

func lookupFragmentKernel(s gpu.ProgrammableStage) (fragmentKernel, bool) {
	k, ok := fragmentKernels[kernelKey(s.Program, s.EntryPoint)]
	return k, ok
}

func lookupComputeKernel(s gpu.ProgrammableStage) (computeKernel, bool) {
	k, ok := computeKernels[kernelKey(s.Program, s.EntryPoint)]
	return k, ok
}

// stageRoles returns the binding roles the kernels of stages read.
func stageRoles(stages ...gpu.ProgrammableStage) []shader.AnnotationArg {
	var roles []shader.AnnotationArg
	for _, s := range stages {
		roles = append(roles, kernelRoles[kernelKey(s.Program, s.EntryPoint)]...)
	}
	return roles
}

// bindings is the resolved resource set of one draw or dispatch, keyed by binding role.
// It is read-only once built, so kernels share it across workers.
type bindings struct {
	defines shader.Defines
	roles   map[string]*bindGroupEntry

	frame    shading.GPUFrameConstants
	hasFrame bool
	lights   []light.GPUPointLight
}

// newBindings matches every slot of layouts with the bind group set on it.
func newBindings(layouts []gpu.BindGroupLayout, groups map[int]*bindGroup, defines map[string]string) (*bindings, error) {
	b := &bindings{
		defines: defines,
		roles:   make(map[string]*bindGroupEntry),
	}
	for g, layout := range layouts {
		if len(layout.Entries) == 0 {
			continue
		}
		bg := groups[g]
		if bg == nil {
			return nil, fmt.Errorf("%w: bind group %d not set", gpu.ErrInvalidConfig, g)
		}
		if err := bg.check("draw"); err != nil {
			return nil, err
		}
		for _, le := range layout.Entries {
			e, ok := bg.entries[le.Binding]
			if !ok {
				return nil, fmt.Errorf("%w: bind group %d has no binding %d", gpu.ErrInvalidConfig, g, le.Binding)
			}
			if le.Role != "" {
				b.roles[le.Role] = e
			}
		}
	}

	if e, ok := b.roles[string(shader.RoleFrameConstants)]; ok {
		frame, err := shading.DecodeFrameConstants(e.bytes())
		if err != nil {
			return nil, err
		}
		b.frame, b.hasFrame = frame, true
	}
	if e, ok := b.roles[string(shader.RoleLights)]; ok {
		limit := len(e.bytes()) / light.GPUPointLight{}.Size()
		if b.hasFrame {
			limit = min(limit, int(b.frame.LightCount))
		}
		b.lights = light.DecodePointLights(e.bytes(), limit)
	}
	return b, nil
}

func (b *bindings) entry(role shader.AnnotationArg) *bindGroupEntry {
	return b.roles[string(role)]
}

func (b *bindings) view(role shader.AnnotationArg) *textureView {
	if e := b.entry(role); e != nil {
		return e.view
	}
	return nil
}

func (b *bindings) sampler(role shader.AnnotationArg) *sampler {
	if e := b.entry(role); e != nil {
		return e.sampler
	}
	return nil
}

func (b *bindings) buffer(role shader.AnnotationArg) []byte {
	if e := b.entry(role); e != nil {
		return e.bytes()
	}
	return nil
}

// require reports the first role in roles that has no binding.
func (b *bindings) require(roles []shader.AnnotationArg) error {
	for _, r := range roles {
		if b.entry(r) == nil {
			return fmt.Errorf("%w: no binding for %s", gpu.ErrInvalidConfig, r)
		}
	}
	return nil
}
