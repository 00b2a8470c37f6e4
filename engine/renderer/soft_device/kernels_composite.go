package soft_device

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
)

var compositeRoles = []shader.AnnotationArg{
	shader.RoleFrameConstants,
	shader.RoleDepth,
	shader.RoleSkybox,
	shader.RoleLinearSampler,
}

func init() {
	for _, program := range []string{shader.ProgramCompositeTexture, shader.ProgramCompositeBuffer} {
		registerVertex(program, shader.EntrySkyboxVertex, skyboxVertex, shader.RoleFrameConstants)
	}
	registerFragment(shader.ProgramCompositeTexture, shader.EntryComposite, compositeFragment(litFromTexture),
		append([]shader.AnnotationArg{shader.RoleLitTexture}, compositeRoles...)...)
	registerFragment(shader.ProgramCompositeBuffer, shader.EntryComposite, compositeFragment(litFromBuffer),
		append([]shader.AnnotationArg{shader.RoleLitBuffer}, compositeRoles...)...)
}

// skyboxVertex rotates the skybox cube with the camera and pins it to device depth 0.
func skyboxVertex(b *bindings, in *vertexInput, out *vertexOutput) {
	pos := in.Attributes[0]
	clip := common.MulVec4(b.frame.ViewProj[:], [4]float32{pos[0], pos[1], pos[2], 0})
	out.Position = [4]float32{clip[0], clip[1], 0, clip[3]}
	copy(out.Varyings[:3], pos[:3])
}

type litLoader func(b *bindings, x, y, sample int) [3]float32

func litFromTexture(b *bindings, x, y, sample int) [3]float32 {
	c := b.view(shader.RoleLitTexture).load(0, x, y, sample)
	return [3]float32{c[0], c[1], c[2]}
}

func litFromBuffer(b *bindings, x, y, sample int) [3]float32 {
	width, height, _ := b.frame.Dimensions()
	buf := b.buffer(shader.RoleLitBuffer)
	i := light.FlatElementIndex(x, y, sample, width, height)
	if (i+1)*light.FramebufferFlatElementSize > len(buf) {
		return [3]float32{}
	}
	c := light.DecodeFramebufferFlatElement(buf, i).Unpack()
	return [3]float32{c[0], c[1], c[2]}
}

// compositeFragment resolves every sample of a pixel: the skybox where nothing was drawn,
// the tonemapped lit color elsewhere.
func compositeFragment(load litLoader) fragmentKernel {
	return func(b *bindings, in *fragmentInput, out *fragmentOutput) {
		samples := b.defines.Int(shader.DefineSampleCount, 1)
		dir := [3]float32{in.Varyings[0], in.Varyings[1], in.Varyings[2]}
		sky := b.view(shader.RoleSkybox).sampleCube(b.sampler(shader.RoleLinearSampler), dir)
		depth := b.view(shader.RoleDepth)

		var color [3]float32
		for si := range samples {
			c := [3]float32{sky[0], sky[1], sky[2]}
			if depth.load(0, in.X, in.Y, si)[0] != 0 {
				c = shading.Tonemap(load(b, in.X, in.Y, si))
			}
			for i := range 3 {
				color[i] += c[i]
			}
		}
		n := float32(samples)
		out.Colors[0] = [4]float32{color[0] / n, color[1] / n, color[2] / n, 1}
	}
}
