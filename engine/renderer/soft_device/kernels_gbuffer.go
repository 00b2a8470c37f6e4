package soft_device

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shading"
)

// G-buffer varyings: view position, view normal, texture coordinate.
const (
	varPositionView = 0
	varNormal       = 3
	varTexCoord     = 6
)

func init() {
	registerVertex(shader.ProgramGBuffer, shader.EntryGBufferVertex, gbufferVertex,
		shader.RoleFrameConstants)
	registerFragment(shader.ProgramGBuffer, shader.EntryGBufferOpaque, gbufferOpaque,
		shader.RoleAlbedoTexture, shader.RoleLinearSampler)
	registerFragment(shader.ProgramGBuffer, shader.EntryGBufferAlphaTest, gbufferAlphaTest,
		shader.RoleAlbedoTexture, shader.RoleLinearSampler)
}

func gbufferVertex(b *bindings, in *vertexInput, out *vertexOutput) {
	pos, nrm, uv := in.Attributes[0], in.Attributes[1], in.Attributes[2]
	p := [4]float32{pos[0], pos[1], pos[2], 1}
	out.Position = common.MulVec4(b.frame.WorldViewProj[:], p)
	pv := common.MulVec4(b.frame.WorldView[:], p)
	nv := common.MulVec4(b.frame.WorldView[:], [4]float32{nrm[0], nrm[1], nrm[2], 0})
	copy(out.Varyings[varPositionView:], pv[:3])
	copy(out.Varyings[varNormal:], nv[:3])
	copy(out.Varyings[varTexCoord:], uv[:2])
}

func sampleAlbedo(b *bindings, in *fragmentInput) [4]float32 {
	return b.view(shader.RoleAlbedoTexture).sample2D(b.sampler(shader.RoleLinearSampler), 0,
		in.Varyings[varTexCoord], in.Varyings[varTexCoord+1])
}

func writeGBuffer(in *fragmentInput, albedo [4]float32, out *fragmentOutput) {
	n := common.Normalize3([3]float32{in.Varyings[varNormal], in.Varyings[varNormal+1], in.Varyings[varNormal+2]})
	if !in.FrontFacing {
		n = [3]float32{-n[0], -n[1], -n[2]}
	}
	enc := shading.EncodeSphereMap(n)
	out.Colors[0] = [4]float32{enc[0], enc[1], shading.DefaultSpecularAmount, shading.DefaultSpecularPower}
	out.Colors[1] = albedo
	out.Colors[2] = [4]float32{in.ddx(varPositionView + 2), in.ddy(varPositionView + 2), 0, 1}
}

func gbufferOpaque(b *bindings, in *fragmentInput, out *fragmentOutput) {
	writeGBuffer(in, sampleAlbedo(b, in), out)
}

func gbufferAlphaTest(b *bindings, in *fragmentInput, out *fragmentOutput) {
	albedo := sampleAlbedo(b, in)
	if albedo[3] < shading.AlphaTestThreshold {
		out.Discard = true
		return
	}
	writeGBuffer(in, albedo, out)
}
