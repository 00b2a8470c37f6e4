package shader

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"

// vertexFormatInfo holds the vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format gpu.VertexFormat
	size   uint64
}

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension gpu.ViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
// Used to compute MinBindingSize for buffer bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
	builtin   string
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedEntryPoint is one @vertex, @fragment or @compute function header
type parsedEntryPoint struct {
	name       string
	shaderType ShaderType

	// attributes holds the attribute text between the stage attribute and fn, e.g. the
	// @workgroup_size of a compute entry.
	attributes string

	// params holds the text between the parentheses of the function header.
	params string
}
