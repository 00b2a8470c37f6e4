package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// wgslVertexFormatMap maps WGSL type names to their corresponding vertex format and byte size
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {gpu.VertexFormatFloat32, 4},
	"vec2f":     {gpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {gpu.VertexFormatFloat32x2, 8},
	"vec3f":     {gpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {gpu.VertexFormatFloat32x3, 12},
	"vec4f":     {gpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {gpu.VertexFormatFloat32x4, 16},
	"i32":       {gpu.VertexFormatSint32, 4},
	"vec2i":     {gpu.VertexFormatSint32x2, 8},
	"vec2<i32>": {gpu.VertexFormatSint32x2, 8},
	"vec3i":     {gpu.VertexFormatSint32x3, 12},
	"vec3<i32>": {gpu.VertexFormatSint32x3, 12},
	"vec4i":     {gpu.VertexFormatSint32x4, 16},
	"vec4<i32>": {gpu.VertexFormatSint32x4, 16},
	"u32":       {gpu.VertexFormatUint32, 4},
	"vec2u":     {gpu.VertexFormatUint32x2, 8},
	"vec2<u32>": {gpu.VertexFormatUint32x2, 8},
	"vec3u":     {gpu.VertexFormatUint32x3, 12},
	"vec3<u32>": {gpu.VertexFormatUint32x3, 12},
	"vec4u":     {gpu.VertexFormatUint32x4, 16},
	"vec4<u32>": {gpu.VertexFormatUint32x4, 16},
}

// wgslSampledTextureMap maps WGSL sampled texture base names to their view dimension and multisampled flag
var wgslSampledTextureMap = map[string]sampledTextureInfo{
	"texture_2d":                    {gpu.ViewDimension2D, false},
	"texture_2d_array":              {gpu.ViewDimension2DArray, false},
	"texture_cube":                  {gpu.ViewDimensionCube, false},
	"texture_multisampled_2d":       {gpu.ViewDimension2D, true},
	"texture_depth_2d":              {gpu.ViewDimension2D, false},
	"texture_depth_2d_array":        {gpu.ViewDimension2DArray, false},
	"texture_depth_cube":            {gpu.ViewDimensionCube, false},
	"texture_depth_multisampled_2d": {gpu.ViewDimension2D, true},
}

// wgslStorageTextureDimMap maps WGSL storage texture base names to their view dimension
var wgslStorageTextureDimMap = map[string]gpu.ViewDimension{
	"texture_storage_2d":       gpu.ViewDimension2D,
	"texture_storage_2d_array": gpu.ViewDimension2DArray,
}

// wgslSampleTypeMap maps WGSL scalar type parameters to their texture sample type
var wgslSampleTypeMap = map[string]gpu.TextureSampleType{
	"f32": gpu.TextureSampleTypeFloat,
	"i32": gpu.TextureSampleTypeSint,
	"u32": gpu.TextureSampleTypeUint,
}

// wgslTexelFormatMap maps WGSL texel format strings to their corresponding texture formats.
var wgslTexelFormatMap = map[string]gpu.Format{
	"rgba8unorm":  gpu.FormatRGBA8Unorm,
	"rgba16float": gpu.FormatRGBA16Float,
	"r32float":    gpu.FormatR32Float,
	"rgba32float": gpu.FormatRGBA32Float,
	"bgra8unorm":  gpu.FormatBGRA8Unorm,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes and captures the builtin name
	builtinRegex = regexp.MustCompile(`@builtin\((\w+)\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// entryPointRegex matches an entry point header up to its opening parenthesis and captures
	// the stage, the attributes between the stage and fn, and the function name
	entryPointRegex = regexp.MustCompile(`@(vertex|fragment|compute)\b((?:\s*@\w+(?:\([^)]*\))?)*)\s*fn\s+(\w+)\s*\(`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?,?\s*\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> frame_constants: FrameConstants;
	// or handle types: @group(1) @binding(0) var albedo_texture: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// stageTypes maps entry point stage attributes to shader types
var stageTypes = map[string]ShaderType{
	"vertex":   ShaderTypeVertex,
	"fragment": ShaderTypeFragment,
	"compute":  ShaderTypeCompute,
}

// parseEntryPoints extracts every entry point header from WGSL source, keyed by function name.
//
// Parameters:
//   - source: the WGSL source code string
//
// Returns:
//   - map[string]parsedEntryPoint: the entry points
//   - error: an error if a header's parameter list is unterminated
func parseEntryPoints(source string) (map[string]parsedEntryPoint, error) {
	cleaned := stripComments(source)
	result := make(map[string]parsedEntryPoint)

	for _, loc := range entryPointRegex.FindAllStringSubmatchIndex(cleaned, -1) {
		stage := cleaned[loc[2]:loc[3]]
		attrs := cleaned[loc[4]:loc[5]]
		name := cleaned[loc[6]:loc[7]]

		params, ok := matchingParen(cleaned, loc[1])
		if !ok {
			return nil, fmt.Errorf("entry point %s: unterminated parameter list", name)
		}
		result[name] = parsedEntryPoint{
			name:       name,
			shaderType: stageTypes[stage],
			attributes: strings.TrimSpace(attrs),
			params:     params,
		}
	}
	return result, nil
}

// matchingParen returns the text between an opening parenthesis (just before start) and its
// matching closing parenthesis.
func matchingParen(s string, start int) (string, bool) {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start:i], true
			}
		}
	}
	return "", false
}

// parseVertexLayouts extracts the vertex buffer layouts of a vertex entry point. Every
// parameter whose type is a struct of @location fields becomes one buffer, in parameter order.
// Parameters that are builtins or bare @location values are not vertex buffers.
//
// Parameters:
//   - source: the WGSL source code string
//   - entry: the vertex entry point
//
// Returns:
//   - []gpu.VertexBufferLayout: one layout per vertex input struct parameter
func parseVertexLayouts(source string, entry parsedEntryPoint) []gpu.VertexBufferLayout {
	structs := structsByName(parseStructBlocks(stripComments(source)))

	var result []gpu.VertexBufferLayout
	for _, param := range splitAtTopLevelCommas(entry.params) {
		field, ok := parseField(param)
		if !ok || field.isBuiltin || field.location >= 0 {
			continue
		}
		ps, ok := structs[field.typeName]
		if !ok || !isVertexInputStruct(ps) {
			continue
		}
		if layout, ok := buildVertexBufferLayout(ps); ok {
			result = append(result, layout)
		}
	}
	return result
}

// usesSampleIndex reports whether a fragment entry point reads @builtin(sample_index), either
// directly or through a struct parameter, which makes it run once per sample.
//
// Parameters:
//   - source: the WGSL source code string
//   - entry: the entry point
//
// Returns:
//   - bool: true if the entry point is evaluated per sample
func usesSampleIndex(source string, entry parsedEntryPoint) bool {
	structs := structsByName(parseStructBlocks(stripComments(source)))
	for _, param := range splitAtTopLevelCommas(entry.params) {
		field, ok := parseField(param)
		if !ok {
			continue
		}
		if field.builtin == "sample_index" {
			return true
		}
		for _, f := range structs[field.typeName].fields {
			if f.builtin == "sample_index" {
				return true
			}
		}
	}
	return false
}

// parseBindGroupLayouts extracts all @group(N) @binding(M) resource declarations from WGSL
// source and returns them as bind group layouts keyed by group index. Each layout's entries are
// sorted by binding index. The provided visibility flag is applied to all entries, and each
// entry's role defaults to its variable name.
//
// Parameters:
//   - source: the WGSL source code string
//   - visibility: the shader stage visibility flag to set on each entry
//
// Returns:
//   - map[int]gpu.BindGroupLayout: layouts keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding index for resource tracking
//   - error: an error if two declarations share a group and binding
func parseBindGroupLayouts(source string, visibility gpu.ShaderStage) (map[int]gpu.BindGroupLayout, map[int]map[int]string, error) {
	groups := make(map[int][]gpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)
	cleaned := stripComments(source)

	// Struct sizes give buffer bindings a MinBindingSize.
	structs := parseStructBlocks(cleaned)
	structSizes := computeStructSizes(structs)

	matches := bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1)
	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		if prev, dup := varNames[group][binding]; dup {
			return nil, nil, fmt.Errorf("@group(%d) @binding(%d) declared by both %s and %s", group, binding, prev, varName)
		}

		entry := classifyResource(uint32(binding), visibility, addressSpace, typeName)
		entry.Role = varName
		if isBufferBinding(entry.Type) {
			if layout, ok := resolveTypeLayout(typeName, structSizes); ok && layout.size > 0 {
				entry.MinBindingSize = layout.size
			}
		}

		groups[group] = append(groups[group], entry)

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][binding] = varName
	}

	result := make(map[int]gpu.BindGroupLayout, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = gpu.BindGroupLayout{Entries: entries}
	}

	return result, varNames, nil
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from entry point
// attributes. Omitted dimensions default to 1 per the WGSL specification.
// Returns [1, 1, 1] if no @workgroup_size attribute is found.
//
// Parameters:
//   - attributes: the attribute text of a compute entry point
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(attributes string) [3]uint32 {
	result := [3]uint32{1, 1, 1}

	match := workgroupSizeRegex.FindStringSubmatch(attributes)
	if match == nil {
		return result
	}

	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
//
// Parameters:
//   - body: the content between { and } of a struct declaration
//
// Returns:
//   - []parsedField: all fields found in the struct body
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		if field, ok := parseField(line); ok {
			fields = append(fields, field)
		}
	}

	return fields
}

// parseField parses one struct member or function parameter.
func parseField(text string) (parsedField, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return parsedField{}, false
	}

	var field parsedField
	if m := builtinRegex.FindStringSubmatch(text); m != nil {
		field.isBuiltin = true
		field.builtin = m[1]
	}

	field.location = -1
	if locMatch := locationRegex.FindStringSubmatch(text); locMatch != nil {
		if loc, err := strconv.Atoi(locMatch[1]); err == nil {
			field.location = loc
		}
	}

	fm := fieldRegex.FindStringSubmatch(text)
	if fm == nil {
		return parsedField{}, false
	}
	field.name = fm[1]
	field.typeName = strings.TrimSpace(fm[2])
	return field, true
}

func structsByName(structs []parsedStruct) map[string]parsedStruct {
	m := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		m[ps.name] = ps
	}
	return m
}
