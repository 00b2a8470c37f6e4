package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic uint32 = 0x07230203

// CompiledProgram is a pre-processed program translated to SPIR-V.
type CompiledProgram struct {
	Program string
	Defines Defines
	WGSL    string
	SPIRV   []byte
}

// Words returns the SPIR-V module as 32-bit words.
func (c CompiledProgram) Words() []uint32 {
	words := make([]uint32, len(c.SPIRV)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(c.SPIRV[i*4:])
	}
	return words
}

// CompileSPIRV pre-processes a registered program with a macro set and translates the whole
// module, every entry point included, to SPIR-V.
//
// Parameters:
//   - program: the program key
//   - defines: the macro values the program needs
//
// Returns:
//   - CompiledProgram: the processed source and its SPIR-V
//   - error: an error if the program is unknown, pre-processing fails or naga rejects the source
func CompileSPIRV(program string, defines Defines) (CompiledProgram, error) {
	raw, ok := ProgramSource(program)
	if !ok {
		return CompiledProgram{}, fmt.Errorf("shader: unknown program %q", program)
	}
	pp := NewPreProcessor(defines)
	wgsl, err := pp.Process(raw)
	if err != nil {
		return CompiledProgram{}, fmt.Errorf("shader %s: pre-process: %w", program, err)
	}

	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return CompiledProgram{}, fmt.Errorf("shader %s: compile: %w", program, err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return CompiledProgram{}, fmt.Errorf("shader %s: compile: output is not a SPIR-V module", program)
	}
	return CompiledProgram{Program: program, Defines: pp.Defines(), WGSL: wgsl, SPIRV: spirv}, nil
}
