// oxy-shaderc pre-processes the deferred shading programs and compiles them to SPIR-V.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

func main() {
	out := flag.String("out", "shaders", "Output directory")
	programs := flag.String("programs", "", "Comma separated program keys (default: all)")
	samples := flag.String("msaa", "1,4", "Comma separated sample counts to compile for")
	tileDim := flag.Int("tile-dim", light.DefaultTileDim, "Tiled lighting tile side in pixels")
	maxLights := flag.Int("max-lights", light.MaxLights, "Light capacity")
	emitWGSL := flag.Bool("wgsl", false, "Also write the pre-processed WGSL")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = printUsage
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	if err := logger.Init(level); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	keys := shader.Programs()
	if *programs != "" {
		keys = strings.Split(*programs, ",")
	}
	counts, err := parseCounts(*samples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -msaa: %v\n", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Fatal("cannot create output directory", zap.String("dir", *out), zap.Error(err))
	}

	failed := 0
	for _, program := range keys {
		for _, n := range counts {
			if err := compile(*out, program, shader.NewDefines(n, *tileDim, *maxLights), *emitWGSL); err != nil {
				logger.Error("compile failed", zap.String("program", program), zap.Int("samples", n), zap.Error(err))
				failed++
			}
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// compile writes <program>.s<N>.spv, and the processed WGSL next to it when asked.
func compile(dir, program string, defines shader.Defines, emitWGSL bool) error {
	compiled, err := shader.CompileSPIRV(program, defines)
	if err != nil {
		return err
	}
	base := filepath.Join(dir, fmt.Sprintf("%s.s%d", program, defines.Int(shader.DefineSampleCount, 1)))
	if err := os.WriteFile(base+".spv", compiled.SPIRV, 0o644); err != nil {
		return err
	}
	if emitWGSL {
		if err := os.WriteFile(base+".wgsl", []byte(compiled.WGSL), 0o644); err != nil {
			return err
		}
	}
	logger.Info("compiled",
		zap.String("program", program),
		zap.String("defines", defines.Key()),
		zap.Int("words", len(compiled.Words())),
		zap.String("file", base+".spv"),
	)
	return nil
}

func parseCounts(s string) ([]int, error) {
	var counts []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n != 1 && n != 2 && n != 4 && n != 8 {
			return nil, fmt.Errorf("sample count %d is not 1, 2, 4 or 8", n)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `oxy-shaderc - compile the deferred shading programs to SPIR-V

Usage:
  oxy-shaderc [options]

Programs: %s

Options:
`, strings.Join(shader.Programs(), ", "))
	flag.PrintDefaults()
}
