package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87 // W key (ASCII)
	KeyA     = 65 // A key (ASCII)
	KeyS     = 83 // S key (ASCII)
	KeyD     = 68 // D key (ASCII)
	KeyQ     = 81 // Q key (ASCII)
	KeyE     = 69 // E key (ASCII)
	KeyC     = 67 // C key (ASCII), toggles submesh frustum culling
	KeyL     = 76 // L key (ASCII), toggles light animation
	KeyM     = 77 // M key (ASCII), cycles the MSAA sample count
	KeyT     = 84 // T key (ASCII), toggles the lighting strategy
	KeyMinus = 45 // - key (ASCII), halves the active light count
	KeyEqual = 61 // = key (ASCII), doubles the active light count
	KeyEsc   = 256
	KeyF9    = 298 // toggles the profiler log
)

// Additional non-printable keys
const (
	KeyLeftShift = 340 // Left Shift (GLFW)
)

// Mouse buttons, matching GLFW button indices.
const (
	MouseButtonLeft  = 0
	MouseButtonRight = 1
)
