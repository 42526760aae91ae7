// Package onnx locates and initializes the ONNX Runtime shared library and
// converts images into model input tensors.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// EnvLibraryPath overrides library discovery when set.
const EnvLibraryPath = "ONNXRUNTIME_LIB"

var (
	initMu sync.Mutex
	// initialized tracks our own successful InitializeEnvironment call.
	initialized bool
)

// SessionOptions configures a model session.
type SessionOptions struct {
	// LibraryPath is an explicit shared library location. Empty means
	// discovery via EnvLibraryPath, system paths and the project tree.
	LibraryPath string
	// NumThreads sets intra-op parallelism; 0 leaves the runtime default.
	NumThreads int
}

// Initialize sets the shared library path and initializes the runtime
// environment once per process.
func Initialize(libraryPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized || onnxruntime_go.IsInitialized() {
		return nil
	}

	path, err := resolveLibraryPath(libraryPath)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(path)

	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	initialized = true
	slog.Debug("ONNX Runtime initialized", "library", path)
	return nil
}

// Shutdown destroys the runtime environment if Initialize created it.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}
	initialized = false
	return onnxruntime_go.DestroyEnvironment()
}

// ModelIO returns the single input and single output of a model file.
func ModelIO(modelPath string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	var none onnxruntime_go.InputOutputInfo
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return none, none, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return none, none, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return none, none, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return none, none, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

// NewSession creates a dynamic session bound to the model's input and output.
func NewSession(modelPath string, in, out onnxruntime_go.InputOutputInfo, opts SessionOptions,
) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if opts.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(opts.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(modelPath,
		[]string{in.Name}, []string{out.Name}, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// RunFloat runs a single-input, single-output session and returns a copy of
// the float32 output with its shape.
func RunFloat(session *onnxruntime_go.DynamicAdvancedSession, t Tensor) ([]float32, []int64, error) {
	if session == nil {
		return nil, nil, errors.New("session is nil")
	}
	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	floatTensor, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	data := append([]float32(nil), floatTensor.GetData()...)
	shape := append([]int64(nil), floatTensor.GetShape()...)
	return data, shape, nil
}

func resolveLibraryPath(explicit string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("ONNX Runtime library not found at %s", explicit)
		}
		return explicit, nil
	}
	if env := os.Getenv(EnvLibraryPath); env != "" && fileExists(env) {
		return env, nil
	}
	for _, p := range systemLibraryPaths() {
		if fileExists(p) {
			return p, nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return "", err
	}
	libName, err := libraryName()
	if err != nil {
		return "", err
	}
	libPath := filepath.Join(root, "onnxruntime", "lib", libName)
	if !fileExists(libPath) {
		return "", fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}
	return libPath, nil
}

func systemLibraryPaths() []string {
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
}

// findProjectRoot finds the project root directory by looking for go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
