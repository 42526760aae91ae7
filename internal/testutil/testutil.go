package testutil

import (
	"os"
	"testing"

	"github.com/MeKo-Tech/mathocr/internal/models"
)

// PaddleModels holds resolved model files for tests that need real models.
type PaddleModels struct {
	Dir        string
	Detector   string
	Recognizer string
	Dictionary string
}

// RequirePaddleModels resolves the mobile detection and recognition models
// plus the default dictionary under $MATHOCR_MODELS_DIR or <root>/models and
// skips the test when any of them is missing.
func RequirePaddleModels(t *testing.T) PaddleModels {
	t.Helper()
	if testing.Short() {
		t.Skip("model tests disabled in short mode")
	}
	dir := models.GetModelsDir("")
	m := PaddleModels{
		Dir:        dir,
		Detector:   models.GetDetectionModelPath(dir, false),
		Recognizer: models.GetRecognitionModelPath(dir, false),
		Dictionary: models.GetDictionaryPath(dir, models.DictionaryPPOCRKeysV1),
	}
	for _, p := range []string{m.Detector, m.Recognizer, m.Dictionary} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("paddle model not available: %s", p)
		}
	}
	return m
}

// TempFile writes data to name inside a test temp dir and returns its path.
func TempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := t.TempDir() + string(os.PathSeparator) + name
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
