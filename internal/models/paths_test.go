package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		env      string
		want     string
	}{
		{name: "explicit directory takes precedence", explicit: "/explicit", env: "/env", want: "/explicit"},
		{name: "environment variable used when no explicit dir", env: "/env", want: "/env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvModelsDir, tt.env)
			assert.Equal(t, tt.want, GetModelsDir(tt.explicit))
		})
	}
}

func TestGetModelsDir_ProjectRoot(t *testing.T) {
	t.Setenv(EnvModelsDir, "")
	root, err := findProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultModelsDir), GetModelsDir(""))
}

func TestResolveModelPath_FlatFallback(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, DetectionMobile), GetDetectionModelPath(dir, false))
	assert.Equal(t, filepath.Join(dir, RecognitionServer), GetRecognitionModelPath(dir, true))
	assert.Equal(t, filepath.Join(dir, DictionaryPPOCRKeysV1), GetDictionaryPath(dir, DictionaryPPOCRKeysV1))
}

func TestResolveModelPath_OrganizedStructure(t *testing.T) {
	dir := t.TempDir()
	organized := filepath.Join(dir, TypeDetection, VariantMobile, DetectionMobile)
	require.NoError(t, os.MkdirAll(filepath.Dir(organized), 0o755))
	require.NoError(t, os.WriteFile(organized, []byte("onnx"), 0o600))

	assert.Equal(t, organized, GetDetectionModelPath(dir, false))

	dict := filepath.Join(dir, TypeDictionaries, DictionaryPPOCRKeysV1)
	require.NoError(t, os.MkdirAll(filepath.Dir(dict), 0o755))
	require.NoError(t, os.WriteFile(dict, []byte("1\n"), 0o600))
	assert.Equal(t, dict, GetDictionaryPath(dir, DictionaryPPOCRKeysV1))
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "m.onnx")
	assert.Error(t, ValidateModelExists(p))
	require.NoError(t, os.WriteFile(p, nil, 0o600))
	assert.NoError(t, ValidateModelExists(p))
}
