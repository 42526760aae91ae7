// Package models resolves the on-disk locations of the PaddleOCR detection
// and recognition models used by the paddle backend.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	DetectionMobile   = "PP-OCRv5_mobile_det.onnx"
	DetectionServer   = "PP-OCRv5_server_det.onnx"
	RecognitionMobile = "PP-OCRv5_mobile_rec.onnx"
	RecognitionServer = "PP-OCRv5_server_rec.onnx"

	DictionaryPPOCRKeysV1 = "ppocr_keys_v1.txt"
)

// Directory layout below the models root.
const (
	TypeDetection    = "detection"
	TypeRecognition  = "recognition"
	TypeDictionaries = "dictionaries"

	VariantMobile = "mobile"
	VariantServer = "server"
)

// DefaultModelsDir is the models root relative to the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models root.
const EnvModelsDir = "MATHOCR_MODELS_DIR"

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir returns modelsDir if set, else $MATHOCR_MODELS_DIR, else
// <project root>/models.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers <root>/<type>/<variant>/<file> and falls back to
// a flat <root>/<file>.
func ResolveModelPath(modelsDir, modelType, variant, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, variant, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

func variantFor(useServer bool) string {
	if useServer {
		return VariantServer
	}
	return VariantMobile
}

// GetDetectionModelPath returns the path for a detection model.
func GetDetectionModelPath(modelsDir string, useServer bool) string {
	filename := DetectionMobile
	if useServer {
		filename = DetectionServer
	}
	return ResolveModelPath(modelsDir, TypeDetection, variantFor(useServer), filename)
}

// GetRecognitionModelPath returns the path for a recognition model.
func GetRecognitionModelPath(modelsDir string, useServer bool) string {
	filename := RecognitionMobile
	if useServer {
		filename = RecognitionServer
	}
	return ResolveModelPath(modelsDir, TypeRecognition, variantFor(useServer), filename)
}

// GetDictionaryPath returns the path for a dictionary file.
func GetDictionaryPath(modelsDir, filename string) string {
	return ResolveModelPath(modelsDir, TypeDictionaries, "", filename)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
