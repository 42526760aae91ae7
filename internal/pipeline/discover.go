package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/mathocr/internal/utils"
)

// DiscoverOptions controls how DiscoverImages expands its arguments.
type DiscoverOptions struct {
	// Recursive descends into subdirectories.
	Recursive bool
	// Include keeps only base names matching one of these globs.
	Include []string
	// Exclude drops base names matching one of these globs.
	Exclude []string
}

// DiscoverImages expands files and directories into image paths. Files named
// explicitly are kept even with an unknown extension so decoding reports the
// problem; files found in directories must carry an image extension.
func DiscoverImages(args []string, opts DiscoverOptions) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if opts.keep(arg) {
				paths = append(paths, arg)
			}
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if utils.IsSupportedImage(path) && opts.keep(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

func (o DiscoverOptions) keep(path string) bool {
	if matchAny(path, o.Exclude) {
		return false
	}
	return len(o.Include) == 0 || matchAny(path, o.Include)
}

func matchAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
