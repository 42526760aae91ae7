// Package artifacts writes per-request debug images: the binarized input,
// one crop per detection and an annotated copy of the original.
package artifacts

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	// ErrEmptyCrop is returned when a crop has zero area.
	ErrEmptyCrop = errors.New("crop has zero area")

	// ErrDisabled is returned by Begin when the writer is disabled.
	ErrDisabled = errors.New("debug artifacts disabled")
)

const maxBeginAttempts = 5

// Writer creates per-request record directories under a root directory.
type Writer struct {
	root      string
	urlPrefix string
	annotator *Annotator
	newSuffix func() string
}

// NewWriter returns a writer rooted at root whose files are served under
// urlPrefix. An empty root disables the writer.
func NewWriter(root, urlPrefix string, style Style) (*Writer, error) {
	annotator, err := NewAnnotator(style)
	if err != nil {
		return nil, err
	}
	return &Writer{
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		annotator: annotator,
		newSuffix: randomSuffix,
	}, nil
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// Enabled reports whether Begin creates directories.
func (w *Writer) Enabled() bool { return w != nil && w.root != "" }

// Root returns the directory records are created in.
func (w *Writer) Root() string { return w.root }

// Annotator returns the annotator used for annotated.png.
func (w *Writer) Annotator() *Annotator { return w.annotator }

// Begin creates a new uniquely named record directory. The directory is
// created with an exclusive mkdir; on collision the suffix is regenerated.
func (w *Writer) Begin(now time.Time) (*Record, error) {
	if !w.Enabled() {
		return nil, ErrDisabled
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return nil, fmt.Errorf("create debug root: %w", err)
	}

	var lastErr error
	for range maxBeginAttempts {
		name := RecordName(now, w.newSuffix())
		dir := filepath.Join(w.root, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			slog.Debug("Debug record created", "debug_dir", dir)
			return &Record{
				Timestamp: now,
				Name:      name,
				Dir:       dir,
				urlPrefix: w.urlPrefix,
			}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create debug dir: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("create debug dir after %d attempts: %w", maxBeginAttempts, lastErr)
}

// Record is one request's artifact directory. Files lists the written file
// names in write order.
type Record struct {
	Timestamp time.Time
	Name      string
	Dir       string
	Files     []string

	urlPrefix string
	mu        sync.Mutex
}

// URL returns the public URL of a file inside the record. Both path segments
// are escaped since crop names carry recognized text.
func (r *Record) URL(file string) string {
	if r == nil {
		return ""
	}
	return r.urlPrefix + "/" + url.PathEscape(r.Name) + "/" + url.PathEscape(file)
}

// WriteBinary writes binary.png.
func (r *Record) WriteBinary(img image.Image) error {
	return r.write(BinaryFile, img)
}

// WriteCrop writes "{idx}_{safe}.png" and returns the file name.
func (r *Record) WriteCrop(idx int, text string, img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("crop %d: %w", idx, ErrEmptyCrop)
	}
	name := CropFileName(idx, text)
	return name, r.write(name, img)
}

// WriteAnnotated writes annotated.png.
func (r *Record) WriteAnnotated(img image.Image) error {
	return r.write(AnnotatedFile, img)
}

func (r *Record) write(name string, img image.Image) error {
	if r == nil {
		return ErrDisabled
	}
	p := filepath.Join(r.Dir, name)
	if err := imaging.Save(img, p); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	r.mu.Lock()
	r.Files = append(r.Files, name)
	r.mu.Unlock()
	return nil
}
