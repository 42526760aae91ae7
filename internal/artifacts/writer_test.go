package artifacts

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/geometry"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordNameRe = regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}$`)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(filepath.Join(t.TempDir(), "debug"), "/debug/", DefaultStyle())
	require.NoError(t, err)
	return w
}

func TestWriter_Begin(t *testing.T) {
	w := newTestWriter(t)
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	rec, err := w.Begin(now)
	require.NoError(t, err)
	assert.Regexp(t, recordNameRe, rec.Name)
	assert.Equal(t, "20240309_140507_", rec.Name[:16])
	assert.DirExists(t, rec.Dir)
	assert.Equal(t, "/debug/"+rec.Name+"/annotated.png", rec.URL(AnnotatedFile))
}

func TestWriter_BeginRetriesOnCollision(t *testing.T) {
	w := newTestWriter(t)
	suffixes := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	w.newSuffix = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}
	now := time.Now()

	first, err := w.Begin(now)
	require.NoError(t, err)
	second, err := w.Begin(now)
	require.NoError(t, err)
	assert.NotEqual(t, first.Name, second.Name)
	assert.Equal(t, RecordName(now, "bbbbbbbb"), second.Name)
}

func TestWriter_BeginGivesUp(t *testing.T) {
	w := newTestWriter(t)
	w.newSuffix = func() string { return "deadbeef" }
	now := time.Now()

	_, err := w.Begin(now)
	require.NoError(t, err)
	_, err = w.Begin(now)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestWriter_ConcurrentBeginIsUnique(t *testing.T) {
	w := newTestWriter(t)
	now := time.Now()

	const n = 64
	names := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := w.Begin(now)
			if assert.NoError(t, err) {
				names <- rec.Name
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for name := range names {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, n)
}

func TestWriter_Disabled(t *testing.T) {
	w, err := NewWriter("", "/debug", DefaultStyle())
	require.NoError(t, err)
	assert.False(t, w.Enabled())
	_, err = w.Begin(time.Now())
	assert.ErrorIs(t, err, ErrDisabled)

	var rec *Record
	assert.Empty(t, rec.URL(AnnotatedFile))
	assert.ErrorIs(t, rec.WriteBinary(image.NewGray(image.Rect(0, 0, 1, 1))), ErrDisabled)
}

func TestNewWriter_BadColour(t *testing.T) {
	_, err := NewWriter(t.TempDir(), "/debug", Style{BoxColor: "green-ish"})
	assert.Error(t, err)
}

func TestRecord_Writes(t *testing.T) {
	w := newTestWriter(t)
	rec, err := w.Begin(time.Now())
	require.NoError(t, err)

	bin := image.NewGray(image.Rect(0, 0, 20, 10))
	require.NoError(t, rec.WriteBinary(bin))

	crop := image.NewRGBA(image.Rect(0, 0, 5, 5))
	name, err := rec.WriteCrop(0, "8/2", crop)
	require.NoError(t, err)
	assert.Equal(t, "0_8_2.png", name)

	_, err = rec.WriteCrop(1, "x", image.NewRGBA(image.Rect(0, 0, 0, 5)))
	assert.ErrorIs(t, err, ErrEmptyCrop)

	annotated := w.Annotator().Annotate(image.NewRGBA(image.Rect(0, 0, 20, 10)), nil)
	require.NoError(t, rec.WriteAnnotated(annotated))

	assert.Equal(t, []string{BinaryFile, "0_8_2.png", AnnotatedFile}, rec.Files)
	for _, f := range rec.Files {
		got, err := imaging.Open(filepath.Join(rec.Dir, f))
		require.NoError(t, err, f)
		assert.False(t, got.Bounds().Empty())
	}
}

func TestRecord_WriteFailure(t *testing.T) {
	w := newTestWriter(t)
	rec, err := w.Begin(time.Now())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(rec.Dir))

	err = rec.WriteBinary(image.NewGray(image.Rect(0, 0, 2, 2)))
	assert.Error(t, err)
	assert.Empty(t, rec.Files)
}

func TestAnnotator_Annotate(t *testing.T) {
	a, err := NewAnnotator(DefaultStyle())
	require.NoError(t, err)

	src := imaging.New(60, 60, color.White)
	out := a.Annotate(src, []Label{{Box: geometry.NewBox(10, 20, 40, 50), Text: "2+2"}})

	green := color.RGBA{G: 255, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	assert.Equal(t, green, out.RGBAAt(10, 20))
	assert.Equal(t, green, out.RGBAAt(11, 30))
	assert.Equal(t, white, out.RGBAAt(25, 35))

	// some red text pixels above the box
	red := 0
	for y := 0; y < 20; y++ {
		for x := 10; x < 40; x++ {
			if out.RGBAAt(x, y) == (color.RGBA{R: 255, A: 255}) {
				red++
			}
		}
	}
	assert.Positive(t, red)

	// the source stays untouched
	r, g, b, _ := src.At(10, 20).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#00ff00")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, c)

	_, err = ParseColor("nope")
	assert.Error(t, err)
}

func TestRecord_URLEscapesCropName(t *testing.T) {
	w := newTestWriter(t)
	rec, err := w.Begin(time.Now())
	require.NoError(t, err)

	name, err := rec.WriteCrop(0, "1?2#3%", imaging.New(4, 4, color.White))
	require.NoError(t, err)
	assert.Equal(t, "0_1?2#3%.png", name)
	assert.FileExists(t, filepath.Join(rec.Dir, name))
	assert.Equal(t, "/debug/"+rec.Name+"/0_1%3F2%233%25.png", rec.URL(name))
	assert.Equal(t, "/debug/"+rec.Name+"/0_6+7.png", rec.URL(CropFileName(0, "6+7")))
}
