package artifacts

import (
	"strconv"
	"strings"
	"time"
)

// Artifact file names.
const (
	BinaryFile    = "binary.png"
	AnnotatedFile = "annotated.png"
)

// TimestampLayout formats the time part of a record name.
const TimestampLayout = "20060102_150405"

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// SafeName replaces path separators in text so it can be used inside a
// file name.
func SafeName(text string) string {
	return pathSeparators.Replace(text)
}

// CropFileName returns "{idx}_{safe}.png".
func CropFileName(idx int, text string) string {
	return strconv.Itoa(idx) + "_" + SafeName(text) + ".png"
}

// RecordName returns "YYYYMMDD_HHMMSS_<suffix>".
func RecordName(now time.Time, suffix string) string {
	return now.Format(TimestampLayout) + "_" + suffix
}
