package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = v, c, d })

	Version, GitCommit, BuildDate = "1.2.3", "abc123", "2024-05-01"
	assert.Equal(t, "mathocr 1.2.3 (commit: abc123, built: 2024-05-01)", String())

	gotV, gotC, gotD := Info()
	assert.Equal(t, []string{"1.2.3", "abc123", "2024-05-01"}, []string{gotV, gotC, gotD})
}
