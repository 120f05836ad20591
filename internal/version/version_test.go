package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	defer func(c, b string) { GitCommit, BuildTime = c, b }(GitCommit, BuildTime)

	GitCommit, BuildTime = "unknown", "unknown"
	assert.Equal(t, "v"+Version, String())

	GitCommit = "abc1234"
	assert.Equal(t, "v"+Version+" (abc1234)", String())

	BuildTime = "2026-01-02T03:04:05Z"
	assert.Equal(t, "v"+Version+" (abc1234, 2026-01-02T03:04:05Z)", String())
}
