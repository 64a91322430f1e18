package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresentCoversEveryStatus(t *testing.T) {
	statuses := []Status{
		StatusDiscovering, StatusConnecting, StatusLoading, StatusLive,
		StatusPartial, StatusOffline, StatusClosed, StatusFailed,
	}

	seen := make(map[string]Status)
	for _, s := range statuses {
		p := Present(s)
		assert.NotEmpty(t, p.Label, s)
		assert.NotEmpty(t, p.Color, s)

		prev, dup := seen[p.Label]
		assert.False(t, dup, "label %q shared by %s and %s", p.Label, prev, s)
		seen[p.Label] = s
	}
}

func TestPresentAnimation(t *testing.T) {
	// In-progress statuses animate, settled ones do not.
	assert.True(t, Present(StatusLoading).Animate)
	assert.True(t, Present(StatusLive).Animate)
	assert.True(t, Present(StatusPartial).Animate)
	assert.False(t, Present(StatusOffline).Animate)
	assert.False(t, Present(StatusClosed).Animate)
	assert.False(t, Present(StatusFailed).Animate)
}

func TestPresentUnknownStatusFallsBack(t *testing.T) {
	p := Present(Status("bogus"))
	assert.Equal(t, "bogus", p.Label)
	assert.False(t, p.Animate)
}
