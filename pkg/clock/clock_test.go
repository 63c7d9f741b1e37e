package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualClock(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := NewVirtualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(30 * time.Second)
	assert.Equal(t, start.Add(30*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}
