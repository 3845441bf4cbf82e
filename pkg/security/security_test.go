package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstPerKey(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiterUpdateAppliesToExistingVisitors(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	rl.Update(1000, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
}
