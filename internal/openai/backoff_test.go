package openai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Zero(t, CalculateBackoff(base, 0))

	for attempt := 1; attempt <= 4; attempt++ {
		want := base * time.Duration(1<<uint(attempt))
		for i := 0; i < 20; i++ {
			got := CalculateBackoff(base, attempt)
			assert.GreaterOrEqual(t, got, want-want/4)
			assert.LessOrEqual(t, got, want+want/4)
		}
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	got := CalculateBackoff(time.Second, 40)
	assert.LessOrEqual(t, got, 30*time.Second+30*time.Second/4)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
