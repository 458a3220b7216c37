package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun(t *testing.T) {
	s := NewScheduler(nil, 8, 30, nil)

	testCases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before todays slot",
			now:  time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name: "after todays slot rolls to tomorrow",
			now:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC),
		},
		{
			name: "exactly at slot rolls to tomorrow",
			now:  time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
			want: time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.nextRun(tc.now))
		})
	}
}

func TestTriggerCoalesces(t *testing.T) {
	s := NewScheduler(nil, 8, 0, nil)

	// Repeated triggers while one is pending must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Trigger()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked")
	}

	assert.Len(t, s.trigger, 1)
}
