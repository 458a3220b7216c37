package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationConfigThresholds(t *testing.T) {
	testCases := []struct {
		name     string
		warnDays string
		want     []int
	}{
		{name: "default", warnDays: "30,14,7,3,1", want: []int{30, 14, 7, 3, 1}},
		{name: "unsorted input sorted descending", warnDays: "7,30,1", want: []int{30, 7, 1}},
		{name: "duplicates dropped", warnDays: "7,7,7", want: []int{7}},
		{name: "whitespace tolerated", warnDays: " 30 , 14 ", want: []int{30, 14}},
		{name: "garbage dropped", warnDays: "30,abc,-5,0,14", want: []int{30, 14}},
		{name: "empty", warnDays: "", want: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &NotificationConfig{WarnDays: tc.warnDays}
			assert.Equal(t, tc.want, cfg.Thresholds())
		})
	}
}
