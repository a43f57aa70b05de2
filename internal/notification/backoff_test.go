package notification_test

import (
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		base       time.Duration
		want       time.Duration
	}{
		{"no retries yet", 0, time.Minute, time.Minute},
		{"first retry", 1, time.Minute, 2 * time.Minute},
		{"second retry", 2, time.Minute, 4 * time.Minute},
		{"third retry", 3, time.Minute, 8 * time.Minute},
		{"capped", 20, time.Minute, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notification.RetryDelay(tt.retryCount, tt.base))
		})
	}
}

func TestElevatePriority(t *testing.T) {
	tests := []struct {
		priority int
		want     int
	}{
		{4, 3},
		{3, 2},
		{2, 1},
		{1, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, notification.ElevatePriority(tt.priority))
	}
}
