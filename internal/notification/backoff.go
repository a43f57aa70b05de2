package notification

import "time"

const maxRetryDelay = 24 * time.Hour

// RetryDelay returns the exponential backoff delay 2^retryCount * base, capped
// at one day.
func RetryDelay(retryCount int, base time.Duration) time.Duration {
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// ElevatePriority raises a queue priority by one step. 1 is the highest.
func ElevatePriority(priority int) int {
	if priority > minQueuePriority {
		return priority - 1
	}
	return minQueuePriority
}
