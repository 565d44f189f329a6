package scheduler

import "math"

// TaskProgress returns round(100 * completed / total), or 0 when there are no steps.
func TaskProgress(steps []*Step) int {
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range steps {
		if s.Status == StatusCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(steps))))
}

// QueueProgress returns the rounded mean of the given progress values, or 0 when empty.
func QueueProgress(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}
