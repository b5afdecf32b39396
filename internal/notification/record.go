package notification

import "time"

// InvocationRecord is the per-call state of one wrapped invocation. It is
// created on entry, consumed by the outcome notification and then dropped.
type InvocationRecord struct {
	ID           string
	FunctionName string
	HostName     string
	StartTime    time.Time
	EndTime      time.Time
}

// Elapsed is EndTime - StartTime.
func (r *InvocationRecord) Elapsed() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
