package notification

import (
	"fmt"
	"time"
)

// Subject lines are matched by existing mail filters and must not change.
const (
	SubjectStart   = "Training has started 🎬"
	SubjectSuccess = "Training has sucessfully finished 🎉"
	SubjectFailure = "Training has crashed ☠️"
)

// DateFormat renders start, end and crash dates (YYYY-MM-DD HH:MM:SS).
const DateFormat = "2006-01-02 15:04:05"

// Event identifies one of the three lifecycle notifications.
type Event string

const (
	EventStart   Event = "start"
	EventSuccess Event = "success"
	EventFailure Event = "failure"
)

func startMessage(r *InvocationRecord) Message {
	return Message{
		Subject: SubjectStart,
		Lines: []string{
			"Your training has started.",
			"Machine name: " + r.HostName,
			"Main call: " + r.FunctionName,
			"Starting date: " + r.StartTime.Format(DateFormat),
		},
	}
}

func successMessage(r *InvocationRecord) Message {
	return Message{
		Subject: SubjectSuccess,
		Lines: []string{
			"Your training is complete.",
			"Machine name: " + r.HostName,
			"Main call: " + r.FunctionName,
			"Starting date: " + r.StartTime.Format(DateFormat),
			"End date: " + r.EndTime.Format(DateFormat),
			"Training duration: " + FormatDuration(r.Elapsed()),
		},
	}
}

func failureMessage(r *InvocationRecord, errText, trace string) Message {
	return Message{
		Subject: SubjectFailure,
		Lines: []string{
			"Your training has crashed.",
			"Machine name: " + r.HostName,
			"Main call: " + r.FunctionName,
			"Starting date: " + r.StartTime.Format(DateFormat),
			"Crash date: " + r.EndTime.Format(DateFormat),
			"Crashed training duration: " + FormatDuration(r.Elapsed()) + "\n\n",
			"Here's the error:",
			errText + "\n\n",
			"Traceback:",
			trace,
		},
	}
}

// FormatDuration renders d as H:MM:SS, adding .ffffff when there is a
// sub-second part and an "N day(s), " prefix past 24 hours. Negative
// durations render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	micros := d / time.Microsecond

	out := fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	if micros > 0 {
		out += fmt.Sprintf(".%06d", micros)
	}
	switch {
	case days == 1:
		out = "1 day, " + out
	case days > 1:
		out = fmt.Sprintf("%d days, %s", days, out)
	}
	return out
}
