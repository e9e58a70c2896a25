// Package reltime renders past instants as short human phrases such as
// "3 hours ago".
package reltime

import (
	"fmt"
	"time"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

var units = []struct {
	size time.Duration
	name string
}{
	{year, "year"},
	{month, "month"},
	{day, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
	{time.Second, "second"},
}

// Since returns the coarsest unit that fits the delta between t and now.
// Deltas under one second, and instants after now, render as "just now".
func Since(t, now time.Time) string {
	delta := now.Sub(t)
	if delta < time.Second {
		return "just now"
	}
	for _, u := range units {
		if delta < u.size {
			continue
		}
		n := int64(delta / u.size)
		if n == 1 {
			return fmt.Sprintf("1 %s ago", u.name)
		}
		return fmt.Sprintf("%d %ss ago", n, u.name)
	}
	return "just now"
}

// SincePtr is Since for optional timestamps; nil stays nil.
func SincePtr(t *time.Time, now time.Time) *string {
	if t == nil {
		return nil
	}
	s := Since(*t, now)
	return &s
}
