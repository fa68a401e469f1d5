package tickets

import (
	"sort"
	"time"
)

// DayGroup holds the messages of one calendar day.
type DayGroup struct {
	Day      time.Time
	Messages []Message
}

// GroupByDay orders messages by timestamp and groups them by calendar day in loc.
// A nil loc means UTC.
func GroupByDay(messages []Message, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]Message(nil), messages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	var groups []DayGroup
	for _, msg := range sorted {
		local := msg.Timestamp.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		groups = append(groups, DayGroup{Day: day, Messages: []Message{msg}})
	}
	return groups
}
