package tickets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupByDay(t *testing.T) {
	at := func(day, hour int) time.Time { return time.Date(2024, 6, day, hour, 0, 0, 0, time.UTC) }
	messages := []Message{
		{ID: "c", Timestamp: at(11, 9)},
		{ID: "a", Timestamp: at(10, 8)},
		{ID: "b", Timestamp: at(10, 17)},
	}

	groups := GroupByDay(messages, nil)
	require.Len(t, groups, 2)
	require.Equal(t, at(10, 0), groups[0].Day)
	require.Equal(t, "a", groups[0].Messages[0].ID)
	require.Equal(t, "b", groups[0].Messages[1].ID)
	require.Equal(t, "c", groups[1].Messages[0].ID)
	require.Equal(t, "c", messages[0].ID)

	berlin := time.FixedZone("CEST", 2*60*60)
	late := []Message{{ID: "x", Timestamp: time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)}}
	groups = GroupByDay(late, berlin)
	require.Equal(t, 11, groups[0].Day.Day())

	require.Empty(t, GroupByDay(nil, nil))
}
