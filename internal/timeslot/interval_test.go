package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveByStart(t *testing.T) {
	slots := []Interval{
		{StartTime: "09:00", EndTime: "10:00"},
		{StartTime: "10:00", EndTime: "11:00"},
		{StartTime: "11:00", EndTime: "12:00"},
	}

	got := RemoveByStart(slots, "10:00")

	require.Len(t, got, 2)
	assert.NotContains(t, got, Interval{StartTime: "10:00", EndTime: "11:00"})
	// input untouched
	assert.Len(t, slots, 3)
}

func TestRemoveByStart_AbsentIsIdentity(t *testing.T) {
	slots := []Interval{{StartTime: "09:00", EndTime: "10:00"}}

	got := RemoveByStart(slots, "13:00")

	assert.Equal(t, slots, got)
}

func TestRemoveByStart_Idempotent(t *testing.T) {
	slots := []Interval{
		{StartTime: "09:00", EndTime: "10:00"},
		{StartTime: "10:00", EndTime: "11:00"},
	}

	once := RemoveByStart(slots, "09:00")
	twice := RemoveByStart(once, "09:00")

	assert.Equal(t, once, twice)
	assert.Len(t, twice, 1)
}

func TestRemoveByStart_OnlyFirstMatchRemoved(t *testing.T) {
	slots := []Interval{
		{StartTime: "09:00", EndTime: "09:30"},
		{StartTime: "09:00", EndTime: "10:00"},
	}

	got := RemoveByStart(slots, "09:00")

	require.Len(t, got, 1)
	assert.Equal(t, "10:00", got[0].EndTime)
}

func TestRemoveByStart_EmptyAndNil(t *testing.T) {
	assert.Empty(t, RemoveByStart(nil, "09:00"))
	assert.Empty(t, RemoveByStart([]Interval{}, "09:00"))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", Interval{"09:00", "10:00"}, Interval{"11:00", "12:00"}, false},
		{"touching endpoints do not overlap", Interval{"09:00", "10:00"}, Interval{"10:00", "11:00"}, false},
		{"partial overlap", Interval{"09:00", "10:30"}, Interval{"10:00", "11:00"}, true},
		{"containment", Interval{"09:00", "12:00"}, Interval{"10:00", "11:00"}, true},
		{"identical", Interval{"09:00", "10:00"}, Interval{"09:00", "10:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestIntervalValid(t *testing.T) {
	assert.True(t, Interval{"09:00", "09:30"}.Valid())
	assert.False(t, Interval{"09:30", "09:00"}.Valid(), "start must precede end")
	assert.False(t, Interval{"09:00", "09:00"}.Valid(), "empty interval")
	assert.False(t, Interval{"9:00", "10:00"}.Valid(), "unpadded hour")
	assert.False(t, Interval{"09:60", "10:00"}.Valid(), "minute out of range")
	assert.False(t, Interval{"24:00", "25:00"}.Valid(), "hour out of range")
	assert.False(t, Interval{"ab:cd", "10:00"}.Valid())
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock("12-30"))
	assert.False(t, ValidClock(""))
}
