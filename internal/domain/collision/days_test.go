package collision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsDayBlocked(t *testing.T) {
	// Monday 15:00 through Wednesday 09:00.
	blocks := []Block{{Start: at(1, 15, 0), End: at(3, 9, 0)}}

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"previous sunday", at(7, 0, 0).AddDate(0, 0, -7), false},
		{"start day", at(1, 8, 0), true},
		{"middle day", at(2, 23, 0), true},
		{"end day", at(3, 18, 0), true},
		{"day after", at(4, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDayBlocked(tt.day, blocks))
		})
	}

	assert.False(t, IsDayBlocked(at(1, 0, 0), nil))
}

func TestIsDayBlocked_ClinicLocation(t *testing.T) {
	clinic := time.FixedZone("UTC-3", -3*60*60)
	// 02:00 UTC Tuesday is Monday 23:00 in the clinic.
	blocks := []Block{{Start: at(2, 2, 0), End: at(2, 2, 30)}}
	d := NewDetector(clinic)

	assert.True(t, d.IsDayBlocked(time.Date(2024, 1, 1, 12, 0, 0, 0, clinic), blocks))
	assert.False(t, d.IsDayBlocked(time.Date(2024, 1, 2, 12, 0, 0, 0, clinic), blocks))
}

func TestIsNonWorkingDay(t *testing.T) {
	rules := []AvailabilityRule{rule(time.Monday, "09:00", "12:00"), rule(time.Friday, "09:00", "12:00")}
	assert.False(t, IsNonWorkingDay(at(1, 0, 0), rules))
	assert.True(t, IsNonWorkingDay(at(2, 0, 0), rules))
	assert.False(t, IsNonWorkingDay(at(5, 10, 0), rules))
	assert.True(t, IsNonWorkingDay(at(5, 10, 0), nil))

	assert.Len(t, RulesFor(time.Monday, rules), 1)
}

func TestStartEndOfDay(t *testing.T) {
	ts := at(2, 13, 45)
	assert.Equal(t, at(2, 0, 0), StartOfDay(ts))
	assert.Equal(t, at(3, 0, 0).Add(-time.Nanosecond), EndOfDay(ts))
}
