package main

import (
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/clinicagenda/agenda/internal/domain/collision"
)

const mondayRules = `"availability": [{"weekday": 1, "start_time": "09:00", "end_time": "13:00"}]`

func TestRunCheck(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		timezone string
		want     collision.Reasons
	}{
		{
			name:  "inside availability",
			input: `{"candidate": {"start": "2030-01-07T09:00:00Z", "end": "2030-01-07T10:00:00Z"}, "blocks": [], ` + mondayRules + `}`,
			want:  0,
		},
		{
			name:  "outside availability",
			input: `{"candidate": {"start": "2030-01-07T12:30:00Z", "end": "2030-01-07T13:30:00Z"}, ` + mondayRules + `}`,
			want:  collision.Reasons(collision.ReasonAvailability),
		},
		{
			name:  "inverted interval",
			input: `{"candidate": {"start": "2030-01-07T10:00:00Z", "end": "2030-01-07T09:00:00Z"}, ` + mondayRules + `}`,
			want:  collision.Reasons(collision.ReasonInvalidInterval),
		},
		{
			// 12:00Z is 09:00 in Buenos Aires.
			name:  "timezone from file",
			input: `{"timezone": "America/Argentina/Buenos_Aires", "candidate": {"start": "2030-01-07T12:00:00Z", "end": "2030-01-07T13:00:00Z"}, ` + mondayRules + `}`,
			want:  0,
		},
		{
			name:     "flag overrides file",
			input:    `{"timezone": "America/Argentina/Buenos_Aires", "candidate": {"start": "2030-01-07T12:00:00Z", "end": "2030-01-07T13:00:00Z"}, ` + mondayRules + `}`,
			timezone: "UTC",
			want:     collision.Reasons(collision.ReasonAvailability),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := runCheck(strings.NewReader(tt.input), tt.timezone)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Reasons != tt.want {
				t.Errorf("reasons = %v, want %v", v.Reasons.Names(), tt.want.Names())
			}
			if v.Conflict != (tt.want != 0) {
				t.Errorf("conflict = %v", v.Conflict)
			}
		})
	}
}

func TestRunCheck_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"not json":     `candidate`,
		"bad rule":     `{"candidate": {"start": "2030-01-07T09:00:00Z", "end": "2030-01-07T10:00:00Z"}, "availability": [{"weekday": 1, "start_time": "13:00", "end_time": "09:00"}]}`,
		"bad timezone": `{"timezone": "Mars/Olympus", "candidate": {"start": "2030-01-07T09:00:00Z", "end": "2030-01-07T10:00:00Z"}}`,
		"bad clock":    `{"candidate": {"start": "2030-01-07T09:00:00Z", "end": "2030-01-07T10:00:00Z"}, "availability": [{"weekday": 1, "start_time": "25:00", "end_time": "26:00"}]}`,
	} {
		if _, err := runCheck(strings.NewReader(input), ""); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
