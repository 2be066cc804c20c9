// Package collision decides whether a candidate appointment interval conflicts
// with a professional's blocks or falls outside their declared weekly hours.
//
// Every function in this package is pure: no I/O, no shared state. Callers may
// invoke them concurrently, for example once per drag frame.
package collision

import (
	"encoding/json"
	"time"
)

// Reason identifies why a candidate was flagged.
type Reason uint8

const (
	// ReasonBlock means the candidate overlaps at least one block.
	ReasonBlock Reason = 1 << iota
	// ReasonAvailability means no single availability rule contains the candidate.
	ReasonAvailability
	// ReasonInvalidInterval means the candidate has start >= end.
	ReasonInvalidInterval
)

var reasonNames = []struct {
	r    Reason
	name string
}{
	{ReasonBlock, "block"},
	{ReasonAvailability, "availability"},
	{ReasonInvalidInterval, "invalid_interval"},
}

// Reasons is a set of Reason flags.
type Reasons uint8

func (rs Reasons) Has(r Reason) bool { return uint8(rs)&uint8(r) != 0 }

func (rs Reasons) with(r Reason) Reasons { return Reasons(uint8(rs) | uint8(r)) }

// Names lists the reasons in a stable order.
func (rs Reasons) Names() []string {
	names := make([]string, 0, len(reasonNames))
	for _, rn := range reasonNames {
		if rs.Has(rn.r) {
			names = append(names, rn.name)
		}
	}
	return names
}

func (rs Reasons) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Names())
}

// Verdict is the tagged result of Classify. Reasons is empty when Conflict is false.
type Verdict struct {
	Conflict bool    `json:"conflict"`
	Reasons  Reasons `json:"reasons"`
}

// HasBlockCollision reports whether candidate overlaps any block.
// Touching endpoints do not count and an empty list never collides.
func HasBlockCollision(candidate Interval, blocks []Block) bool {
	for _, b := range blocks {
		if candidate.Overlaps(b.Interval()) {
			return true
		}
	}
	return false
}

// IsOutsideAvailability reports whether candidate is not fully contained by a
// single rule for the weekday of candidate.Start, evaluated in the location
// carried by candidate.Start. Rule times are anchored on the start date, so a
// candidate ending on the following day is never contained. Adjacent rules are
// not merged: 11:00-13:00 against 09:00-12:00 and 12:00-17:00 is outside.
func IsOutsideAvailability(candidate Interval, rules []AvailabilityRule) bool {
	weekday := candidate.Start.Weekday()
	for _, r := range rules {
		if r.Weekday != weekday {
			continue
		}
		w := r.Window(candidate.Start)
		if !candidate.Start.Before(w.Start) && !candidate.End.After(w.End) {
			return false
		}
	}
	// No rule for the weekday, or none contains the candidate.
	return true
}

// DetectCollision is the boolean form of Classify.
func DetectCollision(candidate Interval, blocks []Block, rules []AvailabilityRule) bool {
	return Classify(candidate, blocks, rules).Conflict
}

// Classify evaluates the block and availability checks independently and
// reports every reason that applies. A candidate with start >= end is always a
// conflict carrying ReasonInvalidInterval, alongside whatever the other checks
// report for it.
func Classify(candidate Interval, blocks []Block, rules []AvailabilityRule) Verdict {
	var reasons Reasons
	if candidate.Validate() != nil {
		reasons = reasons.with(ReasonInvalidInterval)
	}
	if HasBlockCollision(candidate, blocks) {
		reasons = reasons.with(ReasonBlock)
	}
	if IsOutsideAvailability(candidate, rules) {
		reasons = reasons.with(ReasonAvailability)
	}
	return Verdict{Conflict: reasons != 0, Reasons: reasons}
}

// Detector evaluates candidates in a fixed clinic location so weekday and
// time-of-day resolution does not depend on how the instants were parsed.
type Detector struct {
	loc *time.Location
}

// NewDetector returns a Detector for loc. A nil loc means time.Local.
func NewDetector(loc *time.Location) *Detector {
	if loc == nil {
		loc = time.Local
	}
	return &Detector{loc: loc}
}

// Location returns the clinic location.
func (d *Detector) Location() *time.Location { return d.loc }

func (d *Detector) HasBlockCollision(candidate Interval, blocks []Block) bool {
	return HasBlockCollision(candidate, blocks)
}

func (d *Detector) IsOutsideAvailability(candidate Interval, rules []AvailabilityRule) bool {
	return IsOutsideAvailability(candidate.In(d.loc), rules)
}

func (d *Detector) DetectCollision(candidate Interval, blocks []Block, rules []AvailabilityRule) bool {
	return d.Classify(candidate, blocks, rules).Conflict
}

func (d *Detector) Classify(candidate Interval, blocks []Block, rules []AvailabilityRule) Verdict {
	return Classify(candidate.In(d.loc), blocks, rules)
}

func (d *Detector) IsDayBlocked(day time.Time, blocks []Block) bool {
	return IsDayBlocked(day.In(d.loc), blocks)
}

func (d *Detector) IsNonWorkingDay(day time.Time, rules []AvailabilityRule) bool {
	return IsNonWorkingDay(day.In(d.loc), rules)
}
