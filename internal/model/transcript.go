package model

import "strconv"

// Segment is one span of recognized speech with segment-level start/end timing.
type Segment struct {
	StartSeconds float64 `json:"startSeconds"`
	EndSeconds   float64 `json:"endSeconds"`
	Text         string  `json:"text"`
	SpeakerLabel string  `json:"speakerLabel,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// Transcript is an ordered, non-overlapping sequence of Segments.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Validate checks the invariants spec.md §3 requires of a Transcript:
// non-overlapping segments, strictly monotonic start, end >= start,
// non-empty text.
func (t Transcript) Validate() error {
	var lastStart float64 = -1
	var lastEnd float64
	for i, s := range t.Segments {
		if s.Text == "" {
			return &InvariantError{Field: "text", Index: i, Reason: "empty"}
		}
		if s.EndSeconds < s.StartSeconds {
			return &InvariantError{Field: "end_seconds", Index: i, Reason: "end before start"}
		}
		if s.StartSeconds <= lastStart {
			return &InvariantError{Field: "start_seconds", Index: i, Reason: "not strictly monotonic"}
		}
		if i > 0 && s.StartSeconds < lastEnd {
			return &InvariantError{Field: "start_seconds", Index: i, Reason: "overlaps previous segment"}
		}
		lastStart = s.StartSeconds
		lastEnd = s.EndSeconds
	}
	return nil
}

// InvariantError describes a Transcript invariant violation.
type InvariantError struct {
	Field  string
	Index  int
	Reason string
}

func (e *InvariantError) Error() string {
	return "transcript invariant violated at segment " + strconv.Itoa(e.Index) + ": " + e.Field + " " + e.Reason
}
