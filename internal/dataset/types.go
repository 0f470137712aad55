package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// SessionType identifies the experimental condition of a recording session.
type SessionType string

const (
	SessionBaseline   SessionType = "BL"
	SessionDisruption SessionType = "SWD"
)

// SessionTypes lists every session type in display order.
var SessionTypes = []SessionType{SessionBaseline, SessionDisruption}

// ParseSessionType accepts BL or SWD in any letter case.
func ParseSessionType(s string) (SessionType, error) {
	switch SessionType(strings.ToUpper(strings.TrimSpace(s))) {
	case SessionBaseline:
		return SessionBaseline, nil
	case SessionDisruption:
		return SessionDisruption, nil
	}
	return "", fmt.Errorf("unknown session type %q (must be BL or SWD)", s)
}

// Valid reports whether s is exactly BL or SWD.
func (s SessionType) Valid() bool {
	return s == SessionBaseline || s == SessionDisruption
}

// Label is the human readable session name used in chart legends.
func (s SessionType) Label() string {
	switch s {
	case SessionBaseline:
		return "Baseline"
	case SessionDisruption:
		return "Slow-wave disruption"
	}
	return string(s)
}

// Group is the subject cohort.
type Group int

const (
	GroupHC  Group = 1
	GroupMDD Group = 2
)

// Valid reports whether g is one of the two study cohorts.
func (g Group) Valid() bool {
	return g == GroupHC || g == GroupMDD
}

// String returns the cohort abbreviation.
func (g Group) String() string {
	switch g {
	case GroupHC:
		return "HC"
	case GroupMDD:
		return "MDD"
	}
	return fmt.Sprintf("Group(%d)", int(g))
}

// Trial is one stimulation trial from the main dataset.
type Trial struct {
	Subject       int
	SessionType   SessionType
	ISI           float64
	EMGPeakToPeak float64
	RA            float64
	Label         string
	Group         Group
}

// MarshalJSON writes missing measures as null.
func (t Trial) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subject       int         `json:"subject"`
		SessionType   SessionType `json:"session_type"`
		ISI           float64     `json:"isi"`
		EMGPeakToPeak *float64    `json:"emg_peak_to_peak"`
		RA            *float64    `json:"ra"`
		Label         string      `json:"label"`
		Group         Group       `json:"group"`
	}{t.Subject, t.SessionType, t.ISI, Nullable(t.EMGPeakToPeak), Nullable(t.RA), t.Label, t.Group})
}

// SubjectLevelStat is one (Subject, SessionType, ISI) summary row.
type SubjectLevelStat struct {
	Subject     int
	SessionType SessionType
	Group       Group
	ISI         float64
	RA          float64
	ARA         float64
}

// Value returns ARA when adjusted is set, RA otherwise.
func (s SubjectLevelStat) Value(adjusted bool) float64 {
	if adjusted {
		return s.ARA
	}
	return s.RA
}

// MarshalJSON writes missing measures as null.
func (s SubjectLevelStat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subject     int         `json:"subject"`
		SessionType SessionType `json:"session_type"`
		Group       Group       `json:"group"`
		ISI         float64     `json:"isi"`
		RA          *float64    `json:"ra"`
		ARA         *float64    `json:"ara"`
	}{s.Subject, s.SessionType, s.Group, s.ISI, Nullable(s.RA), Nullable(s.ARA)})
}

// GroupLevelStat is one (Group, SessionType, ISI) summary row.
type GroupLevelStat struct {
	Group       Group
	SessionType SessionType
	ISI         float64
	MeanRA      float64
	WMedianRA   float64
}

// Value returns WMedianRA when adjusted is set, MeanRA otherwise.
func (g GroupLevelStat) Value(adjusted bool) float64 {
	if adjusted {
		return g.WMedianRA
	}
	return g.MeanRA
}

// MarshalJSON writes missing measures as null.
func (g GroupLevelStat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Group       Group       `json:"group"`
		SessionType SessionType `json:"session_type"`
		ISI         float64     `json:"isi"`
		MeanRA      *float64    `json:"mean_ra"`
		WMedianRA   *float64    `json:"wmedian_ra"`
	}{g.Group, g.SessionType, g.ISI, Nullable(g.MeanRA), Nullable(g.WMedianRA)})
}

// ParticipantTable is the free-form participant metadata sheet.
type ParticipantTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Subject is a distinct subject of the subject-level table.
type Subject struct {
	ID    int   `json:"id"`
	Group Group `json:"group"`
}

// Nullable maps NaN and infinities to nil so they encode as JSON null.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
