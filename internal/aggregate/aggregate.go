// Package aggregate groups, filters and pivots the loaded statistic tables
// into chart-ready series. Every operation is a pure function of the
// immutable store.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// ErrNotFound matches every *NotFoundError with errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a (subject, session type) pair with no rows.
type NotFoundError struct {
	Subject     int
	SessionType dataset.SessionType
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no data for subject %d session %s", e.Subject, e.SessionType)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// GroupFilter restricts bulk series to one cohort.
type GroupFilter int

const (
	GroupFilterNone GroupFilter = iota
	GroupFilterHC
	GroupFilterMDD
)

// ResolveGroupFilter maps the two "hide" toggles onto a filter. Hiding MDD
// shows HC only and hiding HC shows MDD only. With both set the toggles
// cancel out and every subject is shown.
func ResolveGroupFilter(hideMDD, hideHC bool) GroupFilter {
	switch {
	case hideMDD && !hideHC:
		return GroupFilterHC
	case hideHC && !hideMDD:
		return GroupFilterMDD
	}
	return GroupFilterNone
}

// Allows reports whether subjects of group g pass the filter.
func (f GroupFilter) Allows(g dataset.Group) bool {
	switch f {
	case GroupFilterHC:
		return g == dataset.GroupHC
	case GroupFilterMDD:
		return g == dataset.GroupMDD
	}
	return true
}

func (f GroupFilter) String() string {
	switch f {
	case GroupFilterHC:
		return "hc-only"
	case GroupFilterMDD:
		return "mdd-only"
	}
	return "none"
}

// Point is one (ISI, value) pair of a series.
type Point struct {
	ISI   float64
	Value float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ISI   float64  `json:"isi"`
		Value *float64 `json:"value"`
	}{p.ISI, dataset.Nullable(p.Value)})
}

// SubjectTrace is the series of one subject for one session type. Points is
// empty when the subject has no rows for that session type.
type SubjectTrace struct {
	Subject     int                 `json:"subject"`
	Group       dataset.Group       `json:"group"`
	SessionType dataset.SessionType `json:"session_type"`
	Points      []Point             `json:"points"`
}

// GroupComparisonRow is one ISI of the pivoted group-level table.
type GroupComparisonRow struct {
	ISI    float64
	BLHC   float64
	BLMDD  float64
	SWDHC  float64
	SWDMDD float64
}

func (r GroupComparisonRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ISI    float64  `json:"isi"`
		BLHC   *float64 `json:"bl_hc"`
		BLMDD  *float64 `json:"bl_mdd"`
		SWDHC  *float64 `json:"swd_hc"`
		SWDMDD *float64 `json:"swd_mdd"`
	}{r.ISI, dataset.Nullable(r.BLHC), dataset.Nullable(r.BLMDD), dataset.Nullable(r.SWDHC), dataset.Nullable(r.SWDMDD)})
}

type key struct {
	subject int
	session dataset.SessionType
}

// Aggregator answers series queries over a store. Indexes are built once in
// New and only read afterwards.
type Aggregator struct {
	store    *dataset.Store
	subjects map[key][]dataset.SubjectLevelStat
	trials   map[key][]dataset.Trial
}

// New indexes the store's subject-level and trial tables.
func New(store *dataset.Store) *Aggregator {
	a := &Aggregator{
		store:    store,
		subjects: make(map[key][]dataset.SubjectLevelStat),
		trials:   make(map[key][]dataset.Trial),
	}
	for _, row := range store.SubjectLevel() {
		k := key{row.Subject, row.SessionType}
		a.subjects[k] = append(a.subjects[k], row)
	}
	for k, rows := range a.subjects {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ISI < rows[j].ISI })
		a.subjects[k] = rows
	}
	for _, tr := range store.Trials() {
		k := key{tr.Subject, tr.SessionType}
		a.trials[k] = append(a.trials[k], tr)
	}
	return a
}

// Store returns the store the aggregator reads.
func (a *Aggregator) Store() *dataset.Store {
	return a.store
}

// SubjectSeries returns every subject-level row for the pair, ascending by
// ISI. Rows sharing an ISI keep their file order.
func (a *Aggregator) SubjectSeries(subject int, session dataset.SessionType) ([]dataset.SubjectLevelStat, error) {
	rows, ok := a.subjects[key{subject, session}]
	if !ok {
		return nil, &NotFoundError{Subject: subject, SessionType: session}
	}
	out := make([]dataset.SubjectLevelStat, len(rows))
	copy(out, rows)
	return out, nil
}

// SubjectVarianceSeries returns the trials of the pair in file order.
func (a *Aggregator) SubjectVarianceSeries(subject int, session dataset.SessionType) ([]dataset.Trial, error) {
	rows, ok := a.trials[key{subject, session}]
	if !ok {
		return nil, &NotFoundError{Subject: subject, SessionType: session}
	}
	out := make([]dataset.Trial, len(rows))
	copy(out, rows)
	return out, nil
}

// AllSubjectsSeries returns one trace per (session type, subject) for the
// subjects passing filter. Traces are ordered by the requested session
// types, then by subject first appearance. Repeated session types are
// ignored. A subject without rows for a session type gets an empty trace.
func (a *Aggregator) AllSubjectsSeries(filter GroupFilter, sessions []dataset.SessionType, useAdjusted bool) []SubjectTrace {
	var out []SubjectTrace
	seen := make(map[dataset.SessionType]bool, len(sessions))
	for _, st := range sessions {
		if seen[st] {
			continue
		}
		seen[st] = true
		for _, s := range a.store.Subjects() {
			if !filter.Allows(s.Group) {
				continue
			}
			trace := SubjectTrace{Subject: s.ID, Group: s.Group, SessionType: st, Points: []Point{}}
			for _, row := range a.subjects[key{s.ID, st}] {
				trace.Points = append(trace.Points, Point{ISI: row.ISI, Value: row.Value(useAdjusted)})
			}
			out = append(out, trace)
		}
	}
	return out
}

// GroupComparisonTable pivots the group-level table into one row per ISI.
// The four (group, session type) slices are sorted by ISI and must hold the
// same ISI sequence with no repeats; otherwise a *dataset.SchemaError is
// returned.
func (a *Aggregator) GroupComparisonTable(useAdjusted bool) ([]GroupComparisonRow, error) {
	type slice struct {
		group   dataset.Group
		session dataset.SessionType
		rows    []dataset.GroupLevelStat
	}
	slices := []*slice{
		{group: dataset.GroupHC, session: dataset.SessionBaseline},
		{group: dataset.GroupMDD, session: dataset.SessionBaseline},
		{group: dataset.GroupHC, session: dataset.SessionDisruption},
		{group: dataset.GroupMDD, session: dataset.SessionDisruption},
	}
	for _, row := range a.store.GroupLevel() {
		for _, s := range slices {
			if row.Group == s.group && row.SessionType == s.session {
				s.rows = append(s.rows, row)
			}
		}
	}
	for _, s := range slices {
		rows := s.rows
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ISI < rows[j].ISI })
		for i := 1; i < len(rows); i++ {
			if rows[i].ISI == rows[i-1].ISI {
				return nil, &dataset.SchemaError{
					Table:  dataset.TableGroupLevel,
					Column: dataset.ColISI,
					Value:  formatISI(rows[i].ISI),
					Reason: fmt.Sprintf("%s %s slice repeats ISI %g", s.group, s.session, rows[i].ISI),
				}
			}
		}
	}

	ref := slices[0]
	for _, s := range slices[1:] {
		if err := sameISIs(ref.rows, s.rows); err != nil {
			return nil, &dataset.SchemaError{
				Table:  dataset.TableGroupLevel,
				Column: dataset.ColISI,
				Reason: fmt.Sprintf("%s %s slice is not aligned with %s %s: %s", s.group, s.session, ref.group, ref.session, err),
			}
		}
	}

	out := make([]GroupComparisonRow, len(ref.rows))
	for i := range ref.rows {
		out[i] = GroupComparisonRow{
			ISI:    ref.rows[i].ISI,
			BLHC:   slices[0].rows[i].Value(useAdjusted),
			BLMDD:  slices[1].rows[i].Value(useAdjusted),
			SWDHC:  slices[2].rows[i].Value(useAdjusted),
			SWDMDD: slices[3].rows[i].Value(useAdjusted),
		}
	}
	return out, nil
}

func sameISIs(a, b []dataset.GroupLevelStat) error {
	if len(a) != len(b) {
		return fmt.Errorf("%d rows vs %d", len(b), len(a))
	}
	for i := range a {
		if a[i].ISI != b[i].ISI {
			return fmt.Errorf("row %d has ISI %g, want %g", i+1, b[i].ISI, a[i].ISI)
		}
	}
	return nil
}

func formatISI(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
