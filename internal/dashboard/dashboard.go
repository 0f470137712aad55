// Package dashboard holds the selection state model of the dashboard and
// recomputes the complete view from it. A view is a pure function of the
// selection and the loaded tables.
package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/chart"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// AdjustedHelp explains the group chart's adjusted-measure toggle.
const AdjustedHelp = "How should the relative amplitude of paired pulses be measured against " +
	"single test pulses? MeanRA is the standard measure. WMedianRA, the weighted median, " +
	"is more robust to outlying trials."

var (
	// ErrUnknownChart is returned by Chart for names it does not build.
	ErrUnknownChart = errors.New("unknown chart")
	// ErrNoSubject is returned for subject charts when no subject was queried.
	ErrNoSubject = errors.New("no subject requested")
)

// Message kinds of a SubjectView.
const (
	MessageNotFound  = "not_found"
	MessageMalformed = "malformed_query"
)

// Observer is notified of chart builds and failed subject lookups.
type Observer interface {
	ChartBuilt(id string)
	LookupFailed(reason string)
}

type nopObserver struct{}

func (nopObserver) ChartBuilt(string)   {}
func (nopObserver) LookupFailed(string) {}

// Options configures a Dashboard.
type Options struct {
	HeatmapBins int
	Observer    Observer
}

// SubjectView is the single-subject section. Exactly one of the charts
// pair or Message is set.
type SubjectView struct {
	Query       string       `json:"query"`
	Subject     int          `json:"subject,omitempty"`
	Detail      *chart.Chart `json:"detail,omitempty"`
	Variance    *chart.Chart `json:"variance,omitempty"`
	Message     string       `json:"message,omitempty"`
	MessageKind string       `json:"message_kind,omitempty"`
}

// View is the complete dashboard for one selection.
type View struct {
	Selection     Selection                `json:"selection"`
	Participants  dataset.ParticipantTable `json:"participants"`
	General       []chart.Chart            `json:"general"`
	Subject       *SubjectView             `json:"subject,omitempty"`
	Bulk          chart.Chart              `json:"bulk"`
	Groups        *chart.Chart             `json:"groups,omitempty"`
	GroupsMessage string                   `json:"groups_message,omitempty"`
	AdjustedHelp  string                   `json:"adjusted_help"`
}

// Dashboard computes views over one store.
type Dashboard struct {
	agg      *aggregate.Aggregator
	bins     int
	observer Observer
	general  []chart.Chart
}

// New builds a dashboard. The distribution charts depend only on the
// trials, so they are built once here.
func New(agg *aggregate.Aggregator, opts Options) *Dashboard {
	d := &Dashboard{agg: agg, bins: opts.HeatmapBins, observer: opts.Observer}
	if d.bins <= 0 {
		d.bins = chart.DefaultHeatmapBins
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	for _, id := range chart.GeneralIDs {
		c, _ := d.buildGeneral(id)
		d.general = append(d.general, c)
	}
	return d
}

// Store returns the store behind the dashboard.
func (d *Dashboard) Store() *dataset.Store {
	return d.agg.Store()
}

// Aggregator returns the aggregator behind the dashboard.
func (d *Dashboard) Aggregator() *aggregate.Aggregator {
	return d.agg
}

// Compute recomputes the whole view for sel. Subject lookup problems and a
// misaligned group table become messages; the other sections are still
// produced.
func (d *Dashboard) Compute(sel Selection) View {
	v := View{
		Selection:    sel,
		Participants: d.agg.Store().Participants(),
		General:      d.general,
		AdjustedHelp: AdjustedHelp,
	}

	if strings.TrimSpace(sel.SubjectQuery) != "" {
		v.Subject = d.subjectView(sel.SubjectQuery)
	}

	v.Bulk = d.bulk(sel)

	groups, err := d.groups(sel.GroupAdjusted)
	if err != nil {
		v.GroupsMessage = err.Error()
	} else {
		v.Groups = &groups
	}
	return v
}

// Chart builds a single chart by name for sel.
func (d *Dashboard) Chart(name string, sel Selection) (chart.Chart, error) {
	switch name {
	case chart.IDSubjectDetail, chart.IDSubjectVariance:
		subject, ok, err := ParseSubjectQuery(sel.SubjectQuery)
		if err != nil {
			d.observer.LookupFailed(MessageMalformed)
			return chart.Chart{}, err
		}
		if !ok {
			return chart.Chart{}, ErrNoSubject
		}
		detail, variance, err := d.subjectCharts(subject)
		if err != nil {
			d.observer.LookupFailed(MessageNotFound)
			return chart.Chart{}, err
		}
		if name == chart.IDSubjectDetail {
			return detail, nil
		}
		return variance, nil
	case chart.IDBulk:
		return d.bulk(sel), nil
	case chart.IDGroups:
		return d.groups(sel.GroupAdjusted)
	}
	for _, c := range d.general {
		if c.ID == name {
			return c, nil
		}
	}
	return chart.Chart{}, fmt.Errorf("%w: %s", ErrUnknownChart, name)
}

// ChartNames lists every name Chart accepts.
func ChartNames() []string {
	names := []string{chart.IDSubjectDetail, chart.IDSubjectVariance, chart.IDBulk, chart.IDGroups}
	return append(names, chart.GeneralIDs...)
}

// SubjectMessage returns the user-facing text for a failed subject lookup.
func SubjectMessage(query string, err error) string {
	if errors.Is(err, ErrMalformedQuery) {
		return fmt.Sprintf("Subject query %q is not a valid subject number", strings.TrimSpace(query))
	}
	return "No data found for subject " + strings.TrimSpace(query)
}

func (d *Dashboard) subjectView(query string) *SubjectView {
	sv := &SubjectView{Query: strings.TrimSpace(query)}

	subject, _, err := ParseSubjectQuery(query)
	if err != nil {
		d.observer.LookupFailed(MessageMalformed)
		sv.Message = SubjectMessage(query, err)
		sv.MessageKind = MessageMalformed
		return sv
	}
	sv.Subject = subject

	detail, variance, err := d.subjectCharts(subject)
	if err != nil {
		d.observer.LookupFailed(MessageNotFound)
		sv.Message = SubjectMessage(query, err)
		sv.MessageKind = MessageNotFound
		return sv
	}
	sv.Detail = &detail
	sv.Variance = &variance
	return sv
}

// subjectCharts needs both session types in the subject-level and trial
// tables; any missing pair is a lookup failure.
func (d *Dashboard) subjectCharts(subject int) (chart.Chart, chart.Chart, error) {
	bl, err := d.agg.SubjectSeries(subject, dataset.SessionBaseline)
	if err != nil {
		return chart.Chart{}, chart.Chart{}, err
	}
	swd, err := d.agg.SubjectSeries(subject, dataset.SessionDisruption)
	if err != nil {
		return chart.Chart{}, chart.Chart{}, err
	}
	blTrials, err := d.agg.SubjectVarianceSeries(subject, dataset.SessionBaseline)
	if err != nil {
		return chart.Chart{}, chart.Chart{}, err
	}
	swdTrials, err := d.agg.SubjectVarianceSeries(subject, dataset.SessionDisruption)
	if err != nil {
		return chart.Chart{}, chart.Chart{}, err
	}

	detail := chart.SubjectDetail(subject, bl, swd)
	d.observer.ChartBuilt(detail.ID)
	variance := chart.SubjectVariance(subject, blTrials, swdTrials)
	d.observer.ChartBuilt(variance.ID)
	return detail, variance, nil
}

func (d *Dashboard) bulk(sel Selection) chart.Chart {
	traces := d.agg.AllSubjectsSeries(sel.GroupFilter(), sel.SessionTypes(), sel.UseAdjusted)
	c := chart.BulkSubjects(traces)
	d.observer.ChartBuilt(c.ID)
	return c
}

func (d *Dashboard) groups(adjusted bool) (chart.Chart, error) {
	rows, err := d.agg.GroupComparisonTable(adjusted)
	if err != nil {
		return chart.Chart{}, err
	}
	c := chart.GroupComparison(rows, adjusted)
	d.observer.ChartBuilt(c.ID)
	return c, nil
}

func (d *Dashboard) buildGeneral(id string) (chart.Chart, bool) {
	trials := d.agg.Store().Trials()
	var c chart.Chart
	switch id {
	case chart.IDECDFEMG:
		c = chart.ECDF(trials, chart.FieldEMGPeakToPeak, chart.DistributionOptions{})
	case chart.IDECDFRA:
		c = chart.ECDF(trials, chart.FieldRA, chart.DistributionOptions{})
	case chart.IDECDFEMGByGroup:
		c = chart.ECDF(trials, chart.FieldEMGPeakToPeak, chart.DistributionOptions{ByGroup: true})
	case chart.IDECDFRAByGroup:
		c = chart.ECDF(trials, chart.FieldRA, chart.DistributionOptions{ByGroup: true})
	case chart.IDParallel:
		c = chart.ParallelCoordinates(trials)
	case chart.IDHeatmap:
		c = chart.DensityHeatmap(trials, chart.FieldEMGPeakToPeak, chart.DistributionOptions{Bins: d.bins})
	case chart.IDHeatmapByGroup:
		c = chart.DensityHeatmap(trials, chart.FieldEMGPeakToPeak, chart.DistributionOptions{Bins: d.bins, ByGroup: true})
	default:
		return chart.Chart{}, false
	}
	d.observer.ChartBuilt(c.ID)
	return c, true
}
