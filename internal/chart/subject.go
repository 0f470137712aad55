package chart

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

const (
	axisISI       = "ISI"
	axisRelAmp    = "Relative amplitude"
	axisRelAmpCap = "Relative Amplitude"
	axisEMG       = "EMG Peak to Peak"
)

// SubjectDetail plots a subject's RA and ARA per session type against ISI.
// The adjusted series start hidden. A session type with no rows
// contributes no series.
func SubjectDetail(subject int, bl, swd []dataset.SubjectLevelStat) Chart {
	c := Chart{
		ID:             IDSubjectDetail,
		Title:          fmt.Sprintf("Subject's %d Relative Amplitudes", subject),
		XAxis:          Axis{Title: axisISI},
		YAxis:          Axis{Title: axisRelAmp},
		ReferenceLines: []ReferenceLine{unity},
		Layout:         Layout{Margin: Margin{L: 2, R: 2, T: 80, B: 80}},
	}

	add := func(rows []dataset.SubjectLevelStat, name string) {
		if len(rows) == 0 {
			return
		}
		x := make(Values, len(rows))
		ra := make(Values, len(rows))
		ara := make(Values, len(rows))
		for i, r := range rows {
			x[i], ra[i], ara[i] = r.ISI, r.RA, r.ARA
		}
		c.Series = append(c.Series,
			Series{Name: fmt.Sprintf("%d %s", subject, name), Type: TypeScatter, Mode: ModeLines, X: x, Y: ra, Visible: Visible},
			Series{Name: fmt.Sprintf("%d %s adjusted", subject, name), Type: TypeScatter, Mode: ModeLines, X: x, Y: ara, Visible: LegendOnly},
		)
	}
	add(bl, "Baseline")
	add(swd, "SWD")
	return c
}

// SubjectVariance plots the spread of EMG peak-to-peak per ISI for each
// session type as box series. Quartiles are precomputed per ISI so static
// renderers do not need the raw points.
func SubjectVariance(subject int, bl, swd []dataset.Trial) Chart {
	c := Chart{
		ID:     IDSubjectVariance,
		Title:  fmt.Sprintf("Subject's %d EMG box-plots", subject),
		XAxis:  Axis{Title: axisISI},
		YAxis:  Axis{Title: axisEMG},
		Layout: Layout{Margin: Margin{L: 2, R: 2, T: 80, B: 80}},
	}
	for _, s := range []struct {
		rows []dataset.Trial
		name string
	}{
		{bl, dataset.SessionBaseline.Label()},
		{swd, dataset.SessionDisruption.Label()},
	} {
		if len(s.rows) == 0 {
			continue
		}
		x := make(Values, len(s.rows))
		y := make(Values, len(s.rows))
		for i, t := range s.rows {
			x[i], y[i] = t.ISI, t.EMGPeakToPeak
		}
		c.Series = append(c.Series, Series{
			Name:    s.name,
			Type:    TypeBox,
			X:       x,
			Y:       y,
			Visible: Visible,
			Boxes:   boxSummaries(x, y),
		})
	}
	return c
}

// boxSummaries groups y by x and computes quartiles for each group,
// ascending by x. NaN observations are skipped; groups left empty are
// dropped.
func boxSummaries(x, y Values) []BoxSummary {
	groups := make(map[float64][]float64)
	var keys []float64
	for i := range x {
		if _, ok := groups[x[i]]; !ok {
			keys = append(keys, x[i])
			groups[x[i]] = nil
		}
		groups[x[i]] = append(groups[x[i]], y[i])
	}
	sort.Float64s(keys)

	var out []BoxSummary
	for _, k := range keys {
		vals := Values(groups[k]).Finite()
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, BoxSummary{
			ISI:    k,
			Min:    vals[0],
			Q1:     stat.Quantile(0.25, stat.Empirical, vals, nil),
			Median: stat.Quantile(0.5, stat.Empirical, vals, nil),
			Q3:     stat.Quantile(0.75, stat.Empirical, vals, nil),
			Max:    vals[len(vals)-1],
			N:      len(vals),
		})
	}
	return out
}

// BulkSubjects plots one series per non-empty trace, named "<subject> BL"
// or "<subject> SWD".
func BulkSubjects(traces []aggregate.SubjectTrace) Chart {
	c := Chart{
		ID:             IDBulk,
		XAxis:          Axis{Title: axisISI},
		YAxis:          Axis{Title: axisRelAmp},
		ReferenceLines: []ReferenceLine{unity},
		Layout:         Layout{Margin: Margin{L: 2, R: 2, T: 30, B: 20}},
	}
	for _, tr := range traces {
		if len(tr.Points) == 0 {
			continue
		}
		x := make(Values, len(tr.Points))
		y := make(Values, len(tr.Points))
		for i, p := range tr.Points {
			x[i], y[i] = p.ISI, p.Value
		}
		c.Series = append(c.Series, Series{
			Name:    fmt.Sprintf("%d %s", tr.Subject, tr.SessionType),
			Type:    TypeScatter,
			Mode:    ModeLines,
			X:       x,
			Y:       y,
			Visible: Visible,
		})
	}
	return c
}

// GroupComparison plots the four group/session columns of the pivoted
// group table against ISI.
func GroupComparison(rows []aggregate.GroupComparisonRow, useAdjusted bool) Chart {
	measure := dataset.ColMeanRA
	if useAdjusted {
		measure = dataset.ColWMedianRA
	}
	c := Chart{
		ID:             IDGroups,
		Title:          "Measures of ICF relative amplitude (" + measure + ")",
		XAxis:          Axis{Title: axisISI},
		YAxis:          Axis{Title: axisRelAmpCap},
		ReferenceLines: []ReferenceLine{unity},
		Layout:         Layout{Margin: Margin{L: 2, R: 2, T: 30, B: 0}},
	}
	if len(rows) == 0 {
		return c
	}

	x := make(Values, len(rows))
	cols := [4]Values{}
	for i := range cols {
		cols[i] = make(Values, len(rows))
	}
	for i, r := range rows {
		x[i] = r.ISI
		cols[0][i], cols[1][i], cols[2][i], cols[3][i] = r.BLHC, r.BLMDD, r.SWDHC, r.SWDMDD
	}
	names := [4]string{
		groupSeriesName(dataset.GroupHC, dataset.SessionBaseline),
		groupSeriesName(dataset.GroupMDD, dataset.SessionBaseline),
		groupSeriesName(dataset.GroupHC, dataset.SessionDisruption),
		groupSeriesName(dataset.GroupMDD, dataset.SessionDisruption),
	}
	for i := range cols {
		c.Series = append(c.Series, Series{
			Name:    names[i],
			Type:    TypeScatter,
			Mode:    ModeMarkersLines,
			X:       x,
			Y:       cols[i],
			Visible: Visible,
		})
	}
	return c
}

func groupSeriesName(g dataset.Group, s dataset.SessionType) string {
	return g.String() + ": " + s.Label()
}
