package chart

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// Field selects the trial measure a distribution chart is drawn over.
type Field string

const (
	FieldEMGPeakToPeak Field = dataset.ColEMGPeakToPeak
	FieldRA            Field = dataset.ColRA
)

func (f Field) value(t dataset.Trial) float64 {
	if f == FieldRA {
		return t.RA
	}
	return t.EMGPeakToPeak
}

func (f Field) title() string {
	if f == FieldRA {
		return "Relative Amplitude"
	}
	return "EMG peak to peak"
}

// DefaultHeatmapBins is the bin count used when none is configured.
const DefaultHeatmapBins = 20

// DistributionOptions controls the distribution charts.
type DistributionOptions struct {
	// ByGroup facets the chart by trial Label, one panel per label.
	ByGroup bool
	// Bins is the histogram bin count of the density heatmap.
	Bins int
}

// ECDF plots the empirical cumulative distribution of field, one series
// per ISI value, optionally faceted by Label.
func ECDF(trials []dataset.Trial, field Field, opts DistributionOptions) Chart {
	c := Chart{
		ID:     ecdfID(field, opts.ByGroup),
		Title:  "CDF: " + field.title(),
		XAxis:  Axis{Title: string(field)},
		YAxis:  Axis{Title: "probability"},
		Layout: Layout{Width: 600, Margin: Margin{L: 2, R: 2, T: 30, B: 0}},
	}
	if opts.ByGroup {
		c.Title += " by group"
		c.Layout.Width = 700
	}

	facets := facetTrials(trials, opts.ByGroup)
	for _, facet := range facets {
		if opts.ByGroup {
			c.Facets = append(c.Facets, facet.label)
		}
		byISI := make(map[float64][]float64)
		var isis []float64
		for _, t := range facet.trials {
			v := field.value(t)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if _, ok := byISI[t.ISI]; !ok {
				isis = append(isis, t.ISI)
			}
			byISI[t.ISI] = append(byISI[t.ISI], v)
		}
		sort.Float64s(isis)

		for _, isi := range isis {
			x := byISI[isi]
			sort.Float64s(x)
			y := ecdf(x)
			c.Series = append(c.Series, Series{
				Name:    formatNumber(isi),
				Type:    TypeECDF,
				Mode:    ModeLines,
				X:       Values(x),
				Y:       y,
				Visible: Visible,
				Facet:   facet.label,
			})
		}
	}
	return c
}

// ecdf returns P(X <= x[i]) for each point of the sorted sample x. Tied
// points all take the fraction up to the last of them.
func ecdf(x []float64) Values {
	y := make(Values, len(x))
	n := float64(len(x))
	for i := len(x) - 1; i >= 0; {
		j := i
		for j > 0 && x[j-1] == x[i] {
			j--
		}
		for k := j; k <= i; k++ {
			y[k] = float64(i+1) / n
		}
		i = j - 1
	}
	return y
}

func ecdfID(field Field, byGroup bool) string {
	switch {
	case field == FieldRA && byGroup:
		return IDECDFRAByGroup
	case field == FieldRA:
		return IDECDFRA
	case byGroup:
		return IDECDFEMGByGroup
	}
	return IDECDFEMG
}

// DensityHeatmap bins field into opts.Bins equal-width bins spanning the
// finite values of all trials, so faceted panels share bin edges. Each
// series carries bin centres on X and counts on Y.
func DensityHeatmap(trials []dataset.Trial, field Field, opts DistributionOptions) Chart {
	bins := opts.Bins
	if bins <= 0 {
		bins = DefaultHeatmapBins
	}
	c := Chart{
		ID:     IDHeatmap,
		Title:  "Density heatmap: " + field.title(),
		XAxis:  Axis{Title: string(field)},
		YAxis:  Axis{Title: "count"},
		Layout: Layout{Margin: Margin{L: 2, R: 2, T: 30, B: 0}},
	}
	if opts.ByGroup {
		c.ID = IDHeatmapByGroup
		c.Title += " by group"
	}

	var all []float64
	for _, t := range trials {
		all = append(all, field.value(t))
	}
	finite := Values(all).Finite()
	if len(finite) == 0 {
		return c
	}
	dividers := binDividers(floats.Min(finite), floats.Max(finite), bins)
	centres := make(Values, bins)
	for i := range centres {
		centres[i] = (dividers[i] + dividers[i+1]) / 2
	}

	for _, facet := range facetTrials(trials, opts.ByGroup) {
		vals := make(Values, 0, len(facet.trials))
		for _, t := range facet.trials {
			vals = append(vals, field.value(t))
		}
		x := vals.Finite()
		if len(x) == 0 {
			continue
		}
		sort.Float64s(x)
		counts := stat.Histogram(nil, dividers, x, nil)
		if opts.ByGroup {
			c.Facets = append(c.Facets, facet.label)
		}
		c.Series = append(c.Series, Series{
			Name:    seriesNameOr(facet.label, string(field)),
			Type:    TypeHistogram,
			X:       centres,
			Y:       Values(counts),
			Visible: Visible,
			Facet:   facet.label,
		})
	}
	return c
}

// binDividers returns bins+1 ascending edges. The last edge is nudged up so
// the maximum value falls inside the final bin.
func binDividers(lo, hi float64, bins int) []float64 {
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	return dividers
}

func seriesNameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// ParallelCoordinates draws every trial across the ISI, EMGPeakToPeak and
// RA axes, coloured by subject.
func ParallelCoordinates(trials []dataset.Trial) Chart {
	c := Chart{
		ID:     IDParallel,
		Title:  "Parallel Coordinates: ISI to EMG to Relative Amplitude",
		Layout: Layout{Width: 1200, Margin: Margin{L: 40, R: 40, T: 80, B: 20}},
	}
	if len(trials) == 0 {
		return c
	}
	isi := make(Values, len(trials))
	emg := make(Values, len(trials))
	ra := make(Values, len(trials))
	subjects := make(Values, len(trials))
	for i, t := range trials {
		isi[i], emg[i], ra[i], subjects[i] = t.ISI, t.EMGPeakToPeak, t.RA, float64(t.Subject)
	}
	c.Series = []Series{{
		Name:    "trials",
		Type:    TypeParcoords,
		Visible: Visible,
		Dimensions: []Dimension{
			{Label: dataset.ColISI, Values: isi},
			{Label: dataset.ColEMGPeakToPeak, Values: emg},
			{Label: dataset.ColRA, Values: ra},
		},
		ColorValues: subjects,
		ColorScale:  "Tealrose",
	}}
	return c
}

type facet struct {
	label  string
	trials []dataset.Trial
}

// facetTrials splits trials by Label in order of first appearance, or
// returns one unlabeled facet holding everything.
func facetTrials(trials []dataset.Trial, byLabel bool) []facet {
	if !byLabel {
		if len(trials) == 0 {
			return nil
		}
		return []facet{{trials: trials}}
	}
	index := make(map[string]int)
	var out []facet
	for _, t := range trials {
		i, ok := index[t.Label]
		if !ok {
			i = len(out)
			index[t.Label] = i
			out = append(out, facet{label: t.Label})
		}
		out[i].trials = append(out[i].trials, t)
	}
	return out
}
