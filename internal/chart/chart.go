// Package chart turns aggregated tables into declarative chart specs. A
// spec carries series, axis titles, reference lines and visibility flags;
// drawing it is left to the consumer (the browser front end or the static
// renderer). Builders are pure and never fail: empty input yields a chart
// with no series.
package chart

import (
	"encoding/json"
	"math"
	"strconv"
)

// Chart identifiers, also used as URL names.
const (
	IDSubjectDetail   = "subject-detail"
	IDSubjectVariance = "subject-variance"
	IDBulk            = "bulk"
	IDGroups          = "groups"
	IDECDFEMG         = "ecdf-emg"
	IDECDFRA          = "ecdf-ra"
	IDECDFEMGByGroup  = "ecdf-emg-by-group"
	IDECDFRAByGroup   = "ecdf-ra-by-group"
	IDParallel        = "parallel"
	IDHeatmap         = "heatmap"
	IDHeatmapByGroup  = "heatmap-by-group"
)

// GeneralIDs lists the distribution charts over the raw trials, in the
// order the dashboard shows them.
var GeneralIDs = []string{
	IDECDFEMG, IDECDFRA, IDECDFEMGByGroup, IDECDFRAByGroup,
	IDParallel, IDHeatmap, IDHeatmapByGroup,
}

// Series types.
const (
	TypeScatter   = "scatter"
	TypeBox       = "box"
	TypeECDF      = "ecdf"
	TypeHistogram = "histogram"
	TypeParcoords = "parcoords"
)

// Scatter modes.
const (
	ModeLines        = "lines"
	ModeMarkersLines = "markers+lines"
)

// Visibility flags. A legend-only series is drawn only once the user
// toggles it on.
const (
	Visible    = "true"
	LegendOnly = "legendonly"
)

// Values is a numeric column that encodes NaN as JSON null.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	buf := make([]byte, 0, len(v)*6+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// Finite returns the values that are neither NaN nor infinite.
func (v Values) Finite() []float64 {
	out := make([]float64, 0, len(v))
	for _, f := range v {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			out = append(out, f)
		}
	}
	return out
}

type Axis struct {
	Title string `json:"title"`
}

// ReferenceLine is a horizontal line across the plot.
type ReferenceLine struct {
	Y    float64 `json:"y"`
	Dash string  `json:"dash"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type Layout struct {
	Width  int    `json:"width,omitempty"`
	Margin Margin `json:"margin"`
}

// BoxSummary holds the quartiles of one box of a box series.
type BoxSummary struct {
	ISI    float64 `json:"isi"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	N      int     `json:"n"`
}

// Dimension is one axis of a parallel-coordinates series.
type Dimension struct {
	Label  string `json:"label"`
	Values Values `json:"values"`
}

// Series is one trace of a chart.
type Series struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Mode    string `json:"mode,omitempty"`
	X       Values `json:"x"`
	Y       Values `json:"y"`
	Visible string `json:"visible"`
	Facet   string `json:"facet,omitempty"`

	Boxes []BoxSummary `json:"boxes,omitempty"`

	Dimensions  []Dimension `json:"dimensions,omitempty"`
	ColorValues Values      `json:"color_values,omitempty"`
	ColorScale  string      `json:"color_scale,omitempty"`
}

// Chart is a complete declarative chart.
type Chart struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	XAxis          Axis            `json:"x_axis"`
	YAxis          Axis            `json:"y_axis"`
	Series         []Series        `json:"series"`
	ReferenceLines []ReferenceLine `json:"reference_lines"`
	Facets         []string        `json:"facets,omitempty"`
	Layout         Layout          `json:"layout"`
}

// Empty reports whether the chart has no series to draw.
func (c Chart) Empty() bool {
	return len(c.Series) == 0
}

// MarshalJSON keeps empty series and reference lines as [] rather than null.
func (c Chart) MarshalJSON() ([]byte, error) {
	type plain Chart
	p := plain(c)
	if p.Series == nil {
		p.Series = []Series{}
	}
	if p.ReferenceLines == nil {
		p.ReferenceLines = []ReferenceLine{}
	}
	return json.Marshal(p)
}

// unity is the "no facilitation, no suppression" level of relative amplitude.
var unity = ReferenceLine{Y: 1, Dash: "dot"}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
