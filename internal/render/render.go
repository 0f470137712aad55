// Package render draws chart specs to static PNG or SVG images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/slopezpereyra/icf-visualization-app/internal/chart"
)

var (
	// ErrUnsupportedKind is returned for charts that have no static form.
	ErrUnsupportedKind = errors.New("chart kind cannot be rendered statically")
	// ErrEmptyChart is returned when nothing would be drawn.
	ErrEmptyChart = errors.New("chart has no drawable series")
)

// Format is an output image format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat accepts png or svg in any case; blank means png.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	}
	return "", fmt.Errorf("unsupported image format %q (must be png or svg)", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() gochart.RendererProvider {
	if f == FormatSVG {
		return gochart.SVG
	}
	return gochart.PNG
}

// Options sets the image size in pixels.
type Options struct {
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	return o
}

var referenceStyle = gochart.Style{
	StrokeColor:     drawing.ColorFromHex("777777"),
	StrokeWidth:     1,
	StrokeDashArray: []float64{2, 4},
}

// Render writes c to w. Legend-only series are left out of the image.
func Render(w io.Writer, c chart.Chart, format Format, opts Options) error {
	opts = opts.withDefaults()

	var (
		visible   []chart.Series
		histogram bool
	)
	for _, s := range c.Series {
		switch s.Type {
		case chart.TypeParcoords:
			return fmt.Errorf("%s: %w", c.ID, ErrUnsupportedKind)
		case chart.TypeHistogram:
			histogram = true
		}
		if s.Visible != chart.LegendOnly {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		return fmt.Errorf("%s: %w", c.ID, ErrEmptyChart)
	}
	if histogram {
		return renderHistogram(w, c, visible[0], format, opts)
	}

	series, xr, yr := continuousSeries(visible)
	if len(series) == 0 {
		return fmt.Errorf("%s: %w", c.ID, ErrEmptyChart)
	}
	xr.pad()
	for _, ref := range c.ReferenceLines {
		series = append(series, gochart.ContinuousSeries{
			Name:    fmt.Sprintf("y=%g", ref.Y),
			XValues: []float64{xr.lo, xr.hi},
			YValues: []float64{ref.Y, ref.Y},
			Style:   referenceStyle,
		})
		yr.add(ref.Y)
	}

	yr.pad()
	ch := gochart.Chart{
		Title:      c.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: c.XAxis.Title, Range: &gochart.ContinuousRange{Min: xr.lo, Max: xr.hi}},
		YAxis:      gochart.YAxis{Name: c.YAxis.Title, Range: &gochart.ContinuousRange{Min: yr.lo, Max: yr.hi}},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	if err := ch.Render(format.provider(), w); err != nil {
		return fmt.Errorf("failed to render %s: %w", c.ID, err)
	}
	return nil
}

// continuousSeries converts line, ECDF and box series. Box series become
// a solid median line with dashed Q1 and Q3 lines in the same colour.
func continuousSeries(in []chart.Series) ([]gochart.Series, *span, *span) {
	var (
		out []gochart.Series
		xr  = newSpan()
		yr  = newSpan()
	)
	for i, s := range in {
		color := gochart.GetDefaultColor(i)
		style := gochart.Style{StrokeColor: color, StrokeWidth: 2}
		if s.Mode == chart.ModeMarkersLines {
			style.DotWidth = 4
			style.DotColor = color
		}

		if s.Type == chart.TypeBox {
			if len(s.Boxes) == 0 {
				continue
			}
			x := make([]float64, len(s.Boxes))
			q1 := make([]float64, len(s.Boxes))
			med := make([]float64, len(s.Boxes))
			q3 := make([]float64, len(s.Boxes))
			for j, b := range s.Boxes {
				x[j], q1[j], med[j], q3[j] = b.ISI, b.Q1, b.Median, b.Q3
				xr.add(b.ISI)
				yr.add(b.Min)
				yr.add(b.Max)
			}
			dashed := gochart.Style{StrokeColor: color, StrokeWidth: 1, StrokeDashArray: []float64{4, 2}}
			style.DotWidth = 4
			style.DotColor = color
			out = append(out,
				gochart.ContinuousSeries{Name: s.Name + " median", XValues: x, YValues: med, Style: style},
				gochart.ContinuousSeries{Name: s.Name + " Q1", XValues: x, YValues: q1, Style: dashed},
				gochart.ContinuousSeries{Name: s.Name + " Q3", XValues: x, YValues: q3, Style: dashed},
			)
			continue
		}

		var xs, ys []float64
		for j := range s.X {
			if j >= len(s.Y) || !finite(s.X[j]) || !finite(s.Y[j]) {
				continue
			}
			xs = append(xs, s.X[j])
			ys = append(ys, s.Y[j])
			xr.add(s.X[j])
			yr.add(s.Y[j])
		}
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			// Lone points have no segment to stroke.
			style.DotWidth = 5
			style.DotColor = color
		}
		name := s.Name
		if s.Facet != "" {
			name = s.Facet + " " + name
		}
		out = append(out, gochart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: style})
	}
	return out, xr, yr
}

// renderHistogram draws one histogram series as a bar chart.
func renderHistogram(w io.Writer, c chart.Chart, s chart.Series, format Format, opts Options) error {
	bars := make([]gochart.Value, 0, len(s.Y))
	var peak float64
	for i := range s.Y {
		if i >= len(s.X) {
			break
		}
		bars = append(bars, gochart.Value{Value: s.Y[i], Label: fmt.Sprintf("%.3g", s.X[i])})
		peak = math.Max(peak, s.Y[i])
	}
	if peak == 0 {
		return fmt.Errorf("%s: %w", c.ID, ErrEmptyChart)
	}

	title := c.Title
	if s.Facet != "" {
		title += " (" + s.Facet + ")"
	}
	barWidth := opts.Width / (len(bars) + 2)
	if barWidth > 40 {
		barWidth = 40
	}
	bc := gochart.BarChart{
		Title:      title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		BarWidth:   barWidth,
		BarSpacing: 4,
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: 0, Max: peak}},
		Bars:       bars,
	}
	if err := bc.Render(format.provider(), w); err != nil {
		return fmt.Errorf("failed to render %s: %w", c.ID, err)
	}
	return nil
}

type span struct {
	lo, hi float64
}

func newSpan() *span {
	return &span{lo: math.Inf(1), hi: math.Inf(-1)}
}

func (s *span) add(v float64) {
	if !finite(v) {
		return
	}
	s.lo = math.Min(s.lo, v)
	s.hi = math.Max(s.hi, v)
}

// pad widens a degenerate or empty range so the axis has a non-zero delta.
func (s *span) pad() {
	switch {
	case s.lo > s.hi:
		s.lo, s.hi = 0, 1
	case s.lo == s.hi:
		s.lo, s.hi = s.lo-1, s.hi+1
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
