package dashboard

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/chart"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

type recordingObserver struct {
	built  map[string]int
	failed map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{built: map[string]int{}, failed: map[string]int{}}
}

func (r *recordingObserver) ChartBuilt(id string)       { r.built[id]++ }
func (r *recordingObserver) LookupFailed(reason string) { r.failed[reason]++ }

func testStore() *dataset.Store {
	bl, swd := dataset.SessionBaseline, dataset.SessionDisruption
	hc, mdd := dataset.GroupHC, dataset.GroupMDD

	trials := []dataset.Trial{
		{Subject: 3, SessionType: bl, ISI: 50, EMGPeakToPeak: 1.2, RA: 1.1, Label: "HC", Group: hc},
		{Subject: 3, SessionType: swd, ISI: 50, EMGPeakToPeak: 1.4, RA: 1.3, Label: "HC", Group: hc},
		{Subject: 7, SessionType: bl, ISI: 50, EMGPeakToPeak: 2.0, RA: 0.9, Label: "MDD", Group: mdd},
	}
	subjectLevel := []dataset.SubjectLevelStat{
		{Subject: 3, SessionType: bl, Group: hc, ISI: 50, RA: 1.1, ARA: 1.0},
		{Subject: 3, SessionType: swd, Group: hc, ISI: 50, RA: 1.3, ARA: 1.2},
		{Subject: 7, SessionType: bl, Group: mdd, ISI: 50, RA: 0.9, ARA: 0.95},
	}
	groupLevel := []dataset.GroupLevelStat{
		{Group: hc, SessionType: bl, ISI: 50, MeanRA: 1.0, WMedianRA: 1.05},
		{Group: mdd, SessionType: bl, ISI: 50, MeanRA: 0.8, WMedianRA: 0.85},
		{Group: hc, SessionType: swd, ISI: 50, MeanRA: 1.5, WMedianRA: 1.45},
		{Group: mdd, SessionType: swd, ISI: 50, MeanRA: 1.1, WMedianRA: 1.15},
	}
	participants := dataset.ParticipantTable{Columns: []string{"Subject", "Comments"}, Rows: [][]string{{"3", ""}}}
	return dataset.NewStore(trials, subjectLevel, groupLevel, participants)
}

func newTestDashboard(obs Observer) *Dashboard {
	return New(aggregate.New(testStore()), Options{HeatmapBins: 5, Observer: obs})
}

func TestDefaultSelection(t *testing.T) {
	sel := DefaultSelection()
	assert.True(t, sel.IncludeBaseline)
	assert.True(t, sel.IncludeDisruption)
	assert.False(t, sel.UseAdjusted)
	assert.False(t, sel.HideMDD)
	assert.False(t, sel.HideHC)
	assert.False(t, sel.GroupAdjusted)
	assert.Empty(t, sel.SubjectQuery)
	assert.Equal(t, []dataset.SessionType{dataset.SessionBaseline, dataset.SessionDisruption}, sel.SessionTypes())
	assert.Equal(t, aggregate.GroupFilterNone, sel.GroupFilter())
}

func TestParseSubjectQuery(t *testing.T) {
	n, ok, err := ParseSubjectQuery(" 7 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok, err = ParseSubjectQuery("   ")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseSubjectQuery("abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedQuery))
	var mq *MalformedQueryError
	require.True(t, errors.As(err, &mq))
	assert.Equal(t, "abc", mq.Query)
}

func TestCompute_MalformedQueryKeepsDashboard(t *testing.T) {
	obs := newRecordingObserver()
	d := newTestDashboard(obs)

	sel := DefaultSelection()
	sel.SubjectQuery = "abc"
	v := d.Compute(sel)

	require.NotNil(t, v.Subject)
	assert.Equal(t, `Subject query "abc" is not a valid subject number`, v.Subject.Message)
	assert.Equal(t, MessageMalformed, v.Subject.MessageKind)
	assert.Nil(t, v.Subject.Detail)

	assert.Len(t, v.General, len(chart.GeneralIDs))
	assert.False(t, v.Bulk.Empty())
	require.NotNil(t, v.Groups)
	assert.Len(t, v.Groups.Series, 4)
	assert.Equal(t, []string{"Subject", "Comments"}, v.Participants.Columns)
	assert.Equal(t, 1, obs.failed[MessageMalformed])
}

func TestCompute_SubjectNotFound(t *testing.T) {
	obs := newRecordingObserver()
	d := newTestDashboard(obs)

	for _, q := range []string{"7", "99"} {
		sel := DefaultSelection()
		sel.SubjectQuery = q
		v := d.Compute(sel)
		require.NotNil(t, v.Subject)
		assert.Equal(t, "No data found for subject "+q, v.Subject.Message)
		assert.Equal(t, MessageNotFound, v.Subject.MessageKind)
	}
	assert.Equal(t, 2, obs.failed[MessageNotFound])
}

func TestCompute_SubjectFound(t *testing.T) {
	obs := newRecordingObserver()
	d := newTestDashboard(obs)

	sel := DefaultSelection()
	sel.SubjectQuery = "3"
	v := d.Compute(sel)

	require.NotNil(t, v.Subject)
	assert.Empty(t, v.Subject.Message)
	require.NotNil(t, v.Subject.Detail)
	require.NotNil(t, v.Subject.Variance)
	assert.Equal(t, "Subject's 3 Relative Amplitudes", v.Subject.Detail.Title)
	assert.Len(t, v.Subject.Variance.Series, 2)
	assert.Equal(t, 1, obs.built[chart.IDSubjectDetail])
}

func TestCompute_NoQuery(t *testing.T) {
	v := newTestDashboard(nil).Compute(DefaultSelection())
	assert.Nil(t, v.Subject)
	assert.Equal(t, AdjustedHelp, v.AdjustedHelp)
}

func TestCompute_BulkSelection(t *testing.T) {
	d := newTestDashboard(nil)

	sel := DefaultSelection()
	sel.IncludeDisruption = false
	sel.HideMDD = true
	v := d.Compute(sel)
	require.Len(t, v.Bulk.Series, 1)
	assert.Equal(t, "3 BL", v.Bulk.Series[0].Name)

	sel.HideHC = true // both hidden cancels out
	v = d.Compute(sel)
	assert.Len(t, v.Bulk.Series, 2)

	sel.IncludeBaseline = false
	v = d.Compute(sel)
	assert.True(t, v.Bulk.Empty())
}

func TestCompute_GroupsMisaligned(t *testing.T) {
	store := dataset.NewStore(nil, nil, []dataset.GroupLevelStat{
		{Group: dataset.GroupHC, SessionType: dataset.SessionBaseline, ISI: 50},
	}, dataset.ParticipantTable{})
	v := New(aggregate.New(store), Options{}).Compute(DefaultSelection())

	assert.Nil(t, v.Groups)
	assert.NotEmpty(t, v.GroupsMessage)
}

func TestCompute_Idempotent(t *testing.T) {
	d := newTestDashboard(nil)
	sel := DefaultSelection()
	sel.SubjectQuery = "3"
	sel.UseAdjusted = true

	a, err := json.Marshal(d.Compute(sel))
	require.NoError(t, err)
	b, err := json.Marshal(d.Compute(sel))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestChart(t *testing.T) {
	d := newTestDashboard(nil)
	sel := DefaultSelection()

	for _, name := range chart.GeneralIDs {
		c, err := d.Chart(name, sel)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.ID)
	}

	_, err := d.Chart(chart.IDSubjectDetail, sel)
	assert.ErrorIs(t, err, ErrNoSubject)

	sel.SubjectQuery = "x1"
	_, err = d.Chart(chart.IDSubjectVariance, sel)
	assert.ErrorIs(t, err, ErrMalformedQuery)

	sel.SubjectQuery = "7"
	_, err = d.Chart(chart.IDSubjectDetail, sel)
	assert.ErrorIs(t, err, aggregate.ErrNotFound)

	sel.SubjectQuery = "3"
	c, err := d.Chart(chart.IDSubjectVariance, sel)
	require.NoError(t, err)
	assert.Equal(t, chart.IDSubjectVariance, c.ID)

	sel.GroupAdjusted = true
	c, err = d.Chart(chart.IDGroups, sel)
	require.NoError(t, err)
	assert.Equal(t, chart.Values{1.05}, c.Series[0].Y)

	_, err = d.Chart("pie", sel)
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestChartNames(t *testing.T) {
	names := ChartNames()
	assert.Len(t, names, 4+len(chart.GeneralIDs))
	assert.Contains(t, names, chart.IDHeatmapByGroup)
}
