package web

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/config"
	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
	"github.com/slopezpereyra/icf-visualization-app/internal/state"
)

// testStore holds subject 3 (HC, both sessions) and subject 7 (MDD,
// baseline only) with a complete group table.
func testStore() *dataset.Store {
	bl, swd := dataset.SessionBaseline, dataset.SessionDisruption
	hc, mdd := dataset.GroupHC, dataset.GroupMDD

	trials := []dataset.Trial{
		{Subject: 3, SessionType: bl, ISI: 50, EMGPeakToPeak: 1.2, RA: 1.1, Label: "HC", Group: hc},
		{Subject: 3, SessionType: bl, ISI: 100, EMGPeakToPeak: 1.0, RA: 1.2, Label: "HC", Group: hc},
		{Subject: 3, SessionType: swd, ISI: 50, EMGPeakToPeak: 1.4, RA: 1.3, Label: "HC", Group: hc},
		{Subject: 3, SessionType: swd, ISI: 100, EMGPeakToPeak: 1.6, RA: 1.5, Label: "HC", Group: hc},
		{Subject: 7, SessionType: bl, ISI: 50, EMGPeakToPeak: 2.0, RA: 0.9, Label: "MDD", Group: mdd},
	}
	subjectLevel := []dataset.SubjectLevelStat{
		{Subject: 3, SessionType: bl, Group: hc, ISI: 100, RA: 1.2, ARA: 1.1},
		{Subject: 3, SessionType: bl, Group: hc, ISI: 50, RA: 1.1, ARA: 1.0},
		{Subject: 3, SessionType: swd, Group: hc, ISI: 50, RA: 1.3, ARA: 1.2},
		{Subject: 3, SessionType: swd, Group: hc, ISI: 100, RA: 1.5, ARA: 1.4},
		{Subject: 7, SessionType: bl, Group: mdd, ISI: 50, RA: 0.9, ARA: 0.95},
	}
	groupLevel := []dataset.GroupLevelStat{
		{Group: hc, SessionType: bl, ISI: 50, MeanRA: 1.0, WMedianRA: 1.05},
		{Group: mdd, SessionType: bl, ISI: 50, MeanRA: 0.8, WMedianRA: 0.85},
		{Group: hc, SessionType: swd, ISI: 50, MeanRA: 1.5, WMedianRA: 1.45},
		{Group: mdd, SessionType: swd, ISI: 50, MeanRA: 1.1, WMedianRA: 1.15},
	}
	participants := dataset.ParticipantTable{
		Columns: []string{"Subject", "Group", "Comments"},
		Rows:    [][]string{{"3", "HC", ""}, {"7", "MDD", "no SWD night"}},
	}
	return dataset.NewStore(trials, subjectLevel, groupLevel, participants)
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.WebConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    0, // Use 0 to get a random port
	}
	dash := dashboard.New(aggregate.New(testStore()), dashboard.Options{HeatmapBins: 5})
	return NewServer(cfg, dash, logger.NewNopLogger())
}

func setupTestServerWithState(t *testing.T) (*Server, *state.Manager) {
	t.Helper()
	s := setupTestServer(t)

	mgr, err := state.Open(filepath.Join(t.TempDir(), "state.db"), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	s.SetStateManager(mgr)
	return s, mgr
}

func TestServer_NewServer(t *testing.T) {
	server := setupTestServer(t)
	require.NotNil(t, server)
	assert.Equal(t, ServiceName, server.Name())
}

func TestServer_StartStop(t *testing.T) {
	server := setupTestServer(t)

	require.NoError(t, server.Start(context.Background()))
	require.NotEmpty(t, server.Addr())

	resp, err := http.Get("http://" + server.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(stopCtx))
}

func TestServer_Start_Disabled(t *testing.T) {
	server := setupTestServer(t)
	server.config.Enabled = false

	require.NoError(t, server.Start(context.Background()))
	assert.Empty(t, server.Addr())
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_Start_PortInUse(t *testing.T) {
	first := setupTestServer(t)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	_, port, err := splitHostPort(first.Addr())
	require.NoError(t, err)

	second := setupTestServer(t)
	second.config.Port = port
	assert.Error(t, second.Start(context.Background()))
}

func TestServer_CORSPreflight(t *testing.T) {
	rec := doRequest(t, setupTestServer(t), http.MethodOptions, "/api/dashboard", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RequestIDPropagated(t *testing.T) {
	s := setupTestServer(t)
	req := newRequest(t, http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")

	rec := serve(s, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestServer_Index(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "plotly")

	rec = doRequest(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
