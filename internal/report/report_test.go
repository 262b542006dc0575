package report

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/testutil"
)

func TestSplitsInterpolatesBoundaries(t *testing.T) {
	// 1500 m at 3 m/s
	route := testutil.Points(testutil.StraightRun(501, 3).Build(testutil.T0))

	splits := Splits(route, SplitDistance)
	require.Len(t, splits, 2)

	first := splits[0]
	assert.Equal(t, 1, first.Index)
	assert.False(t, first.Partial)
	assert.InDelta(t, 1000, first.DistanceMeters, 1e-9)
	assert.InDelta(t, 333.33, first.Duration.Seconds(), 0.05)
	assert.InDelta(t, 333.33, first.PaceSecPerKm, 0.05)

	last := splits[1]
	assert.Equal(t, 2, last.Index)
	assert.True(t, last.Partial)
	assert.InDelta(t, 500, last.DistanceMeters, 0.1)
	assert.InDelta(t, 166.67, last.Duration.Seconds(), 0.05)
	assert.InDelta(t, 333.33, last.PaceSecPerKm, 0.1)
}

func TestSplitsSegmentSpanningSeveralBoundaries(t *testing.T) {
	// one 2500 m jump in 500 s yields two full splits and a partial
	run := testutil.Run{Start: testutil.Start, Step: 2500, Interval: 500 * time.Second, Fixes: 2, Accuracy: 5}
	splits := Splits(testutil.Points(run.Build(testutil.T0)), SplitDistance)

	require.Len(t, splits, 3)
	assert.InDelta(t, 200, splits[0].Duration.Seconds(), 0.01)
	assert.InDelta(t, 200, splits[1].Duration.Seconds(), 0.01)
	assert.InDelta(t, 500, splits[2].DistanceMeters, 0.1)
	assert.InDelta(t, 100, splits[2].Duration.Seconds(), 0.05)
}

func TestSplitsElevation(t *testing.T) {
	run := testutil.StraightRun(501, 3)
	run.Climb = 0.1
	splits := Splits(testutil.Points(run.Build(testutil.T0)), SplitDistance)

	require.Len(t, splits, 2)
	total := splits[0].ElevationGain + splits[1].ElevationGain
	assert.InDelta(t, 50, total, 1e-6)
	assert.Zero(t, splits[0].ElevationLoss)
}

func TestSplitsShortRoutes(t *testing.T) {
	assert.Nil(t, Splits(nil, SplitDistance))
	assert.Nil(t, Splits(testutil.Points(testutil.StraightRun(1, 3).Build(testutil.T0)), SplitDistance))
	assert.Nil(t, Splits(testutil.Points(testutil.StraightRun(2, 0.5).Build(testutil.T0)), SplitDistance))
}

func TestSummarize(t *testing.T) {
	// 1500 m at 3 m/s, then 1400 m at 2 m/s
	fast := testutil.StraightRun(501, 3).Build(testutil.T0)
	end := fast[len(fast)-1]
	slow := testutil.Run{
		Start:    geo.LatLon{Lat: end.Latitude, Lon: end.Longitude},
		Step:     2,
		Interval: time.Second,
		Fixes:    701,
		Accuracy: 5,
	}.Build(end.Time())
	route := append(fast, slow[1:]...)

	s := testutil.StraightRun(2, 3).Session("run-1", testutil.T0)
	s.Route = testutil.Points(route)

	sum := Summarize(s, terrain.NewClassifier(terrain.Geofences{}, 50))
	require.Len(t, sum.Splits, 3)
	assert.Equal(t, "run-1", sum.SessionID)
	assert.Equal(t, 1, sum.Fastest)
	assert.Equal(t, 2, sum.Slowest)
	assert.InDelta(t, (333.33+416.67)/2, sum.MeanPace, 0.1)
	assert.Greater(t, sum.PaceStdDev, 0.0)
	assert.NotEmpty(t, sum.Terrain)
	assert.InDelta(t, 2900, sum.ByTerrain[terrain.Sidewalk]+sum.ByTerrain[terrain.Trail], 5)
}

func TestSummarizeShortRun(t *testing.T) {
	s := testutil.StraightRun(101, 3).Session("short", testutil.T0)
	sum := Summarize(s, nil)

	require.Len(t, sum.Splits, 1)
	assert.True(t, sum.Splits[0].Partial)
	assert.InDelta(t, 333.33, sum.MeanPace, 0.1)
	assert.Zero(t, sum.PaceStdDev)
	assert.Equal(t, 1, sum.Fastest)
	assert.Empty(t, sum.Terrain)

	empty := Summarize(testutil.StraightRun(0, 3).Session("empty", testutil.T0), nil)
	assert.NotNil(t, empty.Splits)
	assert.Zero(t, empty.Fastest)
}

func TestRenderProfilePNG(t *testing.T) {
	run := testutil.StraightRun(501, 3)
	run.Climb = 0.1
	s := run.Session("run-1", testutil.T0)

	var buf bytes.Buffer
	require.NoError(t, RenderProfilePNG(&buf, s))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)

	assert.ErrorIs(t, RenderProfilePNG(&buf, testutil.StraightRun(1, 3).Session("x", testutil.T0)), ErrTooShort)
}

func TestElevationProfile(t *testing.T) {
	run := testutil.StraightRun(11, 100)
	run.Climb = 2
	s := run.Session("run-1", testutil.T0)
	s.Route[5].Altitude = nil

	pts := ElevationProfile(s)
	require.Len(t, pts, 10)
	assert.InDelta(t, 1.0, pts[9].X, 0.001)
	assert.InDelta(t, 780, pts[9].Y, 1e-9)
}

func TestRenderDashboard(t *testing.T) {
	s := testutil.StraightRun(501, 3).Session("run-1", testutil.T0)
	sum := Summarize(s, terrain.NewClassifier(terrain.DefaultGeofences(), 50))

	var buf bytes.Buffer
	require.NoError(t, RenderDashboard(&buf, sum, s.Route))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Pace per split")
	assert.Contains(t, html, "Distance by terrain")
}
