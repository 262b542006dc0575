package report

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

// ErrTooShort is returned when a route has too few points to chart.
var ErrTooShort = errors.New("route too short to chart")

// ElevationProfile returns (distance km, altitude m) for every point that
// reports an altitude.
func ElevationProfile(s tracker.Session) plotter.XYs {
	pts := make(plotter.XYs, 0, len(s.Route))
	dist := 0.0
	for i, p := range s.Route {
		if i > 0 {
			prev := s.Route[i-1]
			dist += geo.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		}
		if p.Altitude != nil {
			pts = append(pts, plotter.XY{X: dist / 1000, Y: *p.Altitude})
		}
	}
	return pts
}

// RenderProfilePNG draws the elevation profile above the per-split pace
// bars and writes the image as PNG.
func RenderProfilePNG(w io.Writer, s tracker.Session) error {
	if len(s.Route) < 2 {
		return ErrTooShort
	}

	elev := plot.New()
	elev.Title.Text = "Elevation"
	elev.X.Label.Text = "Distance (km)"
	elev.Y.Label.Text = "Altitude (m)"
	elev.Add(plotter.NewGrid())
	if pts := ElevationProfile(s); len(pts) > 1 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build elevation line: %w", err)
		}
		line.Width = vg.Points(1.5)
		elev.Add(line)
	}

	pace := plot.New()
	pace.Title.Text = "Pace per split"
	pace.X.Label.Text = "Split"
	pace.Y.Label.Text = "Pace (s/km)"
	splits := Splits(s.Route, SplitDistance)
	if len(splits) > 0 {
		values := make(plotter.Values, len(splits))
		names := make([]string, len(splits))
		for i, sp := range splits {
			values[i] = sp.PaceSecPerKm
			names[i] = fmt.Sprintf("%d", sp.Index)
		}
		bars, err := plotter.NewBarChart(values, vg.Points(16))
		if err != nil {
			return fmt.Errorf("failed to build pace bars: %w", err)
		}
		pace.Add(bars)
		pace.NominalX(names...)
	}

	const width, height = 10 * vg.Inch, 7 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(12)}
	canvases := plot.Align([][]*plot.Plot{{elev}, {pace}}, tiles, dc)
	elev.Draw(canvases[0][0])
	pace.Draw(canvases[1][0])

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode profile PNG: %w", err)
	}
	return nil
}
