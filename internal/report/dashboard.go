package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/units"
)

// RenderDashboard writes an HTML page with the route, the pace of every
// split and the elevation profile.
func RenderDashboard(w io.Writer, sum Summary, route []location.Point) error {
	subtitle := fmt.Sprintf("%.2f km in %s, average pace %s /km",
		sum.Metrics.DistanceMeters/1000,
		units.FormatDuration(sum.Metrics.Elapsed()),
		units.FormatPace(sum.Metrics.PaceSecPerKm))

	page := components.NewPage()
	page.PageTitle = "Run " + sum.SessionID
	page.AddCharts(routeChart(route, subtitle), paceChart(sum), terrainChart(sum))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}

// routeChart plots the route as longitude/latitude pairs.
func routeChart(route []location.Point, subtitle string) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(route))
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, p := range route {
		data = append(data, opts.ScatterData{Value: []interface{}{p.Longitude, p.Latitude}})
		minLat, maxLat = math.Min(minLat, p.Latitude), math.Max(maxLat, p.Latitude)
		minLon, maxLon = math.Min(minLon, p.Longitude), math.Max(maxLon, p.Longitude)
	}

	scatter := charts.NewScatter()
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Route", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
	if len(route) > 0 {
		pad := math.Max(maxLat-minLat, maxLon-minLon)*0.05 + 1e-4
		global = append(global,
			charts.WithXAxisOpts(opts.XAxis{Min: minLon - pad, Max: maxLon + pad, Name: "Longitude"}),
			charts.WithYAxisOpts(opts.YAxis{Min: minLat - pad, Max: maxLat + pad, Name: "Latitude"}),
		)
	}
	scatter.SetGlobalOptions(global...)
	scatter.AddSeries("route", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}

func paceChart(sum Summary) *charts.Bar {
	x := make([]string, len(sum.Splits))
	y := make([]opts.BarData, len(sum.Splits))
	for i, sp := range sum.Splits {
		x[i] = fmt.Sprintf("km %d", sp.Index)
		if sp.Partial {
			x[i] = fmt.Sprintf("last %.0f m", sp.DistanceMeters)
		}
		y[i] = opts.BarData{Value: math.Round(sp.PaceSecPerKm), Name: units.FormatPace(sp.PaceSecPerKm)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pace per split",
			Subtitle: fmt.Sprintf("mean %s /km", units.FormatPace(sum.MeanPace)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "s/km"}),
	)
	bar.SetXAxis(x).AddSeries("pace", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func terrainChart(sum Summary) *charts.Pie {
	data := make([]opts.PieData, 0, len(sum.ByTerrain))
	types := make([]string, 0, len(sum.ByTerrain))
	for t := range sum.ByTerrain {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		data = append(data, opts.PieData{Name: t, Value: math.Round(sum.ByTerrain[terrain.Type(t)])})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Distance by terrain (m)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("terrain", data)
	return pie
}
