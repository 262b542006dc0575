package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/report"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
	"github.com/pereirasil/corrida-app-sub000/internal/units"
)

// displayFor reads the optional ?units= and ?tz= query parameters. It
// returns nil when the client asked for neither.
func displayFor(r *http.Request, m tracker.Metrics, start *time.Time) (*units.Display, error) {
	q := r.URL.Query()
	unit, tz := q.Get("units"), q.Get("tz")
	if unit == "" && tz == "" {
		return nil, nil
	}
	if unit == "" {
		unit = units.KMPH
	}
	if tz != "" && !units.IsTimezoneValid(tz) {
		return nil, fmt.Errorf("unknown time zone %q", tz)
	}
	d, err := units.NewDisplay(m.DistanceMeters, m.Elapsed(), start, unit, tz)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RunView is a snapshot plus its figures in the requested units.
type RunView struct {
	tracker.Snapshot
	Display *units.Display `json:"display,omitempty"`
}

// SplitsView is a session report plus its figures in the requested units.
type SplitsView struct {
	report.Summary
	Display *units.Display `json:"display,omitempty"`
}
