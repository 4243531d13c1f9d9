package web

import (
	"cmp"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
)

const (
	trendWidth   = 560
	trendHeight  = 200
	trendPadding = 24
	pieRadius    = 80
)

var statusColors = map[string]string{
	astra.StatusOpen:       "#1677ff",
	astra.StatusInProgress: "#faad14",
	astra.StatusResolved:   "#52c41a",
	astra.StatusClosed:     "#8c8c8c",
}

type chartPoint struct {
	X, Y  float64
	Date  string
	Count int
}

type trendChart struct {
	Width, Height int
	Points        string
	Dots          []chartPoint
	Max           int
}

type pieSlice struct {
	Status string
	Count  int
	Share  float64
	Color  string
	Path   string
	Full   bool
}

type dashboardView struct {
	Stats  astra.DashboardStats
	Trend  trendChart
	Pie    []pieSlice
	Radius int
	Error  string
}

// AvgResponse formats the average first-response time for a stat card.
func (v dashboardView) AvgResponse() string {
	m := v.Stats.AvgResponseTimeMinutes
	if m >= 60 {
		return fmt.Sprintf("%.1f h", m/60)
	}
	return fmt.Sprintf("%.0f min", m)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	view := dashboardView{Radius: pieRadius}
	stats, err := s.backend(r).DashboardStats(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("dashboard stats")
		view.Error = apiclient.MessageOr(err, "Failed to load dashboard statistics")
	} else {
		view.Stats = stats
		view.Trend = buildTrend(stats.DailyTrend)
		view.Pie = buildPie(stats.StatusDistribution)
	}
	s.render(w, r, "dashboard", "Dashboard", view)
}

// buildTrend scales the daily counts into the chart box. The y axis starts
// at zero.
func buildTrend(points []astra.TrendPoint) trendChart {
	c := trendChart{Width: trendWidth, Height: trendHeight}
	if len(points) == 0 {
		return c
	}
	for _, p := range points {
		c.Max = max(c.Max, p.Count)
	}
	innerW := float64(trendWidth - 2*trendPadding)
	innerH := float64(trendHeight - 2*trendPadding)
	step := 0.0
	if len(points) > 1 {
		step = innerW / float64(len(points)-1)
	}
	coords := make([]string, 0, len(points))
	for i, p := range points {
		x := float64(trendPadding) + step*float64(i)
		if len(points) == 1 {
			x = float64(trendWidth) / 2
		}
		y := float64(trendHeight - trendPadding)
		if c.Max > 0 {
			y -= innerH * float64(p.Count) / float64(c.Max)
		}
		c.Dots = append(c.Dots, chartPoint{X: round1(x), Y: round1(y), Date: p.Date, Count: p.Count})
		coords = append(coords, fmt.Sprintf("%.1f,%.1f", x, y))
	}
	c.Points = strings.Join(coords, " ")
	return c
}

// buildPie lays out one slice per status, known statuses first in workflow
// order. Empty statuses are skipped.
func buildPie(dist map[string]int) []pieSlice {
	total := 0
	keys := make([]string, 0, len(dist))
	for k, v := range dist {
		if v <= 0 {
			continue
		}
		total += v
		keys = append(keys, k)
	}
	if total == 0 {
		return nil
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(rank(astra.Statuses, a), rank(astra.Statuses, b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	out := make([]pieSlice, 0, len(keys))
	angle := -math.Pi / 2
	for i, k := range keys {
		share := float64(dist[k]) / float64(total)
		sl := pieSlice{Status: k, Count: dist[k], Share: share, Color: sliceColor(k, i)}
		if len(keys) == 1 {
			sl.Full = true
			out = append(out, sl)
			break
		}
		end := angle + share*2*math.Pi
		large := 0
		if share > 0.5 {
			large = 1
		}
		x1, y1 := pieRadius*math.Cos(angle), pieRadius*math.Sin(angle)
		x2, y2 := pieRadius*math.Cos(end), pieRadius*math.Sin(end)
		sl.Path = fmt.Sprintf("M0,0 L%.2f,%.2f A%d,%d 0 %d 1 %.2f,%.2f Z", x1, y1, pieRadius, pieRadius, large, x2, y2)
		out = append(out, sl)
		angle = end
	}
	return out
}

var fallbackColors = []string{"#722ed1", "#eb2f96", "#13c2c2", "#fa541c"}

func sliceColor(status string, i int) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return fallbackColors[i%len(fallbackColors)]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
