package web

import (
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/rs/zerolog/log"
)

// handleCharts renders the landing page: downloads per source as a pie,
// downloads per media type as a bar.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Downloads by source"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	var pieItems []opts.PieData
	for _, name := range sortedKeys(stats.BySource) {
		pieItems = append(pieItems, opts.PieData{Name: name, Value: stats.BySource[name]})
	}
	pie.AddSeries("Downloads", pieItems)

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Downloads by media type"}))

	var barX []string
	var barY []opts.BarData
	for _, name := range sortedKeys(stats.ByType) {
		barX = append(barX, name)
		barY = append(barY, opts.BarData{Value: stats.ByType[name]})
	}
	bar.SetXAxis(barX).AddSeries("Downloads", barY)

	if err := pie.Render(w); err != nil {
		log.Err(err).Msg("rendering pie chart failed")
		return
	}
	if err := bar.Render(w); err != nil {
		log.Err(err).Msg("rendering bar chart failed")
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
