package tracker

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	ts "github.com/samuelfneumann/godqn/timestep"
)

// HTML tracks the episodic return and episode lengths and saves them
// as interactive line charts in an HTML page
type HTML struct {
	episodes
	filename string
	title    string
}

// NewHTML returns a new HTML Tracker
func NewHTML(filename, title string) *HTML {
	return &HTML{newEpisodes(), filename, title}
}

// Track tracks the rewards seen on a timestep
func (h *HTML) Track(step ts.TimeStep) {
	h.track(step)
}

func (h *HTML) line(title, series string, data []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	episodes := make([]string, len(data))
	items := make([]opts.LineData, len(data))
	for i := range data {
		episodes[i] = fmt.Sprintf("%d", i)
		items[i] = opts.LineData{Value: data[i]}
	}

	line.SetXAxis(episodes).AddSeries(series, items)
	return line
}

// Save renders the charts to disk
func (h *HTML) Save() error {
	page := components.NewPage()
	page.PageTitle = h.title
	page.AddCharts(
		h.line(h.title+": return", "return", h.returns),
		h.line(h.title+": episode length", "length", h.lengths),
	)

	file, err := os.Create(h.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := page.Render(file); err != nil {
		return fmt.Errorf("save: could not render page: %v", err)
	}
	return nil
}
