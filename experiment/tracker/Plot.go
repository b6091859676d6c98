package tracker

import (
	"fmt"

	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot tracks the episodic return and saves a line plot of it as an
// image. The image format is determined by the extension of the
// filename (e.g. .png, .svg, .pdf).
type Plot struct {
	episodes
	filename string
	title    string
}

// NewPlot returns a new Plot Tracker
func NewPlot(filename, title string) *Plot {
	return &Plot{newEpisodes(), filename, title}
}

// Track tracks the rewards seen on a timestep
func (p *Plot) Track(step ts.TimeStep) {
	p.track(step)
}

// Save plots the episodic returns and saves the plot to disk
func (p *Plot) Save() error {
	pl := plot.New()
	pl.Title.Text = p.title
	pl.X.Label.Text = "Episode"
	pl.Y.Label.Text = "Return"

	points := make(plotter.XYs, len(p.returns))
	for i, r := range p.returns {
		points[i] = plotter.XY{
			X: float64(i),
			Y: r,
		}
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("save: could not create line: %v", err)
	}
	line.Color = plotutil.Color(0)
	pl.Add(line)
	pl.Legend.Add("return", line)

	if err := pl.Save(8*vg.Inch, 6*vg.Inch, p.filename); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}
