package main

import (
	"slices"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// saveChart draws one group of bars per operation and one bar per backend
// configuration, latency on the y axis.
func saveChart(path string, results []BenchResult) error {
	var ops, series []string
	lat := map[string]map[string]float64{}
	for _, r := range results {
		name := r.Name + " " + r.Config
		if _, ok := lat[name]; !ok {
			lat[name] = map[string]float64{}
			series = append(series, name)
		}
		if !slices.Contains(ops, r.Operation) {
			ops = append(ops, r.Operation)
		}
		lat[name][r.Operation] = float64(r.LatencyNs)
	}
	if len(series) == 0 {
		return errors.New("bench: no results to plot")
	}

	p := plot.New()
	p.Title.Text = "Index latency per operation"
	p.Y.Label.Text = "ns/op"
	p.Legend.Top = true

	width := vg.Points(60 / float64(len(series)))
	for i, name := range series {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = lat[name][op]
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return errors.Wrapf(err, "bars for %s", name)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = width * vg.Length(float64(i)-float64(len(series)-1)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.NominalX(ops...)

	return errors.Wrapf(p.Save(10*vg.Inch, 5*vg.Inch, path), "saving chart %s", path)
}

