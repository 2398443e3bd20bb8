package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
)

// WriteChart renders per-episode rewards and their running hundred-episode
// mean into a standalone HTML file.
func WriteChart(path, title string, rewards []float64) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	var episodes []string
	for i := range rewards {
		episodes = append(episodes, fmt.Sprintf("%d", i+1))
	}

	rewardItems := make([]opts.LineData, 0, len(rewards))
	meanItems := make([]opts.LineData, 0, len(rewards))
	sum := 0.0
	for i, r := range rewards {
		rewardItems = append(rewardItems, opts.LineData{Value: r})
		sum += r
		if i >= meanWindow {
			sum -= rewards[i-meanWindow]
		}
		n := i + 1
		if n > meanWindow {
			n = meanWindow
		}
		meanItems = append(meanItems, opts.LineData{Value: sum / float64(n)})
	}

	line = line.SetXAxis(episodes)
	line.AddSeries("episode reward", rewardItems)
	line.AddSeries("mean reward", meanItems)

	page := components.NewPage()
	page.AddCharts(line)

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "telemetry: create chart file")
	}
	defer f.Close()
	if err := page.Render(io.MultiWriter(f)); err != nil {
		return errors.Wrap(err, "telemetry: render chart")
	}
	return nil
}
