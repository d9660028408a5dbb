package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartPoint is one timestamped value on a line.
type ChartPoint struct {
	Time  time.Time
	Value float64
}

// ChartSeries is a named line.
type ChartSeries struct {
	Name   string
	Points []ChartPoint
	Dashed bool
}

// ChartExporter renders time series as a standalone HTML line chart.
type ChartExporter struct{}

// NewChartExporter builds a chart exporter.
func NewChartExporter() *ChartExporter {
	return &ChartExporter{}
}

// Render draws every series on a shared time axis.
func (e *ChartExporter) Render(title, subtitle string, series []ChartSeries) ([]byte, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("chart requires at least one series")
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	for _, s := range series {
		items := make([]opts.LineData, 0, len(s.Points))
		for _, p := range s.Points {
			items = append(items, opts.LineData{Value: []interface{}{p.Time.UTC().Format("2006-01-02"), p.Value}})
		}
		style := opts.LineStyle{Width: 2}
		if s.Dashed {
			style.Type = "dashed"
		}
		line.AddSeries(s.Name, items, charts.WithLineStyleOpts(style))
	}

	buf := &bytes.Buffer{}
	if err := line.Render(buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
