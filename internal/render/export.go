package render

import (
	"encoding/csv"
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
)

// ErrNotEnoughSamples indicates the window is too short to plot.
var ErrNotEnoughSamples = errors.New("render: not enough samples")

// sampleTimes reconstructs timestamps for a rolling window whose newest
// sample landed at end and whose samples are interval apart.
func sampleTimes(n int, interval time.Duration, end time.Time) []time.Time {
	ts := make([]time.Time, n)
	for i := 0; i < n; i++ {
		ts[i] = end.Add(-time.Duration(n-1-i) * interval)
	}
	return ts
}

// WritePriceChartPNG plots the rolling price window as a PNG.
func WritePriceChartPNG(w io.Writer, title string, samples []decimal.Decimal, interval time.Duration, end time.Time) error {
	if len(samples) < 2 {
		return ErrNotEnoughSamples
	}

	x := sampleTimes(len(samples), interval, end)
	y := make([]float64, len(samples))
	for i, s := range samples {
		y[i] = s.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (USD)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    title,
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// WritePriceCSV dumps the rolling price window as CSV rows.
func WritePriceCSV(w io.Writer, pair string, samples []decimal.Decimal, interval time.Duration, end time.Time) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"ts", "pair", "price"}); err != nil {
		return err
	}

	x := sampleTimes(len(samples), interval, end)
	for i, s := range samples {
		record := []string{x[i].Format(time.RFC3339), pair, s.String()}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}
