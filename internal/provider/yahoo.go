package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trading-backtestv1/internal/model"
	"trading-backtestv1/pkg/yahoo"
)

// Yahoo reads daily bars from the Yahoo Finance chart endpoint.
type Yahoo struct {
	client   *yahoo.Client
	adjusted bool
}

// NewYahoo creates a Yahoo provider. With adjusted set, Close is the
// split/dividend-adjusted close when the endpoint supplies one.
func NewYahoo(client *yahoo.Client, adjusted bool) *Yahoo {
	return &Yahoo{client: client, adjusted: adjusted}
}

func (y *Yahoo) Name() string { return "yahoo" }

// FetchBars returns bars in [start, end). An unknown symbol yields no bars.
func (y *Yahoo) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	chart, err := y.client.Chart(ctx, symbol, start, end, "1d")
	if err != nil {
		if errors.Is(err, yahoo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	return chartBars(symbol, chart, start, end, y.adjusted), nil
}

// chartBars flattens a chart into bars, skipping entries without a close.
func chartBars(symbol string, c *yahoo.Chart, start, end time.Time, adjusted bool) []model.Bar {
	if c == nil || len(c.Indicators.Quote) == 0 {
		return nil
	}
	q := c.Indicators.Quote[0]
	var adj []*float64
	if adjusted && len(c.Indicators.AdjClose) > 0 {
		adj = c.Indicators.AdjClose[0].AdjClose
	}

	// Session dates are taken in exchange time so a 09:30 New York open
	// never lands on the previous UTC day.
	offset := time.Duration(c.Meta.GMTOffset) * time.Second

	bars := make([]model.Bar, 0, len(c.Timestamp))
	for i, ts := range c.Timestamp {
		closePx := at(q.Close, i)
		if adj != nil {
			if v := at(adj, i); v > 0 {
				closePx = v
			}
		}
		if closePx <= 0 {
			continue
		}
		d := model.Day(time.Unix(ts, 0).Add(offset))
		if d.Before(model.Day(start)) || (!end.IsZero() && !d.Before(model.Day(end))) {
			continue
		}
		var vol int64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		bars = append(bars, model.Bar{
			Symbol: symbol,
			Date:   d,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  closePx,
			Volume: vol,
		})
	}
	return bars
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}
