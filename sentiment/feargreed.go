// Package sentiment reads the crypto Fear & Greed index, the market
// signal that scales the business agent's daily spend.
package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Label classifies an index value into one of the five bands.
type Label string

const (
	ExtremeFear  Label = "extreme_fear"
	Fear         Label = "fear"
	Normal       Label = "normal"
	Greed        Label = "greed"
	ExtremeGreed Label = "extreme_greed"
)

// Reading is one observation of the index, in [0, 100].
type Reading struct {
	Value int       `json:"value"`
	Label Label     `json:"label"`
	At    time.Time `json:"at"`
}

// Classify maps an index value to its band. Out-of-range values are
// clamped.
func Classify(value int) Label {
	switch {
	case value < 20:
		return ExtremeFear
	case value < 40:
		return Fear
	case value < 70:
		return Normal
	case value < 80:
		return Greed
	default:
		return ExtremeGreed
	}
}

// Source provides the latest index reading. The budget engine depends
// on this interface so tests can pin the signal.
type Source interface {
	Latest(ctx context.Context) (Reading, error)
}

// Client fetches the index from an alternative.me-compatible endpoint.
type Client struct {
	http *resty.Client
	url  string
}

// NewClient builds a client for the given endpoint, e.g.
// "https://api.alternative.me/fng/".
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().SetTimeout(timeout),
		url:  endpoint,
	}
}

// fngResponse mirrors the alternative.me wire format; values arrive as
// strings.
type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// Latest fetches the most recent reading.
func (c *Client) Latest(ctx context.Context) (Reading, error) {
	var out fngResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.url)
	if err != nil {
		return Reading{}, fmt.Errorf("fear/greed: fetch: %w", err)
	}
	if resp.IsError() {
		return Reading{}, fmt.Errorf("fear/greed: status %s", resp.Status())
	}
	if len(out.Data) == 0 {
		return Reading{}, fmt.Errorf("fear/greed: empty response")
	}

	value, err := strconv.Atoi(out.Data[0].Value)
	if err != nil {
		return Reading{}, fmt.Errorf("fear/greed: parse value %q: %w", out.Data[0].Value, err)
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	at := time.Now()
	if ts, err := strconv.ParseInt(out.Data[0].Timestamp, 10, 64); err == nil {
		at = time.Unix(ts, 0)
	}

	return Reading{Value: value, Label: Classify(value), At: at}, nil
}
