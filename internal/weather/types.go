package weather

import (
	"context"
	"time"
)

type Provider interface {
	Forecast(ctx context.Context) (*Forecast, error)
}

// Sample is one timestamped forecast step. Snow3h is the expected snowfall
// in the three hours trailing the timestamp, in millimeters when the
// provider was asked for metric units. A step with no snow in the upstream
// response carries an explicit zero.
type Sample struct {
	Time   time.Time `json:"time"`
	Snow3h float64   `json:"snow_3h"`
}

type Forecast struct {
	Provider  string    `json:"provider"`
	Location  string    `json:"location"`
	Samples   []Sample  `json:"samples"`
	FetchedAt time.Time `json:"fetched_at"`
}
