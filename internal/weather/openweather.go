package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const owmTimeLayout = "2006-01-02 15:04:05"

type OpenWeatherClient struct {
	apiKey    string
	latitude  float64
	longitude float64
	units     string
	count     int
	baseURL   string
	location  *time.Location
	client    *http.Client
}

func NewOpenWeatherClient(apiKey string, latitude, longitude float64, units string, count int, timeout time.Duration) *OpenWeatherClient {
	if units == "" {
		units = "metric"
	}
	if count <= 0 {
		count = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenWeatherClient{
		apiKey:    apiKey,
		latitude:  latitude,
		longitude: longitude,
		units:     units,
		count:     count,
		baseURL:   "https://api.openweathermap.org/data/2.5",
		location:  time.Local,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *OpenWeatherClient) Name() string {
	return "openweather"
}

type openWeatherForecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Snow  struct {
			ThreeHour float64 `json:"3h"`
		} `json:"snow"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

// Forecast performs a single GET against the 5 day / 3 hour forecast
// endpoint. There is no retry; any transport, status, or decode failure is
// returned to the caller.
func (c *OpenWeatherClient) Forecast(ctx context.Context) (*Forecast, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is empty")
	}

	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%.6f", c.latitude))
	query.Set("lon", fmt.Sprintf("%.6f", c.longitude))
	query.Set("units", c.units)
	query.Set("cnt", fmt.Sprintf("%d", c.count))
	query.Set("appid", c.apiKey)

	endpoint := fmt.Sprintf("%s/forecast?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("openweather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openweather bad status: %s", resp.Status)
	}

	var payload openWeatherForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openweather decode: %w", err)
	}

	samples := make([]Sample, 0, len(payload.List))
	for _, entry := range payload.List {
		// dt_txt is an ISO-like date-time without a zone; treat it as local.
		t, err := time.ParseInLocation(owmTimeLayout, entry.DtTxt, c.location)
		if err != nil {
			return nil, fmt.Errorf("openweather timestamp %q: %w", entry.DtTxt, err)
		}
		samples = append(samples, Sample{
			Time:   t,
			Snow3h: entry.Snow.ThreeHour,
		})
	}

	location := fmt.Sprintf("%.6f,%.6f", c.latitude, c.longitude)
	if payload.City.Name != "" {
		location = payload.City.Name
		if payload.City.Country != "" {
			location = fmt.Sprintf("%s,%s", payload.City.Name, payload.City.Country)
		}
	}

	return &Forecast{
		Provider:  c.Name(),
		Location:  location,
		Samples:   samples,
		FetchedAt: time.Now(),
	}, nil
}
