// ABOUTME: Open-Meteo archive client that fills daily weather records for home.
// ABOUTME: Requests are rate limited and retried; pressure change is derived from the prior day.
package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harperreed/migraine/internal/logging"
	"github.com/harperreed/migraine/internal/models"
)

const (
	DefaultBaseURL = "https://archive-api.open-meteo.com"
	requestTimeout = 30 * time.Second
	rateLimitDelay = time.Second
	maxRetries     = 3
)

var dailyFields = "temperature_2m_max,temperature_2m_min,temperature_2m_mean," +
	"relative_humidity_2m_mean,pressure_msl_mean,precipitation_sum," +
	"weather_code,cloud_cover_mean,wind_speed_10m_max"

// Location is the point weather is fetched for.
type Location struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Client talks to the Open-Meteo historical weather API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "migraine/1.0")

	return &Client{
		http:    http,
		limiter: rate.NewLimiter(rate.Every(rateLimitDelay), 1),
		log:     logging.Named("weather"),
	}
}

type dailyResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		TempMean      []*float64 `json:"temperature_2m_mean"`
		Humidity      []*float64 `json:"relative_humidity_2m_mean"`
		Pressure      []*float64 `json:"pressure_msl_mean"`
		Precipitation []*float64 `json:"precipitation_sum"`
		WeatherCode   []*float64 `json:"weather_code"`
		CloudCover    []*float64 `json:"cloud_cover_mean"`
		WindSpeed     []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

type apiError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// FetchDaily returns one record per day from..to (inclusive date keys).
// The day before from is requested too so the first day gets a pressure
// change.
func (c *Client) FetchDaily(ctx context.Context, loc Location, from, to string) ([]*models.DailyWeather, error) {
	if _, err := models.ParseDateKey(from); err != nil {
		return nil, err
	}
	if _, err := models.ParseDateKey(to); err != nil {
		return nil, err
	}
	if to < from {
		return nil, fmt.Errorf("invalid range: %s is after %s", from, to)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tz := loc.Timezone
	if tz == "" {
		tz = "auto"
	}

	var body dailyResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":   fmt.Sprintf("%.4f", loc.Latitude),
			"longitude":  fmt.Sprintf("%.4f", loc.Longitude),
			"start_date": models.ShiftDateKey(from, -1),
			"end_date":   to,
			"daily":      dailyFields,
			"timezone":   tz,
		}).
		SetResult(&body).
		SetError(&failure).
		Get("/v1/archive")
	if err != nil {
		c.log.Error("weather request failed", zap.Error(err))
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	if resp.IsError() {
		c.log.Error("weather API returned error",
			zap.Int("status", resp.StatusCode()),
			zap.String("reason", failure.Reason),
		)
		return nil, fmt.Errorf("weather API error: %s (status: %d)", failure.Reason, resp.StatusCode())
	}

	records := convert(body)
	out := make([]*models.DailyWeather, 0, len(records))
	for _, w := range records {
		if w.Date >= from && w.Date <= to {
			out = append(out, w)
		}
	}
	c.log.Info("fetched weather",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("days", len(out)),
	)
	return out, nil
}

func convert(body dailyResponse) []*models.DailyWeather {
	d := body.Daily
	fetched := time.Now()
	out := make([]*models.DailyWeather, 0, len(d.Time))
	var prevPressure *float64
	for i, date := range d.Time {
		w := models.NewDailyWeather(date)
		w.FetchedAt = fetched
		w.TempMax = at(d.TempMax, i)
		w.TempMin = at(d.TempMin, i)
		w.TempAvg = at(d.TempMean, i)
		w.Humidity = at(d.Humidity, i)
		w.Pressure = at(d.Pressure, i)
		w.Precipitation = at(d.Precipitation, i)
		w.CloudCover = at(d.CloudCover, i)
		w.WindSpeed = at(d.WindSpeed, i)
		if code := at(d.WeatherCode, i); code != nil {
			w.WeatherCode = models.Int(int(*code))
		}
		if w.Pressure != nil && prevPressure != nil {
			change, _ := stats.Round(*w.Pressure-*prevPressure, 1)
			w.PressureChange = &change
		}
		prevPressure = w.Pressure
		out = append(out, w)
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// Store is where fetched weather is written.
type Store interface {
	UpsertDailyWeather(w *models.DailyWeather) error
}

// Sync fetches from..to and upserts every day into store.
func (c *Client) Sync(ctx context.Context, store Store, loc Location, from, to string) (int, error) {
	records, err := c.FetchDaily(ctx, loc, from, to)
	if err != nil {
		return 0, err
	}
	for i, w := range records {
		if err := store.UpsertDailyWeather(w); err != nil {
			return i, fmt.Errorf("save weather %s: %w", w.Date, err)
		}
	}
	return len(records), nil
}
