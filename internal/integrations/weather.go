package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WeatherReport is the condensed result of a wttr.in lookup.
type WeatherReport struct {
	Location    string `json:"location"`
	TempC       string `json:"temp_c"`
	FeelsLikeC  string `json:"feels_like_c"`
	Description string `json:"description"`
	Humidity    string `json:"humidity"`
}

// Weather fetches current conditions from wttr.in. No credentials needed.
type Weather struct {
	BaseURL string
	HTTP    *http.Client
}

func NewWeather() *Weather {
	return &Weather{
		BaseURL: "https://wttr.in",
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Current looks up conditions for location, or the caller's IP-derived
// location when location is empty.
func (w *Weather) Current(ctx context.Context, location string) (*WeatherReport, error) {
	target := fmt.Sprintf("%s/%s?format=j1", w.BaseURL, url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching weather: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		CurrentCondition []struct {
			TempC       string `json:"temp_C"`
			FeelsLikeC  string `json:"FeelsLikeC"`
			Humidity    string `json:"humidity"`
			WeatherDesc []struct {
				Value string `json:"value"`
			} `json:"weatherDesc"`
		} `json:"current_condition"`
		NearestArea []struct {
			AreaName []struct {
				Value string `json:"value"`
			} `json:"areaName"`
		} `json:"nearest_area"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("fetching weather: decode: %w", err)
	}
	if len(payload.CurrentCondition) == 0 {
		return nil, fmt.Errorf("fetching weather: empty response")
	}

	cond := payload.CurrentCondition[0]
	report := &WeatherReport{
		Location:   strings.TrimSpace(location),
		TempC:      cond.TempC,
		FeelsLikeC: cond.FeelsLikeC,
		Humidity:   cond.Humidity,
	}
	if len(cond.WeatherDesc) > 0 {
		report.Description = cond.WeatherDesc[0].Value
	}
	if report.Location == "" && len(payload.NearestArea) > 0 && len(payload.NearestArea[0].AreaName) > 0 {
		report.Location = payload.NearestArea[0].AreaName[0].Value
	}
	return report, nil
}
