package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const weatherEndpoint = "http://api.openweathermap.org/data/2.5/weather"

// Weather looks up current conditions on OpenWeatherMap. A single
// all-digit argument is treated as a ZIP code, anything else as a
// place name. Requires the "appid" option.
func Weather(ctx context.Context, req *Request) error {
	appid := req.String("appid")
	if appid == "" {
		return nil
	}

	params := url.Values{}
	params.Set("units", "imperial")
	params.Set("appid", appid)
	if len(req.Args) == 1 && isDigits(req.Args[0]) {
		params.Set("zip", req.Args[0])
	} else {
		params.Set("q", strings.Join(req.Args, " "))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, weatherEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "could not build weather request")
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "weather request failed")
	}
	defer resp.Body.Close()

	var data struct {
		Name string `json:"name"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return errors.Wrap(err, "could not decode weather response")
	}
	if len(data.Weather) == 0 {
		return errors.New("no conditions in weather response")
	}

	return req.Reply(fmt.Sprintf(
		"Currently in %s: %g°F (feels like %g°F) and %s",
		data.Name, data.Main.Temp, data.Main.FeelsLike, data.Weather[0].Description,
	))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
