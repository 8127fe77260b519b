package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/solar-radiation-ingestion/internal/logger"
	"github.com/i474232898/solar-radiation-ingestion/internal/solar"
)

// DefaultEnsembleBaseURL is the public Open-Meteo ensemble host.
const DefaultEnsembleBaseURL = "https://ensemble-api.open-meteo.com"

const ensemblePath = "/v1/ensemble"

// EnsembleFetcher retrieves hourly radiation forecasts from the Open-Meteo
// ensemble endpoint. Each Fetch issues exactly one request; retries are left
// to whoever triggers the run.
type EnsembleFetcher struct {
	name     string
	baseURL  string
	client   *http.Client
	location solar.Location
}

// NewEnsembleFetcher creates a fetcher for loc. An empty baseURL selects
// DefaultEnsembleBaseURL.
func NewEnsembleFetcher(client *http.Client, baseURL string, loc solar.Location) *EnsembleFetcher {
	if baseURL == "" {
		baseURL = DefaultEnsembleBaseURL
	}
	return &EnsembleFetcher{
		name:     "openmeteo-ensemble",
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		location: loc,
	}
}

func (p *EnsembleFetcher) Name() string {
	return p.name
}

// Query returns the fixed query payload sent with every request.
func (p *EnsembleFetcher) Query() url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(p.location.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(p.location.Longitude, 'f', -1, 64))
	values.Set("hourly", strings.Join(solar.RadiationFields, ","))
	values.Set("timezone", "auto")
	return values
}

// Fetch performs the GET and decodes the body. Transport failures, non-2xx
// statuses (*StatusError) and undecodable bodies (ErrDecode) are returned
// wrapped with the provider name.
func (p *EnsembleFetcher) Fetch(ctx context.Context) (solar.ForecastResponse, error) {
	u := fmt.Sprintf("%s%s?%s", p.baseURL, ensemblePath, p.Query().Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return solar.ForecastResponse{}, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	logger.Debugf("%s: GET %s", p.name, u)
	resp, err := doRequest(ctx, p.client, req)
	if err != nil {
		return solar.ForecastResponse{}, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	var payload solar.ForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return solar.ForecastResponse{}, fmt.Errorf("%s: %w: %v", p.name, ErrDecode, err)
	}

	logger.Debugf("%s: received forecast for %v,%v (%d hourly columns)",
		p.name, p.location.Latitude, p.location.Longitude, len(payload.Hourly))
	return payload, nil
}
