package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

const DefaultEndpoint = "http://ip-api.com/json/"

// IPAPI queries an ip-api.com compatible JSON endpoint.
type IPAPI struct {
	endpoint string
	client   *http.Client
}

func NewIPAPI(endpoint string, timeout time.Duration) *IPAPI {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &IPAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
}

func (g *IPAPI) Lookup(ctx context.Context, ip string) (domain.Location, error) {
	parsed, err := parsePublicIP(ip)
	if err != nil {
		return domain.Location{}, err
	}

	u := g.endpoint + url.PathEscape(parsed.String()) + "?fields=status,message,country,city"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geo: build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geo: %w: %w", domain.ErrExternalLookup, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return domain.Location{}, fmt.Errorf("geo: status %d: %w", resp.StatusCode, domain.ErrExternalLookup)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Location{}, fmt.Errorf("geo: decode: %w: %w", domain.ErrExternalLookup, err)
	}
	if body.Status != "success" {
		return domain.Location{}, fmt.Errorf("geo: %s: %w", body.Message, domain.ErrExternalLookup)
	}

	return domain.Location{City: body.City, Country: body.Country}, nil
}
