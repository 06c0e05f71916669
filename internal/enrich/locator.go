package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/httpclient"
)

// DefaultLocationURL is the ip-api endpoint resolving the caller's public IP.
const DefaultLocationURL = "http://ip-api.com/json/"

// Location is a coarse geographic position.
type Location struct {
	City    string
	Region  string
	Country string
}

// String formats the location as "<city>, <region>, <country>", skipping
// empty parts.
func (l Location) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.Region, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Locator resolves the current location.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Location, error)

// Locate calls f(ctx).
func (f LocatorFunc) Locate(ctx context.Context) (Location, error) { return f(ctx) }

// ipAPIResponse is the subset of the ip-api.com JSON document in use.
type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

// IPLocator geolocates the public IP of this host through an ip-api
// compatible service.
type IPLocator struct {
	url  string
	http *httpclient.Client
}

// NewIPLocator creates a locator querying url.
func NewIPLocator(url string, client *httpclient.Client) *IPLocator {
	if url == "" {
		url = DefaultLocationURL
	}
	if client == nil {
		client = httpclient.New(nil)
	}
	return &IPLocator{url: url, http: client}
}

// Locate performs one lookup. The caller bounds it with ctx.
func (l *IPLocator) Locate(ctx context.Context) (Location, error) {
	start := time.Now()
	resp, err := l.http.Get(ctx, l.url)
	if err != nil {
		return Location{}, errors.New(err).
			Component("enrich").
			Category(errors.CategoryLocationLookup).
			Timing("ip_lookup", time.Since(start)).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return Location{}, errors.Newf("location service returned status %d", resp.StatusCode).
			Component("enrich").
			Category(errors.CategoryLocationLookup).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, errors.New(err).
			Component("enrich").
			Category(errors.CategoryLocationLookup).
			Context("operation", "decode_location").
			Build()
	}

	if body.Status != "" && body.Status != "success" {
		return Location{}, errors.Newf("location lookup failed: %s", body.Message).
			Component("enrich").
			Category(errors.CategoryLocationLookup).
			Build()
	}

	loc := Location{City: body.City, Region: body.RegionName, Country: body.Country}
	if loc.String() == "" {
		return Location{}, errors.Newf("location service returned no location").
			Component("enrich").
			Category(errors.CategoryLocationLookup).
			Build()
	}
	return loc, nil
}
