package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wildlife-challenge-service/utils"
)

// Address is the locality a coordinate falls in.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// ReverseGeocoder turns a coordinate into a locality.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error)
}

// HTTPGeocoder calls a Nominatim-compatible /reverse endpoint.
type HTTPGeocoder struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

func NewHTTPGeocoder(baseURL, userAgent string) *HTTPGeocoder {
	return &HTTPGeocoder{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserAgent:  userAgent,
		HTTPClient: utils.HTTPClient,
	}
}

type nominatimReverse struct {
	Error   string `json:"error"`
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Hamlet       string `json:"hamlet"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
		State        string `json:"state"`
		Region       string `json:"region"`
		Country      string `json:"country"`
	} `json:"address"`
}

func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error) {
	u, err := url.Parse(g.BaseURL + "/reverse")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse base URL: %v", ErrGeocode, err)
	}
	q := u.Query()
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("zoom", "10")
	q.Set("accept-language", "en")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrGeocode, err)
	}
	req.Header.Set("Accept", "application/json")
	if g.UserAgent != "" {
		req.Header.Set("User-Agent", g.UserAgent)
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: geocoder returned status %d: %s", ErrGeocode, resp.StatusCode, string(body))
	}

	var out nominatimReverse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode geocoder response: %v", ErrGeocode, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrGeocode, out.Error)
	}

	a := out.Address
	addr := &Address{
		City:    firstNonEmpty(a.City, a.Town, a.Village, a.Hamlet, a.Municipality, a.County),
		State:   firstNonEmpty(a.State, a.Region),
		Country: a.Country,
	}
	if addr.City == "" && addr.State == "" {
		return nil, fmt.Errorf("%w: no address for %.4f,%.4f", ErrGeocode, lat, lng)
	}
	return addr, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
