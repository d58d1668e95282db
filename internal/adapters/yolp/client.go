package yolp

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"hoshizora/internal/adapters/upstream"
	"hoshizora/internal/domain"
)

const (
	Service     = "yolp"
	DefaultBase = "https://map.yahooapis.jp/geoapi/V1/reverseGeoCoder"
)

// Client resolves coordinates to addresses with the YOLP reverse geocoder.
type Client struct {
	base  string
	appID string
	ex    *upstream.Executor
}

func New(base, appID string, ex *upstream.Executor) (*Client, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, domain.Configf(Service, "YAHOO_APP_ID is required")
	}
	if base == "" {
		base = DefaultBase
	}
	return &Client{base: base, appID: appID, ex: ex}, nil
}

// ReverseGeocode returns the first non-empty address in the response.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (string, error) {
	if err := coord.Validate(); err != nil {
		return "", err
	}
	return upstream.Fetch[string](ctx, c.ex, reverseEndpoint{c: c, coord: coord})
}

type reverseEndpoint struct {
	c     *Client
	coord domain.Coordinate
}

func (e reverseEndpoint) Request() (upstream.Request, error) {
	u, err := url.Parse(e.c.base)
	if err != nil {
		return upstream.Request{}, domain.Wrap(err, domain.KindConfig, Service, "bad base url")
	}
	q := u.Query()
	q.Set("lat", e.coord.LatString())
	q.Set("lon", e.coord.LonString())
	q.Set("appid", e.c.appID)
	q.Set("output", "xml")
	u.RawQuery = q.Encode()
	return upstream.Request{URL: u.String()}, nil
}

type ydf struct {
	XMLName  xml.Name `xml:"YDF"`
	Features []struct {
		Address string `xml:"Property>Address"`
	} `xml:"Feature"`
}

func (reverseEndpoint) Parse(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", domain.Upstreamf(Service, "empty response body")
	}
	var doc ydf
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", domain.Wrap(err, domain.KindUpstream, Service, "decode reverse geocoder xml")
	}
	for _, f := range doc.Features {
		if a := strings.TrimSpace(f.Address); a != "" {
			return a, nil
		}
	}
	return "", domain.Upstreamf(Service, "no feature carries an address")
}
