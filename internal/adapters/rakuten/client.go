package rakuten

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"hoshizora/internal/adapters/upstream"
	"hoshizora/internal/domain"
)

const (
	Service     = "rakuten"
	DefaultBase = "https://app.rakuten.co.jp/services/api/Travel/VacantHotelSearch/20170426"

	searchRadiusKm = "30"
	maxHits        = "10"
)

// Client queries Rakuten Travel for vacant properties.
type Client struct {
	base  string
	appID string
	ex    *upstream.Executor
}

func New(base, appID string, ex *upstream.Executor) (*Client, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, domain.Configf(Service, "RAKUTEN_APP_ID is required")
	}
	if base == "" {
		base = DefaultBase
	}
	return &Client{base: base, appID: appID, ex: ex}, nil
}

// VacantHotels returns one flattened map per hotel with the keys
// hotelBasicInfo, hotelRatingInfo and hotelDetailInfo when present.
func (c *Client) VacantHotels(ctx context.Context, coord domain.Coordinate, checkin time.Time) ([]map[string]any, error) {
	if err := coord.Validate(); err != nil {
		return nil, err
	}
	return upstream.Fetch[[]map[string]any](ctx, c.ex, vacantEndpoint{c: c, coord: coord, checkin: domain.Day(checkin)})
}

type vacantEndpoint struct {
	c       *Client
	coord   domain.Coordinate
	checkin time.Time
}

func (e vacantEndpoint) Request() (upstream.Request, error) {
	u, err := url.Parse(e.c.base)
	if err != nil {
		return upstream.Request{}, domain.Wrap(err, domain.KindConfig, Service, "bad base url")
	}
	q := u.Query()
	q.Set("applicationId", e.c.appID)
	q.Set("format", "json")
	q.Set("checkinDate", e.checkin.Format(domain.DateLayout))
	q.Set("checkoutDate", e.checkin.AddDate(0, 0, 1).Format(domain.DateLayout))
	q.Set("latitude", e.coord.LatString())
	q.Set("longitude", e.coord.LonString())
	q.Set("searchRadius", searchRadiusKm)
	q.Set("datumType", "1")
	q.Set("hits", maxHits)
	u.RawQuery = q.Encode()
	return upstream.Request{URL: u.String()}, nil
}

func (vacantEndpoint) Parse(body []byte) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.Wrap(err, domain.KindUpstream, Service, "decode vacant hotel response")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.Upstreamf(Service, "response is not an object")
	}
	if code, _ := obj["error"].(string); code != "" {
		msg, _ := obj["error_description"].(string)
		if msg == "" {
			msg = code
		}
		return nil, domain.Upstreamf(Service, "provider error: %s", msg)
	}

	list, _ := obj["hotels"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m := flatten(item); m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// flatten merges the provider's {"hotel":[{hotelBasicInfo},{hotelRatingInfo},...]}
// wrapper into one map. Already flat entries pass through.
func flatten(item any) map[string]any {
	m, ok := item.(map[string]any)
	if !ok {
		return nil
	}
	parts, ok := m["hotel"].([]any)
	if !ok {
		return m
	}
	out := map[string]any{}
	for _, p := range parts {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range pm {
			out[k] = v
		}
	}
	return out
}
