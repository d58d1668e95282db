// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"hoshizora/internal/app"
	"hoshizora/internal/domain"
	"hoshizora/internal/moon"
	"hoshizora/internal/shared"
)

type Handlers struct {
	Search  *app.SearchService
	Weather *app.WeatherService
	Address domain.AddressClient
	Lodging *app.LodgingService
	Moon    moon.Formatter
	Now     func() time.Time

	validate *validator.Validate
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	if h.validate == nil {
		h.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if h.Now == nil {
		h.Now = time.Now
	}
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/regions", h.listRegions)
	s.mux.Get("/v1/search", h.search)
	s.mux.Get("/v1/weather", h.weather)
	s.mux.Get("/v1/address", h.address)
	s.mux.Get("/v1/accommodations", h.accommodations)
	s.mux.Get("/v1/moon", h.getMoon)
}

/********** query binding **********/

type locationQuery struct {
	Region string `validate:"required_without_all=Lat Lon"`
	Lat    string `validate:"required_without=Region,omitempty,latitude"`
	Lon    string `validate:"required_without=Region,omitempty,longitude"`
}

type searchQuery struct {
	locationQuery
	Date string `validate:"required,datetime=2006-01-02"`
}

type weatherQuery struct {
	locationQuery
	Start string `validate:"required,datetime=2006-01-02"`
	End   string `validate:"omitempty,datetime=2006-01-02"`
}

type lodgingQuery struct {
	locationQuery
	Dates string `validate:"required"`
}

type moonQuery struct {
	Date string `validate:"omitempty,datetime=2006-01-02"`
}

func bindLocation(r *http.Request) locationQuery {
	q := r.URL.Query()
	return locationQuery{
		Region: strings.TrimSpace(q.Get("region")),
		Lat:    strings.TrimSpace(q.Get("lat")),
		Lon:    strings.TrimSpace(q.Get("lon")),
	}
}

func (h *Handlers) check(w http.ResponseWriter, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		parts := make([]string, 0, len(ve))
		for _, fe := range ve {
			parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
		}
		writeProblem(w, http.StatusBadRequest, "Invalid query", strings.Join(parts, "; "))
		return false
	}
	writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
	return false
}

// resolve turns a region name or a lat/lon pair into a coordinate.
func (h *Handlers) resolve(w http.ResponseWriter, lq locationQuery) (domain.Coordinate, bool) {
	if lq.Lat == "" && lq.Lon == "" {
		reg, ok := shared.LookupRegion(lq.Region)
		if !ok {
			writeProblem(w, http.StatusNotFound, "Unknown region", fmt.Sprintf("region %q is not known", lq.Region))
			return domain.Coordinate{}, false
		}
		return reg.Coord, true
	}
	c, err := domain.ParseCoordinate(lq.Lat, lq.Lon)
	if err != nil {
		writeError(w, err)
		return domain.Coordinate{}, false
	}
	return c, true
}

/********** responses **********/

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps an error kind onto a problem response.
func writeError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
	case domain.KindRange:
		writeProblem(w, http.StatusBadRequest, "Out of range", err.Error())
	case domain.KindConfig:
		writeProblem(w, http.StatusInternalServerError, "Misconfigured", err.Error())
	case domain.KindTransient, domain.KindUpstream:
		writeProblem(w, http.StatusBadGateway, "Upstream failure", err.Error())
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			writeProblem(w, http.StatusGatewayTimeout, "Timeout", "request took too long")
			return
		}
		log.Error().Err(err).Msg("unclassified error")
		writeProblem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal error", "response could not be encoded")
		return
	}
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

/********** handlers **********/

func (h *Handlers) listRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, shared.Regions())
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{locationQuery: bindLocation(r), Date: r.URL.Query().Get("date")}
	if !h.check(w, q) {
		return
	}
	c, ok := h.resolve(w, q.locationQuery)
	if !ok {
		return
	}
	date, err := domain.ParseDate(q.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Search.Search(r.Context(), c, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, res)
}

func (h *Handlers) weather(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := weatherQuery{locationQuery: bindLocation(r), Start: qs.Get("start"), End: qs.Get("end")}
	if q.Start == "" {
		q.Start = qs.Get("date")
	}
	if !h.check(w, q) {
		return
	}
	c, ok := h.resolve(w, q.locationQuery)
	if !ok {
		return
	}
	start, err := domain.ParseDate(q.Start)
	if err != nil {
		writeError(w, err)
		return
	}
	end := start
	if q.End != "" {
		if end, err = domain.ParseDate(q.End); err != nil {
			writeError(w, err)
			return
		}
	}
	win, err := domain.NewDateWindow(start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Weather.Range(r.Context(), c, win)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) address(w http.ResponseWriter, r *http.Request) {
	lq := bindLocation(r)
	if !h.check(w, lq) {
		return
	}
	c, ok := h.resolve(w, lq)
	if !ok {
		return
	}
	addr, err := h.Address.ReverseGeocode(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"address": addr, "coordinate": c})
}

func (h *Handlers) accommodations(w http.ResponseWriter, r *http.Request) {
	q := lodgingQuery{locationQuery: bindLocation(r), Dates: r.URL.Query().Get("dates")}
	if !h.check(w, q) {
		return
	}
	c, ok := h.resolve(w, q.locationQuery)
	if !ok {
		return
	}
	dates, err := domain.ParseDateList(q.Dates)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Lodging.Search(r.Context(), c, dates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) getMoon(w http.ResponseWriter, r *http.Request) {
	q := moonQuery{Date: r.URL.Query().Get("date")}
	if !h.check(w, q) {
		return
	}
	ref := h.Now()
	if q.Date != "" {
		d, err := domain.ParseDate(q.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		ref = d
	}
	f := h.Moon
	if al := r.Header.Get("Accept-Language"); al != "" {
		f = f.WithLocale(al)
	}
	w.Header().Set("Content-Language", f.Locale())
	writeJSON(w, r, f.Info(ref))
}
