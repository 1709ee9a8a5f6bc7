package api

import (
	"LightCount/internal/engine"
	"LightCount/internal/model"
	"LightCount/internal/period"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Handler holds the dependencies for API handlers.
type Handler struct {
	engine *engine.Engine
	loc    *time.Location
}

// NewHandler creates the API handlers. Windows are resolved in loc unless a
// request names its own time zone.
func NewHandler(e *engine.Engine, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{engine: e, loc: loc}
}

// Router returns the API routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	r.HandleFunc("/api/v1/stat", h.statHandler).Methods("GET")
	r.HandleFunc("/api/v1/series", h.seriesHandler).Methods("GET")
	r.HandleFunc("/api/v1/ip/{ip}", h.ipHandler).Methods("GET")
	return r
}

type seriesFunc func(*engine.Result, context.Context) (engine.Series, error)

var views = map[string]seriesFunc{
	"in_bps":  (*engine.Result).InBps,
	"out_bps": (*engine.Result).OutBps,
	"io_bps":  (*engine.Result).IOBps,
	"in_pps":  (*engine.Result).InPps,
	"out_pps": (*engine.Result).OutPps,
	"io_pps":  (*engine.Result).IOPps,
}

// StatResponse is the body of /api/v1/stat.
type StatResponse struct {
	Period  string           `json:"period"`
	Begin   time.Time        `json:"begin"`
	End     time.Time        `json:"end"`
	Reports []*engine.Report `json:"reports"`
}

// Point is a series sample; Value is null for unknown samples.
type Point struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// SeriesResponse is one query's series in /api/v1/series.
type SeriesResponse struct {
	Query      string             `json:"query"`
	Human      string             `json:"human"`
	ValuesName string             `json:"values_name"`
	Begin      time.Time          `json:"begin"`
	End        time.Time          `json:"end"`
	SampleSize int64              `json:"sample_size_seconds"`
	Views      map[string][]Point `json:"views"`
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statHandler reports peaks and billing values for every q parameter.
func (h *Handler) statHandler(w http.ResponseWriter, r *http.Request) {
	results, win, err := h.compile(r, r.URL.Query()["q"], "")
	if err != nil {
		writeError(w, err)
		return
	}

	resp := StatResponse{Period: win.Granularity.String(), Begin: win.Begin, End: win.End}
	for _, res := range results {
		rep, err := engine.BuildReport(r.Context(), res)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Reports = append(resp.Reports, rep)
	}
	writeJSON(w, http.StatusOK, resp)
}

// seriesHandler returns the requested views for every q parameter.
func (h *Handler) seriesHandler(w http.ResponseWriter, r *http.Request) {
	results, _, err := h.compile(r, r.URL.Query()["q"], "")
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSeries(w, r, results)
}

// ipHandler is the traffic of a single address over the current day unless
// the request selects another window.
func (h *Handler) ipHandler(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if _, err := model.ParseIPv4(ip); err != nil {
		writeError(w, &model.ParseError{Token: ip, Msg: "invalid IP address"})
		return
	}
	results, _, err := h.compile(r, []string{"ip " + ip}, period.Day.String())
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSeries(w, r, results)
}

func (h *Handler) compile(r *http.Request, queries []string, defaultPeriod string) ([]*engine.Result, period.Window, error) {
	q := r.URL.Query()
	req := period.Request{
		Begin:       q.Get("begin"),
		End:         q.Get("end"),
		Granularity: q.Get("period"),
		TimeZone:    q.Get("tz"),
	}
	if req.Granularity == "" && (req.Begin == "" || req.End == "") {
		req.Granularity = defaultPeriod
	}

	win, err := period.Resolve(req, h.engine.Interval(), h.loc, h.engine.Now())
	if err != nil {
		return nil, period.Window{}, err
	}
	if s := q.Get("sample"); s != "" {
		size, err := parseSampleSize(s)
		if err != nil {
			return nil, period.Window{}, err
		}
		if win, err = win.WithSampleSize(size); err != nil {
			return nil, period.Window{}, err
		}
	}

	results, err := h.engine.CompileQueries(r.Context(), win, queries)
	if err != nil {
		return nil, period.Window{}, err
	}
	return results, win, nil
}

func (h *Handler) writeSeries(w http.ResponseWriter, r *http.Request, results []*engine.Result) {
	names := r.URL.Query()["view"]
	if len(names) == 0 {
		names = []string{"in_bps", "out_bps"}
	}
	for _, name := range names {
		if _, ok := views[name]; !ok {
			writeError(w, model.Usagef("unknown view %q", name))
			return
		}
	}

	resp := make([]SeriesResponse, 0, len(results))
	for _, res := range results {
		sr := SeriesResponse{
			Query:      res.Query,
			Human:      res.Human(),
			ValuesName: res.ValuesName(),
			Begin:      res.Window.Begin,
			End:        res.Window.End,
			SampleSize: int64(res.Window.SampleSize / time.Second),
			Views:      make(map[string][]Point, len(names)),
		}
		for _, name := range names {
			s, err := views[name](res, r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			sr.Views[name] = toPoints(s)
		}
		resp = append(resp, sr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toPoints(s engine.Series) []Point {
	points := make([]Point, len(s))
	for i, x := range s {
		points[i].Time = x.Time
		if x.Known {
			v := x.Value
			points[i].Value = &v
		}
	}
	return points
}

// parseSampleSize accepts seconds ("3600") or a duration ("1h").
func parseSampleSize(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, model.Usagef("invalid sample size %q", s)
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBytes)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var dataErr *model.DataError
	switch {
	case model.IsUserError(err):
		status = http.StatusBadRequest
	case errors.As(err, &dataErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Printf("API request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}
