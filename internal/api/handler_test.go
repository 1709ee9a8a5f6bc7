package api

import (
	"LightCount/internal/engine"
	"LightCount/internal/model"
	"LightCount/internal/query"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, now time.Time) (*httptest.Server, *query.MemoryStore) {
	t.Helper()
	ip, err := model.ParseIPv4("10.0.0.1")
	require.NoError(t, err)
	var rows []model.RawRow
	for ts := day; ts.Before(day.Add(24 * time.Hour)); ts = ts.Add(5 * time.Minute) {
		rows = append(rows, model.RawRow{Unixtime: ts.Unix(), NodeID: 1, VlanID: 4, IP: ip, InBps: 100, OutBps: 50, InPps: 2, OutPps: 1})
	}
	store := query.NewMemoryStore(map[uint32]string{1: "core1"}, rows)
	e, err := engine.New(store, nil, engine.Options{Now: func() time.Time { return now }})
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(e, time.UTC).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func get(t *testing.T, srv *httptest.Server, path string, params url.Values, into interface{}) int {
	t.Helper()
	u := srv.URL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, day.Add(48*time.Hour))
	var body map[string]string
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStat(t *testing.T) {
	srv, _ := newTestServer(t, day.Add(48*time.Hour))
	params := url.Values{"q": {"vlan 4", "node core1 and ip 10.0.0.1"}, "period": {"day"}, "end": {"2024-01-01 12:00"}}

	var resp StatResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/stat", params, &resp))
	assert.Equal(t, "day", resp.Period)
	assert.True(t, day.Equal(resp.Begin))
	require.Len(t, resp.Reports, 2)
	assert.Equal(t, "vlan# 4", resp.Reports[0].ValuesName)
	assert.Equal(t, "10.0.0.1 MON core1 (1)", resp.Reports[1].ValuesName)
	require.NotNil(t, resp.Reports[0].PeakBps)
	assert.Equal(t, 800.0, resp.Reports[0].PeakBps.In)
	assert.Nil(t, resp.Reports[0].Billing)
}

func TestStat_Month(t *testing.T) {
	srv, _ := newTestServer(t, day.Add(48*time.Hour))
	var resp StatResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/stat", url.Values{"begin": {"2024-01-01"}}, &resp))
	assert.Equal(t, "month", resp.Period)
	require.Len(t, resp.Reports, 1)
	require.NotNil(t, resp.Reports[0].Billing)
	assert.True(t, resp.Reports[0].Billing.IsEstimate)
}

func TestStat_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, day.Add(48*time.Hour))
	cases := map[string]url.Values{
		"field without value": {"q": {"node"}},
		"unknown node":        {"q": {"node nowhere"}},
		"unknown period":      {"period": {"decade"}},
		"three parameters":    {"period": {"day"}, "begin": {"2024-01-01"}, "end": {"2024-01-02"}},
		"bad sample":          {"period": {"day"}, "sample": {"7m"}},
		"bad time zone":       {"tz": {"Nowhere/Town"}},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/stat", params, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStat_DataError(t *testing.T) {
	srv, store := newTestServer(t, day.Add(48*time.Hour))
	require.NoError(t, store.Close())
	assert.Equal(t, http.StatusBadGateway, get(t, srv, "/api/v1/stat", url.Values{"period": {"day"}}, nil))
}

func TestSeries(t *testing.T) {
	// Half way through the day: the afternoon is still unknown.
	srv, _ := newTestServer(t, day.Add(12*time.Hour))
	params := url.Values{
		"q":      {"ip 10.0.0.1"},
		"begin":  {"2024-01-01"},
		"period": {"day"},
		"view":   {"io_bps", "in_pps"},
		"sample": {"3600"},
	}

	var resp []SeriesResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/series", params, &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, int64(3600), resp[0].SampleSize)

	io := resp[0].Views["io_bps"]
	require.Len(t, io, 25)
	require.NotNil(t, io[1].Value)
	assert.Equal(t, 1200.0, *io[1].Value)
	assert.Nil(t, io[12].Value)
	assert.Nil(t, io[24].Value)
	assert.Len(t, resp[0].Views["in_pps"], 25)
	assert.NotContains(t, resp[0].Views, "in_bps")
}

func TestSeries_UnknownView(t *testing.T) {
	srv, _ := newTestServer(t, day.Add(48*time.Hour))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/series", url.Values{"view": {"bogus"}}, nil))
}

func TestIP(t *testing.T) {
	srv, _ := newTestServer(t, day.Add(24*time.Hour+30*time.Minute))

	var resp []SeriesResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/ip/10.0.0.1", url.Values{"end": {"2024-01-01 18:00"}}, &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "ip 10.0.0.1", resp[0].Human)
	assert.True(t, day.Equal(resp[0].Begin))
	assert.Len(t, resp[0].Views["in_bps"], 289)
	assert.Len(t, resp[0].Views["out_bps"], 289)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/ip/not-an-ip", nil, nil))
}
