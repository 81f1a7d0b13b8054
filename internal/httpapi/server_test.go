package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagscope/pkg/api"
	"tagscope/pkg/model"
)

func newTestServer(t *testing.T) (*Server, model.SessionID, api.Service) {
	t.Helper()
	svc := api.NewService(nil)
	id, err := svc.StartSession(model.SessionConfig{PageHost: "shop.example.com"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.StopSession(id) })
	return New(0, svc, id, nil), id, svc
}

func TestStatsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var st model.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, 0, st.Requests)
}

func TestIngestThenListRequests(t *testing.T) {
	s, _, _ := newTestServer(t)

	body := `{"transport":"fetch","method":"GET","url":"https://www.google-analytics.com/g/collect?v=2"}`
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var recs []model.NetworkRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.True(t, recs[0].External)
	assert.Equal(t, "Google", recs[0].Vendor)

	// 参数提取端点
	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/requests/"+recs[0].ID+"/parameters", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var ps []model.Parameter
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ps))
	require.NotEmpty(t, ps)
	assert.Equal(t, "v", ps[0].Key)
}

func TestIngestRejectsBadPayload(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"method":"GET"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestEventsAndConsoleEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, path := range []string{"/api/events", "/api/console"} {
		rr := httptest.NewRecorder()
		s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestUnknownRecordParameters(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/requests/nope/parameters", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
