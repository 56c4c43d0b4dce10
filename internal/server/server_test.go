package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/database"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/internal/plot"
	"github.com/GGmuzem/formula-engine/pkg/enginerpc"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

type fixture struct {
	engine *engine.Engine
	auth   *auth.Manager
	http   *HTTPServer
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	snap, err := catalog.Default()
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(engine.Options{
		Catalog:  catalog.NewStore(snap),
		DB:       database.NewMemoryDB(),
		Renderer: plot.NewRenderer(101),
		PlotsDir: filepath.Join(t.TempDir(), "plots"),
		Logger:   log,
	})
	a := auth.NewManager("test-secret", time.Hour)
	token, err := a.GenerateToken(models.User{ID: 11, Login: "ann"})
	require.NoError(t, err)

	return &fixture{engine: e, auth: a, http: NewHTTPServer(e, a, log), token: token}
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.http.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/sciences", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var sciences []catalog.Science
	decodeBody(t, rec, &sciences)
	assert.Len(t, sciences, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/sciences/physics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var sc scienceResponse
	decodeBody(t, rec, &sc)
	assert.Equal(t, "physics", sc.Slug)
	assert.NotEmpty(t, sc.Categories)

	rec = f.do(t, http.MethodGet, "/api/v1/categories/plots", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var cat categoryResponse
	decodeBody(t, rec, &cat)
	assert.Equal(t, "plot", cat.Kind)
	assert.Empty(t, cat.Formulas)

	rec = f.do(t, http.MethodGet, "/api/v1/formulas/ohms-law", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var formula models.Formula
	decodeBody(t, rec, &formula)
	assert.Equal(t, []string{"I", "U", "R"}, formula.Targets)

	rec = f.do(t, http.MethodGet, "/api/v1/formulas/unknown", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.StatusResponse
	decodeBody(t, rec, &st)
	assert.Equal(t, "ok", st.Status)
	assert.Greater(t, st.Formulas, 0)
}

func TestResolveEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/formulas/gravity-force",
		`{"target": "F", "values": {"m": "2", "g": "9.8"}}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.ResolveResponse
	decodeBody(t, rec, &res)
	assert.Equal(t, "19.6", res.Result)

	f.engine.Wait()
	rec = f.do(t, http.MethodGet, "/api/v1/history", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist models.HistoryResponse
	decodeBody(t, rec, &hist)
	require.Len(t, hist.Records, 1)
	assert.Equal(t, "19.6", hist.Records[0].Result)
	assert.Equal(t, 11, hist.Records[0].UserID)
}

func TestResolveErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		body   string
		status int
		detail string
		kind   string
	}{
		{"division", `{"target": "I", "values": {"U": "1", "R": "0"}}`, http.StatusBadRequest, "division has no meaning", "division_by_zero"},
		{"text", `{"target": "I", "values": {"U": "one", "R": "2"}}`, http.StatusBadRequest, "rational numbers expected", "invalid_number"},
		{"missing", `{"target": "I", "values": {"U": "1"}}`, http.StatusBadRequest, "incomplete data", "missing_variable"},
		{"bad json", `{"target":`, http.StatusBadRequest, "invalid data", "invalid_request"},
		{"no form", `{"target": "Q", "values": {"U": "1", "R": "2"}}`, http.StatusInternalServerError, "formula is misconfigured", "no_form_for_variable"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/formulas/ohms-law", test.body, false)
			assert.Equal(t, test.status, rec.Code)
			var body models.ErrorResponse
			decodeBody(t, rec, &body)
			assert.Equal(t, test.detail, body.Detail)
			assert.Equal(t, test.kind, body.Kind)
		})
	}
}

func TestSolveEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/special/equations", `{"equations": ["x + y = 10", "x - y = 2"]}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var sol models.SolveResponse
	decodeBody(t, rec, &sol)
	assert.Equal(t, "x = 6, y = 4", sol.Result)

	rec = f.do(t, http.MethodPost, "/api/v1/special/equations", `{"equations": ["x + y = 10"]}`, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlotEndpoints(t *testing.T) {
	f := newFixture(t)
	body := `{"functions": ["x^2"], "xmin": "-2", "xmax": "2"}`

	rec := f.do(t, http.MethodPost, "/api/v1/special/plots", body, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, PlotDownloadURL, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/special/plots", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.PlotResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, PlotDownloadURL, resp.DownloadURL)

	rec = f.do(t, http.MethodGet, PlotDownloadURL, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/v1/special/plots",
		`{"functions": ["x", "x", "x", "x", "x"], "xmin": "0", "xmax": "1"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var er models.ErrorResponse
	decodeBody(t, rec, &er)
	assert.Equal(t, "too_many_functions", er.Kind)
}

func TestHistoryRequiresAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/history", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/history?limit=abc", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearHistoryEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/formulas/ohms-law",
		`{"target": "U", "values": {"I": "2", "R": "3"}}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/v1/history", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/history", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/history", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist models.HistoryResponse
	decodeBody(t, rec, &hist)
	assert.Empty(t, hist.Records)
}

func dialBufconn(t *testing.T, f *fixture) enginerpc.EngineClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewGRPC(f.engine, f.auth, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := enginerpc.Dial("bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return enginerpc.NewEngineClient(conn)
}

func TestGRPCResolveAndSolve(t *testing.T) {
	f := newFixture(t)
	client := dialBufconn(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := client.Resolve(ctx, &models.ResolveRequest{
		Formula: "uniform-motion",
		Target:  "s",
		Values:  map[string]string{"v": "1, 2, 3", "t": "10"},
	})
	require.NoError(t, err)
	assert.Equal(t, "10, 20, 30", res.Result)
	assert.Equal(t, []float64{10, 20, 30}, res.Values)

	sol, err := client.Solve(ctx, &models.SolveRequest{Equations: []string{"2*x = 8"}})
	require.NoError(t, err)
	assert.Equal(t, 4.0, sol.Solution["x"])
	assert.Equal(t, "x = 4", sol.Result)

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+f.token)
	_, err = client.Resolve(authed, &models.ResolveRequest{
		Formula: "ohms-law",
		Target:  "U",
		Values:  map[string]string{"I": "2", "R": "3"},
	})
	require.NoError(t, err)
	f.engine.Wait()
	records, err := f.engine.History(ctx, 11, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "6", records[0].Result)
}

func TestGRPCErrors(t *testing.T) {
	f := newFixture(t)
	client := dialBufconn(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Resolve(ctx, &models.ResolveRequest{Formula: "nope", Target: "x"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Solve(ctx, &models.SolveRequest{Equations: []string{"x + y = 1", "x + y = 2"}})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Plot(ctx, &models.PlotRequest{Functions: []string{"log(x)"}, XMin: "-1", XMax: "1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "computationally impossible expression")

	badCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer broken")
	_, err = client.Solve(badCtx, &models.SolveRequest{Equations: []string{"x = 1"}})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCPlotForUser(t *testing.T) {
	f := newFixture(t)
	client := dialBufconn(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Plot(ctx, &models.PlotRequest{Functions: []string{"sin(x)"}, XMin: "-3", XMax: "3"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.PNG)
	assert.Empty(t, resp.DownloadURL)

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+f.token)
	resp, err = client.Plot(authed, &models.PlotRequest{Functions: []string{"sin(x)"}, XMin: "-3", XMax: "3"})
	require.NoError(t, err)
	assert.Equal(t, PlotDownloadURL, resp.DownloadURL)
	assert.FileExists(t, f.engine.PlotPath(11))
}
