// Package server публикует движок по HTTP (JSON) и gRPC.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/calculate"
	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

const (
	maxBodyBytes    = 1 << 20
	PlotDownloadURL = "/api/v1/special/plots/download"
)

type HTTPServer struct {
	engine *engine.Engine
	auth   *auth.Manager
	log    *slog.Logger
	router *httprouter.Router
}

// NewHTTPServer создаёт обработчик HTTP API
func NewHTTPServer(e *engine.Engine, a *auth.Manager, log *slog.Logger) *HTTPServer {
	s := &HTTPServer{engine: e, auth: a, log: log, router: httprouter.New()}

	r := s.router
	r.HandlerFunc(http.MethodGet, "/status", s.handleStatus)
	r.HandlerFunc(http.MethodGet, "/api/v1/sciences", s.handleSciences)
	r.HandlerFunc(http.MethodGet, "/api/v1/sciences/:science", s.handleScience)
	r.HandlerFunc(http.MethodGet, "/api/v1/categories/:category", s.handleCategory)
	r.HandlerFunc(http.MethodGet, "/api/v1/formulas/:formula", s.handleFormula)
	r.HandlerFunc(http.MethodPost, "/api/v1/formulas/:formula", a.Optional(s.handleResolve))
	r.HandlerFunc(http.MethodPost, "/api/v1/special/equations", s.handleSolve)
	r.HandlerFunc(http.MethodPost, "/api/v1/special/plots", a.Middleware(s.unauthorized, s.handlePlot))
	r.HandlerFunc(http.MethodGet, PlotDownloadURL, a.Middleware(s.unauthorized, s.handlePlotDownload))
	r.HandlerFunc(http.MethodGet, "/api/v1/history", a.Middleware(s.unauthorized, s.handleHistory))
	r.HandlerFunc(http.MethodDelete, "/api/v1/history", a.Middleware(s.unauthorized, s.handleClearHistory))

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Detail: "not found", Kind: "not_found"})
	})
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(sw, r)
	s.log.Debug("http.request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration", time.Since(start))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("http.failed", "path", r.URL.Path, "kind", body.Kind, "error", err)
	} else {
		s.log.Info("http.rejected", "path", r.URL.Path, "status", code, "kind", body.Kind)
	}
	writeJSON(w, code, body)
}

func (s *HTTPServer) unauthorized(w http.ResponseWriter, err error) {
	code, body := classify(err)
	writeJSON(w, code, body)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func userFrom(r *http.Request) *models.User {
	if user, ok := auth.GetUserFromContext(r.Context()); ok {
		return &user
	}
	return nil
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.StatusResponse{
		Status:   "ok",
		Formulas: len(s.engine.Catalog().FormulaSlugs()),
	})
}

func (s *HTTPServer) handleSciences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Catalog().Sciences())
}

type scienceResponse struct {
	catalog.Science
	Categories []catalog.Category `json:"categories"`
}

func (s *HTTPServer) handleScience(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Catalog()
	sc, err := snap.Science(httprouter.ParamsFromContext(r.Context()).ByName("science"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cats := snap.Categories(sc.Slug)
	if cats == nil {
		cats = []catalog.Category{}
	}
	writeJSON(w, http.StatusOK, scienceResponse{Science: sc, Categories: cats})
}

type categoryResponse struct {
	catalog.Category
	Kind     string           `json:"kind"`
	Formulas []models.Formula `json:"formulas"`
}

func (s *HTTPServer) handleCategory(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Catalog()
	c, err := snap.Category(httprouter.ParamsFromContext(r.Context()).ByName("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	formulas := []models.Formula{}
	for _, f := range snap.Formulas(c.Slug) {
		formulas = append(formulas, formulaView(f))
	}
	writeJSON(w, http.StatusOK, categoryResponse{
		Category: c,
		Kind:     engine.KindFromCategory(c.Slug).String(),
		Formulas: formulas,
	})
}

func formulaView(f *catalog.Formula) models.Formula {
	vars := make([]models.Variable, len(f.Definition.Variables))
	for i, v := range f.Definition.Variables {
		vars[i] = models.Variable{Name: v.Name, Description: v.Description, Unit: v.Unit}
	}
	return models.Formula{
		Slug:      f.Slug,
		Title:     f.Title,
		Category:  f.Category,
		Formula:   f.Display,
		Content:   f.Content,
		Variables: vars,
		Targets:   f.Definition.Targets(),
	}
}

func (s *HTTPServer) handleFormula(w http.ResponseWriter, r *http.Request) {
	f, err := s.engine.Catalog().Formula(httprouter.ParamsFromContext(r.Context()).ByName("formula"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formulaView(f))
}

func (s *HTTPServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Formula = httprouter.ParamsFromContext(r.Context()).ByName("formula")

	resp, err := s.engine.Handle(r.Context(), userFrom(r), formulaRequest(&req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse(resp))
}

func (s *HTTPServer) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req models.SolveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.engine.Handle(r.Context(), nil, engine.EquationRequest{Equations: req.Equations})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, solveResponse(resp))
}

func (s *HTTPServer) handlePlot(w http.ResponseWriter, r *http.Request) {
	var req models.PlotRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.engine.Handle(r.Context(), userFrom(r), plotRequest(&req)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PlotResponse{DownloadURL: PlotDownloadURL})
}

func (s *HTTPServer) handlePlotDownload(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	f, err := s.engine.OpenPlot(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="plot.png"`)
	http.ServeContent(w, r, "plot.png", info.ModTime(), f)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			s.writeError(w, r, calculate.InvalidNumberError("limit", raw))
			return
		}
		limit = v
	}
	records, err := s.engine.History(r.Context(), userFrom(r).ID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.HistoryResponse{Records: records})
}

func (s *HTTPServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearHistory(r.Context(), userFrom(r).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
