// Package engine принимает запросы трёх видов (формула, система уравнений, график),
// выполняет их и ведёт историю вычислений пользователей.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/GGmuzem/formula-engine/internal/calculate"
	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/database"
	"github.com/GGmuzem/formula-engine/internal/equations"
	"github.com/GGmuzem/formula-engine/internal/formula"
	"github.com/GGmuzem/formula-engine/internal/plot"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

// ErrUnauthenticated - запрос требует пользователя
var ErrUnauthenticated = errors.New("authentication required")

const historyTimeout = 5 * time.Second

// FormulaURL возвращает путь формулы, сохраняемый в истории
func FormulaURL(slug string) string {
	return "/api/v1/formulas/" + slug
}

type Options struct {
	Catalog  *catalog.Store
	DB       database.Database
	Renderer *plot.Renderer
	PlotsDir string
	Logger   *slog.Logger
}

// Response - результат запроса; заполнено поле, соответствующее виду запроса
type Response struct {
	Kind     Kind
	Formula  *formula.Result
	Solution equations.Solution
	PNG      []byte
	PlotPath string
}

type Engine struct {
	catalog  *catalog.Store
	db       database.Database
	renderer *plot.Renderer
	plotsDir string
	log      *slog.Logger

	pending sync.WaitGroup
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = plot.NewRenderer(0)
	}
	return &Engine{
		catalog:  opts.Catalog,
		db:       opts.DB,
		renderer: renderer,
		plotsDir: opts.PlotsDir,
		log:      log,
	}
}

// Catalog возвращает текущий снимок каталога
func (e *Engine) Catalog() *catalog.Snapshot {
	return e.catalog.Snapshot()
}

// Handle выполняет запрос любого вида. user == nil означает анонимный запрос.
func (e *Engine) Handle(ctx context.Context, user *models.User, req Request) (*Response, error) {
	switch r := req.(type) {
	case FormulaRequest:
		res, err := e.Resolve(ctx, user, r)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: KindFormula, Formula: res}, nil
	case EquationRequest:
		sol, err := e.Solve(ctx, r)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: KindEquations, Solution: sol}, nil
	case PlotRequest:
		data, path, err := e.Plot(ctx, user, r)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: KindPlot, PNG: data, PlotPath: path}, nil
	default:
		return nil, fmt.Errorf("unsupported request %T", req)
	}
}

// Resolve вычисляет переменную формулы из каталога. Для пользователя
// успешный результат записывается в историю в фоне; ошибка записи
// только логируется.
func (e *Engine) Resolve(ctx context.Context, user *models.User, r FormulaRequest) (*formula.Result, error) {
	f, err := e.catalog.Snapshot().Formula(r.Formula)
	if err != nil {
		return nil, err
	}

	req, err := formula.ParseRequest(r.Target, r.Values, r.Precision)
	if err != nil {
		return nil, err
	}
	res, err := formula.Resolve(f.Definition, req)
	if err != nil {
		return nil, err
	}

	if user != nil && e.db != nil {
		e.appendHistory(ctx, &models.HistoryRecord{
			UserID:      user.ID,
			FormulaSlug: f.Slug,
			FormulaURL:  FormulaURL(f.Slug),
			Target:      res.Target,
			Result:      res.Format(),
		})
	}
	return res, nil
}

func (e *Engine) appendHistory(ctx context.Context, rec *models.HistoryRecord) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		defer cancel()
		if err := e.db.AppendHistory(ctx, rec); err != nil {
			e.log.Warn("history.append_failed", "user_id", rec.UserID, "formula", rec.FormulaSlug, "error", err)
		}
	}()
}

// Solve решает систему линейных уравнений
func (e *Engine) Solve(ctx context.Context, r EquationRequest) (equations.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return equations.Solve(r.Equations)
}

// Plot строит график. Для пользователя PNG дополнительно сохраняется в
// <PlotsDir>/<id>.png, заменяя предыдущий; при ошибке файл не меняется.
func (e *Engine) Plot(ctx context.Context, user *models.User, r PlotRequest) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	spec, err := plot.ParseSpec(r.Functions, r.XMin, r.XMax, r.YMin, r.YMax)
	if err != nil {
		return nil, "", err
	}
	data, err := e.renderer.Render(spec)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return data, "", nil
	}

	path := e.PlotPath(user.ID)
	if err := plot.WriteFile(path, data); err != nil {
		return nil, "", err
	}
	return data, path, nil
}

// PlotPath возвращает путь к графику пользователя
func (e *Engine) PlotPath(userID int) string {
	return filepath.Join(e.plotsDir, strconv.Itoa(userID)+".png")
}

// OpenPlot открывает последний график пользователя
func (e *Engine) OpenPlot(userID int) (*os.File, error) {
	f, err := os.Open(e.PlotPath(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("plot for user %d: %w", userID, catalog.ErrNotFound)
		}
		return nil, fmt.Errorf("error opening plot: %w", err)
	}
	return f, nil
}

// History возвращает историю пользователя, новые записи первыми
func (e *Engine) History(ctx context.Context, userID, limit int) ([]models.HistoryRecord, error) {
	if e.db == nil {
		return []models.HistoryRecord{}, nil
	}
	return e.db.ListHistory(ctx, userID, limit)
}

// ClearHistory удаляет историю пользователя. Фоновые записи завершаются
// до удаления, чтобы не появиться в истории после очистки.
func (e *Engine) ClearHistory(ctx context.Context, userID int) error {
	if e.db == nil {
		return nil
	}
	e.pending.Wait()
	return e.db.DeleteHistory(ctx, userID)
}

// Wait дожидается завершения фоновых записей истории
func (e *Engine) Wait() {
	e.pending.Wait()
}

// IsNotFound сообщает, что запрошенная запись отсутствует
func IsNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound)
}

// IsCalcError сообщает, что ошибка относится к вычислению, а не к инфраструктуре
func IsCalcError(err error) bool {
	var ce *calculate.CalcError
	return errors.As(err, &ce)
}
