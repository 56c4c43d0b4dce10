package engine

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GGmuzem/formula-engine/internal/calculate"
	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/database"
	"github.com/GGmuzem/formula-engine/internal/plot"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

type failingDB struct {
	database.MemoryDB
}

func (*failingDB) AppendHistory(context.Context, *models.HistoryRecord) error {
	return errors.New("disk full")
}

func newEngine(t *testing.T, db database.Database) *Engine {
	t.Helper()
	snap, err := catalog.Default()
	require.NoError(t, err)
	return New(Options{
		Catalog:  catalog.NewStore(snap),
		DB:       db,
		Renderer: plot.NewRenderer(101),
		PlotsDir: filepath.Join(t.TempDir(), "plots"),
	})
}

func TestKindFromCategory(t *testing.T) {
	assert.Equal(t, KindPlot, KindFromCategory("plots"))
	assert.Equal(t, KindEquations, KindFromCategory("equations"))
	assert.Equal(t, KindFormula, KindFromCategory("mechanics"))
	assert.Equal(t, "plot", KindPlot.String())
}

func TestResolveRecordsHistoryForUser(t *testing.T) {
	db := database.NewMemoryDB()
	e := newEngine(t, db)
	ctx := context.Background()

	resp, err := e.Handle(ctx, &models.User{ID: 5}, FormulaRequest{
		Formula: "gravity-force",
		Target:  "F",
		Values:  map[string]string{"m": "1, 2, 3", "g": "10", "F": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, KindFormula, resp.Kind)
	assert.Equal(t, "10, 20, 30", resp.Formula.Format())

	_, err = e.Handle(ctx, nil, FormulaRequest{
		Formula: "gravity-force",
		Target:  "F",
		Values:  map[string]string{"m": "2", "g": "9.8"},
	})
	require.NoError(t, err)

	e.Wait()
	records, err := e.History(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "gravity-force", records[0].FormulaSlug)
	assert.Equal(t, "/api/v1/formulas/gravity-force", records[0].FormulaURL)
	assert.Equal(t, "F", records[0].Target)
	assert.Equal(t, "10, 20, 30", records[0].Result)
}

func TestClearHistory(t *testing.T) {
	e := newEngine(t, database.NewMemoryDB())
	ctx := context.Background()

	for _, user := range []int{5, 6} {
		_, err := e.Handle(ctx, &models.User{ID: user}, FormulaRequest{
			Formula: "ohms-law",
			Target:  "U",
			Values:  map[string]string{"I": "2", "R": "3"},
		})
		require.NoError(t, err)
	}

	require.NoError(t, e.ClearHistory(ctx, 5))
	records, err := e.History(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = e.History(ctx, 6, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.NoError(t, newEngine(t, nil).ClearHistory(ctx, 5))
}

func TestHandleDispatchesByRequestKind(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	for _, req := range []Request{
		FormulaRequest{Formula: "ohms-law", Target: "U", Values: map[string]string{"I": "2", "R": "3"}},
		EquationRequest{Equations: []string{"2*x = 8"}},
		PlotRequest{Functions: []string{"x"}, XMin: "0", XMax: "1"},
	} {
		resp, err := e.Handle(ctx, nil, req)
		require.NoError(t, err, req.Kind().String())
		assert.Equal(t, req.Kind(), resp.Kind)
	}
}

func TestFailedResolveDoesNotRecordHistory(t *testing.T) {
	db := database.NewMemoryDB()
	e := newEngine(t, db)
	ctx := context.Background()

	_, err := e.Resolve(ctx, &models.User{ID: 5}, FormulaRequest{
		Formula: "ohms-law",
		Target:  "I",
		Values:  map[string]string{"U": "12", "R": "0"},
	})
	assert.Equal(t, calculate.KindDivisionByZero, calculate.KindOf(err))

	e.Wait()
	records, err := e.History(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryFailureDoesNotFailRequest(t *testing.T) {
	e := newEngine(t, &failingDB{})
	var logs bytes.Buffer
	e.log = slog.New(slog.NewTextHandler(&logs, nil))

	res, err := e.Resolve(context.Background(), &models.User{ID: 1}, FormulaRequest{
		Formula: "ohms-law",
		Target:  "U",
		Values:  map[string]string{"I": "2", "R": "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "6", res.Format())

	e.Wait()
	assert.Contains(t, logs.String(), "history.append_failed")
}

func TestResolveUnknownFormula(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.Resolve(context.Background(), nil, FormulaRequest{Formula: "nope", Target: "x"})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCalcError(err))
}

func TestResolveRejectsText(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.Resolve(context.Background(), nil, FormulaRequest{
		Formula: "gravity-force",
		Target:  "F",
		Values:  map[string]string{"m": "heavy", "g": "9.8"},
	})
	assert.Equal(t, calculate.KindInvalidNumber, calculate.KindOf(err))
	assert.Equal(t, calculate.CategoryTypeMismatch, calculate.CategoryOf(err))
}

func TestSolve(t *testing.T) {
	e := newEngine(t, nil)
	resp, err := e.Handle(context.Background(), nil, EquationRequest{Equations: []string{"x + y = 10", "x - y = 2"}})
	require.NoError(t, err)
	assert.Equal(t, "x = 6, y = 4", resp.Solution.String())
}

func TestPlotSavesPerUser(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	resp, err := e.Handle(ctx, &models.User{ID: 42}, PlotRequest{Functions: []string{"x^2", "sin(x)"}, XMin: "-2", XMax: "2"})
	require.NoError(t, err)
	assert.Equal(t, e.PlotPath(42), resp.PlotPath)

	f, err := e.OpenPlot(42)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, resp.PNG, data)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	// неудачный график не заменяет предыдущий
	_, err = e.Handle(ctx, &models.User{ID: 42}, PlotRequest{Functions: []string{"1/x"}, XMin: "-1", XMax: "1"})
	assert.Equal(t, calculate.KindDivisionByZero, calculate.KindOf(err))
	again, err := os.ReadFile(e.PlotPath(42))
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestPlotAnonymousIsNotSaved(t *testing.T) {
	e := newEngine(t, nil)
	data, path, err := e.Plot(context.Background(), nil, PlotRequest{Functions: []string{"x"}, XMin: "0", XMax: "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Empty(t, path)

	_, err = e.OpenPlot(1)
	assert.True(t, IsNotFound(err))
}

func TestPlotTooManyFunctions(t *testing.T) {
	e := newEngine(t, nil)
	_, _, err := e.Plot(context.Background(), &models.User{ID: 1}, PlotRequest{
		Functions: []string{"x", "x", "x", "x", "x"}, XMin: "0", XMax: "1",
	})
	assert.Equal(t, calculate.KindTooManyFunctions, calculate.KindOf(err))
	assert.NoFileExists(t, e.PlotPath(1))
}
