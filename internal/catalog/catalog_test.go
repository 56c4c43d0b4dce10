package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GGmuzem/formula-engine/internal/formula"
)

const smallCatalog = `
sciences:
  - {slug: physics, title: Physics}
categories:
  - {slug: mechanics, title: Mechanics, science: physics}
formulas:
  - slug: gravity-force
    title: Gravity
    category: mechanics
    formula: F = m * g
    variables:
      - {name: F}
      - {name: m}
      - {name: g}
    forms:
      - {target: F, expr: m * g}
      - {target: m, expr: F / g}
      - {target: g, expr: F / m}
`

func TestDefaultCatalogLoads(t *testing.T) {
	snap, err := Default()
	require.NoError(t, err)

	assert.Len(t, snap.Sciences(), 2)

	plots, err := snap.Category("plots")
	require.NoError(t, err)
	assert.True(t, plots.Special)

	f, err := snap.Formula("gravity-force")
	require.NoError(t, err)
	assert.Equal(t, "mechanics", f.Category)
	assert.Equal(t, []string{"F", "m", "g"}, f.Definition.Targets())

	res, err := formula.Resolve(f.Definition, formula.Request{
		Target: "F",
		Values: map[string]formula.Value{"m": formula.Scalar(2), "g": formula.Scalar(9.8)},
	})
	require.NoError(t, err)
	assert.InDelta(t, 19.6, res.Values[0], 1e-12)
}

func TestLookups(t *testing.T) {
	snap, err := Load([]byte(smallCatalog))
	require.NoError(t, err)

	sc, err := snap.Science("physics")
	require.NoError(t, err)
	assert.Equal(t, "Physics", sc.Title)

	cats := snap.Categories("physics")
	require.Len(t, cats, 1)
	assert.Equal(t, "mechanics", cats[0].Slug)
	assert.Empty(t, snap.Categories("chemistry"))

	formulas := snap.Formulas("mechanics")
	require.Len(t, formulas, 1)
	assert.Equal(t, "F = m * g", formulas[0].Display)
	assert.Equal(t, []string{"gravity-force"}, snap.FormulaSlugs())

	_, err = snap.Science("chemistry")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = snap.Category("optics")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = snap.Formula("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "sciences: [\n"},
		{"unknown field", "sciences:\n  - {slug: a, colour: red}\n"},
		{"duplicate science", "sciences:\n  - {slug: a}\n  - {slug: a}\n"},
		{"unknown science", "categories:\n  - {slug: c, science: z}\n"},
		{"unknown category", "formulas:\n  - {slug: f, category: c}\n"},
		{
			"formula in special category",
			"sciences: [{slug: s}]\ncategories: [{slug: plots, science: s, special: true}]\n" +
				"formulas:\n  - slug: f\n    category: plots\n    variables: [{name: x}]\n    forms: [{target: x, expr: '1'}]\n",
		},
		{
			"uncovered variable",
			"sciences: [{slug: s}]\ncategories: [{slug: c, science: s}]\n" +
				"formulas:\n  - slug: f\n    category: c\n    variables: [{name: x}, {name: y}]\n    forms: [{target: x, expr: y}]\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load([]byte(test.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadWrapsDefinitionErrors(t *testing.T) {
	_, err := Load([]byte("sciences: [{slug: s}]\ncategories: [{slug: c, science: s}]\n" +
		"formulas:\n  - slug: f\n    category: c\n    variables: [{name: x}]\n    forms: [{target: x, expr: 'x + 1'}]\n"))
	assert.ErrorIs(t, err, formula.ErrInvalidDefinition)
}

func TestStoreReloadKeepsSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0644))

	def, err := Default()
	require.NoError(t, err)
	store := NewStore(def)

	require.NoError(t, store.Reload(path))
	assert.Equal(t, []string{"gravity-force"}, store.Snapshot().FormulaSlugs())

	require.NoError(t, os.WriteFile(path, []byte("sciences: [\n"), 0644))
	assert.Error(t, store.Reload(path))
	assert.Equal(t, []string{"gravity-force"}, store.Snapshot().FormulaSlugs())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0644))

	snap, err := LoadFile(path)
	require.NoError(t, err)
	store := NewStore(snap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, store.Watch(ctx, path, log))

	def, err := os.ReadFile("default.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, def, 0644))

	assert.Eventually(t, func() bool {
		_, err := store.Snapshot().Formula("ohms-law")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}
