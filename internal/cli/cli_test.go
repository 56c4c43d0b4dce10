package cli

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/calculate"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"m=1, 2, 3", " g =9.8", "x="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"m": "1, 2, 3", "g": "9.8", "x": ""}, values)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=1"})
	assert.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	out, err := run(t, "resolve", "-f", "gravity-force", "-t", "F", "-s", "m=2", "-s", "g=9.8")
	require.NoError(t, err)
	assert.Equal(t, "F = 19.6\n", out)

	out, err = run(t, "resolve", "-f", "uniform-motion", "-t", "s", "-s", "v=1, 2, 3", "-s", "t=10")
	require.NoError(t, err)
	assert.Equal(t, "s = 10, 20, 30\n", out)

	_, err = run(t, "resolve", "-f", "ohms-law", "-t", "I", "-s", "U=1", "-s", "R=0")
	require.Error(t, err)
	assert.Equal(t, calculate.KindDivisionByZero, calculate.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "division has no meaning"))
}

func TestSolveCommand(t *testing.T) {
	out, err := run(t, "solve", "x + y = 10", "x - y = 2")
	require.NoError(t, err)
	assert.Equal(t, "x = 6, y = 4\n", out)
}

func TestEvalCommand(t *testing.T) {
	out, err := run(t, "eval", "2 + 3 * 4")
	require.NoError(t, err)
	assert.Equal(t, "14\n", out)

	_, err = run(t, "eval", "1 / 0")
	assert.Equal(t, calculate.KindDivisionByZero, calculate.KindOf(err))
}

func TestPlotCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "p.png")
	out, err := run(t, "plot", "--fn", "x^2", "--fn", "sin(x)", "--xmin", "-2", "--xmax", "2", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err)
}

func TestCatalogCommands(t *testing.T) {
	out, err := run(t, "catalog", "validate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "OK: 2 sciences"))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sciences: [{slug: a}, {slug: a}]\n"), 0644))
	_, err = run(t, "catalog", "validate", bad)
	assert.Error(t, err)

	out, err = run(t, "catalog", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ohms-law")
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--user-id", "5", "--login", "ann", "--secret", "s3cret", "--ttl", "1m")
	require.NoError(t, err)

	claims, err := auth.NewManager("s3cret", time.Minute).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, 5, claims.UserID)
	assert.Equal(t, "ann", claims.Login)

	_, err = run(t, "token", "--user-id", "0")
	assert.Error(t, err)
}
