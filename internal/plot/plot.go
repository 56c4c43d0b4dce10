// Package plot строит графики функций одной переменной x и сохраняет их в PNG.
package plot

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/GGmuzem/formula-engine/internal/calculate"
)

const (
	// MaxFunctions - максимальное число функций на одном графике
	MaxFunctions = 4
	// DefaultSamples - число точек на функцию; нечётное, чтобы середина
	// симметричного диапазона попадала в сетку
	DefaultSamples = 801
	MinSamples     = 2
	MaxSamples     = 5000

	// Variable - имя аргумента функций
	Variable = "x"
)

type Range struct {
	Min, Max float64
}

// Spec - описание графика. Y == nil означает автоматический диапазон по данным.
type Spec struct {
	Functions []string
	X         Range
	Y         *Range
}

// Curve - значения одной функции в точках сетки
type Curve struct {
	Source string
	Points plotter.XYs
}

// Renderer строит графики. Нулевое значение не используется, см. NewRenderer.
type Renderer struct {
	samples       int
	width, height vg.Length
}

// NewRenderer создаёт рендерер с заданным числом точек на функцию
// (значение вне [MinSamples, MaxSamples] приводится к границе, 0 - значение по умолчанию)
func NewRenderer(samples int) *Renderer {
	switch {
	case samples == 0:
		samples = DefaultSamples
	case samples < MinSamples:
		samples = MinSamples
	case samples > MaxSamples:
		samples = MaxSamples
	}
	return &Renderer{samples: samples, width: 8 * vg.Inch, height: 6 * vg.Inch}
}

// ParseSpec собирает описание графика из сырых значений формы. Пустые функции
// пропускаются; границы y должны быть заданы обе или ни одной.
func ParseSpec(functions []string, xmin, xmax, ymin, ymax string) (Spec, error) {
	spec := Spec{}
	for _, f := range functions {
		if strings.TrimSpace(f) != "" {
			spec.Functions = append(spec.Functions, strings.TrimSpace(f))
		}
	}

	var err error
	if spec.X, err = parseRange("xmin", xmin, "xmax", xmax); err != nil {
		return Spec{}, err
	}

	ymin, ymax = strings.TrimSpace(ymin), strings.TrimSpace(ymax)
	switch {
	case ymin == "" && ymax == "":
	case ymin == "" || ymax == "":
		return Spec{}, calculate.NewCalcError(calculate.KindInvalidRange, "y range must have both bounds or none")
	default:
		y, err := parseRange("ymin", ymin, "ymax", ymax)
		if err != nil {
			return Spec{}, err
		}
		spec.Y = &y
	}
	return spec, nil
}

func parseRange(loName, loRaw, hiName, hiRaw string) (Range, error) {
	lo, err := parseBound(loName, loRaw)
	if err != nil {
		return Range{}, err
	}
	hi, err := parseBound(hiName, hiRaw)
	if err != nil {
		return Range{}, err
	}
	return Range{Min: lo, Max: hi}, nil
}

func parseBound(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, calculate.MissingVariableError(name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, calculate.InvalidNumberError(name, raw)
	}
	return v, nil
}

// Validate проверяет набор функций и диапазоны
func (s Spec) Validate() error {
	if len(s.Functions) == 0 {
		return calculate.NewCalcError(calculate.KindEmptyFunctionSet, "no functions to plot")
	}
	if len(s.Functions) > MaxFunctions {
		return calculate.NewCalcError(calculate.KindTooManyFunctions,
			fmt.Sprintf("at most %d functions can be plotted, got %d", MaxFunctions, len(s.Functions)))
	}
	if !validRange(s.X) {
		return calculate.NewCalcError(calculate.KindInvalidRange, "x min must be less than x max")
	}
	if s.Y != nil && !validRange(*s.Y) {
		return calculate.NewCalcError(calculate.KindInvalidRange, "y min must be less than y max")
	}
	return nil
}

func validRange(r Range) bool {
	for _, v := range []float64{r.Min, r.Max} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > calculate.MaxMagnitude {
			return false
		}
	}
	return r.Min < r.Max
}

// Grid возвращает равномерную сетку по x. Если диапазон содержит 0,
// ближайший к нулю узел заменяется точным нулём.
func (r *Renderer) Grid(x Range) []float64 {
	xs := make([]float64, r.samples)
	step := (x.Max - x.Min) / float64(r.samples-1)
	for i := range xs {
		xs[i] = x.Min + step*float64(i)
	}
	xs[len(xs)-1] = x.Max

	if x.Min < 0 && x.Max > 0 {
		i := int(math.Round(-x.Min / step))
		if i > 0 && i < len(xs)-1 {
			xs[i] = 0
		}
	}
	return xs
}

// Sample разбирает и вычисляет все функции на сетке. Любая ошибка в любой точке
// прерывает построение целиком; точки не пропускаются.
func (r *Renderer) Sample(spec Spec) ([]Curve, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	exprs := make([]*calculate.Expression, len(spec.Functions))
	for i, src := range spec.Functions {
		expr, err := calculate.Parse(src)
		if err != nil {
			return nil, err
		}
		exprs[i] = expr
	}

	xs := r.Grid(spec.X)
	curves := make([]Curve, len(exprs))
	bindings := calculate.Bindings{}
	for i, expr := range exprs {
		points := make(plotter.XYs, len(xs))
		for j, x := range xs {
			bindings[Variable] = x
			y, err := expr.Eval(bindings)
			if err != nil {
				return nil, err
			}
			points[j].X, points[j].Y = x, y
		}
		curves[i] = Curve{Source: spec.Functions[i], Points: points}
	}
	return curves, nil
}

// autoRange вычисляет диапазон y по данным с запасом 5%
func autoRange(curves []Curve) Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range curves {
		for _, p := range c.Points {
			lo = math.Min(lo, p.Y)
			hi = math.Max(hi, p.Y)
		}
	}
	span := hi - lo
	if span == 0 {
		return Range{Min: lo - 1, Max: hi + 1}
	}
	return Range{Min: lo - span*0.05, Max: hi + span*0.05}
}

// Render строит график и возвращает PNG
func (r *Renderer) Render(spec Spec) ([]byte, error) {
	curves, err := r.Sample(spec)
	if err != nil {
		return nil, err
	}

	y := autoRange(curves)
	if spec.Y != nil {
		y = *spec.Y
	}

	p := gonumplot.New()
	p.X.Label.Text = Variable
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	axis := color.Gray{Y: 96}
	if y.Min < 0 && y.Max > 0 {
		if err := addAxisLine(p, plotter.XYs{{X: spec.X.Min, Y: 0}, {X: spec.X.Max, Y: 0}}, axis); err != nil {
			return nil, err
		}
	}
	if spec.X.Min < 0 && spec.X.Max > 0 {
		if err := addAxisLine(p, plotter.XYs{{X: 0, Y: y.Min}, {X: 0, Y: y.Max}}, axis); err != nil {
			return nil, err
		}
	}

	for i, c := range curves {
		line, err := plotter.NewLine(c.Points)
		if err != nil {
			return nil, fmt.Errorf("building curve %q: %w", c.Source, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add("y = "+c.Source, line)
	}
	p.Legend.Top = true

	// диапазоны задаются после Add: Add расширяет их по данным
	p.X.Min, p.X.Max = spec.X.Min, spec.X.Max
	p.Y.Min, p.Y.Max = y.Min, y.Max

	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return nil, fmt.Errorf("creating png canvas: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func addAxisLine(p *gonumplot.Plot, pts plotter.XYs, c color.Color) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building axis: %w", err)
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(0.75)
	p.Add(line)
	return nil
}

// Save строит график и атомарно записывает его в path.
// Файл записывается только после успешного вычисления всех функций.
func (r *Renderer) Save(spec Spec, path string) error {
	data, err := r.Render(spec)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile записывает данные через временный файл и переименование
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating plots directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".plot-*.png")
	if err != nil {
		return fmt.Errorf("error creating temp plot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing plot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing plot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error saving plot: %w", err)
	}
	return nil
}
