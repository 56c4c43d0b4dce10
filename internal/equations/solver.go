// Package equations решает системы линейных уравнений, заданных свободным текстом.
package equations

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/GGmuzem/formula-engine/internal/calculate"
)

// Solution - значения неизвестных
type Solution map[string]float64

// Names возвращает имена неизвестных в алфавитном порядке
func (s Solution) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String возвращает решение в виде "x = 6, y = 4"
func (s Solution) String() string {
	parts := make([]string, 0, len(s))
	for _, name := range s.Names() {
		parts = append(parts, name+" = "+strconv.FormatFloat(s[name], 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

// ParseEquation разбирает уравнение "left = right" в выражение left - right
func ParseEquation(source string) (*calculate.Expression, error) {
	idx := strings.IndexByte(source, '=')
	if idx < 0 {
		return nil, calculate.SyntaxError(len(source), "equation has no '='")
	}
	if strings.Count(source, "=") > 1 {
		return nil, calculate.SyntaxError(idx+1+strings.IndexByte(source[idx+1:], '='), "equation has more than one '='")
	}

	left, err := calculate.Parse(source[:idx])
	if err != nil {
		return nil, err
	}
	right, err := calculate.Parse(source[idx+1:])
	if err != nil {
		return nil, shiftPos(err, idx+1)
	}
	return calculate.Subtract(left, right), nil
}

func shiftPos(err error, offset int) error {
	var calcErr *calculate.CalcError
	if errors.As(err, &calcErr) && calcErr.Pos >= 0 {
		shifted := *calcErr
		shifted.Pos += offset
		return &shifted
	}
	return err
}

// Solve решает систему уравнений. Поддерживаются уравнения, линейные по неизвестным;
// нелинейная система считается неразрешимой. Пустые строки пропускаются.
func Solve(equations []string) (Solution, error) {
	var exprs []*calculate.Expression
	for _, src := range equations {
		if strings.TrimSpace(src) == "" {
			continue
		}
		expr, err := ParseEquation(src)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 0 {
		return nil, calculate.NewCalcError(calculate.KindEmptyEquationSet, "no equations given")
	}

	rows := make([]linear, len(exprs))
	unknowns := make(map[string]struct{})
	for i, expr := range exprs {
		lin, err := linearize(expr.Root)
		if err != nil {
			return nil, err
		}
		rows[i] = lin
		for name := range lin.coef {
			unknowns[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(unknowns))
	for name := range unknowns {
		names = append(names, name)
	}
	sort.Strings(names)

	return eliminate(rows, names)
}

const (
	// tolerance - относительный порог вырожденности ведущего элемента и
	// невязки несовместной строки
	tolerance = 1e-10
	// roundoff - относительный порог, ниже которого значение считается нулём
	roundoff = 1e-12
)

// eliminate приводит расширенную матрицу к ступенчатому виду методом Гаусса
// с выбором ведущего элемента по столбцу. Каждая строка предварительно
// делится на наибольший по модулю коэффициент, поэтому пороги не зависят
// от масштаба уравнений.
func eliminate(rows []linear, names []string) (Solution, error) {
	n := len(names)
	m := make([][]float64, len(rows))
	// coefScale и rhsScale - наибольшие модули, вошедшие в коэффициенты и
	// правую часть строки; погрешность округления пропорциональна им
	coefScale := make([]float64, len(rows))
	rhsScale := make([]float64, len(rows))
	for i, r := range rows {
		m[i] = make([]float64, n+1)
		rowMax := 0.0
		for j, name := range names {
			m[i][j] = r.coef[name]
			rowMax = math.Max(rowMax, math.Abs(m[i][j]))
		}
		// f(x) = coef*x + c = 0  =>  coef*x = -c
		m[i][n] = -r.c

		coefScale[i] = 1
		if rowMax == 0 {
			// строка без неизвестных: слагаемые свёрнуты в константу,
			// их масштаб неизвестен
			rhsScale[i] = math.Max(1, math.Abs(m[i][n]))
			continue
		}
		for j := range m[i] {
			m[i][j] /= rowMax
		}
		rhsScale[i] = math.Abs(m[i][n])
	}

	pivotCols := make([]int, 0, n)
	row := 0
	for col := 0; col < n && row < len(m); col++ {
		best := row
		for i := row + 1; i < len(m); i++ {
			if math.Abs(m[i][col]) > math.Abs(m[best][col]) {
				best = i
			}
		}
		if math.Abs(m[best][col]) <= tolerance*coefScale[best] {
			continue
		}
		m[row], m[best] = m[best], m[row]
		coefScale[row], coefScale[best] = coefScale[best], coefScale[row]
		rhsScale[row], rhsScale[best] = rhsScale[best], rhsScale[row]

		p := m[row][col]
		for j := col; j <= n; j++ {
			m[row][j] /= p
		}
		coefScale[row] /= math.Abs(p)
		rhsScale[row] /= math.Abs(p)

		for i := range m {
			if i == row || m[i][col] == 0 {
				continue
			}
			f := m[i][col]
			for j := col; j <= n; j++ {
				m[i][j] -= f * m[row][j]
			}
			coefScale[i] = math.Max(coefScale[i], math.Abs(f)*coefScale[row])
			rhsScale[i] = math.Max(rhsScale[i], math.Abs(f)*rhsScale[row])
		}
		pivotCols = append(pivotCols, col)
		row++
	}

	for i := row; i < len(m); i++ {
		if math.Abs(m[i][n]) > tolerance*rhsScale[i] {
			return nil, calculate.NewCalcError(calculate.KindUnsatisfiable, "system of equations is inconsistent")
		}
	}
	if len(pivotCols) < n {
		return nil, calculate.NewCalcError(calculate.KindUnderdetermined, "not enough independent equations")
	}

	sol := make(Solution, n)
	for i, col := range pivotCols {
		v := m[i][n]
		if math.Abs(v) <= roundoff*rhsScale[i] {
			v = 0
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > calculate.MaxMagnitude {
			return nil, calculate.OverflowError()
		}
		sol[names[col]] = v
	}
	return sol, nil
}
