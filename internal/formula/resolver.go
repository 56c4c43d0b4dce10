package formula

import (
	"sort"
	"strconv"
	"strings"

	"github.com/GGmuzem/formula-engine/internal/calculate"
)

// Result - вычисленные значения искомой переменной (одно в скалярном режиме,
// по одному на элемент пакета в пакетном) вместе с исходным запросом.
type Result struct {
	Formula string
	Target  string
	Values  []float64
	Request Request
}

// Format возвращает результат строкой: "19.6" или "10, 20, 30"
func (r *Result) Format() string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		if r.Request.Precision > 0 {
			parts[i] = strconv.FormatFloat(v, 'f', r.Request.Precision, 64)
		} else {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve вычисляет req.Target по форме формулы def. Вычисление выполняется целиком
// или не выполняется вовсе: первая ошибка любого элемента пакета отменяет весь запрос.
func Resolve(def *Definition, req Request) (*Result, error) {
	form, ok := def.Form(req.Target)
	if !ok {
		return nil, calculate.NoFormForVariableError(def.Slug, req.Target)
	}

	needed := make([]string, 0)
	for _, name := range form.Expr.Variables() {
		if !def.Declares(name) {
			// константа, проверена при загрузке формулы
			continue
		}
		if _, ok := req.Values[name]; !ok {
			return nil, calculate.MissingVariableError(name)
		}
		needed = append(needed, name)
	}

	size, err := batchSize(req)
	if err != nil {
		return nil, err
	}

	bindings := make(calculate.Bindings, len(needed))
	values := make([]float64, size)
	for i := 0; i < size; i++ {
		for _, name := range needed {
			bindings[name] = req.Values[name].At(i)
		}
		v, err := form.Expr.Eval(bindings)
		if err != nil {
			return nil, err
		}
		values[i] = round(v, req.Precision)
	}

	return &Result{Formula: def.Slug, Target: req.Target, Values: values, Request: req}, nil
}

// batchSize возвращает длину пакета: общую длину всех последовательностей или 1
func batchSize(req Request) (int, error) {
	names := make([]string, 0, len(req.Values))
	for name, v := range req.Values {
		if v.IsBatch() && name != req.Target {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	size := 0
	for _, name := range names {
		n := req.Values[name].Len()
		if n == 0 {
			return 0, calculate.MissingVariableError(name)
		}
		if size == 0 {
			size = n
			continue
		}
		if n != size {
			return 0, calculate.BatchSizeMismatchError(name, size, n)
		}
	}
	if size == 0 {
		return 1, nil
	}
	return size, nil
}

func round(v float64, precision int) float64 {
	if precision <= 0 {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', precision, 64), 64)
	if err != nil {
		return v
	}
	return r
}
