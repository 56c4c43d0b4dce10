package formula

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/GGmuzem/formula-engine/internal/calculate"
)

// MaxPrecision - максимальное число знаков после точки при округлении
const MaxPrecision = 15

// Value - скалярное значение или последовательность значений (пакетный режим)
type Value struct {
	values []float64
	batch  bool
}

func Scalar(v float64) Value {
	return Value{values: []float64{v}}
}

func Batch(vs ...float64) Value {
	return Value{values: append([]float64(nil), vs...), batch: true}
}

func (v Value) IsBatch() bool { return v.batch }
func (v Value) Len() int      { return len(v.values) }

// At возвращает i-й элемент последовательности; скаляр распространяется на весь пакет
func (v Value) At(i int) float64 {
	if !v.batch {
		return v.values[0]
	}
	return v.values[i]
}

// Request - запрос на вычисление переменной Target.
// Precision > 0 задаёт число знаков после точки для округления результата.
type Request struct {
	Target    string
	Values    map[string]Value
	Precision int
}

// ParseValue разбирает значение из формы: "9.8" - скаляр, "1, 2, 3" - последовательность.
// Пустая строка означает отсутствие значения (ok == false).
func ParseValue(name, raw string) (value Value, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Value{}, false, nil
	}
	if !strings.Contains(raw, ",") {
		v, err := parseNumber(name, raw)
		if err != nil {
			return Value{}, false, err
		}
		return Scalar(v), true, nil
	}

	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := parseNumber(name, strings.TrimSpace(part))
		if err != nil {
			return Value{}, false, err
		}
		values = append(values, v)
	}
	return Batch(values...), true, nil
}

func parseNumber(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, calculate.InvalidNumberError(name, s)
	}
	return v, nil
}

// ParseRequest собирает запрос из сырых строковых значений формы.
// Пустые значения пропускаются: их отсутствие обнаружит Resolve, если они нужны форме.
func ParseRequest(target string, raw map[string]string, precision int) (Request, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	req := Request{Target: target, Values: make(map[string]Value, len(raw)), Precision: clampPrecision(precision)}
	for _, name := range names {
		if name == target {
			continue
		}
		v, ok, err := ParseValue(name, raw[name])
		if err != nil {
			return Request{}, err
		}
		if ok {
			req.Values[name] = v
		}
	}
	return req, nil
}

func clampPrecision(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxPrecision {
		return MaxPrecision
	}
	return p
}
