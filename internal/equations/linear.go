package equations

import (
	"math"

	"github.com/GGmuzem/formula-engine/internal/calculate"
)

// linear - выражение вида sum(coef[x] * x) + c
type linear struct {
	coef map[string]float64
	c    float64
}

func constant(c float64) linear {
	return linear{c: c}
}

func (l linear) isConst() bool {
	for _, v := range l.coef {
		if v != 0 {
			return false
		}
	}
	return true
}

func (l linear) scale(k float64) (linear, error) {
	out := linear{coef: make(map[string]float64, len(l.coef)), c: l.c * k}
	for name, v := range l.coef {
		out.coef[name] = v * k
	}
	return out, out.check()
}

func (l linear) add(r linear, sign float64) (linear, error) {
	out := linear{coef: make(map[string]float64, len(l.coef)+len(r.coef)), c: l.c + sign*r.c}
	for name, v := range l.coef {
		out.coef[name] = v
	}
	for name, v := range r.coef {
		out.coef[name] += sign * v
	}
	return out, out.check()
}

func (l linear) check() error {
	if !finite(l.c) {
		return calculate.OverflowError()
	}
	for _, v := range l.coef {
		if !finite(v) {
			return calculate.OverflowError()
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= calculate.MaxMagnitude
}

func nonlinear() error {
	return calculate.NewCalcError(calculate.KindUnsatisfiable, "equation is not linear in its unknowns")
}

// fold вычисляет узел, все операнды которого уже свёрнуты в числа
func fold(n calculate.Node) (linear, error) {
	v, err := calculate.Eval(n, nil)
	if err != nil {
		return linear{}, err
	}
	return constant(v), nil
}

// linearize приводит выражение к линейному виду. Константные подвыражения
// вычисляются тем же вычислителем, поэтому деление на ноль и выход из области
// определения обнаруживаются так же, как при обычном вычислении.
func linearize(n calculate.Node) (linear, error) {
	switch n := n.(type) {
	case calculate.Number:
		return constant(n.Value), nil

	case calculate.Variable:
		if calculate.IsConstant(n.Name) {
			return fold(n)
		}
		return linear{coef: map[string]float64{n.Name: 1}}, nil

	case calculate.UnaryOp:
		operand, err := linearize(n.Operand)
		if err != nil {
			return linear{}, err
		}
		if n.Op == '-' {
			return operand.scale(-1)
		}
		return operand, nil

	case calculate.BinaryOp:
		left, err := linearize(n.Left)
		if err != nil {
			return linear{}, err
		}
		right, err := linearize(n.Right)
		if err != nil {
			return linear{}, err
		}
		return combine(n.Op, left, right)

	case calculate.Call:
		arg, err := linearize(n.Args[0])
		if err != nil {
			return linear{}, err
		}
		if !arg.isConst() {
			return linear{}, nonlinear()
		}
		return fold(calculate.Call{Func: n.Func, Args: []calculate.Node{calculate.Number{Value: arg.c}}})
	}
	return linear{}, calculate.NewCalcError(calculate.KindSyntax, "unsupported expression node")
}

func combine(op byte, left, right linear) (linear, error) {
	switch op {
	case '+':
		return left.add(right, 1)
	case '-':
		return left.add(right, -1)
	case '*':
		if left.isConst() {
			return right.scale(left.c)
		}
		if right.isConst() {
			return left.scale(right.c)
		}
		return linear{}, nonlinear()
	case '/':
		if !right.isConst() {
			return linear{}, nonlinear()
		}
		if right.c == 0 {
			return linear{}, calculate.DivisionByZeroError()
		}
		return left.scale(1 / right.c)
	case '%', '^':
		if left.isConst() && right.isConst() {
			return fold(calculate.BinaryOp{Op: op, Left: calculate.Number{Value: left.c}, Right: calculate.Number{Value: right.c}})
		}
		if op == '^' && right.isConst() && right.c == 1 {
			return left, nil
		}
		return linear{}, nonlinear()
	}
	return linear{}, calculate.NewCalcError(calculate.KindSyntax, "unsupported operator")
}
