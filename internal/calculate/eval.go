package calculate

import (
	"fmt"
	"math"
	"strconv"
)

// MaxMagnitude - предельная абсолютная величина любого промежуточного результата
const MaxMagnitude = 1e300

// Bindings - значения переменных для одного вычисления
type Bindings map[string]float64

// constants используются, если имя не привязано явно
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// IsConstant сообщает, является ли имя встроенной константой
func IsConstant(name string) bool {
	_, ok := constants[name]
	return ok
}

// Eval вычисляет выражение с заданными привязками
func (e *Expression) Eval(bindings Bindings) (float64, error) {
	return Eval(e.Root, bindings)
}

// Eval рекурсивно вычисляет узел. Дерево не изменяется.
func Eval(n Node, bindings Bindings) (float64, error) {
	switch n := n.(type) {
	case Number:
		return checked(n.Value)

	case Variable:
		if v, ok := bindings[n.Name]; ok {
			return checked(v)
		}
		if v, ok := constants[n.Name]; ok {
			return v, nil
		}
		return 0, UnboundVariableError(n.Name)

	case UnaryOp:
		v, err := Eval(n.Operand, bindings)
		if err != nil {
			return 0, err
		}
		if n.Op == '-' {
			return -v, nil
		}
		return v, nil

	case BinaryOp:
		left, err := Eval(n.Left, bindings)
		if err != nil {
			return 0, err
		}
		right, err := Eval(n.Right, bindings)
		if err != nil {
			return 0, err
		}
		return applyBinary(n.Op, left, right)

	case Call:
		// арность проверена при разборе
		arg, err := Eval(n.Args[0], bindings)
		if err != nil {
			return 0, err
		}
		return applyFunc(n.Func, arg)
	}
	return 0, NewCalcError(KindSyntax, fmt.Sprintf("unsupported node %T", n))
}

func applyBinary(op byte, left, right float64) (float64, error) {
	switch op {
	case '+':
		return checked(left + right)
	case '-':
		return checked(left - right)
	case '*':
		return checked(left * right)
	case '/':
		if right == 0 {
			return 0, DivisionByZeroError()
		}
		return checked(left / right)
	case '%':
		if right == 0 {
			return 0, DivisionByZeroError()
		}
		return checked(math.Mod(left, right))
	case '^':
		return power(left, right)
	}
	return 0, NewCalcError(KindSyntax, fmt.Sprintf("unsupported operator %q", string(op)))
}

func power(base, exponent float64) (float64, error) {
	if base == 0 && exponent < 0 {
		return 0, DivisionByZeroError()
	}
	if base < 0 && exponent != math.Trunc(exponent) {
		return 0, DomainError("negative base with non-integer exponent")
	}
	return checked(math.Pow(base, exponent))
}

func applyFunc(name string, x float64) (float64, error) {
	switch name {
	case "sin":
		return checked(math.Sin(x))
	case "cos":
		return checked(math.Cos(x))
	case "tan":
		return checked(math.Tan(x))
	case "log":
		if x <= 0 {
			return 0, DomainError("log of a non-positive value")
		}
		return checked(math.Log(x))
	case "log10":
		if x <= 0 {
			return 0, DomainError("log10 of a non-positive value")
		}
		return checked(math.Log10(x))
	case "sqrt":
		if x < 0 {
			return 0, DomainError("sqrt of a negative value")
		}
		return checked(math.Sqrt(x))
	case "abs":
		return math.Abs(x), nil
	case "exp":
		return checked(math.Exp(x))
	}
	return 0, UnknownIdentifierError(-1, name)
}

// checked отсекает нечисловые и слишком большие значения
func checked(v float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, DomainError("result is not a real number")
	}
	if math.IsInf(v, 0) || math.Abs(v) > MaxMagnitude {
		return 0, OverflowError()
	}
	return v, nil
}

// Evaluate разбирает и вычисляет выражение без переменных, возвращая результат строкой
func Evaluate(expression string) (string, error) {
	expr, err := Parse(expression)
	if err != nil {
		return "", err
	}
	result, err := expr.Eval(nil)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(result, 'f', -1, 64), nil
}
