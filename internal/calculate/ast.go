package calculate

import (
	"sort"
	"strconv"
	"strings"
)

// Node - узел дерева выражения. Набор узлов закрыт: число, переменная,
// унарная и бинарная операции, вызов функции из белого списка.
type Node interface {
	String() string
	node()
}

type Number struct {
	Value float64
}

type Variable struct {
	Name string
}

type UnaryOp struct {
	Op      byte
	Operand Node
}

type BinaryOp struct {
	Op          byte
	Left, Right Node
}

type Call struct {
	Func string
	Args []Node
}

func (Number) node()   {}
func (Variable) node() {}
func (UnaryOp) node()  {}
func (BinaryOp) node() {}
func (Call) node()     {}

func (n Number) String() string   { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (v Variable) String() string { return v.Name }

func (u UnaryOp) String() string {
	return "(" + string(u.Op) + u.Operand.String() + ")"
}

func (b BinaryOp) String() string {
	return "(" + b.Left.String() + " " + string(b.Op) + " " + b.Right.String() + ")"
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Func + "(" + strings.Join(args, ", ") + ")"
}

// Expression - разобранное выражение. Строится один раз и может вычисляться
// многократно с разными привязками, в том числе конкурентно.
type Expression struct {
	Source string
	Root   Node
}

func (e *Expression) String() string {
	return e.Root.String()
}

// Variables возвращает отсортированный список имён, на которые ссылается выражение
// (включая имена констант, если они используются).
func (e *Expression) Variables() []string {
	seen := make(map[string]struct{})
	collectVariables(e.Root, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectVariables(n Node, seen map[string]struct{}) {
	switch n := n.(type) {
	case Variable:
		seen[n.Name] = struct{}{}
	case UnaryOp:
		collectVariables(n.Operand, seen)
	case BinaryOp:
		collectVariables(n.Left, seen)
		collectVariables(n.Right, seen)
	case Call:
		for _, a := range n.Args {
			collectVariables(a, seen)
		}
	}
}

// Subtract строит выражение left - right; используется для приведения
// уравнения к виду f = 0.
func Subtract(left, right *Expression) *Expression {
	return &Expression{
		Source: left.Source + " = " + right.Source,
		Root:   BinaryOp{Op: '-', Left: left.Root, Right: right.Root},
	}
}
