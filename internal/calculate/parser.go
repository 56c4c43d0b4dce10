package calculate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MaxSourceLength - максимальная длина исходной строки выражения в байтах
	MaxSourceLength = 4096
	// MaxDepth - максимальная вложенность скобок, вызовов и унарных операций
	MaxDepth = 200
)

// arity - белый список функций и число их аргументов
var arity = map[string]int{
	"sin":   1,
	"cos":   1,
	"tan":   1,
	"log":   1,
	"log10": 1,
	"sqrt":  1,
	"abs":   1,
	"exp":   1,
}

// IsFunction сообщает, входит ли имя в белый список функций
func IsFunction(name string) bool {
	_, ok := arity[name]
	return ok
}

type parser struct {
	tokens []token
	pos    int
	depth  int
}

// Parse разбирает строку в дерево выражения. Грамматика (по возрастанию приоритета):
//
//	+ -        бинарные, левоассоциативные
//	* / %      левоассоциативные
//	- +        унарные
//	^ (**)     правоассоциативная степень
//	атом       число, переменная, вызов функции, выражение в скобках
func Parse(source string) (*Expression, error) {
	if len(source) > MaxSourceLength {
		return nil, SyntaxError(MaxSourceLength, "expression is too long")
	}
	if strings.TrimSpace(source) == "" {
		return nil, SyntaxError(0, "empty expression")
	}

	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokRParen {
			return nil, SyntaxError(t.pos, "unbalanced parenthesis")
		}
		return nil, SyntaxError(t.pos, "unexpected "+t.describe())
	}
	return &Expression{Source: source, Root: root}, nil
}

// MustParse разбирает выражение и паникует при ошибке; для констант в коде и тестах
func MustParse(source string) *Expression {
	expr, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return expr
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > MaxDepth {
		return SyntaxError(pos, "expression is nested too deeply")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) isOp(ops string) (byte, bool) {
	t := p.peek()
	if t.kind == tokOp && strings.IndexByte(ops, t.op) >= 0 {
		return t.op, true
	}
	return 0, false
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*/%")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	op, ok := p.isOp("+-")
	if !ok {
		return p.parsePower()
	}
	t := p.next()
	if err := p.enter(t.pos); err != nil {
		return nil, err
	}
	defer p.leave()

	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return UnaryOp{Op: op, Operand: operand}, nil
}

func (p *parser) parsePower() (Node, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if _, ok := p.isOp("^"); !ok {
		return base, nil
	}
	t := p.next()
	if err := p.enter(t.pos); err != nil {
		return nil, err
	}
	defer p.leave()

	// показатель разбирается через parseUnary: 2^-1 и 2^3^2 = 2^(3^2)
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return BinaryOp{Op: '^', Left: base, Right: exponent}, nil
}

func (p *parser) parseAtom() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			switch {
			case errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0):
				return nil, OverflowError()
			case !errors.Is(err, strconv.ErrRange):
				return nil, SyntaxError(t.pos, fmt.Sprintf("malformed number %s", t.text))
			}
			// исчезновение порядка: значение округляется до нуля
		}
		return Number{Value: v}, nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if IsFunction(t.text) {
			return nil, SyntaxError(t.pos, fmt.Sprintf("function %s must be called with an argument", t.text))
		}
		return Variable{Name: t.text}, nil

	case tokLParen:
		if err := p.enter(t.pos); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, SyntaxError(closing.pos, "unbalanced parenthesis")
		}
		return inner, nil

	case tokEOF:
		return nil, SyntaxError(t.pos, "unexpected end of expression")
	}
	return nil, SyntaxError(t.pos, "unexpected "+t.describe())
}

func (p *parser) parseCall(name token) (Node, error) {
	want, ok := arity[name.text]
	if !ok {
		return nil, UnknownIdentifierError(name.pos, name.text)
	}
	open := p.next()
	if err := p.enter(open.pos); err != nil {
		return nil, err
	}
	defer p.leave()

	var args []Node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokRParen {
		return nil, SyntaxError(closing.pos, "unbalanced parenthesis")
	}
	if len(args) != want {
		return nil, SyntaxError(name.pos,
			fmt.Sprintf("function %s expects %d argument(s), got %d", name.text, want, len(args)))
	}
	return Call{Func: name.text, Args: args}, nil
}
