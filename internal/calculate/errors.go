package calculate

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку обработки выражения
type Kind int

const (
	KindUnknown Kind = iota
	KindSyntax
	KindUnknownIdentifier
	KindUnboundVariable
	KindDivisionByZero
	KindDomain
	KindOverflow
	KindInvalidNumber
	KindNoFormForVariable
	KindMissingVariable
	KindBatchSizeMismatch
	KindUnderdetermined
	KindUnsatisfiable
	KindEmptyEquationSet
	KindEmptyFunctionSet
	KindTooManyFunctions
	KindInvalidRange
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindSyntax:            "syntax_error",
	KindUnknownIdentifier: "unknown_identifier",
	KindUnboundVariable:   "unbound_variable",
	KindDivisionByZero:    "division_by_zero",
	KindDomain:            "domain_error",
	KindOverflow:          "overflow",
	KindInvalidNumber:     "invalid_number",
	KindNoFormForVariable: "no_form_for_variable",
	KindMissingVariable:   "missing_variable",
	KindBatchSizeMismatch: "batch_size_mismatch",
	KindUnderdetermined:   "underdetermined",
	KindUnsatisfiable:     "unsatisfiable",
	KindEmptyEquationSet:  "empty_equation_set",
	KindEmptyFunctionSet:  "empty_function_set",
	KindTooManyFunctions:  "too_many_functions",
	KindInvalidRange:      "invalid_range",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// CalcError описывает ошибку обработки выражения, формулы или системы уравнений.
// Name содержит имя переменной или функции, если ошибка к ним относится,
// Pos - байтовое смещение в исходной строке (или -1).
type CalcError struct {
	Kind    Kind
	Name    string
	Pos     int
	Message string
}

func (e *CalcError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d", e.Message, e.Pos)
	}
	return e.Message
}

// Is позволяет сравнивать ошибки по виду: errors.Is(err, &CalcError{Kind: KindDomain})
func (e *CalcError) Is(target error) bool {
	t, ok := target.(*CalcError)
	return ok && t.Kind == e.Kind
}

// NewCalcError создает новую ошибку CalcError без позиции
func NewCalcError(kind Kind, message string) *CalcError {
	return &CalcError{Kind: kind, Pos: -1, Message: message}
}

// KindOf возвращает вид ошибки или KindUnknown, если это не CalcError
func KindOf(err error) Kind {
	var calcErr *CalcError
	if errors.As(err, &calcErr) {
		return calcErr.Kind
	}
	return KindUnknown
}

// SyntaxError создаёт ошибку разбора в позиции pos
func SyntaxError(pos int, message string) *CalcError {
	return &CalcError{Kind: KindSyntax, Pos: pos, Message: "syntax error: " + message}
}

// UnknownIdentifierError создаёт ошибку вызова неразрешённой функции
func UnknownIdentifierError(pos int, name string) *CalcError {
	return &CalcError{Kind: KindUnknownIdentifier, Name: name, Pos: pos,
		Message: fmt.Sprintf("unknown function %q", name)}
}

func UnboundVariableError(name string) *CalcError {
	return &CalcError{Kind: KindUnboundVariable, Name: name, Pos: -1,
		Message: fmt.Sprintf("variable %q is not bound", name)}
}

// DivisionByZeroError создаёт ошибку деления на ноль
func DivisionByZeroError() *CalcError {
	return NewCalcError(KindDivisionByZero, "division by zero")
}

func DomainError(message string) *CalcError {
	return NewCalcError(KindDomain, "domain error: "+message)
}

func OverflowError() *CalcError {
	return NewCalcError(KindOverflow, "numeric overflow")
}

// InvalidNumberError создаёт ошибку нечислового значения переменной
func InvalidNumberError(name, raw string) *CalcError {
	return &CalcError{Kind: KindInvalidNumber, Name: name, Pos: -1,
		Message: fmt.Sprintf("value %q of %q is not a number", raw, name)}
}

func NoFormForVariableError(formula, target string) *CalcError {
	return &CalcError{Kind: KindNoFormForVariable, Name: target, Pos: -1,
		Message: fmt.Sprintf("formula %q has no form solved for %q", formula, target)}
}

func MissingVariableError(name string) *CalcError {
	return &CalcError{Kind: KindMissingVariable, Name: name, Pos: -1,
		Message: fmt.Sprintf("variable %q is missing", name)}
}

func BatchSizeMismatchError(name string, want, got int) *CalcError {
	return &CalcError{Kind: KindBatchSizeMismatch, Name: name, Pos: -1,
		Message: fmt.Sprintf("variable %q has %d values, expected %d", name, got, want)}
}
