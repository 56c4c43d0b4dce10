package calculate

import "net/http"

// Category - категория ошибки, видимая пользователю
type Category struct {
	Code    string
	Message string
	Status  int
}

var (
	CategoryInvalidData  = Category{"invalid_data", "invalid data", http.StatusBadRequest}
	CategoryTypeMismatch = Category{"type_mismatch", "rational numbers expected", http.StatusBadRequest}
	CategoryDivision     = Category{"division", "division has no meaning", http.StatusBadRequest}
	CategoryImpossible   = Category{"impossible", "computationally impossible expression", http.StatusBadRequest}
	CategoryNoSolution   = Category{"no_solution", "no solution", http.StatusUnprocessableEntity}
	CategoryIncomplete   = Category{"incomplete", "incomplete data", http.StatusBadRequest}
	CategoryValue        = Category{"value", "invalid value", http.StatusBadRequest}
	CategoryConfig       = Category{"config", "formula is misconfigured", http.StatusInternalServerError}
	CategoryInternal     = Category{"internal", "internal server error", http.StatusInternalServerError}
)

var categories = map[Kind]Category{
	KindSyntax:            CategoryInvalidData,
	KindUnknownIdentifier: CategoryInvalidData,
	KindUnboundVariable:   CategoryInvalidData,
	KindInvalidNumber:     CategoryTypeMismatch,
	KindDivisionByZero:    CategoryDivision,
	KindDomain:            CategoryImpossible,
	KindOverflow:          CategoryImpossible,
	KindNoFormForVariable: CategoryConfig,
	KindUnderdetermined:   CategoryNoSolution,
	KindUnsatisfiable:     CategoryNoSolution,
	KindMissingVariable:   CategoryIncomplete,
	KindBatchSizeMismatch: CategoryIncomplete,
	KindEmptyEquationSet:  CategoryIncomplete,
	KindEmptyFunctionSet:  CategoryIncomplete,
	KindTooManyFunctions:  CategoryValue,
	KindInvalidRange:      CategoryValue,
}

// CategoryOf сопоставляет ошибку с пользовательской категорией.
// Ошибки, не являющиеся CalcError, считаются внутренними.
func CategoryOf(err error) Category {
	if c, ok := categories[KindOf(err)]; ok {
		return c
	}
	return CategoryInternal
}
