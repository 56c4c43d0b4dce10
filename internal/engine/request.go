package engine

// Kind - вид запроса к движку
type Kind int

const (
	KindFormula Kind = iota
	KindEquations
	KindPlot
)

// Слаги специальных категорий каталога
const (
	CategoryPlots     = "plots"
	CategoryEquations = "equations"
)

func (k Kind) String() string {
	switch k {
	case KindEquations:
		return "equations"
	case KindPlot:
		return "plot"
	default:
		return "formula"
	}
}

// KindFromCategory определяет вид запроса по слагу категории:
// специальные категории обрабатываются отдельными запросами, остальные - формулами.
func KindFromCategory(slug string) Kind {
	switch slug {
	case CategoryPlots:
		return KindPlot
	case CategoryEquations:
		return KindEquations
	default:
		return KindFormula
	}
}

// Request - запрос одного из видов: FormulaRequest, EquationRequest или PlotRequest
type Request interface {
	Kind() Kind
}

// FormulaRequest - вычисление переменной Target формулы Formula.
// Значения передаются строками формы: "9.8" или "1, 2, 3".
type FormulaRequest struct {
	Formula   string
	Target    string
	Values    map[string]string
	Precision int
}

// EquationRequest - система линейных уравнений
type EquationRequest struct {
	Equations []string
}

// PlotRequest - график до четырёх функций от x
type PlotRequest struct {
	Functions              []string
	XMin, XMax, YMin, YMax string
}

func (FormulaRequest) Kind() Kind  { return KindFormula }
func (EquationRequest) Kind() Kind { return KindEquations }
func (PlotRequest) Kind() Kind     { return KindPlot }
