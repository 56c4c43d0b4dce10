package models

// HistoryRecord - запись истории вычислений пользователя
type HistoryRecord struct {
	ID          string `json:"id"`
	UserID      int    `json:"user_id"`
	FormulaSlug string `json:"formula"`
	FormulaURL  string `json:"formula_url"`
	Target      string `json:"target"`
	Result      string `json:"result"`
	CreatedAt   int64  `json:"created_at"`
}

// User - пользователь, извлечённый из токена
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// ResolveRequest - запрос на вычисление переменной формулы.
// Values содержит сырые значения формы: "9.8" или "1, 2, 3".
type ResolveRequest struct {
	Formula   string            `json:"formula"`
	Target    string            `json:"target"`
	Values    map[string]string `json:"values"`
	Precision int               `json:"precision,omitempty"`
}

type ResolveResponse struct {
	Formula string    `json:"formula"`
	Target  string    `json:"target"`
	Result  string    `json:"result"`
	Values  []float64 `json:"values"`
}

// SolveRequest - система линейных уравнений, по одному на строку
type SolveRequest struct {
	Equations []string `json:"equations"`
}

type SolveResponse struct {
	Solution map[string]float64 `json:"solution"`
	Result   string             `json:"result"`
}

// PlotRequest - до четырёх функций от x и границы осей.
// Границы по y необязательны, но задаются парой.
type PlotRequest struct {
	Functions []string `json:"functions"`
	XMin      string   `json:"xmin"`
	XMax      string   `json:"xmax"`
	YMin      string   `json:"ymin,omitempty"`
	YMax      string   `json:"ymax,omitempty"`
}

// PlotResponse содержит PNG (gRPC) либо ссылку на скачивание (HTTP)
type PlotResponse struct {
	PNG         []byte `json:"png,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// ErrorResponse - тело ответа при ошибке. Detail - сообщение категории,
// Error - подробности конкретной ошибки.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

type Formula struct {
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Formula   string     `json:"formula"`
	Content   string     `json:"content,omitempty"`
	Variables []Variable `json:"variables"`
	Targets   []string   `json:"targets"`
}

type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

type StatusResponse struct {
	Status   string `json:"status"`
	Formulas int    `json:"formulas"`
}
