// Package formula выбирает решённую форму формулы для искомой переменной
// и вычисляет её для одиночных и пакетных (через запятую) значений.
package formula

import (
	"errors"
	"fmt"

	"github.com/GGmuzem/formula-engine/internal/calculate"
)

// ErrInvalidDefinition - ошибка описания формулы в каталоге
var ErrInvalidDefinition = errors.New("invalid formula definition")

// Variable - переменная формулы
type Variable struct {
	Name        string
	Description string
	Unit        string
}

// FormSource - исходный текст формы, решённой относительно Target
type FormSource struct {
	Target string
	Source string
}

// Form - разобранная форма формулы
type Form struct {
	Target string
	Expr   *calculate.Expression
}

// Definition - формула с набором переменных и решёнными формами.
// После создания не изменяется и безопасна для конкурентного чтения.
type Definition struct {
	Slug      string
	Title     string
	Variables []Variable
	Forms     []Form

	declared map[string]struct{}
	byTarget map[string]int
}

// NewDefinition разбирает формы и проверяет, что каждая форма ссылается только на
// объявленные переменные (или константы), а каждая переменная покрыта хотя бы одной формой.
func NewDefinition(slug, title string, variables []Variable, forms []FormSource) (*Definition, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("%w %q: no variables", ErrInvalidDefinition, slug)
	}

	def := &Definition{
		Slug:      slug,
		Title:     title,
		Variables: append([]Variable(nil), variables...),
		declared:  make(map[string]struct{}, len(variables)),
		byTarget:  make(map[string]int, len(forms)),
	}
	for _, v := range variables {
		if _, dup := def.declared[v.Name]; dup {
			return nil, fmt.Errorf("%w %q: duplicate variable %q", ErrInvalidDefinition, slug, v.Name)
		}
		def.declared[v.Name] = struct{}{}
	}

	for _, fs := range forms {
		if _, ok := def.declared[fs.Target]; !ok {
			return nil, fmt.Errorf("%w %q: form target %q is not a variable", ErrInvalidDefinition, slug, fs.Target)
		}
		if _, dup := def.byTarget[fs.Target]; dup {
			return nil, fmt.Errorf("%w %q: duplicate form for %q", ErrInvalidDefinition, slug, fs.Target)
		}
		expr, err := calculate.Parse(fs.Source)
		if err != nil {
			return nil, fmt.Errorf("%w %q: form for %q: %v", ErrInvalidDefinition, slug, fs.Target, err)
		}
		for _, name := range expr.Variables() {
			if name == fs.Target {
				return nil, fmt.Errorf("%w %q: form for %q references its own target", ErrInvalidDefinition, slug, fs.Target)
			}
			if _, ok := def.declared[name]; !ok && !calculate.IsConstant(name) {
				return nil, fmt.Errorf("%w %q: form for %q references unknown name %q", ErrInvalidDefinition, slug, fs.Target, name)
			}
		}
		def.byTarget[fs.Target] = len(def.Forms)
		def.Forms = append(def.Forms, Form{Target: fs.Target, Expr: expr})
	}

	for _, v := range variables {
		if _, ok := def.byTarget[v.Name]; !ok {
			return nil, fmt.Errorf("%w %q: no form solves for %q", ErrInvalidDefinition, slug, v.Name)
		}
	}
	return def, nil
}

// Form возвращает форму, решённую относительно target
func (d *Definition) Form(target string) (Form, bool) {
	i, ok := d.byTarget[target]
	if !ok {
		return Form{}, false
	}
	return d.Forms[i], true
}

// Declares сообщает, объявлена ли переменная в формуле
func (d *Definition) Declares(name string) bool {
	_, ok := d.declared[name]
	return ok
}

// Targets возвращает имена переменных, для которых есть формы, в порядке объявления
func (d *Definition) Targets() []string {
	targets := make([]string, 0, len(d.Variables))
	for _, v := range d.Variables {
		if _, ok := d.byTarget[v.Name]; ok {
			targets = append(targets, v.Name)
		}
	}
	return targets
}
