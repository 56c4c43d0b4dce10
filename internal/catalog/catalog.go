// Package catalog хранит справочник наук, категорий и формул. Справочник
// неизменяем: обновление заменяет снимок целиком.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/GGmuzem/formula-engine/internal/formula"
)

//go:embed default.yaml
var defaultCatalog []byte

// ErrNotFound возвращается при поиске отсутствующей записи
var ErrNotFound = errors.New("not found")

type Science struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

// Category - категория формул. Special отмечает категории, обрабатываемые
// не формулами, а отдельными запросами (графики, системы уравнений).
type Category struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Science string `json:"science"`
	Special bool   `json:"special,omitempty"`
}

type Formula struct {
	Slug       string
	Title      string
	Category   string
	Display    string
	Content    string
	Definition *formula.Definition
}

// Snapshot - неизменяемый снимок справочника
type Snapshot struct {
	sciences   []Science
	categories []Category
	formulas   []*Formula

	scienceBySlug  map[string]int
	categoryBySlug map[string]int
	formulaBySlug  map[string]int
}

type fileDoc struct {
	Sciences   []Science    `yaml:"sciences"`
	Categories []Category   `yaml:"categories"`
	Formulas   []formulaDoc `yaml:"formulas"`
}

type formulaDoc struct {
	Slug      string        `yaml:"slug"`
	Title     string        `yaml:"title"`
	Category  string        `yaml:"category"`
	Display   string        `yaml:"formula"`
	Content   string        `yaml:"content"`
	Variables []variableDoc `yaml:"variables"`
	Forms     []formDoc     `yaml:"forms"`
}

type variableDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Unit        string `yaml:"unit"`
}

type formDoc struct {
	Target string `yaml:"target"`
	Expr   string `yaml:"expr"`
}

// Default возвращает встроенный справочник
func Default() (*Snapshot, error) {
	return Load(defaultCatalog)
}

// LoadFile читает справочник из YAML-файла
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}
	return Load(data)
}

// Load разбирает YAML и проверяет ссылки между записями и все формы формул
func Load(data []byte) (*Snapshot, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("error decoding catalog: %w", err)
	}

	s := &Snapshot{
		scienceBySlug:  make(map[string]int),
		categoryBySlug: make(map[string]int),
		formulaBySlug:  make(map[string]int),
	}

	for _, sc := range doc.Sciences {
		if sc.Slug == "" {
			return nil, fmt.Errorf("science without slug")
		}
		if _, dup := s.scienceBySlug[sc.Slug]; dup {
			return nil, fmt.Errorf("duplicate science %q", sc.Slug)
		}
		s.scienceBySlug[sc.Slug] = len(s.sciences)
		s.sciences = append(s.sciences, sc)
	}

	for _, c := range doc.Categories {
		if c.Slug == "" {
			return nil, fmt.Errorf("category without slug")
		}
		if _, dup := s.categoryBySlug[c.Slug]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Slug)
		}
		if _, ok := s.scienceBySlug[c.Science]; !ok {
			return nil, fmt.Errorf("category %q refers to unknown science %q", c.Slug, c.Science)
		}
		s.categoryBySlug[c.Slug] = len(s.categories)
		s.categories = append(s.categories, c)
	}

	for _, f := range doc.Formulas {
		if f.Slug == "" {
			return nil, fmt.Errorf("formula without slug")
		}
		if _, dup := s.formulaBySlug[f.Slug]; dup {
			return nil, fmt.Errorf("duplicate formula %q", f.Slug)
		}
		ci, ok := s.categoryBySlug[f.Category]
		if !ok {
			return nil, fmt.Errorf("formula %q refers to unknown category %q", f.Slug, f.Category)
		}
		if s.categories[ci].Special {
			return nil, fmt.Errorf("formula %q is placed in special category %q", f.Slug, f.Category)
		}

		vars := make([]formula.Variable, len(f.Variables))
		for i, v := range f.Variables {
			vars[i] = formula.Variable{Name: v.Name, Description: v.Description, Unit: v.Unit}
		}
		forms := make([]formula.FormSource, len(f.Forms))
		for i, fm := range f.Forms {
			forms[i] = formula.FormSource{Target: fm.Target, Source: fm.Expr}
		}
		def, err := formula.NewDefinition(f.Slug, f.Title, vars, forms)
		if err != nil {
			return nil, err
		}

		s.formulaBySlug[f.Slug] = len(s.formulas)
		s.formulas = append(s.formulas, &Formula{
			Slug:       f.Slug,
			Title:      f.Title,
			Category:   f.Category,
			Display:    f.Display,
			Content:    f.Content,
			Definition: def,
		})
	}
	return s, nil
}

// Sciences возвращает все науки в порядке объявления
func (s *Snapshot) Sciences() []Science {
	return append([]Science(nil), s.sciences...)
}

func (s *Snapshot) Science(slug string) (Science, error) {
	i, ok := s.scienceBySlug[slug]
	if !ok {
		return Science{}, fmt.Errorf("science %q: %w", slug, ErrNotFound)
	}
	return s.sciences[i], nil
}

// Categories возвращает категории науки
func (s *Snapshot) Categories(science string) []Category {
	var out []Category
	for _, c := range s.categories {
		if c.Science == science {
			out = append(out, c)
		}
	}
	return out
}

func (s *Snapshot) Category(slug string) (Category, error) {
	i, ok := s.categoryBySlug[slug]
	if !ok {
		return Category{}, fmt.Errorf("category %q: %w", slug, ErrNotFound)
	}
	return s.categories[i], nil
}

// Formulas возвращает формулы категории
func (s *Snapshot) Formulas(category string) []*Formula {
	var out []*Formula
	for _, f := range s.formulas {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func (s *Snapshot) Formula(slug string) (*Formula, error) {
	i, ok := s.formulaBySlug[slug]
	if !ok {
		return nil, fmt.Errorf("formula %q: %w", slug, ErrNotFound)
	}
	return s.formulas[i], nil
}

// FormulaSlugs возвращает отсортированные идентификаторы всех формул
func (s *Snapshot) FormulaSlugs() []string {
	slugs := make([]string, 0, len(s.formulas))
	for _, f := range s.formulas {
		slugs = append(slugs, f.Slug)
	}
	sort.Strings(slugs)
	return slugs
}
