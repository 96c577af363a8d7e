package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"feedback/i18n"

	"github.com/pkg/errors"
)

//go:embed *.html
var files embed.FS

const layout = "layout.html"

// Field is the data of one form input rendered by the "input" template.
type Field struct {
	Name   string
	Label  string
	Kind   string
	Value  string
	Errors []string
}

func baseFuncs(lang string) template.FuncMap {
	return template.FuncMap{
		"T": func(key string, args ...any) string {
			if len(args) == 0 {
				return i18n.T(lang, key)
			}
			return fmt.Sprintf(i18n.T(lang, key), args...)
		},
		"field": func(name, label, kind, value string, errs []string) Field {
			return Field{Name: name, Label: label, Kind: kind, Value: value, Errors: errs}
		},
	}
}

// Renderer holds every page parsed together with the layout.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	names, err := fs.Glob(files, "*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		if name == layout {
			continue
		}
		tmpl, err := template.New(name).Funcs(baseFuncs(i18n.DefaultLang)).ParseFS(files, layout, name)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %s", name)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes the layout of page name with strings translated to lang.
func (r *Renderer) Render(w io.Writer, lang, name string, data any) error {
	page, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown template %s", name)
	}
	tmpl, err := page.Clone()
	if err != nil {
		return err
	}
	return tmpl.Funcs(baseFuncs(lang)).ExecuteTemplate(w, "layout", data)
}
