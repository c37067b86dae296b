package aplemitter

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/openapi2dyalog/internal/apl"
	genspec "github.com/mark3labs/openapi2dyalog/internal/spec"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

// Template names. A file with the same name in Options.TemplateDir replaces
// the built-in template.
const (
	EndpointTemplate = "endpoint.aplf.tmpl"
	ModelTemplate    = "model.aplc.tmpl"
	ClientTemplate   = "client.aplc.tmpl"
	UtilsTemplate    = "utils.apln.tmpl"
	VersionTemplate  = "version.aplf.tmpl"
	ReadmeTemplate   = "readme.md.tmpl"
)

var templateNames = []string{
	EndpointTemplate, ModelTemplate, ClientTemplate,
	UtilsTemplate, VersionTemplate, ReadmeTemplate,
}

type renderer struct {
	templates map[string]*template.Template
}

func funcMap() template.FuncMap {
	upper := cases.Upper(language.Und)
	title := cases.Title(language.Und)
	return template.FuncMap{
		"comment_lines": apl.CommentLines,
		"quote":         apl.Quote,
		"apl_name":      apl.Name,
		"upper":         func(s any) string { return upper.String(fmt.Sprint(s)) },
		"title":         func(s string) string { return title.String(s) },
		"join":          func(sep string, items []string) string { return strings.Join(items, sep) },
		"date":          func(t time.Time) string { return t.UTC().Format("2006-01-02") },
		"custom":        custom,
		"params_in":     paramsIn,
		"param_pairs":   paramPairs,
		"field_pairs":   fieldPairs,
		"prop_pairs":    propPairs,
		"md_cell":       mdCell,
		"one_line":      oneLine,
	}
}

// newRenderer parses the built-in templates, replacing any of them found in
// dir when dir is not empty.
func newRenderer(dir string) (*renderer, error) {
	r := &renderer{templates: make(map[string]*template.Template, len(templateNames))}
	for _, name := range templateNames {
		src, err := builtinTemplates.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("aplemitter: read built-in template %s: %w", name, err)
		}
		if dir != "" {
			override, err := os.ReadFile(filepath.Join(dir, name))
			switch {
			case err == nil:
				src = override
			case !os.IsNotExist(err):
				return nil, fmt.Errorf("aplemitter: read template %s: %w", name, err)
			}
		}
		t, err := template.New(name).Funcs(funcMap()).Option("missingkey=zero").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("aplemitter: parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

func (r *renderer) render(name string, data *genspec.Context) ([]byte, error) {
	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("aplemitter: unknown template %s", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("aplemitter: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func custom(c *genspec.Context, key string) any {
	if c == nil {
		return nil
	}
	v, _ := c.Get(key)
	return v
}

func paramsIn(params []genspec.Parameter, in string) []genspec.Parameter {
	var out []genspec.Parameter
	for _, p := range params {
		if strings.EqualFold(p.In, in) {
			out = append(out, p)
		}
	}
	return out
}

// namePairs renders (wire name, APL name) pairs as a nested APL vector:
// ⍬ for none, ,⊂(…) for one, (…)(…) otherwise.
func namePairs(pairs [][2]string) string {
	if len(pairs) == 0 {
		return "⍬"
	}
	items := make([]string, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, "("+charVector(p[0])+" "+charVector(p[1])+")")
	}
	if len(items) == 1 {
		return ",⊂" + items[0]
	}
	return strings.Join(items, "")
}

// charVector quotes s, ravelling single characters so the result is always
// a vector.
func charVector(s string) string {
	if utf8.RuneCountInString(s) == 1 {
		return "(," + apl.Quote(s) + ")"
	}
	return apl.Quote(s)
}

func paramPairs(params []genspec.Parameter) string {
	pairs := make([][2]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, [2]string{p.Name, p.APLName})
	}
	return namePairs(pairs)
}

func fieldPairs(fields []genspec.FormField) string {
	pairs := make([][2]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, [2]string{f.APIName, f.Name})
	}
	return namePairs(pairs)
}

func propPairs(props []genspec.ModelProperty) string {
	pairs := make([][2]string, 0, len(props))
	for _, p := range props {
		pairs = append(pairs, [2]string{p.APIName, p.Name})
	}
	return namePairs(pairs)
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

func mdCell(s string) string { return strings.ReplaceAll(oneLine(s), "|", `\|`) }
