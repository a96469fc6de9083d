package prompts

import (
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/nikolalohinski/gonja"
)

// TemplateFormat is the syntax of a prompt template.
type TemplateFormat string

const (
	// TemplateFormatGoTemplate is text/template syntax with sprig functions.
	TemplateFormatGoTemplate TemplateFormat = "go-template"
	// TemplateFormatJinja2 is jinja2 syntax.
	TemplateFormatJinja2 TemplateFormat = "jinja2"
)

// ErrMissingVariable is returned when a declared input variable has no value.
var ErrMissingVariable = errors.New("missing prompt input variable")

// RenderTemplate renders tmpl with values.
func RenderTemplate(tmpl string, format TemplateFormat, values map[string]any) (string, error) {
	switch format {
	case TemplateFormatGoTemplate, "":
		t, err := template.New("prompt").
			Option("missingkey=error").
			Funcs(sprig.TxtFuncMap()).
			Parse(tmpl)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse template")
		}
		var sb strings.Builder
		if err := t.Execute(&sb, values); err != nil {
			return "", errors.Wrap(err, "failed to render template")
		}
		return sb.String(), nil
	case TemplateFormatJinja2:
		t, err := gonja.FromString(tmpl)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse jinja2 template")
		}
		out, err := t.Execute(values)
		if err != nil {
			return "", errors.Wrap(err, "failed to render jinja2 template")
		}
		return out, nil
	default:
		return "", errors.Newf("unsupported template format: %s", format)
	}
}

// checkInputs returns ErrMissingVariable for the first declared variable
// not present in values.
func checkInputs(declared []string, values map[string]any) error {
	for _, name := range declared {
		if _, ok := values[name]; !ok {
			return errors.Wrapf(ErrMissingVariable, "%q", name)
		}
	}
	return nil
}

func mergeVariables(lists ...[]string) []string {
	var res []string
	for _, l := range lists {
		for _, v := range l {
			if !slices.Contains(res, v) {
				res = append(res, v)
			}
		}
	}
	return res
}
