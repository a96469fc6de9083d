// Package artifact provides the agency tools. Each tool renders a document
// describing a software engineering artifact, the document is selected by
// the tool's selector field and adjusted by its optional variant field.
package artifact

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/metricskey"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/xlog"
	"github.com/tidwall/sjson"
	"sigs.k8s.io/yaml"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "tools/artifact")

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(
	template.New("artifact").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{"field": field}).
		ParseFS(templatesFS, "templates/*.tmpl"))

// Document is the output of an artifact tool.
type Document struct {
	Tool     string `json:"tool" yaml:"tool"`
	Selector string `json:"selector" yaml:"selector"`
	// Valid is false when the selector is not supported by the tool,
	// in this case Content has the message for the model.
	Valid   bool   `json:"valid" yaml:"valid"`
	Content string `json:"content" yaml:"content"`
}

// GetContent returns the document JSON.
func (d Document) GetContent() string {
	return d.Content
}

func (d Document) String() string {
	return d.Content
}

// Tool is an artifact tool.
type Tool[I any] struct {
	*tools.Func[I, Document]
	selectors []string
}

// Selectors returns the supported selector values.
func (t *Tool[I]) Selectors() []string {
	return slices.Clone(t.selectors)
}

type meta struct {
	key   string
	value any
}

// args are extracted from a tool input.
type args struct {
	selector string
	// meta is stamped on the document after the selector
	meta []meta
	// data is passed to the template
	data map[string]any
}

// definition describes an artifact tool.
type definition[I any] struct {
	name        string
	description string
	// label is used in the message for an unknown selector
	label       string
	selectorKey string
	selectors   []string
	args        func(*I) *args
}

func newTool[I any](def definition[I]) (*Tool[I], error) {
	for _, sel := range def.selectors {
		if templates.Lookup(templateName(def.name, sel)) == nil {
			return nil, errors.Newf("template not found: %s", templateName(def.name, sel))
		}
	}

	f, err := tools.NewFunc(def.name, def.description, func(ctx context.Context, req *I) (*Document, error) {
		a := def.args(req)
		if !slices.Contains(def.selectors, a.selector) {
			metricskey.StatsArtifactInvalidSelector.IncrCounter(1, def.name)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "invalid_selector",
				"tool", def.name,
				"selector", a.selector,
			)
			return &Document{
				Tool:     def.name,
				Selector: a.selector,
				Content:  fmt.Sprintf("Invalid %s type specified", def.label),
			}, nil
		}

		stamp := append([]meta{
			{key: "tool", value: def.name},
			{key: def.selectorKey, value: a.selector},
		}, a.meta...)

		content, err := render(def.name, a.selector, a.data, stamp)
		if err != nil {
			return nil, err
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", def.name,
			"selector", a.selector,
			"size", len(content),
		)
		return &Document{
			Tool:     def.name,
			Selector: a.selector,
			Valid:    true,
			Content:  content,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Tool[I]{Func: f, selectors: def.selectors}, nil
}

func templateName(tool, selector string) string {
	return tool + "/" + selector
}

// render executes the YAML template of the selector and returns
// the indented JSON with the metadata object. Values piped to toJson are
// inserted in the JSON after the YAML conversion, so caller data never
// goes through the YAML parser.
func render(tool, selector string, data map[string]any, stamp []meta) (string, error) {
	name := templateName(tool, selector)
	ins := &inserts{}

	tmpl, err := templates.Clone()
	if err != nil {
		return "", errors.WithStack(err)
	}
	tmpl.Funcs(template.FuncMap{"toJson": ins.ref})

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", name)
	}

	js, err := yaml.YAMLToJSON(buf.Bytes())
	if err != nil {
		return "", errors.Wrapf(err, "invalid document %s", name)
	}
	if js, err = ins.apply(js); err != nil {
		return "", errors.Wrapf(err, "failed to insert values in %s", name)
	}

	for _, m := range stamp {
		js, err = sjson.SetBytes(js, "metadata."+m.key, m.value)
		if err != nil {
			return "", errors.Wrapf(err, "failed to set metadata %s", m.key)
		}
	}

	var out bytes.Buffer
	if err = json.Indent(&out, js, "", "  "); err != nil {
		return "", errors.WithStack(err)
	}
	return out.String(), nil
}

const (
	refPrefix = "@@value:"
	refSuffix = "@@"
)

// inserts holds the values of a render, the template gets a reference
// string in place of each value.
type inserts struct {
	list []any
}

func (in *inserts) ref(v any) string {
	in.list = append(in.list, v)
	return strconv.Quote(refPrefix + strconv.Itoa(len(in.list)-1) + refSuffix)
}

// apply replaces the references in the JSON document with the values.
func (in *inserts) apply(js []byte) ([]byte, error) {
	if len(in.list) == 0 {
		return js, nil
	}

	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil, errors.WithStack(err)
	}
	paths := make(map[int]string, len(in.list))
	findRefs(doc, "", paths)

	var err error
	for i, v := range in.list {
		path, ok := paths[i]
		if !ok {
			continue
		}
		if js, err = sjson.SetBytes(js, path, v); err != nil {
			return nil, errors.Wrapf(err, "path %s", path)
		}
	}
	return js, nil
}

// findRefs collects the sjson path of every reference in the document.
func findRefs(node any, path string, paths map[int]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			findRefs(child, joinPath(path, escapeKey(k)), paths)
		}
	case []any:
		for i, child := range v {
			findRefs(child, joinPath(path, strconv.Itoa(i)), paths)
		}
	case string:
		idx, ok := strings.CutPrefix(v, refPrefix)
		if !ok {
			return
		}
		if idx, ok = strings.CutSuffix(idx, refSuffix); !ok {
			return
		}
		if i, err := strconv.Atoi(idx); err == nil {
			paths[i] = path
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// escapeKey escapes the path syntax characters of an object key.
func escapeKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// field returns the value at the path in the spec, or def when the path
// does not exist.
func field(spec map[string]any, def any, path ...string) any {
	var cur any = spec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		if cur, ok = m[key]; !ok || cur == nil {
			return def
		}
	}
	return cur
}

// Tools returns all the artifact tools.
func Tools() ([]tools.ITool, error) {
	var list []tools.ITool
	for _, ctor := range []func() (tools.ITool, error){
		func() (tools.ITool, error) { return NewProjectAnalyzer() },
		func() (tools.ITool, error) { return NewTeamCoordinator() },
		func() (tools.ITool, error) { return NewArchitectureDesigner() },
		func() (tools.ITool, error) { return NewTechEvaluator() },
		func() (tools.ITool, error) { return NewModelArchitect() },
		func() (tools.ITool, error) { return NewModelTrainer() },
		func() (tools.ITool, error) { return NewBackendDeveloper() },
		func() (tools.ITool, error) { return NewFrontendDeveloper() },
		func() (tools.ITool, error) { return NewCrossPlatformDeveloper() },
		func() (tools.ITool, error) { return NewNativeDeveloper() },
		func() (tools.ITool, error) { return NewExperienceDesigner() },
		func() (tools.ITool, error) { return NewInterfaceDesigner() },
		func() (tools.ITool, error) { return NewQualityAnalyzer() },
		func() (tools.ITool, error) { return NewTestAutomator() },
		func() (tools.ITool, error) { return NewInfrastructureManager() },
		func() (tools.ITool, error) { return NewPipelineAutomator() },
		func() (tools.ITool, error) { return NewDataArchitect() },
		func() (tools.ITool, error) { return NewDataPipelineManager() },
	} {
		t, err := ctor()
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, nil
}
