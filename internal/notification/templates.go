package notification

import (
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// TemplateName is the template looked up for the plain-text path. When it is
// absent the body is synthesized from the embedded copy instead.
const TemplateName = "discussion/ban_escalation_email.txt"

var (
	ErrTemplateParse  = errors.New("failed to parse notification template")
	ErrTemplateRender = errors.New("failed to render notification template")
)

//go:embed templates
var embedded embed.FS

// Resolver loads and renders a named plain-text template. A missing template
// is reported through the found flag, any other failure is an error that the
// caller must propagate.
type Resolver interface {
	Render(name string, data any) (body string, found bool, err error)
}

// FileResolver reads templates from an operator-provided directory. An empty
// directory resolves nothing, which routes every dispatch through the
// synthesized fallback body.
type FileResolver struct {
	dir string
}

func NewFileResolver(dir string) *FileResolver {
	return &FileResolver{dir: dir}
}

func (r *FileResolver) Render(name string, data any) (string, bool, error) {
	if r.dir == "" {
		return "", false, nil
	}

	raw, errRead := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(name)))
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, errors.Join(errRead, ErrTemplateParse)
	}

	body, errRender := render(name, string(raw), data)
	if errRender != nil {
		return "", false, errRender
	}

	return body, true, nil
}

// FallbackBody renders the embedded escalation body layout.
func FallbackBody(data any) (string, error) {
	raw, errRead := embedded.ReadFile("templates/" + TemplateName)
	if errRead != nil {
		return "", errors.Join(errRead, ErrTemplateParse)
	}

	return render(TemplateName, string(raw), data)
}

func render(name string, text string, data any) (string, error) {
	tmpl, errParse := template.New(name).Parse(text)
	if errParse != nil {
		return "", errors.Join(errParse, ErrTemplateParse)
	}

	var builder strings.Builder
	if errExecute := tmpl.Execute(&builder, data); errExecute != nil {
		return "", errors.Join(errExecute, ErrTemplateRender)
	}

	return builder.String(), nil
}
