package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"kmeansviz/internal/session"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateRenderer manages HTML templates with hot-reload support
type TemplateRenderer struct {
	templates   *template.Template
	mu          sync.RWMutex
	devMode     bool
	templateDir string
	source      fs.FS
}

// NewTemplateRenderer creates a new template renderer. An empty templateDir
// uses the templates compiled into the binary.
func NewTemplateRenderer(devMode bool, templateDir string) (*TemplateRenderer, error) {
	tr := &TemplateRenderer{
		devMode:     devMode,
		templateDir: templateDir,
	}

	if templateDir == "" {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded templates: %w", err)
		}
		tr.source = sub
	} else {
		tr.source = os.DirFS(templateDir)
	}

	if err := tr.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return tr, nil
}

// loadTemplates parses all HTML templates from the template source
func (tr *TemplateRenderer) loadTemplates() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	funcMap := template.FuncMap{
		"modeLabel":   modeLabel,
		"formatFloat": formatFloat,
		"add":         func(a, b int) int { return a + b },
		"eq":          func(a, b interface{}) bool { return a == b },
	}

	tmpl := template.New("").Funcs(funcMap)

	err := fs.WalkDir(tr.source, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := fs.ReadFile(tr.source, path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		if _, err := tmpl.New(path).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", path, err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	tr.templates = tmpl
	return nil
}

// Render executes a template with the given data
func (tr *TemplateRenderer) Render(w io.Writer, name string, data interface{}) error {
	// In dev mode, reload templates on each request
	if tr.devMode {
		if err := tr.loadTemplates(); err != nil {
			return fmt.Errorf("failed to reload templates: %w", err)
		}
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if tr.templates == nil {
		return fmt.Errorf("templates not loaded")
	}

	if err := tr.templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return nil
}

// Helper functions for templates

// modeLabel turns a session mode into operator wording
func modeLabel(m session.Mode) string {
	switch m {
	case session.AwaitingInitialization:
		return "Awaiting initialization"
	case session.ManualPlacementArmed:
		return "Placing centroids"
	case session.ReadyToIterate:
		return "Ready"
	case session.Converged:
		return "Converged"
	default:
		return m.String()
	}
}

// formatFloat prints a float with 3 decimals
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
