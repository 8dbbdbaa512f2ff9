package render

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// TemplateSet holds all parsed page templates.
// Each page is parsed into its own template.Template so that every page
// can define "title" and "content" without colliding.
type TemplateSet struct {
	pages map[string]*template.Template
	mu    sync.RWMutex
}

// Execute renders the "base" layout with the blocks of pageName
func (ts *TemplateSet) Execute(w io.Writer, pageName string, data interface{}) error {
	ts.mu.RLock()
	tmpl, ok := ts.pages[pageName]
	ts.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", pageName)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// Has checks if a template exists
func (ts *TemplateSet) Has(pageName string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.pages[pageName]
	return ok
}

// Names returns all available template names, sorted
func (ts *TemplateSet) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	names := make([]string, 0, len(ts.pages))
	for name := range ts.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcMap = template.FuncMap{
	"renderMarkdown": Markdown,
	"add": func(a, b int) int {
		return a + b
	},
	"dict": func(values ...interface{}) map[string]interface{} {
		if len(values)%2 != 0 {
			return nil
		}
		dict := make(map[string]interface{}, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				return nil
			}
			dict[key] = values[i+1]
		}
		return dict
	},
	"initials": initials,
	"formatTime": func(t interface{}) string {
		switch v := t.(type) {
		case time.Time:
			return v.Format("02.01.2006 15:04")
		case *time.Time:
			if v == nil {
				return "-"
			}
			return v.Format("02.01.2006 15:04")
		}
		return "-"
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

// initials returns up to two upper-case initials of a name
func initials(name string) string {
	words := strings.Fields(name)
	var result strings.Builder
	for i, word := range words {
		if i >= 2 {
			break
		}
		r := []rune(word)
		result.WriteRune(unicode.ToUpper(r[0]))
	}
	if result.Len() == 0 {
		return "?"
	}
	return result.String()
}

// LoadTemplates parses layouts/base.html, components/*.html and every
// page in pages/. If path is empty, defaults to "web/templates".
func LoadTemplates(path string) (*TemplateSet, error) {
	if path == "" {
		path = "web/templates"
	}

	baseFile := filepath.Join(path, "layouts", "base.html")
	componentFiles, err := filepath.Glob(filepath.Join(path, "components", "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list component templates: %w", err)
	}

	pageFiles, err := filepath.Glob(filepath.Join(path, "pages", "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list page templates: %w", err)
	}
	if len(pageFiles) == 0 {
		return nil, fmt.Errorf("no page templates found in %s/pages", path)
	}

	ts := &TemplateSet{
		pages: make(map[string]*template.Template),
	}

	for _, pageFile := range pageFiles {
		pageName := filepath.Base(pageFile)

		filesToParse := []string{baseFile}
		filesToParse = append(filesToParse, componentFiles...)
		filesToParse = append(filesToParse, pageFile)

		pageTemplate, err := template.New("base").Funcs(funcMap).ParseFiles(filesToParse...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pageName, err)
		}
		ts.pages[pageName] = pageTemplate
	}

	return ts, nil
}

// LogTemplateNames logs all available template names
func LogTemplateNames(ts *TemplateSet, logger *slog.Logger) {
	logger.Info("Loaded templates", "templates", ts.Names())
}
