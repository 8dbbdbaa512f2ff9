package render

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// Templates live at <project>/web/templates, two levels up from this package
func getTestTemplatesPath() string {
	return filepath.Join("..", "..", "templates")
}

func loadTestTemplates(t *testing.T) *TemplateSet {
	t.Helper()
	ts, err := LoadTemplates(getTestTemplatesPath())
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}
	return ts
}

func TestLoadTemplates(t *testing.T) {
	ts := loadTestTemplates(t)

	for _, required := range []string{"index.html", "student.html", "denied.html", "admin_login.html", "admin.html"} {
		if !ts.Has(required) {
			t.Errorf("Expected template %q to be loaded", required)
		}
	}
	if ts.Has("missing.html") {
		t.Error("Unexpected template missing.html")
	}
}

func TestLoadTemplates_MissingDirectory(t *testing.T) {
	if _, err := LoadTemplates(t.TempDir()); err == nil {
		t.Error("Expected error for directory without pages")
	}
}

func TestExecute_Student(t *testing.T) {
	ts := loadTestTemplates(t)

	data := map[string]interface{}{
		"Name":  "Иван Петров",
		"Slug":  "ivan",
		"Query": 5,
		"Lessons": []entities.Lesson{
			{Text: "Пт 24-янв-2025 Урок завершен"},
			{Text: "Ср 22-янв-2025 Оплата 4 урока"},
		},
		"IsMore": true,
		"Token":  "abc-123",
		"LinkedStudents": []*entities.Student{
			{Slug: "ivan", FullName: "Иван Петров"},
			{Slug: "maria", FullName: "Мария Петрова"},
		},
	}

	var buf bytes.Buffer
	if err := ts.Execute(&buf, "student.html", data); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Иван Петров - История уроков",
		"Пт 24-янв-2025 Урок завершен",
		"/student?query=15",
		"token=abc-123",
		`data-slug="maria"`,
		">ИП<",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q", want)
		}
	}
	if strings.Contains(out, `data-slug="ivan"`) {
		t.Error("Current student should not be offered in the switcher")
	}
}

func TestExecute_StudentSingleIdentity(t *testing.T) {
	ts := loadTestTemplates(t)

	data := map[string]interface{}{
		"Name":           "Иван",
		"Slug":           "ivan",
		"Query":          5,
		"IsMore":         false,
		"LinkedStudents": []*entities.Student(nil),
	}

	var buf bytes.Buffer
	if err := ts.Execute(&buf, "student.html", data); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "switcher\"") || strings.Contains(out, "Показать ещё") {
		t.Error("Expected no switcher and no more link")
	}
	if !strings.Contains(out, "Пока нет уроков") {
		t.Error("Expected empty state")
	}
}

func TestExecute_Admin(t *testing.T) {
	ts := loadTestTemplates(t)
	ip := "10.0.0.1"
	reason := "invalid_url_token"

	data := map[string]interface{}{
		"Admin":        "root",
		"StudentTotal": int64(1),
		"Students":     []*entities.Student{{Slug: "ivan", FullName: "Иван", SheetName: "Ivan", IsActive: true}},
		"PendingTotal": int64(0),
		"Pending":      []*entities.PendingLink{},
		"AccessLogs": []*entities.AccessLog{
			{Method: entities.AuthMethodToken, Identifier: "abc-123-...", IPAddress: &ip, ErrorMessage: &reason, AccessedAt: time.Now()},
		},
		"Cache": nil,
		"Messages": []*entities.SentMessage{
			{TelegramID: "555", MessageText: "Урок **перенесён**", SentBy: "root", DeliveryStatus: entities.DeliverySent, SentAt: time.Now()},
		},
	}

	var buf bytes.Buffer
	if err := ts.Execute(&buf, "admin.html", data); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ivan", "invalid_url_token", "10.0.0.1", "<strong>перенесён</strong>", "Google Sheets не настроен"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q", want)
		}
	}
}

func TestExecute_UnknownPage(t *testing.T) {
	ts := loadTestTemplates(t)
	var buf bytes.Buffer
	if err := ts.Execute(&buf, "nope.html", nil); err == nil {
		t.Error("Expected error for unknown page")
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"Иван Петров":      "ИП",
		"maria":            "M",
		"Anna Maria Lopez": "AM",
		"":                 "?",
		"   ":              "?",
	}
	for in, want := range tests {
		if got := initials(in); got != want {
			t.Errorf("initials(%q) = %q, want %q", in, got, want)
		}
	}
}
