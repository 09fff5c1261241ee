// Package web renders the chat page: header, navbar, main area and footer.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"isa-chat/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// UIText holds the literal strings shown on the page.
type UIText struct {
	Placeholder  string
	Submit       string
	Loading      string
	HistoryTitle string
	Question     string
	Answer       string
	Footer       string
}

// EntryView is what the "entry" template renders for one history item.
type EntryView struct {
	Entry    models.HistoryEntry
	Question string
	Answer   string
}

func (t UIText) WithEntry(e models.HistoryEntry) EntryView {
	return EntryView{Entry: e, Question: t.Question, Answer: t.Answer}
}

var DefaultText = UIText{
	Placeholder:  "Введите вопрос...",
	Submit:       "Отправить",
	Loading:      "Загружаю ответ...",
	HistoryTitle: "История:",
	Question:     "Вопрос:",
	Answer:       "Ответ:",
	Footer:       "2025 Isa AI Chat. Все права защищены.",
}

const Title = "Isa AI Chat"

var NavItems = []string{"Главная", "История", "О проекте"}

// PageData is the template input for a full page.
type PageData struct {
	Title    string
	NavItems []string
	Text     UIText
	State    models.Snapshot
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the full page for snap. Nothing is written if rendering fails.
func (r *Renderer) Render(w io.Writer, snap models.Snapshot) error {
	return r.execute(w, "page", snap)
}

func (r *Renderer) execute(w io.Writer, name string, snap models.Snapshot) error {
	data := PageData{
		Title:    Title,
		NavItems: NavItems,
		Text:     DefaultText,
		State:    snap,
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler serves the page's stylesheet and script.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
