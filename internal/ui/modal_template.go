package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ternchat/tern/internal/chat"
)

// templateModal creates a reusable prompt snippet that ":template use"
// expands into the prompt window.
type templateModal struct {
	form   stepForm
	db     *chat.DB
	status string
}

func newTemplateModal(db *chat.DB) *templateModal {
	name := newFormField("name", "e.g. summarize", false)
	content := newFormField("content", "the snippet text", false)
	return &templateModal{
		form: newStepForm([]formField{name, content}),
		db:   db,
	}
}

func (m *templateModal) Title() string  { return "New template" }
func (m *templateModal) Status() string { return m.status }

func (m *templateModal) HandleKey(msg tea.KeyMsg) (ModalResult, tea.Cmd) {
	return m.form.handleKey(msg, m.commit)
}

func (m *templateModal) commit() error {
	name := m.form.valueFor("name")
	_, err := m.db.CreatePromptTemplate(name, m.form.valueFor("content"))
	if err != nil {
		return err
	}
	m.status = fmt.Sprintf("template %q created", name)
	return nil
}

func (m *templateModal) View(width int) string {
	content := m.form.valueFor("content")
	if len(content) > 40 {
		content = content[:37] + "..."
	}
	summary := []string{
		"name:    " + m.form.valueFor("name"),
		"content: " + content,
	}
	return m.form.view(width, summary)
}
