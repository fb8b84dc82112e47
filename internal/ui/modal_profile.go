package ui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ternchat/tern/internal/chat"
	"github.com/ternchat/tern/internal/store"
)

// profileModal creates a named pairing of a provider, a model, and an
// optional system prompt.
type profileModal struct {
	form   stepForm
	db     *chat.DB
	status string
}

func newProfileModal(db *chat.DB) *profileModal {
	name := newFormField("name", "e.g. fast-drafts", false)
	provider := newFormField("provider", "name of an existing provider", false)
	provider.validate = func(v string) error {
		_, err := db.GetProviderByName(v)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no provider named %q", v)
		}
		return err
	}
	model := newFormField("model", "blank for the provider default", false)
	model.optional = true
	system := newFormField("system prompt", "optional", false)
	system.optional = true

	return &profileModal{
		form: newStepForm([]formField{name, provider, model, system}),
		db:   db,
	}
}

func (m *profileModal) Title() string  { return "New profile" }
func (m *profileModal) Status() string { return m.status }

func (m *profileModal) HandleKey(msg tea.KeyMsg) (ModalResult, tea.Cmd) {
	return m.form.handleKey(msg, m.commit)
}

func (m *profileModal) commit() error {
	provider, err := m.db.GetProviderByName(m.form.valueFor("provider"))
	if err != nil {
		return err
	}
	model := m.form.valueFor("model")
	if model == "" {
		model = provider.DefaultModel
	}
	name := m.form.valueFor("name")
	_, err = m.db.CreateProfile(store.Profile{
		Name:         name,
		ProviderID:   provider.ID,
		Model:        model,
		SystemPrompt: m.form.valueFor("system prompt"),
	})
	if err != nil {
		return err
	}
	m.status = fmt.Sprintf("profile %q created", name)
	return nil
}

func (m *profileModal) View(width int) string {
	summary := []string{
		"name:     " + m.form.valueFor("name"),
		"provider: " + m.form.valueFor("provider"),
		"model:    " + orDash(m.form.valueFor("model")),
		"system:   " + orDash(m.form.valueFor("system prompt")),
	}
	return m.form.view(width, summary)
}
