package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ternchat/tern/internal/chat"
	"github.com/ternchat/tern/internal/secrets"
	"github.com/ternchat/tern/internal/store"
)

var providerKinds = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"bedrock":   true,
	"ollama":    true,
}

// providerModal creates a model server entry. The API key goes to the
// secret store, never to the database; the row only records the key name.
type providerModal struct {
	form    stepForm
	db      *chat.DB
	secrets secrets.Store
	status  string
}

func newProviderModal(db *chat.DB, sec secrets.Store) *providerModal {
	name := newFormField("name", "e.g. work-openai", false)
	kind := newFormField("kind", "openai | anthropic | bedrock | ollama", false)
	kind.validate = func(v string) error {
		if !providerKinds[v] {
			return fmt.Errorf("unknown kind %q", v)
		}
		return nil
	}
	baseURL := newFormField("base url", "optional, e.g. http://127.0.0.1:11434", false)
	baseURL.optional = true
	apiKey := newFormField("api key", "stored locally, blank for ollama/bedrock", true)
	apiKey.optional = true
	model := newFormField("default model", "e.g. gpt-4o", false)

	return &providerModal{
		form:    newStepForm([]formField{name, kind, baseURL, apiKey, model}),
		db:      db,
		secrets: sec,
	}
}

func (m *providerModal) Title() string  { return "New provider" }
func (m *providerModal) Status() string { return m.status }

func (m *providerModal) HandleKey(msg tea.KeyMsg) (ModalResult, tea.Cmd) {
	return m.form.handleKey(msg, m.commit)
}

func (m *providerModal) commit() error {
	name := m.form.valueFor("name")
	apiKey := m.form.valueFor("api key")

	secretKey := ""
	if apiKey != "" {
		secretKey = "provider/" + name
		if err := m.secrets.Put(secretKey, apiKey); err != nil {
			return fmt.Errorf("store api key: %w", err)
		}
	}

	_, err := m.db.CreateProvider(store.Provider{
		Name:         name,
		Kind:         m.form.valueFor("kind"),
		BaseURL:      m.form.valueFor("base url"),
		SecretKey:    secretKey,
		DefaultModel: m.form.valueFor("default model"),
	})
	if err != nil {
		return err
	}
	m.status = fmt.Sprintf("provider %q created", name)
	return nil
}

func (m *providerModal) View(width int) string {
	summary := []string{
		"name:    " + m.form.valueFor("name"),
		"kind:    " + m.form.valueFor("kind"),
		"url:     " + orDash(m.form.valueFor("base url")),
		"api key: " + maskSecret(m.form.valueFor("api key")),
		"model:   " + m.form.valueFor("default model"),
	}
	return m.form.view(width, summary)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "—"
	}
	return "••••••"
}

// credentialModal re-collects an API key for an existing provider, pushed
// when a stream fails with expired credentials.
type credentialModal struct {
	form     stepForm
	secrets  secrets.Store
	provider store.Provider
	status   string
}

func newCredentialModal(sec secrets.Store, p store.Provider) *credentialModal {
	key := newFormField("api key", "new key for "+p.Name, true)
	return &credentialModal{
		form:     newStepForm([]formField{key}),
		secrets:  sec,
		provider: p,
	}
}

func (m *credentialModal) Title() string  { return "Renew credentials: " + m.provider.Name }
func (m *credentialModal) Status() string { return m.status }

func (m *credentialModal) HandleKey(msg tea.KeyMsg) (ModalResult, tea.Cmd) {
	return m.form.handleKey(msg, m.commit)
}

func (m *credentialModal) commit() error {
	key := m.provider.SecretKey
	if key == "" {
		key = "provider/" + m.provider.Name
	}
	if err := m.secrets.Put(key, m.form.valueFor("api key")); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	m.status = fmt.Sprintf("credentials for %q updated", m.provider.Name)
	return nil
}

func (m *credentialModal) View(width int) string {
	summary := []string{
		"provider: " + m.provider.Name,
		"api key:  " + maskSecret(m.form.valueFor("api key")),
	}
	return m.form.view(width, summary)
}
