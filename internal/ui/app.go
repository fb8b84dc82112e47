package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ternchat/tern/internal/chat"
	"github.com/ternchat/tern/internal/config"
	"github.com/ternchat/tern/internal/llm"
	"github.com/ternchat/tern/internal/secrets"
	"github.com/ternchat/tern/internal/store"
)

const promptRows = 3

// Stream messages carry the channel they were pumped from. A pump command
// from a finished stream can deliver after a new submit has installed its
// own channel; Update drops anything not from the current one.
type streamEventMsg struct {
	ch <-chan chat.Event
	ev chat.Event
}

type streamClosedMsg struct {
	ch <-chan chat.Event
}

// Model is the top-level bubbletea model. Keys flow through the transition
// table first; unclaimed keys go to the focused window, or to the top modal
// when one is open. Quit and navigation stay live while a reply streams.
type Model struct {
	session *chat.Session
	db      *chat.DB
	secrets secrets.Store
	cfg     config.Config

	prompt   *promptWindow
	response *responseWindow
	cmdline  *commandLine
	focus    Focus

	modals []Modal

	profile  *store.Profile
	provider *store.Provider

	streamCh  <-chan chat.Event
	streaming bool

	status    string
	statusErr bool

	width  int
	height int
	ready  bool
}

func NewModel(db *chat.DB, sec secrets.Store, cfg config.Config) Model {
	m := Model{
		session:  chat.NewSession(db, nil, llm.Options{}),
		db:       db,
		secrets:  sec,
		cfg:      cfg,
		prompt:   newPromptWindow(),
		response: newResponseWindow(),
		cmdline:  newCommandLine(),
		focus:    FocusPrompt,
	}
	if cfg.DefaultProfile != "" {
		if err := m.applyProfile(cfg.DefaultProfile); err != nil {
			m.setError(fmt.Sprintf("profile %q: %v", cfg.DefaultProfile, err))
		}
	}
	return m
}

// UseBackend overrides the profile-derived backend, e.g. for --dry-run.
func (m *Model) UseBackend(b llm.Backend, opts llm.Options) {
	m.session.SetBackend(b, opts)
	m.provider = &store.Provider{Name: b.Kind(), Kind: b.Kind()}
}

func (m Model) Init() tea.Cmd {
	return config.Watch()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case config.ReloadMsg:
		m.cfg = config.Load()
		m.setInfo("configuration reloaded")
		return m, config.Watch()

	case config.WatchDisabledMsg:
		m.setError("config watching disabled; edits to config.json need a restart")
		return m, nil

	case streamEventMsg:
		if msg.ch != m.streamCh {
			return m, nil
		}
		return m.handleStreamEvent(msg.ev)

	case streamClosedMsg:
		if msg.ch == m.streamCh {
			m.streamCh = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// An open modal owns the keyboard, except for quit.
	if len(m.modals) > 0 {
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		top := m.modals[len(m.modals)-1]
		res, cmd := top.HandleKey(msg)
		switch res {
		case ModalDone:
			m.modals = m.modals[:len(m.modals)-1]
			m.setInfo(top.Status())
		case ModalCancelled:
			m.modals = m.modals[:len(m.modals)-1]
			m.setInfo("cancelled")
		}
		return m, cmd
	}

	if ev, ok := Transition(m.focus, msg.String()); ok {
		return m.applyEvent(ev)
	}

	switch m.focus {
	case FocusPrompt:
		switch msg.String() {
		case "enter":
			return m.submit()
		case "esc":
			if m.streaming {
				m.session.Cancel()
				return m, nil
			}
			return m, nil
		}
		m.prompt.handleKey(msg)
	case FocusResponse:
		m.response.handleKey(msg)
	case FocusCommandLine:
		if cmd, done := m.cmdline.handleKey(msg); done {
			m.focus = FocusPrompt
			return m.execute(cmd)
		}
	}
	return m, nil
}

func (m Model) applyEvent(ev WindowEvent) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case EvQuit:
		return m.quit()
	case EvPromptClear:
		m.prompt.Clear()
	case EvPromptWrite:
		m.prompt.Write(ev.Text)
	case EvCommandLineWrite:
		m.cmdline.Write(ev.Text)
		m.focus = FocusCommandLine
	case EvFocusCommandLine:
		m.cmdline.Clear()
		m.focus = FocusCommandLine
	default:
		m.focus = FocusFor(ev, m.focus)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.session.Cancel()
	return m, tea.Quit
}

// submit hands the prompt text to the session and starts the event pump.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.prompt.Text())
	if text == "" {
		return m, nil
	}
	if m.provider == nil {
		m.setError("no profile bound — :profile use <name>")
		return m, nil
	}
	if _, ok := m.db.Active(); !ok {
		// Submitting without a conversation starts one.
		if _, err := m.newConversation(""); err != nil {
			m.setError(err.Error())
			return m, nil
		}
	}

	ch, err := m.session.Submit(context.Background(), text)
	if err != nil {
		if errors.Is(err, chat.ErrStreamInFlight) {
			m.setError("a reply is still streaming — Esc to cancel it")
		} else {
			m.setError(err.Error())
		}
		return m, nil
	}

	m.streamCh = ch
	m.streaming = true
	m.prompt.Clear()
	m.response.Append(transcriptEntry(store.RoleUser, text))
	m.response.Append(transcriptHeader(store.RoleAssistant))
	m.setInfo("streaming…")
	return m, m.waitStream()
}

func (m Model) waitStream() tea.Cmd {
	ch := m.streamCh
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{ch: ch}
		}
		return streamEventMsg{ch: ch, ev: ev}
	}
}

func (m Model) handleStreamEvent(ev chat.Event) (tea.Model, tea.Cmd) {
	if ev.Delta != "" {
		m.response.Append(ev.Delta)
	}
	if ev.Done {
		m.streaming = false
		m.response.Append("\n\n")
		switch {
		case ev.Err != nil:
			m.setError(fmt.Sprintf("reply failed (not saved): %v", ev.Err))
			if llm.KindOf(ev.Err) == llm.KindAuthExpired && m.provider != nil {
				m.modals = append(m.modals, newCredentialModal(m.secrets, *m.provider))
			}
		case ev.Persisted:
			if ev.TokenLength != nil {
				m.setInfo(fmt.Sprintf("reply saved (%d tokens)", *ev.TokenLength))
			} else {
				m.setInfo("reply saved")
			}
		default:
			m.setInfo("reply cancelled — partial text not saved")
		}
	}
	// Keep pumping until the session closes the channel.
	return m, m.waitStream()
}

// execute dispatches a ':' command.
func (m Model) execute(cmdline string) (tea.Model, tea.Cmd) {
	if cmdline == "" {
		return m, nil
	}
	args := strings.Fields(cmdline)
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "q", "quit":
		return m.quit()

	case "n", "new":
		title := strings.Join(rest, " ")
		if _, err := m.newConversation(title); err != nil {
			m.setError(err.Error())
		} else {
			m.setInfo("new conversation")
		}

	case "open":
		if len(rest) != 1 {
			m.setError("usage: :open <id>")
			break
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			m.setError("usage: :open <id>")
			break
		}
		if err := m.openConversation(store.ConversationID(id)); err != nil {
			m.setError(err.Error())
		}

	case "pin", "unpin":
		if err := m.db.UpdatePinStatus(cmd == "pin", nil); err != nil {
			m.setError(err.Error())
		} else {
			m.setInfo(cmd + "ned")
		}

	case "title":
		if len(rest) == 0 {
			m.setError("usage: :title <text>")
			break
		}
		if err := m.db.SetTitle(strings.Join(rest, " ")); err != nil {
			m.setError(err.Error())
		} else {
			m.setInfo("title updated")
		}

	case "list":
		m.showList(strings.Join(rest, " "))

	case "fork":
		return m.forkCommand(rest)

	case "clear":
		m.prompt.Clear()

	case "profile":
		return m.profileCommand(rest)

	case "profiles":
		m.showProfiles()

	case "provider":
		if len(rest) == 1 && rest[0] == "new" {
			m.modals = append(m.modals, newProviderModal(m.db, m.secrets))
		} else {
			m.setError("usage: :provider new")
		}

	case "providers":
		m.showProviders()

	case "template":
		return m.templateCommand(rest)

	case "templates":
		m.showTemplates()

	default:
		m.setError(fmt.Sprintf("unknown command %q", cmd))
	}
	return m, nil
}

func (m *Model) profileCommand(rest []string) (tea.Model, tea.Cmd) {
	switch {
	case len(rest) == 1 && rest[0] == "new":
		m.modals = append(m.modals, newProfileModal(m.db))
	case len(rest) == 2 && rest[0] == "use":
		if err := m.applyProfile(rest[1]); err != nil {
			m.setError(err.Error())
		} else {
			m.setInfo(fmt.Sprintf("profile %q bound", rest[1]))
		}
	default:
		m.setError("usage: :profile new | :profile use <name>")
	}
	return *m, nil
}

func (m *Model) templateCommand(rest []string) (tea.Model, tea.Cmd) {
	switch {
	case len(rest) == 1 && rest[0] == "new":
		m.modals = append(m.modals, newTemplateModal(m.db))
	case len(rest) == 2 && rest[0] == "use":
		tpl, err := m.db.GetPromptTemplate(rest[1])
		if err != nil {
			m.setError(err.Error())
			break
		}
		return m.applyEvent(WindowEvent{Kind: EvPromptWrite, Text: tpl.Content})
	default:
		m.setError("usage: :template new | :template use <name>")
	}
	return *m, nil
}

func (m *Model) forkCommand(rest []string) (tea.Model, tea.Cmd) {
	if len(rest) < 1 {
		m.setError("usage: :fork <position> [title]")
		return *m, nil
	}
	pos, err := strconv.Atoi(rest[0])
	if err != nil {
		m.setError("usage: :fork <position> [title]")
		return *m, nil
	}
	msgs, err := m.db.Messages()
	if err != nil {
		m.setError(err.Error())
		return *m, nil
	}
	var at *store.Message
	for i := range msgs {
		if msgs[i].Position == pos {
			at = &msgs[i]
			break
		}
	}
	if at == nil {
		m.setError(fmt.Sprintf("no message at position %d", pos))
		return *m, nil
	}
	title := strings.Join(rest[1:], " ")
	if _, err := m.db.Fork(title, at.ID, m.modelSpec()); err != nil {
		m.setError(err.Error())
		return *m, nil
	}
	if err := m.reloadTranscript(); err != nil {
		m.setError(err.Error())
		return *m, nil
	}
	m.setInfo(fmt.Sprintf("forked at position %d", pos))
	return *m, nil
}

func (m *Model) applyProfile(name string) error {
	p, err := m.db.GetProfileByName(name)
	if err != nil {
		return err
	}
	provider, err := m.db.GetProvider(p.ProviderID)
	if err != nil {
		return err
	}
	backend, err := m.buildBackend(provider)
	if err != nil {
		return err
	}
	m.session.SetBackend(backend, llm.Options{
		Model:        p.Model,
		MaxTokens:    m.cfg.MaxTokens,
		SystemPrompt: p.SystemPrompt,
	})
	m.profile = &p
	m.provider = &provider
	return nil
}

func (m *Model) buildBackend(p store.Provider) (llm.Backend, error) {
	apiKey := ""
	if p.SecretKey != "" {
		k, err := m.secrets.Get(p.SecretKey)
		if err != nil && !errors.Is(err, secrets.ErrNotFound) {
			return nil, err
		}
		apiKey = k
	}
	switch p.Kind {
	case "openai":
		return llm.NewOpenAI(apiKey, p.BaseURL), nil
	case "anthropic":
		return llm.NewAnthropic(apiKey), nil
	case "bedrock":
		b, err := llm.NewBedrock(context.Background(), m.cfg.BedrockRegion)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "ollama":
		url := p.BaseURL
		if url == "" {
			url = m.cfg.OllamaURL
		}
		return llm.NewOllama(url), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}

func (m *Model) modelSpec() store.ModelSpec {
	spec := store.ModelSpec{}
	if m.provider != nil {
		spec.Server = m.provider.Kind
	}
	if m.profile != nil {
		spec.Name = m.profile.Model
	}
	return spec
}

func (m *Model) newConversation(title string) (store.ConversationID, error) {
	id, err := m.db.NewConversation(title, m.modelSpec())
	if err != nil {
		return 0, err
	}
	m.response.SetText("")
	return id, nil
}

func (m *Model) openConversation(id store.ConversationID) error {
	m.db.Bind(id)
	if err := m.reloadTranscript(); err != nil {
		m.db.Unbind()
		return err
	}
	conv, err := m.db.Conversation()
	if err == nil && conv.Title != "" {
		m.setInfo("opened " + conv.Title)
	} else {
		m.setInfo(fmt.Sprintf("opened conversation %d", id))
	}
	return nil
}

func (m *Model) reloadTranscript() error {
	msgs, err := m.db.Messages()
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(transcriptEntry(msg.Role, msg.Content))
	}
	m.response.SetText(b.String())
	return nil
}

func (m *Model) showList(filter string) {
	convs, err := m.db.List(store.ListFilter{TitleContains: filter})
	if err != nil {
		m.setError(err.Error())
		return
	}
	var b strings.Builder
	b.WriteString("conversations\n\n")
	for _, c := range convs {
		pin := " "
		if c.Pinned {
			pin = "*"
		}
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		forked := ""
		if c.Fork != nil {
			forked = fmt.Sprintf("  ⑂ from %d", c.Fork.ParentID)
		}
		fmt.Fprintf(&b, "%s %4d  %s%s\n", pin, c.ID, title, forked)
	}
	if len(convs) == 0 {
		b.WriteString("(none)\n")
	}
	b.WriteString("\n:open <id> to resume\n")
	m.response.SetText(b.String())
}

func (m *Model) showProfiles() {
	profiles, err := m.db.ListProfiles()
	if err != nil {
		m.setError(err.Error())
		return
	}
	var b strings.Builder
	b.WriteString("profiles\n\n")
	for _, p := range profiles {
		cur := " "
		if m.profile != nil && m.profile.ID == p.ID {
			cur = "*"
		}
		fmt.Fprintf(&b, "%s %s  (%s)\n", cur, p.Name, p.Model)
	}
	if len(profiles) == 0 {
		b.WriteString("(none — :profile new)\n")
	}
	m.response.SetText(b.String())
}

func (m *Model) showProviders() {
	providers, err := m.db.ListProviders()
	if err != nil {
		m.setError(err.Error())
		return
	}
	var b strings.Builder
	b.WriteString("providers\n\n")
	for _, p := range providers {
		fmt.Fprintf(&b, "  %s  kind=%s model=%s\n", p.Name, p.Kind, p.DefaultModel)
	}
	if len(providers) == 0 {
		b.WriteString("(none — :provider new)\n")
	}
	m.response.SetText(b.String())
}

func (m *Model) showTemplates() {
	templates, err := m.db.ListPromptTemplates()
	if err != nil {
		m.setError(err.Error())
		return
	}
	var b strings.Builder
	b.WriteString("templates\n\n")
	for _, t := range templates {
		fmt.Fprintf(&b, "  %s\n", t.Name)
	}
	if len(templates) == 0 {
		b.WriteString("(none — :template new)\n")
	}
	m.response.SetText(b.String())
}

func transcriptHeader(role store.Role) string {
	switch role {
	case store.RoleUser:
		return "you ▸ "
	case store.RoleAssistant:
		return "model ▸ "
	default:
		return "system ▸ "
	}
}

func transcriptEntry(role store.Role, content string) string {
	return transcriptHeader(role) + content + "\n\n"
}

func (m *Model) setInfo(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

// layout distributes the screen: response panel on top, prompt panel below,
// then the status bar and the command line.
func (m *Model) layout() {
	contentW := m.width - 2 // panel borders
	if contentW < 1 {
		contentW = 1
	}
	respH := m.height - (promptRows + 2) - 2 - 2 // prompt panel, resp borders, status+cmdline
	if respH < 1 {
		respH = 1
	}
	m.response.setSize(contentW-1, respH) // one column for the scrollbar
	m.prompt.setSize(contentW, promptRows)
	m.cmdline.setWidth(m.width)
}

func (m Model) View() string {
	if !m.ready {
		return "starting…"
	}
	if m.width < 40 || m.height < 12 {
		return ErrorStyle.Render("terminal too small — need at least 40x12")
	}

	if len(m.modals) > 0 {
		return renderModal(m.modals[len(m.modals)-1], m.width, m.height)
	}

	respTitle := "conversation"
	if conv, err := m.db.Conversation(); err == nil && conv.Title != "" {
		respTitle = conv.Title
		if conv.Pinned {
			respTitle = "* " + respTitle
		}
	}
	if m.streaming {
		respTitle += " ⋯"
	}

	respBody := m.responseWithScrollbar()
	responsePanel := RenderPanel(respTitle, respBody, m.width, m.response.height, m.focus == FocusResponse)

	promptTitle := "prompt"
	if m.prompt.replaceMode() {
		promptTitle = "prompt [replace]"
	}
	promptPanel := RenderPanel(promptTitle, m.prompt.view(m.focus == FocusPrompt), m.width, promptRows, m.focus == FocusPrompt)

	return strings.Join([]string{
		responsePanel,
		promptPanel,
		m.statusBar(),
		m.cmdline.view(m.focus == FocusCommandLine),
	}, "\n")
}

func (m Model) responseWithScrollbar() string {
	body := m.response.view()
	lines := strings.Split(body, "\n")
	for len(lines) < m.response.height {
		lines = append(lines, "")
	}
	sb := RenderScrollbar(m.response.height, m.response.buf.DisplayRowCount(m.response.width), m.response.scroll)
	for i := range lines {
		if i < len(sb) {
			pad := m.response.width - visibleLen(lines[i])
			if pad < 0 {
				pad = 0
			}
			lines[i] = lines[i] + strings.Repeat(" ", pad) + sb[i]
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) statusBar() string {
	left := m.status
	if left == "" {
		left = "ready"
	}
	if m.statusErr {
		left = ErrorStyle.Render(left)
	}

	profile := "no profile"
	if m.profile != nil {
		profile = m.profile.Name
	}
	right := fmt.Sprintf("%s │ %s │ Tab panes  : commands  Ctrl+C quit", profile, m.focus)

	gap := m.width - visibleLen(left) - visibleLen(right) - 2
	if gap < 1 {
		gap = 1
	}
	return StatusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
