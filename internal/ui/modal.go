package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ModalResult reports what a key did to the top modal.
type ModalResult int

const (
	ModalContinue ModalResult = iota
	ModalDone
	ModalCancelled
)

// Modal is a stacked overlay. Only the top of the stack receives keys; the
// app pops it when HandleKey returns Done or Cancelled.
type Modal interface {
	Title() string
	HandleKey(msg tea.KeyMsg) (ModalResult, tea.Cmd)
	View(width int) string
	// Status is shown in the status bar after the modal closes with Done.
	Status() string
}

type formField struct {
	label    string
	optional bool
	validate func(v string) error
	input    textinput.Model
}

func newFormField(label, placeholder string, secret bool) formField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Prompt = label + ": "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	ti.TextStyle = lipgloss.NewStyle().Foreground(ColorWhite)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(ColorDim)
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return formField{label: label, input: ti}
}

// stepForm walks its fields one at a time. Enter validates the current field
// and advances; after the last field it shows a confirm summary. Esc cancels
// the whole form; nothing is committed until confirm.
type stepForm struct {
	fields     []formField
	idx        int
	confirming bool
	errMsg     string
}

func newStepForm(fields []formField) stepForm {
	f := stepForm{fields: fields}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

func (f *stepForm) value(i int) string {
	return strings.TrimSpace(f.fields[i].input.Value())
}

func (f *stepForm) valueFor(label string) string {
	for i := range f.fields {
		if f.fields[i].label == label {
			return f.value(i)
		}
	}
	return ""
}

func (f *stepForm) checkCurrent() error {
	fld := &f.fields[f.idx]
	v := f.value(f.idx)
	if v == "" {
		if fld.optional {
			return nil
		}
		return fmt.Errorf("%s is required", fld.label)
	}
	if fld.validate != nil {
		return fld.validate(v)
	}
	return nil
}

func (f *stepForm) focusField(i int) {
	f.fields[f.idx].input.Blur()
	f.idx = i
	f.fields[f.idx].input.Focus()
	f.errMsg = ""
}

// handleKey drives the form. commit runs when the user confirms; a commit
// error keeps the form open on the confirm step with the error shown.
func (f *stepForm) handleKey(msg tea.KeyMsg, commit func() error) (ModalResult, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return ModalCancelled, nil
	case "enter":
		if f.confirming {
			if err := commit(); err != nil {
				f.errMsg = err.Error()
				return ModalContinue, nil
			}
			return ModalDone, nil
		}
		if err := f.checkCurrent(); err != nil {
			f.errMsg = err.Error()
			return ModalContinue, nil
		}
		if f.idx == len(f.fields)-1 {
			f.fields[f.idx].input.Blur()
			f.confirming = true
			f.errMsg = ""
			return ModalContinue, nil
		}
		f.focusField(f.idx + 1)
		return ModalContinue, nil
	case "shift+tab":
		if f.confirming {
			f.confirming = false
			f.fields[f.idx].input.Focus()
			f.errMsg = ""
		} else if f.idx > 0 {
			f.focusField(f.idx - 1)
		}
		return ModalContinue, nil
	}
	if f.confirming {
		return ModalContinue, nil
	}
	var cmd tea.Cmd
	f.fields[f.idx].input, cmd = f.fields[f.idx].input.Update(msg)
	// Typing clears a stale field error.
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeyBackspace {
		f.errMsg = ""
	}
	return ModalContinue, cmd
}

func (f *stepForm) view(width int, summary []string) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	var lines []string
	if f.confirming {
		for _, s := range summary {
			lines = append(lines, "  "+s)
		}
		lines = append(lines, "")
		lines = append(lines, DimStyle.Render("  Enter → save  Shift+Tab → back  Esc → cancel"))
	} else {
		for i := range f.fields {
			marker := "  "
			if i == f.idx {
				marker = TitleStyle.Render("▸ ")
			}
			view := f.fields[i].input.View()
			if visibleLen(view) > innerW {
				view = truncateToWidth(view, innerW)
			}
			lines = append(lines, marker+view)
		}
		lines = append(lines, "")
		lines = append(lines, DimStyle.Render("  Enter → next  Shift+Tab → back  Esc → cancel"))
	}
	if f.errMsg != "" {
		lines = append(lines, ErrorStyle.Render("  "+f.errMsg))
	}
	return strings.Join(lines, "\n")
}

// renderModal centers a modal panel over the given screen size.
func renderModal(m Modal, screenW, screenH int) string {
	w := screenW * 2 / 3
	if w > 72 {
		w = 72
	}
	if w < 30 {
		w = screenW - 2
	}
	body := m.View(w)
	h := strings.Count(body, "\n") + 1
	panel := RenderPanel(m.Title(), body, w, h, true)
	return lipgloss.Place(screenW, screenH, lipgloss.Center, lipgloss.Center, panel)
}
