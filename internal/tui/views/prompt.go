package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Prompt is a one-line modal input reused for the add-contact and
// reaction dialogs.
type Prompt struct {
	*tview.InputField
	onSubmit func(text string)
	onCancel func()
}

// NewPrompt creates an unlabeled prompt.
func NewPrompt() *Prompt {
	input := tview.NewInputField().SetFieldWidth(0)
	input.SetBorder(true)

	p := &Prompt{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := p.GetText()
			p.SetText("")
			if p.onSubmit != nil {
				p.onSubmit(text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})

	return p
}

// Ask configures the prompt for one question.
func (p *Prompt) Ask(title, label string, onSubmit func(text string), onCancel func()) {
	p.SetTitle(" " + title + " ")
	p.SetLabel(" " + label + " ")
	p.SetText("")
	p.onSubmit = onSubmit
	p.onCancel = onCancel
}
