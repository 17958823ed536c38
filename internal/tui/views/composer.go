package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the input line of the conversation pane. Besides sending
// it doubles as the edit field: Start fills it with existing text and
// routes the next submit to the edit callback.
type Composer struct {
	*tview.InputField
	onSend   func(text string)
	onEdit   func(messageID, text string)
	onChange func(draft string)

	editingID string
}

// NewComposer creates the input line.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.GetText()
		if text == "" {
			return
		}
		if c.editingID != "" {
			id := c.editingID
			c.StopEditing()
			if c.onEdit != nil {
				c.onEdit(id, text)
			}
		} else if c.onSend != nil {
			c.onSend(text)
		}
		c.SetText("")
	})

	input.SetChangedFunc(func(text string) {
		if c.onChange != nil && c.editingID == "" {
			c.onChange(text)
		}
	})

	return c
}

// SetOnSend sets the submit callback for new messages.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnEdit sets the submit callback while editing.
func (c *Composer) SetOnEdit(fn func(messageID, text string)) {
	c.onEdit = fn
}

// SetOnChange sets the draft-changed callback used for typing signals.
func (c *Composer) SetOnChange(fn func(draft string)) {
	c.onChange = fn
}

// StartEditing switches the composer to edit mode for a message.
func (c *Composer) StartEditing(messageID, currentText string) {
	c.editingID = messageID
	c.SetLabel(" edit > ")
	c.SetText(currentText)
}

// StopEditing returns the composer to send mode.
func (c *Composer) StopEditing() {
	c.editingID = ""
	c.SetLabel(" > ")
}

// Editing reports whether the composer is in edit mode.
func (c *Composer) Editing() bool {
	return c.editingID != ""
}
