package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/gram-chat/gram/internal/store"
)

// MessageList shows the open conversation as a selectable table so
// individual messages can be edited, deleted or reacted to.
type MessageList struct {
	*tview.Table
	messages []store.Message
	selfID   string
	typing   string
}

// NewMessageList creates the conversation table.
func NewMessageList() *MessageList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Messages ")

	return &MessageList{Table: table}
}

// SetSelf tells the view which sender renders as "You".
func (ml *MessageList) SetSelf(userID string) {
	ml.selfID = userID
}

// SetContactName updates the pane title.
func (ml *MessageList) SetContactName(name string) {
	ml.SetTitle(fmt.Sprintf(" %s ", name))
}

// SetTyping shows the contact's in-progress text below the history.
// Empty hides the indicator.
func (ml *MessageList) SetTyping(draft string) {
	ml.typing = draft
	ml.Update(ml.messages)
}

// Update redraws the conversation, oldest first.
func (ml *MessageList) Update(msgs []store.Message) {
	ml.messages = msgs
	ml.Clear()

	row := 0
	for i := range msgs {
		m := &msgs[i]

		sender := m.Sender.DisplayName()
		if m.Sender.ID == ml.selfID {
			sender = "You"
		}

		body := tview.Escape(m.Text)
		if m.Text == "" && m.Image != "" {
			body = "[::d][photo][-:-:-]"
		}
		if m.Reaction != "" {
			body += "  " + m.Reaction
		}

		meta := formatTime(m.CreatedAt)
		if m.Sender.ID == ml.selfID {
			if m.Status == store.StatusRead {
				meta += " [blue]::[-]"
			} else {
				meta += " [::d]:[-:-:-]"
			}
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]  %s", sender, meta, body)
		ml.SetCell(row, 0, tview.NewTableCell(line).SetExpansion(1))
		row++
	}

	if ml.typing != "" {
		cell := tview.NewTableCell("[::d]typing: " + tview.Escape(ml.typing) + "[-:-:-]").SetSelectable(false)
		ml.SetCell(row, 0, cell)
	}

	if row > 0 {
		ml.Select(row-1, 0)
		ml.ScrollToEnd()
	}
}

// SelectedMessage returns the highlighted message, or nil.
func (ml *MessageList) SelectedMessage() *store.Message {
	row, _ := ml.GetSelection()
	if row >= 0 && row < len(ml.messages) {
		m := ml.messages[row]
		return &m
	}
	return nil
}
