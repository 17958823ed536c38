package views

import (
	"time"

	"github.com/rivo/tview"

	"github.com/gram-chat/gram/internal/store"
)

// ContactList is the roster table: one row per contact with the last
// message preview, its delivery state and an online marker.
type ContactList struct {
	*tview.Table
	contacts []store.User
	isOnline func(userID string) bool
}

// NewContactList creates the roster table. isOnline is consulted on
// every redraw.
func NewContactList(isOnline func(userID string) bool) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Contacts ")

	return &ContactList{Table: table, isOnline: isOnline}
}

// Update redraws the roster.
func (cl *ContactList) Update(contacts []store.User) {
	cl.contacts = contacts
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i := range contacts {
		c := &contacts[i]
		row := i + 1

		name := c.DisplayName()
		if cl.isOnline != nil && cl.isOnline(c.ID) {
			name = "[green]*[-] " + name
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(28).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+previewText(c.LastMessage)).SetMaxWidth(44).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+previewTime(c.LastMessage)).SetMaxWidth(12))
	}
}

// SelectedContact returns the id of the highlighted contact, or empty.
func (cl *ContactList) SelectedContact() string {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(cl.contacts) {
		return cl.contacts[idx].ID
	}
	return ""
}

func previewText(m *store.Message) string {
	if m == nil {
		return "[::d]no messages yet[-:-:-]"
	}
	text := m.Text
	if text == "" && m.Image != "" {
		text = "[photo]"
	}
	marker := ""
	if m.Status == store.StatusSent {
		marker = "[yellow]•[-] "
	}
	return marker + tview.Escape(text)
}

func previewTime(m *store.Message) string {
	if m == nil {
		return ""
	}
	return formatTime(m.UpdatedAt)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
