package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gram-chat/gram/internal/store"
)

// SearchView queries the local message cache and lists snippets.
type SearchView struct {
	*tview.Flex
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
}

// NewSearchView creates the search page.
func NewSearchView() *SearchView {
	input := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)
	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	results.SetBorder(true).SetTitle(" Results ")

	v := &SearchView{
		input:   input,
		results: results,
	}
	v.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && v.onQuery != nil {
			if q := input.GetText(); q != "" {
				v.onQuery(q)
			}
		}
	})

	return v
}

// SetOnQuery sets the callback run when a query is submitted.
func (v *SearchView) SetOnQuery(fn func(query string)) {
	v.onQuery = fn
}

// Update redraws the result table.
func (v *SearchView) Update(results []store.SearchResult) {
	v.results.Clear()
	if len(results) == 0 {
		v.results.SetCell(0, 0, tview.NewTableCell(" no matches").SetSelectable(false))
		return
	}
	for i, r := range results {
		when := formatTime(r.Message.CreatedAt)
		v.results.SetCell(i, 0, tview.NewTableCell(" "+when).SetMaxWidth(12))
		v.results.SetCell(i, 1, tview.NewTableCell(" "+r.Snippet).SetExpansion(1))
	}
	v.results.Select(0, 0)
}

// Input returns the query field for focusing.
func (v *SearchView) Input() *tview.InputField {
	return v.input
}

// Results returns the result table for focusing.
func (v *SearchView) Results() *tview.Table {
	return v.results
}
