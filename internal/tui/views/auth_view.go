package views

import (
	"github.com/rivo/tview"
)

// AuthView runs the two-step sign-in: an email prompt, then the
// one-time code prompt once the server mailed one out.
type AuthView struct {
	*tview.Flex
	form    *tview.Form
	message *tview.TextView

	onRequestCode func(email string)
	onVerify      func(email, otp string)

	email string
}

// NewAuthView creates the sign-in page.
func NewAuthView() *AuthView {
	v := &AuthView{
		form:    tview.NewForm(),
		message: tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter),
	}
	v.form.SetBorder(true).SetTitle(" Sign in ")

	v.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.message, 3, 0, false).
		AddItem(v.form, 0, 1, true)

	v.ShowEmailPrompt()
	return v
}

// SetOnRequestCode sets the callback for the email step.
func (v *AuthView) SetOnRequestCode(fn func(email string)) {
	v.onRequestCode = fn
}

// SetOnVerify sets the callback for the code step.
func (v *AuthView) SetOnVerify(fn func(email, otp string)) {
	v.onVerify = fn
}

// ShowEmailPrompt resets the page to the email step.
func (v *AuthView) ShowEmailPrompt() {
	v.email = ""
	v.form.Clear(true)
	v.form.AddInputField("Email", "", 40, nil, nil)
	v.form.AddButton("Send code", func() {
		email := v.form.GetFormItemByLabel("Email").(*tview.InputField).GetText()
		if email == "" {
			return
		}
		if v.onRequestCode != nil {
			v.onRequestCode(email)
		}
	})
	v.ShowMessage("Enter your email to receive a sign-in code.")
}

// ShowOTPPrompt switches to the code step for the given address.
func (v *AuthView) ShowOTPPrompt(email string) {
	v.email = email
	v.form.Clear(true)
	v.form.AddInputField("Code", "", 12, nil, nil)
	v.form.AddButton("Verify", func() {
		otp := v.form.GetFormItemByLabel("Code").(*tview.InputField).GetText()
		if otp == "" {
			return
		}
		if v.onVerify != nil {
			v.onVerify(v.email, otp)
		}
	})
	v.form.AddButton("Back", func() { v.ShowEmailPrompt() })
	v.ShowMessage("A code was sent to " + email + ".")
}

// ShowMessage replaces the helper line above the form.
func (v *AuthView) ShowMessage(msg string) {
	v.message.Clear()
	v.message.SetText("\n" + msg)
}

// Form returns the focusable primitive of the page.
func (v *AuthView) Form() *tview.Form {
	return v.form
}
