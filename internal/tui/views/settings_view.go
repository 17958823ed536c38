package views

import (
	"github.com/rivo/tview"

	"github.com/gram-chat/gram/internal/store"
)

// ProfileEdit carries the settings form values back to the caller.
type ProfileEdit struct {
	FirstName         string
	LastName          string
	Bio               string
	Avatar            string
	Muted             bool
	NotificationSound string
	SendingSound      string
}

// SettingsView edits the signed-in user: profile fields, notification
// preferences, the change-of-email flow and account removal.
type SettingsView struct {
	*tview.Flex
	form    *tview.Form
	message *tview.TextView

	onSaveProfile      func(edit ProfileEdit)
	onRequestEmailCode func(newEmail string)
	onCommitEmail      func(newEmail, otp string)
	onDeleteAccount    func()
	onSignOut          func()

	user store.User
}

// NewSettingsView creates the settings page.
func NewSettingsView() *SettingsView {
	v := &SettingsView{
		form:    tview.NewForm(),
		message: tview.NewTextView().SetDynamicColors(true),
	}
	v.form.SetBorder(true).SetTitle(" Settings ")

	v.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.message, 2, 0, false).
		AddItem(v.form, 0, 1, true)

	return v
}

// SetOnSaveProfile sets the profile save callback.
func (v *SettingsView) SetOnSaveProfile(fn func(edit ProfileEdit)) { v.onSaveProfile = fn }

// SetOnRequestEmailCode sets the callback for mailing a change code.
func (v *SettingsView) SetOnRequestEmailCode(fn func(newEmail string)) { v.onRequestEmailCode = fn }

// SetOnCommitEmail sets the callback that commits the address change.
func (v *SettingsView) SetOnCommitEmail(fn func(newEmail, otp string)) { v.onCommitEmail = fn }

// SetOnDeleteAccount sets the account removal callback.
func (v *SettingsView) SetOnDeleteAccount(fn func()) { v.onDeleteAccount = fn }

// SetOnSignOut sets the sign-out callback.
func (v *SettingsView) SetOnSignOut(fn func()) { v.onSignOut = fn }

// SetUser loads the form from the current user.
func (v *SettingsView) SetUser(u store.User) {
	v.user = u
	v.showProfileForm()
}

// ShowMessage replaces the helper line above the form.
func (v *SettingsView) ShowMessage(msg string) {
	v.message.Clear()
	v.message.SetText(msg)
}

func (v *SettingsView) showProfileForm() {
	u := v.user
	v.form.Clear(true)
	v.form.AddInputField("First name", u.FirstName, 30, nil, nil)
	v.form.AddInputField("Last name", u.LastName, 30, nil, nil)
	v.form.AddInputField("Bio", u.Bio, 50, nil, nil)
	v.form.AddInputField("Avatar URL", u.Avatar, 50, nil, nil)
	v.form.AddCheckbox("Mute notifications", u.Muted, nil)
	v.form.AddInputField("Notification sound", u.NotificationSound, 20, nil, nil)
	v.form.AddInputField("Sending sound", u.SendingSound, 20, nil, nil)

	v.form.AddButton("Save", func() {
		if v.onSaveProfile == nil {
			return
		}
		v.onSaveProfile(ProfileEdit{
			FirstName:         v.fieldText("First name"),
			LastName:          v.fieldText("Last name"),
			Bio:               v.fieldText("Bio"),
			Avatar:            v.fieldText("Avatar URL"),
			Muted:             v.form.GetFormItemByLabel("Mute notifications").(*tview.Checkbox).IsChecked(),
			NotificationSound: v.fieldText("Notification sound"),
			SendingSound:      v.fieldText("Sending sound"),
		})
	})
	v.form.AddButton("Change email", func() { v.showEmailForm() })
	v.form.AddButton("Sign out", func() {
		if v.onSignOut != nil {
			v.onSignOut()
		}
	})
	v.form.AddButton("Delete account", func() { v.showDeleteConfirm() })
	v.ShowMessage(" Signed in as " + u.Email)
}

func (v *SettingsView) showEmailForm() {
	v.form.Clear(true)
	v.form.AddInputField("New email", "", 40, nil, nil)
	v.form.AddButton("Send code", func() {
		email := v.fieldText("New email")
		if email == "" || v.onRequestEmailCode == nil {
			return
		}
		v.onRequestEmailCode(email)
		v.showEmailCodeForm(email)
	})
	v.form.AddButton("Back", func() { v.showProfileForm() })
	v.ShowMessage(" The new address must confirm a mailed code.")
}

func (v *SettingsView) showEmailCodeForm(email string) {
	v.form.Clear(true)
	v.form.AddInputField("Code", "", 12, nil, nil)
	v.form.AddButton("Confirm", func() {
		otp := v.fieldText("Code")
		if otp == "" || v.onCommitEmail == nil {
			return
		}
		v.onCommitEmail(email, otp)
	})
	v.form.AddButton("Back", func() { v.showEmailForm() })
	v.ShowMessage(" A code was sent to " + email + ". Confirming signs you out.")
}

func (v *SettingsView) showDeleteConfirm() {
	v.form.Clear(true)
	v.form.AddButton("Really delete my account", func() {
		if v.onDeleteAccount != nil {
			v.onDeleteAccount()
		}
	})
	v.form.AddButton("Back", func() { v.showProfileForm() })
	v.ShowMessage(" [red]This removes the account and every message.[-]")
}

func (v *SettingsView) fieldText(label string) string {
	return v.form.GetFormItemByLabel(label).(*tview.InputField).GetText()
}

// Form returns the focusable primitive of the page.
func (v *SettingsView) Form() *tview.Form {
	return v.form
}
