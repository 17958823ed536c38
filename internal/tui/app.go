// Package tui renders the client in the terminal. All state lives in
// the sync engine; the shell subscribes to the bus and redraws the
// affected view when the engine reports a change.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/api"
	"github.com/gram-chat/gram/internal/bus"
	"github.com/gram-chat/gram/internal/status"
	"github.com/gram-chat/gram/internal/store"
	syncpkg "github.com/gram-chat/gram/internal/sync"
	"github.com/gram-chat/gram/internal/tui/keys"
	"github.com/gram-chat/gram/internal/tui/model"
	"github.com/gram-chat/gram/internal/tui/views"
)

const flashTTL = 5 * time.Second

// Controller owns the session outside the screen: persisting
// credentials and driving the realtime channel up and down.
type Controller interface {
	SignIn(ctx context.Context, user store.User) error
	SignOut(ctx context.Context) error
}

// App is the terminal application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	registry *keys.Registry
	flash    model.Flash

	engine     *syncpkg.Engine
	client     *api.Client
	cache      *store.DB
	bus        *bus.Bus
	machine    *status.Machine
	controller Controller
	logger     *zap.Logger

	statusBar *views.StatusBar
	contacts  *views.ContactList
	messages  *views.MessageList
	composer  *views.Composer
	authView  *views.AuthView
	searchV   *views.SearchView
	settings  *views.SettingsView
	prompt    *views.Prompt

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the shell. cache may be nil; search then reports that
// no local index exists.
func NewApp(engine *syncpkg.Engine, client *api.Client, cache *store.DB, b *bus.Bus,
	machine *status.Machine, controller Controller, profileName string, logger *zap.Logger) *App {

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		registry:   keys.NewRegistry(),
		engine:     engine,
		client:     client,
		cache:      cache,
		bus:        b,
		machine:    machine,
		controller: controller,
		logger:     logger.Named("tui"),
		statusBar:  views.NewStatusBar(),
		messages:   views.NewMessageList(),
		composer:   views.NewComposer(),
		authView:   views.NewAuthView(),
		searchV:    views.NewSearchView(),
		settings:   views.NewSettingsView(),
		prompt:     views.NewPrompt(),
		ctx:        ctx,
		cancel:     cancel,
	}
	a.contacts = views.NewContactList(engine.State().IsOnline)

	a.statusBar.SetProfile(profileName)
	a.statusBar.SetState(string(machine.Current()))
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddPage("contacts", "open", &keys.Action{
		Key:         tcell.KeyEnter,
		Description: "enter:open",
		Handler:     func() { a.openSelectedContact() },
	})
	a.registry.AddPage("contacts", "add", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:add contact", Visible: true,
		Handler: func() { a.askAddContact() },
	})
	a.registry.AddPage("contacts", "search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Handler: func() { a.showPage("search", a.searchV.Input()) },
	})
	a.registry.AddPage("contacts", "settings", &keys.Action{
		Rune: 'p', Key: tcell.KeyRune,
		Description: "p:settings", Visible: true,
		Handler: func() { a.showSettings() },
	})
	a.registry.AddPage("chat", "edit", &keys.Action{
		Rune: 'e', Key: tcell.KeyRune,
		Description: "e:edit", Visible: true,
		Handler: func() { a.editSelectedMessage() },
	})
	a.registry.AddPage("chat", "delete", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:delete", Visible: true,
		Handler: func() { a.deleteSelectedMessage() },
	})
	a.registry.AddPage("chat", "photo", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:photo", Visible: true,
		Handler: func() { a.askPhoto() },
	})
	a.registry.AddPage("chat", "react", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:react", Visible: true,
		Handler: func() { a.askReaction() },
	})
}

func (a *App) setupCallbacks() {
	a.authView.SetOnRequestCode(func(email string) {
		go func() {
			normalized, err := a.client.Login(a.ctx, email)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.authView.ShowMessage("Could not send code: " + err.Error())
					return
				}
				a.authView.ShowOTPPrompt(normalized)
			})
		}()
	})

	a.authView.SetOnVerify(func(email, otp string) {
		go func() {
			user, err := a.client.Verify(a.ctx, email, otp)
			if err != nil {
				a.app.QueueUpdateDraw(func() {
					a.authView.ShowMessage("Sign-in failed: " + err.Error())
				})
				return
			}
			if err := a.controller.SignIn(a.ctx, *user); err != nil {
				a.app.QueueUpdateDraw(func() {
					a.authView.ShowMessage("Could not start session: " + err.Error())
				})
				return
			}
			_ = a.engine.RefreshContacts(a.ctx)
			a.app.QueueUpdateDraw(func() {
				a.messages.SetSelf(user.ID)
				a.contacts.Update(a.engine.State().Contacts())
				a.showPage("contacts", a.contacts)
			})
		}()
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.engine.SendMessage(a.ctx, text, ""); err != nil {
				a.flashError("Send failed", err)
			}
		}()
	})

	a.composer.SetOnEdit(func(messageID, text string) {
		go func() {
			if err := a.engine.EditMessage(a.ctx, messageID, text); err != nil {
				a.flashError("Edit failed", err)
			}
		}()
	})

	a.composer.SetOnChange(func(draft string) {
		go a.engine.Typing(draft)
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			if a.cache == nil {
				a.flash.Set("No local index for this profile", flashTTL)
				return
			}
			results, err := a.cache.SearchMessages(query, "", 50)
			if err != nil {
				a.flashError("Search failed", err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})

	a.settings.SetOnSaveProfile(func(edit views.ProfileEdit) {
		go func() {
			patch := api.ProfilePatch{
				FirstName:         &edit.FirstName,
				LastName:          &edit.LastName,
				Bio:               &edit.Bio,
				Avatar:            &edit.Avatar,
				Muted:             &edit.Muted,
				NotificationSound: &edit.NotificationSound,
				SendingSound:      &edit.SendingSound,
			}
			if err := a.engine.UpdateProfile(a.ctx, patch); err != nil {
				a.flashError("Save failed", err)
				return
			}
			a.flash.Set("Profile saved", flashTTL)
		}()
	})

	a.settings.SetOnRequestEmailCode(func(newEmail string) {
		go func() {
			if err := a.client.SendEmailOTP(a.ctx, newEmail); err != nil {
				a.flashError("Could not send code", err)
			}
		}()
	})

	a.settings.SetOnCommitEmail(func(newEmail, otp string) {
		go func() {
			if err := a.client.UpdateEmail(a.ctx, newEmail, otp); err != nil {
				a.flashError("Email change failed", err)
				return
			}
			a.signOut()
		}()
	})

	a.settings.SetOnSignOut(func() { go a.signOut() })

	a.settings.SetOnDeleteAccount(func() {
		go func() {
			if err := a.client.DeleteAccount(a.ctx); err != nil {
				a.flashError("Delete failed", err)
				return
			}
			a.signOut()
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.messages, 0, 1, true).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("auth", a.authView, true, false)
	a.pages.AddPage("contacts", a.contacts, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)
	a.pages.AddPage("settings", a.settings, true, false)
	a.pages.AddPage("prompt", modal(a.prompt, 50, 3), true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch page {
			case "chat":
				if a.composer.Editing() {
					a.composer.StopEditing()
					a.composer.SetText("")
					a.app.SetFocus(a.messages)
					return nil
				}
				a.engine.CloseConversation()
				a.showPage("contacts", a.contacts)
				return nil
			case "search", "settings":
				a.showPage("contacts", a.contacts)
				return nil
			case "prompt":
				a.pages.HidePage("prompt")
				a.app.SetFocus(a.contacts)
				return nil
			}
		}

		// Text inputs keep every key.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if page == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func modal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) showPage(name string, focus tview.Primitive) {
	a.pages.SwitchToPage(name)
	if focus != nil {
		a.app.SetFocus(focus)
	}
}

func (a *App) showSettings() {
	a.settings.SetUser(a.engine.State().Self())
	a.showPage("settings", a.settings.Form())
}

func (a *App) openSelectedContact() {
	contactID := a.contacts.SelectedContact()
	if contactID == "" {
		return
	}
	go func() {
		if err := a.engine.OpenConversation(a.ctx, contactID); err != nil {
			a.flashError("Load failed", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			name := contactID
			if c := a.engine.State().Contact(contactID); c != nil {
				name = c.DisplayName()
			}
			a.messages.SetContactName(name)
			a.messages.Update(a.engine.State().Messages())
			a.showPage("chat", a.messages)
		})
	}()
}

func (a *App) askAddContact() {
	a.prompt.Ask("Add contact", "email:", func(email string) {
		a.pages.HidePage("prompt")
		a.app.SetFocus(a.contacts)
		if email == "" {
			return
		}
		go func() {
			if _, err := a.engine.AddContact(a.ctx, email); err != nil {
				a.flashError("Add failed", err)
			}
		}()
	}, func() {
		a.pages.HidePage("prompt")
		a.app.SetFocus(a.contacts)
	})
	a.pages.ShowPage("prompt")
	a.app.SetFocus(a.prompt)
}

func (a *App) editSelectedMessage() {
	msg := a.messages.SelectedMessage()
	if msg == nil || msg.Sender.ID != a.engine.State().Self().ID {
		a.flash.Set("Only your own messages can be edited", flashTTL)
		return
	}
	if msg.Image != "" && msg.Text == "" {
		a.flash.Set("Photos cannot be edited", flashTTL)
		return
	}
	a.composer.StartEditing(msg.ID, msg.Text)
	a.app.SetFocus(a.composer.InputField)
}

func (a *App) deleteSelectedMessage() {
	msg := a.messages.SelectedMessage()
	if msg == nil || msg.Sender.ID != a.engine.State().Self().ID {
		a.flash.Set("Only your own messages can be deleted", flashTTL)
		return
	}
	id := msg.ID
	go func() {
		if err := a.engine.DeleteMessage(a.ctx, id); err != nil {
			a.flashError("Delete failed", err)
		}
	}()
}

func (a *App) askPhoto() {
	a.prompt.Ask("Send photo", "url:", func(url string) {
		a.pages.HidePage("prompt")
		a.app.SetFocus(a.messages)
		if url == "" {
			return
		}
		go func() {
			if err := a.engine.SendMessage(a.ctx, "", url); err != nil {
				a.flashError("Send failed", err)
			}
		}()
	}, func() {
		a.pages.HidePage("prompt")
		a.app.SetFocus(a.messages)
	})
	a.pages.ShowPage("prompt")
	a.app.SetFocus(a.prompt)
}

func (a *App) askReaction() {
	msg := a.messages.SelectedMessage()
	if msg == nil {
		return
	}
	id := msg.ID
	a.prompt.Ask("React", "emoji:", func(emoji string) {
		a.pages.HidePage("prompt")
		a.app.SetFocus(a.messages)
		if emoji == "" {
			return
		}
		go func() {
			if err := a.engine.React(a.ctx, id, emoji); err != nil {
				a.flashError("Reaction failed", err)
			}
		}()
	}, func() {
		a.pages.HidePage("prompt")
		a.app.SetFocus(a.messages)
	})
	a.pages.ShowPage("prompt")
	a.app.SetFocus(a.prompt)
}

func (a *App) signOut() {
	if err := a.controller.SignOut(a.ctx); err != nil {
		a.flashError("Sign-out failed", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.authView.ShowEmailPrompt()
		a.showPage("auth", a.authView.Form())
	})
}

func (a *App) flashError(prefix string, err error) {
	a.logger.Warn(prefix, zap.Error(err))
	a.flash.Set(prefix+": "+err.Error(), flashTTL)
}

// Run shows the initial page and blocks until the user quits.
func (a *App) Run() error {
	go a.watchBus()

	if a.machine.Current() == status.AuthRequired {
		a.showPage("auth", a.authView.Form())
	} else {
		a.messages.SetSelf(a.engine.State().Self().ID)
		a.contacts.Update(a.engine.State().Contacts())
		go func() {
			if err := a.engine.RefreshContacts(a.ctx); err != nil {
				a.flashError("Refresh failed", err)
			}
		}()
	}

	return a.app.Run()
}

// watchBus redraws views as the engine and the session report changes.
func (a *App) watchBus() {
	events, unsub := a.bus.Subscribe("", 128)
	defer unsub()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
		case evt := <-events:
			a.handleBusEvent(evt)
		}
	}
}

func (a *App) handleBusEvent(evt bus.Event) {
	switch evt.Kind {
	case "state.contacts_changed", "state.presence_changed":
		a.app.QueueUpdateDraw(func() {
			a.contacts.Update(a.engine.State().Contacts())
		})
	case "state.messages_changed":
		a.app.QueueUpdateDraw(func() {
			a.messages.Update(a.engine.State().Messages())
		})
	case "state.typing_changed":
		a.app.QueueUpdateDraw(func() {
			a.messages.SetTyping(a.engine.State().Typing())
		})
	case "state.self_changed":
		a.app.QueueUpdateDraw(func() {
			a.settings.SetUser(a.engine.State().Self())
		})
	case "session.status_changed":
		change, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetState(string(change.To))
		})
	case "notify.sound":
		cue, ok := evt.Payload.(syncpkg.SoundCue)
		if !ok {
			return
		}
		name := cue.Name
		if name == "" {
			name = cue.Kind
		}
		a.flash.Set("♪ "+name, 2*time.Second)
	}
}

// Stop tears the shell down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
