package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/api"
	"github.com/gram-chat/gram/internal/auth"
	"github.com/gram-chat/gram/internal/bus"
	"github.com/gram-chat/gram/internal/profile"
	"github.com/gram-chat/gram/internal/socket"
	"github.com/gram-chat/gram/internal/status"
	"github.com/gram-chat/gram/internal/store"
	intsync "github.com/gram-chat/gram/internal/sync"
)

func TestSignInSignOutLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	upgrader := websocket.Upgrader{}
	frames := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- frame
		}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	if err := machine.Transition(status.AuthRequired); err != nil {
		t.Fatal(err)
	}

	channel := socket.NewChannel(wsURL, b, machine, logger)
	minter := auth.NewMinter("secret", time.Minute)
	client := api.NewClient(srv.URL, minter, logger)
	engine := intsync.NewEngine(intsync.NewState(), client, channel, nil, b, logger)
	rt := NewRuntime("main", client, channel, engine, machine, logger)

	user := store.User{ID: "me", Email: "me@mail.com"}
	if err := rt.SignIn(context.Background(), user); err != nil {
		t.Fatal(err)
	}

	if got := machine.Current(); got != status.Online {
		t.Errorf("state = %s, want %s", got, status.Online)
	}
	if got := engine.State().Self().ID; got != "me" {
		t.Errorf("self = %q, want me", got)
	}

	creds, err := profile.LoadCredentials("main")
	if err != nil {
		t.Fatal(err)
	}
	if creds == nil || creds.UserID != "me" {
		t.Fatalf("credentials = %+v, want user me", creds)
	}

	// The first frame after a dial announces presence.
	select {
	case frame := <-frames:
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatal(err)
		}
		if env.Event != socket.EventAddOnlineUser {
			t.Errorf("first event = %q, want %q", env.Event, socket.EventAddOnlineUser)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for presence announcement")
	}

	if err := rt.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := machine.Current(); got != status.AuthRequired {
		t.Errorf("state after sign-out = %s, want %s", got, status.AuthRequired)
	}
	creds, err = profile.LoadCredentials("main")
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("credentials = %+v, want cleared", creds)
	}
}
