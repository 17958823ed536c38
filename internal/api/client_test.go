package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gram-chat/gram/internal/auth"
	"github.com/gram-chat/gram/internal/store"
	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *auth.Minter) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	minter := auth.NewMinter("test-secret", time.Minute)
	c := NewClient(srv.URL, minter, zap.NewNop())
	c.SetUserID("me")
	return c, minter
}

func TestAuthorizedRequestCarriesMintedToken(t *testing.T) {
	var gotAuth string
	c, minter := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"contacts": []store.User{}})
	})

	if _, err := c.Contacts(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("Authorization = %q, want Bearer token", gotAuth)
	}
	claims, err := minter.Parse(strings.TrimPrefix(gotAuth, "Bearer "))
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.UserID != "me" {
		t.Errorf("token user id = %q, want me", claims.UserID)
	}
}

func TestLoginIsUnauthorized(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not carry a bearer token")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "me@mail.com"})
	})

	email, err := c.Login(context.Background(), "ME@mail.com")
	if err != nil {
		t.Fatal(err)
	}
	if email != "me@mail.com" {
		t.Errorf("email = %q, want normalized me@mail.com", email)
	}
}

func TestServerErrorMessageSurfaced(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "contact already exists"})
	})

	_, err := c.AddContact(context.Background(), "dup@mail.com")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "contact already exists" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/user/message" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["receiver"] != "u2" {
			t.Errorf("receiver = %q, want u2", body["receiver"])
		}
		_ = json.NewEncoder(w).Encode(SendResult{
			NewMessage: store.Message{ID: "m1", Text: body["text"], Status: store.StatusSent},
			Sender:     store.User{ID: "me"},
			Receiver:   store.User{ID: "u2"},
		})
	})

	res, err := c.SendMessage(context.Background(), "hi", "", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewMessage.ID != "m1" || res.NewMessage.Text != "hi" {
		t.Errorf("new message = %+v", res.NewMessage)
	}
}

func TestMarkReadBatch(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []store.Message `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for i := range body.Messages {
			body.Messages[i].Status = store.StatusRead
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	updated, err := c.MarkRead(context.Background(), []store.Message{{ID: "m1"}, {ID: "m2"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 2 || updated[0].Status != store.StatusRead {
		t.Errorf("updated = %+v", updated)
	}
}
