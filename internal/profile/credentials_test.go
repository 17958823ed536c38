package profile

import "testing"

func TestCredentialsRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	creds := &Credentials{UserID: "u1", Email: "me@mail.com"}
	if err := SaveCredentials("test", creds); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}

	loaded, err := LoadCredentials("test")
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if loaded == nil || loaded.UserID != "u1" || loaded.Email != "me@mail.com" {
		t.Errorf("loaded = %+v, want round-trip", loaded)
	}
}

func TestLoadCredentialsNeverSignedIn(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	creds, err := LoadCredentials("fresh")
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if creds != nil {
		t.Errorf("creds = %+v, want nil for fresh profile", creds)
	}
}

func TestClearCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := SaveCredentials("test", &Credentials{UserID: "u1", Email: "a@b.c"}); err != nil {
		t.Fatal(err)
	}
	if err := ClearCredentials("test"); err != nil {
		t.Fatal(err)
	}
	// Clearing twice is fine.
	if err := ClearCredentials("test"); err != nil {
		t.Fatal(err)
	}

	creds, err := LoadCredentials("test")
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("creds = %+v, want nil after clear", creds)
	}
}
