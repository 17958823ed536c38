package profile

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Credentials is the identity persisted after a successful OTP sign-in.
// The full profile (names, sounds, mute flag) is refreshed from the API.
type Credentials struct {
	UserID string `toml:"user_id"`
	Email  string `toml:"email"`
}

// SaveCredentials persists the signed-in identity for a profile.
func SaveCredentials(name string, creds *Credentials) error {
	if err := EnsureDir(name); err != nil {
		return err
	}
	f, err := os.OpenFile(CredentialsPath(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(creds)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadCredentials reads the stored identity for a profile. Returns nil
// (no error) when the profile has never signed in.
func LoadCredentials(name string) (*Credentials, error) {
	var creds Credentials
	_, err := toml.DecodeFile(CredentialsPath(name), &creds)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if creds.UserID == "" {
		return nil, nil
	}
	return &creds, nil
}

// ClearCredentials removes the stored identity (sign-out, account deletion).
func ClearCredentials(name string) error {
	err := os.Remove(CredentialsPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
