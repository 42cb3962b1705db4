package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// User is an account allowed to link the skill.
type User struct {
	ID        UserID   `json:"id"`
	Email     string   `json:"email"`
	Password  string   `json:"password,omitempty"`
	FullName  string   `json:"fullName,omitempty"`
	DeviceIDs []string `json:"deviceIds"`
}

// UserID is a user identifier that may be written as a JSON number or string.
type UserID string

// UnmarshalJSON accepts both 7 and "7".
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a number or string: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// String returns the identifier as text.
func (id UserID) String() string {
	return string(id)
}

// Public returns a copy of u without the password.
func (u User) Public() User {
	u.Password = ""
	u.DeviceIDs = append([]string(nil), u.DeviceIDs...)
	return u
}

// OwnsDevice reports whether deviceID is listed for the user.
func (u User) OwnsDevice(deviceID string) bool {
	for _, id := range u.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// isEmailLike reports whether a topic user name should be matched against
// e-mail addresses rather than display names.
func isEmailLike(nameOrEmail string) bool {
	return strings.Contains(nameOrEmail, "@")
}
