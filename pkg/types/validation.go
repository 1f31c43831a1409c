package types

import (
	"regexp"
	"strings"
)

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// IsValidUserID reports whether id is 1-64 characters of
// alphanumerics, underscore or hyphen. UUIDs pass.
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// IsValidClassroomName reports whether name is printable and 1-200
// characters after trimming.
func IsValidClassroomName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= 200
}

// IsValidEmail does a minimal shape check; real validation happens when
// mail is actually delivered.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && len(email) <= 254 && !strings.ContainsAny(email, " \t\n")
}
