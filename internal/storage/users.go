package storage

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Permission is a set of administrative rights
type Permission uint

const (
	// PermModules allows loading and unloading handler modules
	PermModules Permission = 1 << iota
	// PermUsers allows reloading the administrator list
	PermUsers

	PermNone Permission = 0
	PermAll             = PermModules | PermUsers
)

// Has reports whether p includes every right in want
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// ParseLevel maps a comma separated level field to permissions.
// "admin" grants everything; unknown words grant nothing.
func ParseLevel(level string) Permission {
	var p Permission
	for _, word := range strings.Split(level, ",") {
		switch strings.ToLower(strings.TrimSpace(word)) {
		case "admin", "owner":
			p |= PermAll
		case "modules":
			p |= PermModules
		case "users":
			p |= PermUsers
		}
	}
	return p
}

// User is one entry of the administrator list
type User struct {
	Mask  string
	Level string

	re *regexp.Regexp
}

// Matches reports whether a nick!user@host address fits the mask
func (u *User) Matches(address string) bool {
	if u.re == nil {
		u.re = regexp.MustCompile("(?i)^" + maskToRegexp(u.Mask) + "$")
	}
	return u.re.MatchString(address)
}

// maskToRegexp converts a '*' and '?' wildcard mask into a pattern
// matching the same set of strings. '\' escapes the next character.
func maskToRegexp(mask string) string {
	var pat strings.Builder
	var chunk strings.Builder

	flush := func() {
		if chunk.Len() != 0 {
			pat.WriteString(regexp.QuoteMeta(chunk.String()))
			chunk.Reset()
		}
	}
	escaped := false
	for i := 0; i < len(mask); i++ {
		c := mask[i]
		if escaped {
			chunk.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '?':
			flush()
			pat.WriteByte('.')
		case '*':
			flush()
			pat.WriteString(".*")
		case '\\':
			escaped = true
		default:
			chunk.WriteByte(c)
		}
	}
	flush()
	return pat.String()
}

// Users is the administrator list backed by a flat file of
// "hostmask:level" lines
type Users struct {
	path  string
	users []*User
}

// LoadUsers reads the administrator list. A missing file is an empty list.
func LoadUsers(path string) (*Users, error) {
	u := &Users{path: path}
	if err := u.Reload(); err != nil {
		return nil, err
	}
	return u, nil
}

// Reload replaces the list with the file's current contents. On error the
// previous list is kept.
func (u *Users) Reload() error {
	lines, err := readLines(u.path)
	if err != nil {
		if os.IsNotExist(err) {
			u.users = nil
			return nil
		}
		return fmt.Errorf("failed to read user list: %w", err)
	}

	users := make([]*User, 0, len(lines))
	for _, line := range lines {
		mask, level, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || mask == "" || level == "" || strings.HasPrefix(mask, "#") {
			continue
		}
		users = append(users, &User{Mask: mask, Level: level})
	}
	u.users = users
	return nil
}

// Save writes the list back to its file
func (u *Users) Save() error {
	lines := make([]string, 0, len(u.users))
	for _, user := range u.users {
		lines = append(lines, user.Mask+":"+user.Level)
	}
	return writeLines(u.path, lines)
}

// Add appends an entry
func (u *Users) Add(mask, level string) {
	u.users = append(u.users, &User{Mask: mask, Level: level})
}

// Remove drops the entry with exactly this mask (case-insensitive)
func (u *Users) Remove(mask string) bool {
	for i, user := range u.users {
		if strings.EqualFold(user.Mask, mask) {
			u.users = append(u.users[:i], u.users[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of entries
func (u *Users) Len() int {
	return len(u.users)
}

// MatchAdministrator returns the rights of the first entry whose mask
// matches address
func (u *Users) MatchAdministrator(address string) Permission {
	for _, user := range u.users {
		if user.Matches(address) {
			return ParseLevel(user.Level)
		}
	}
	return PermNone
}
