package irc

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrEmptyLine      = errors.New("empty line")
	ErrMissingCommand = errors.New("prefix without command")
)

// Verb classifies the command token of an Event
type Verb int

const (
	VerbUnknown Verb = iota
	VerbNumeric
	VerbJoin
	VerbPart
	VerbQuit
	VerbPrivmsg
	VerbNotice
	VerbNick
	VerbMode
	VerbPing
	VerbInvite
	VerbTopic
	VerbKick
)

var verbs = map[string]Verb{
	"JOIN":    VerbJoin,
	"PART":    VerbPart,
	"QUIT":    VerbQuit,
	"PRIVMSG": VerbPrivmsg,
	"NOTICE":  VerbNotice,
	"NICK":    VerbNick,
	"MODE":    VerbMode,
	"PING":    VerbPing,
	"INVITE":  VerbInvite,
	"TOPIC":   VerbTopic,
	"KICK":    VerbKick,
}

func (v Verb) String() string {
	switch v {
	case VerbNumeric:
		return "numeric"
	case VerbUnknown:
		return "unknown"
	}
	for name, verb := range verbs {
		if verb == v {
			return name
		}
	}
	return "unknown"
}

// Address is the sender of a line. Lines originating from a server carry
// only Host.
type Address struct {
	Nick string
	User string
	Host string
}

// ParseAddress splits a nick!user@host prefix. A token with neither
// separator is a server name.
func ParseAddress(prefix string) Address {
	var a Address
	bang := strings.IndexByte(prefix, '!')
	at := strings.IndexByte(prefix, '@')

	switch {
	case bang < 0 && at < 0:
		a.Host = prefix
	case bang >= 0 && at > bang:
		a.Nick = prefix[:bang]
		a.User = prefix[bang+1 : at]
		a.Host = prefix[at+1:]
	case bang >= 0:
		a.Nick = prefix[:bang]
		a.User = prefix[bang+1:]
	default:
		a.Nick = prefix[:at]
		a.Host = prefix[at+1:]
	}
	return a
}

// IsServer reports whether the address names a server rather than a user
func (a Address) IsServer() bool {
	return a.Nick == "" && a.Host != ""
}

// IsZero reports whether the line had no prefix at all
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	if a.Nick == "" {
		return a.Host
	}
	s := a.Nick
	if a.User != "" {
		s += "!" + a.User
	}
	if a.Host != "" {
		s += "@" + a.Host
	}
	return s
}

// Event is a single parsed protocol line
type Event struct {
	Sender      Address
	Command     string
	Verb        Verb
	Code        int
	Params      []string
	Trailing    string
	HasTrailing bool
}

// Parse turns a raw line (without CR/LF) into an Event.
//
// Only well-formedness is checked here; how many parameters a command
// needs is up to whoever reacts to it.
func Parse(line string) (Event, error) {
	var ev Event

	line = strings.TrimRight(line, "\r\n")
	rest := strings.TrimLeft(line, " ")
	if rest == "" {
		return ev, ErrEmptyLine
	}

	if rest[0] == ':' {
		prefix, after, found := strings.Cut(rest[1:], " ")
		after = strings.TrimLeft(after, " ")
		if !found || after == "" {
			return ev, ErrMissingCommand
		}
		ev.Sender = ParseAddress(prefix)
		rest = after
	}

	ev.Command, rest, _ = strings.Cut(rest, " ")
	ev.Verb, ev.Code = classify(ev.Command)

	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == ':' {
			ev.Trailing = rest[1:]
			ev.HasTrailing = true
			break
		}
		var param string
		param, rest, _ = strings.Cut(rest, " ")
		ev.Params = append(ev.Params, param)
	}

	return ev, nil
}

func classify(command string) (Verb, int) {
	if isNumeric(command) {
		code, err := strconv.Atoi(command)
		if err == nil {
			return VerbNumeric, code
		}
	}
	if v, ok := verbs[strings.ToUpper(command)]; ok {
		return v, 0
	}
	return VerbUnknown, 0
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Param returns the i-th middle parameter or "" when absent
func (e Event) Param(i int) string {
	if i < 0 || i >= len(e.Params) {
		return ""
	}
	return e.Params[i]
}

// AllParams returns the middle parameters followed by the trailing one
func (e Event) AllParams() []string {
	all := make([]string, 0, len(e.Params)+1)
	all = append(all, e.Params...)
	if e.HasTrailing {
		all = append(all, e.Trailing)
	}
	return all
}

// Last returns the trailing parameter if present, the last middle one
// otherwise. Some servers send JOIN and NICK targets either way.
func (e Event) Last() (string, bool) {
	if e.HasTrailing {
		return e.Trailing, true
	}
	if len(e.Params) > 0 {
		return e.Params[len(e.Params)-1], true
	}
	return "", false
}

// String re-serializes the event into a protocol line without CRLF
func (e Event) String() string {
	var b strings.Builder
	if !e.Sender.IsZero() {
		b.WriteByte(':')
		b.WriteString(e.Sender.String())
		b.WriteByte(' ')
	}
	b.WriteString(e.Command)
	for _, p := range e.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	if e.HasTrailing {
		b.WriteString(" :")
		b.WriteString(e.Trailing)
	}
	return b.String()
}
