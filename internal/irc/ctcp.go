package irc

import "strings"

// CTCPDelim frames CTCP requests and replies inside PRIVMSG and NOTICE text
const CTCPDelim = '\x01'

// ParseCTCP unwraps a CTCP payload. The delimiters and surrounding
// whitespace are stripped, then the text is split into the verb and the
// remaining arguments.
func ParseCTCP(text string) (verb, args string, ok bool) {
	if len(text) < 2 || text[0] != CTCPDelim || text[len(text)-1] != CTCPDelim {
		return "", "", false
	}
	inner := strings.TrimSpace(text[1:len(text)-1])
	if inner == "" {
		return "", "", false
	}
	verb, args, _ = strings.Cut(inner, " ")
	return verb, args, true
}

// CTCP frames verb and args for sending
func CTCP(verb, args string) string {
	if args == "" {
		return string(CTCPDelim) + verb + string(CTCPDelim)
	}
	return string(CTCPDelim) + verb + " " + args + string(CTCPDelim)
}
