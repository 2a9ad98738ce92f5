package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircmsg"
)

// MaxLineLen is the longest line sent, CRLF included
const MaxLineLen = 512

var errNotConnected = errors.New("not connected")

// trailing lists commands whose parameter at the given position is free
// text and always goes out with a ':' marker
var trailing = map[string]int{
	"PRIVMSG": 2,
	"NOTICE":  2,
	"PASS":    1,
	"PART":    2,
	"TOPIC":   2,
	"KICK":    3,
	"QUIT":    1,
	"PING":    1,
	"PONG":    1,
	"USER":    4,
}

// formatLine builds one protocol line, cut to MaxLineLen
func formatLine(command string, params ...string) (string, error) {
	msg := ircmsg.MakeMessage(nil, "", command, params...)
	if n, ok := trailing[command]; ok && len(params) == n {
		msg.ForceTrailing()
	}
	line, err := msg.LineBytesStrict(false, MaxLineLen)
	if err != nil && !errors.Is(err, ircmsg.ErrorBodyTooLong) {
		return "", fmt.Errorf("cannot send %s: %w", command, err)
	}
	return string(line), nil
}

// Send writes one line to the server, waiting for the flood limiter
func (s *Session) Send(command string, params ...string) error {
	line, err := formatLine(command, params...)
	if err != nil {
		return err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return fmt.Errorf("cannot send %s: %w", command, err)
		}
	}
	return s.writeLine(line)
}

func (s *Session) writeLine(line string) error {
	if s.out == nil {
		return errNotConnected
	}
	if s.conn != nil {
		s.conn.SetWriteDeadline(s.now().Add(writeTimeout))
	}
	s.log.Debugf("<< %s", strings.TrimSuffix(line, "\r\n"))
	_, err := s.out.Write([]byte(line))
	return err
}

func (s *Session) quitLine() string {
	line, err := formatLine("QUIT", s.cfg.QuitMessage)
	if err != nil {
		return "QUIT\r\n"
	}
	return line
}

// decode turns an inbound line into a string, mapping input that is not
// UTF-8 through the fallback charset
func (s *Session) decode(line []byte) string {
	if utf8.Valid(line) || s.fallback == nil {
		return string(line)
	}
	out, err := s.fallback.Bytes(line)
	if err != nil {
		return string(line)
	}
	return string(out)
}
