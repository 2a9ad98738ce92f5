package session

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/chmod222/Luna/internal/config"
	"github.com/chmod222/Luna/internal/dispatch"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Nick:     "Luna",
		Username: "luna",
		RealName: "Luna Bot",
		Server:   "irc.example.org",
		DataDir:  dir,
	}
	cfg.SetDefaults()
	cfg.UsersFile = filepath.Join(dir, "users.txt")
	cfg.FloodRate = 1000
	cfg.FloodBurst = 1000
	cfg.ReadTimeout = 5 * time.Millisecond
	cfg.ReconnectDelay = time.Millisecond
	cfg.MaxReconnect = time.Millisecond
	return cfg
}

// newBufferedSession returns a session whose output goes to a buffer, for
// driving reactions without a connection
func newBufferedSession(t *testing.T, cfg *config.Config) (*Session, *bytes.Buffer) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	log, _ := test.NewNullLogger()
	s, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var buf bytes.Buffer
	s.out = &buf
	return s, &buf
}

type emitted struct {
	signal  string
	payload dispatch.Payload
}

// record collects every emission of the given signals in order
func record(s *Session, signals ...string) *[]emitted {
	var got []emitted
	for _, sig := range signals {
		s.disp.Register(sig, "test", dispatch.HandlerFunc(func(signal string, p dispatch.Payload) error {
			got = append(got, emitted{signal: signal, payload: p})
			return nil
		}))
	}
	return &got
}

func signalNames(got []emitted) []string {
	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e.signal)
	}
	return names
}

func feed(s *Session, lines ...string) {
	for _, line := range lines {
		s.handleLine(line)
	}
}

// sentLines splits and resets the output buffer
func sentLines(buf *bytes.Buffer) []string {
	out := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	buf.Reset()
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

// joinChannel runs the self join sequence for channel with alice (op) and
// bob (voice) present
func joinChannel(s *Session, buf *bytes.Buffer, channel string) {
	feed(s,
		":Luna!luna@bot.host JOIN "+channel,
		":irc.example.org 353 Luna = "+channel+" :@alice +bob Luna",
		":irc.example.org 352 Luna "+channel+" ali alice.host irc.example.org alice H@ :0 Alice",
		":irc.example.org 352 Luna "+channel+" bobu bob.host irc.example.org bob H+ :0 Bob",
		":irc.example.org 352 Luna "+channel+" luna bot.host irc.example.org Luna H :0 Luna Bot",
		":irc.example.org 315 Luna "+channel+" :End of /WHO list.",
	)
	buf.Reset()
}
