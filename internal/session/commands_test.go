package session

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/chmod222/Luna/internal/storage"
)

func writeUsers(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestAdminLoadModule(t *testing.T) {
	cfg := testConfig(t)
	writeUsers(t, cfg.UsersFile, "*!*@admin.host:admin")
	s, buf := newBufferedSession(t, cfg)

	feed(s, ":alice!ali@admin.host PRIVMSG Luna :Luna: load ctcp")

	if !reflect.DeepEqual(s.modules.Loaded(), []string{"ctcp"}) {
		t.Errorf("Expected ctcp to be loaded, got %v", s.modules.Loaded())
	}
	if lines := sentLines(buf); !reflect.DeepEqual(lines, []string{"NOTICE alice :Loaded ctcp"}) {
		t.Errorf("Unexpected reply %q", lines)
	}

	audit, err := storage.LoadAudit(cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(audit) != 1 || !strings.HasSuffix(audit[0], "alice!ali@admin.host -> load ctcp") {
		t.Errorf("Unexpected audit log %q", audit)
	}
}

func TestAdminDenied(t *testing.T) {
	cfg := testConfig(t)
	writeUsers(t, cfg.UsersFile, "*!*@admin.host:modules")
	s, buf := newBufferedSession(t, cfg)

	feed(s,
		":mallory!m@evil.host PRIVMSG #luna :Luna: load ctcp",
		":alice!ali@admin.host PRIVMSG Luna :Luna: reloadusers",
	)

	if len(s.modules.Loaded()) != 0 {
		t.Errorf("Expected nothing loaded, got %v", s.modules.Loaded())
	}
	want := []string{"NOTICE #luna :Permission denied", "NOTICE alice :Permission denied"}
	if lines := sentLines(buf); !reflect.DeepEqual(lines, want) {
		t.Errorf("Expected %q, got %q", want, lines)
	}

	audit, _ := storage.LoadAudit(cfg.DataDir)
	if len(audit) != 2 || !strings.Contains(audit[0], "DENIED - load ctcp") {
		t.Errorf("Unexpected audit log %q", audit)
	}
}

func TestAdminUnloadAndModules(t *testing.T) {
	cfg := testConfig(t)
	writeUsers(t, cfg.UsersFile, "alice!*@*:modules")
	s, buf := newBufferedSession(t, cfg)

	feed(s,
		":alice!ali@admin.host PRIVMSG Luna :Luna: load rejoin",
		":alice!ali@admin.host PRIVMSG Luna :Luna: modules",
		":alice!ali@admin.host PRIVMSG Luna :Luna: unload rejoin",
		":alice!ali@admin.host PRIVMSG Luna :Luna: unload rejoin",
	)

	want := []string{
		"NOTICE alice :Loaded rejoin",
		"NOTICE alice :Loaded: rejoin",
		"NOTICE alice :Available: ctcp, rejoin",
		"NOTICE alice :Unloaded rejoin",
		"NOTICE alice :module not loaded: rejoin",
	}
	if lines := sentLines(buf); !reflect.DeepEqual(lines, want) {
		t.Errorf("Expected %q, got %q", want, lines)
	}
}

func TestReloadUsers(t *testing.T) {
	cfg := testConfig(t)
	writeUsers(t, cfg.UsersFile, "*!*@admin.host:users")
	s, buf := newBufferedSession(t, cfg)

	writeUsers(t, cfg.UsersFile, "*!*@admin.host:users", "*!*@other.host:admin")
	feed(s, ":alice!ali@admin.host PRIVMSG Luna :Luna: reloadusers")

	if lines := sentLines(buf); !reflect.DeepEqual(lines, []string{"NOTICE alice :Reloaded 2 administrators"}) {
		t.Errorf("Unexpected reply %q", lines)
	}
	if !s.users.MatchAdministrator("bob!b@other.host").Has(storage.PermAll) {
		t.Error("Expected reloaded entry to match")
	}
}

func TestPublicCommandsNeedNoPermission(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trigger = "!"
	s, buf := newBufferedSession(t, cfg)
	Version = "1.2.3"
	defer func() { Version = "dev" }()

	feed(s, ":bob!b@h PRIVMSG #luna :!version")

	lines := sentLines(buf)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "NOTICE #luna :Luna 1.2.3") {
		t.Errorf("Unexpected reply %q", lines)
	}
	if audit, _ := storage.LoadAudit(cfg.DataDir); len(audit) != 0 {
		t.Errorf("Expected unprivileged commands to skip the audit log, got %q", audit)
	}
}

func TestAdminUserList(t *testing.T) {
	cfg := testConfig(t)
	writeUsers(t, cfg.UsersFile, "alice!*@*:users")
	s, buf := newBufferedSession(t, cfg)

	feed(s,
		":alice!ali@admin.host PRIVMSG Luna :Luna: adduser bob!*@bob.host modules",
		":alice!ali@admin.host PRIVMSG Luna :Luna: adduser carol!*@* bogus",
		":alice!ali@admin.host PRIVMSG Luna :Luna: deluser nobody!*@*",
	)

	want := []string{
		"NOTICE alice :Added bob!*@bob.host with level modules",
		`NOTICE alice :Unknown level "bogus"`,
		"NOTICE alice :No entry for nobody!*@*",
	}
	if lines := sentLines(buf); !reflect.DeepEqual(lines, want) {
		t.Errorf("Expected %q, got %q", want, lines)
	}
	if !s.users.MatchAdministrator("bob!b@bob.host").Has(storage.PermModules) {
		t.Error("Expected bob to hold module rights")
	}

	saved, err := storage.LoadUsers(cfg.UsersFile)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Len() != 2 {
		t.Errorf("Expected 2 saved entries, got %d", saved.Len())
	}

	feed(s, ":alice!ali@admin.host PRIVMSG Luna :Luna: deluser BOB!*@bob.host")

	saved, err = storage.LoadUsers(cfg.UsersFile)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Len() != 1 || saved.MatchAdministrator("bob!b@bob.host") != storage.PermNone {
		t.Errorf("Expected bob to be removed from the saved list")
	}
}
