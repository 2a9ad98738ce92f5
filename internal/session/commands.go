package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/chmod222/Luna/internal/dispatch"
	"github.com/chmod222/Luna/internal/storage"
)

const coreOwner = "core"

type adminCommand struct {
	perm storage.Permission
	run  func(s *Session, reply func(string), args string) error
}

var adminCommands = map[string]adminCommand{
	"load":        {storage.PermModules, (*Session).cmdLoad},
	"unload":      {storage.PermModules, (*Session).cmdUnload},
	"reload":      {storage.PermModules, (*Session).cmdReload},
	"modules":     {storage.PermModules, (*Session).cmdModules},
	"reloadusers": {storage.PermUsers, (*Session).cmdReloadUsers},
	"adduser":     {storage.PermUsers, (*Session).cmdAddUser},
	"deluser":     {storage.PermUsers, (*Session).cmdDelUser},
	"uptime":      {storage.PermNone, (*Session).cmdUptime},
	"version":     {storage.PermNone, (*Session).cmdVersion},
}

func (s *Session) registerCommands() {
	core := s.disp.Scope(coreOwner)
	core.OnFunc(dispatch.SignalPublicCommand, s.onCommand)
	core.OnFunc(dispatch.SignalPrivateCommand, s.onCommand)
}

// onCommand processes a command addressed to the bot
func (s *Session) onCommand(signal string, p dispatch.Payload) error {
	cmd, ok := p.(dispatch.Command)
	if !ok {
		return nil
	}
	name := strings.ToLower(cmd.Command)
	c, ok := adminCommands[name]
	if !ok {
		return nil
	}

	target := cmd.Sender.Nick
	if signal == dispatch.SignalPublicCommand {
		target = cmd.Target
	}
	reply := func(msg string) {
		if err := s.Send("NOTICE", target, msg); err != nil {
			s.log.Warnf("Could not reply to %s: %v", target, err)
		}
	}

	hostmask := cmd.Sender.String()
	line := strings.TrimSpace(name + " " + cmd.Args)
	if c.perm != storage.PermNone {
		if !s.users.MatchAdministrator(hostmask).Has(c.perm) {
			s.logCommand(hostmask, "DENIED - "+line)
			s.log.WithField("nick", cmd.Sender.Nick).Warnf("Denied command %q", line)
			reply("Permission denied")
			return nil
		}
		s.logCommand(hostmask, line)
	}

	return c.run(s, reply, cmd.Args)
}

func (s *Session) cmdLoad(reply func(string), args string) error {
	if args == "" {
		reply("Usage: load <module>")
		return nil
	}
	if err := s.modules.Load(args); err != nil {
		reply(err.Error())
		return nil
	}
	reply(fmt.Sprintf("Loaded %s", args))
	return nil
}

func (s *Session) cmdUnload(reply func(string), args string) error {
	if args == "" {
		reply("Usage: unload <module>")
		return nil
	}
	if err := s.modules.Unload(args); err != nil {
		reply(err.Error())
		return nil
	}
	reply(fmt.Sprintf("Unloaded %s", args))
	return nil
}

func (s *Session) cmdReload(reply func(string), args string) error {
	if args == "" {
		reply("Usage: reload <module>")
		return nil
	}
	if err := s.modules.Reload(args); err != nil {
		reply(err.Error())
		return nil
	}
	reply(fmt.Sprintf("Reloaded %s", args))
	return nil
}

func (s *Session) cmdModules(reply func(string), args string) error {
	loaded := s.modules.Loaded()
	if len(loaded) == 0 {
		reply("No modules loaded")
	} else {
		reply("Loaded: " + strings.Join(loaded, ", "))
	}
	reply("Available: " + strings.Join(s.modules.Available(), ", "))
	return nil
}

func (s *Session) cmdReloadUsers(reply func(string), args string) error {
	if err := s.users.Reload(); err != nil {
		reply(fmt.Sprintf("Reload failed: %v", err))
		return err
	}
	reply(fmt.Sprintf("Reloaded %d administrators", s.users.Len()))
	return nil
}

func (s *Session) cmdAddUser(reply func(string), args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		reply("Usage: adduser <hostmask> <level>")
		return nil
	}
	mask, level := fields[0], fields[1]
	if storage.ParseLevel(level) == storage.PermNone {
		reply(fmt.Sprintf("Unknown level %q", level))
		return nil
	}

	s.users.Add(mask, level)
	if err := s.users.Save(); err != nil {
		reply(fmt.Sprintf("Save failed: %v", err))
		return err
	}
	reply(fmt.Sprintf("Added %s with level %s", mask, level))
	return nil
}

func (s *Session) cmdDelUser(reply func(string), args string) error {
	mask := strings.TrimSpace(args)
	if mask == "" {
		reply("Usage: deluser <hostmask>")
		return nil
	}
	if !s.users.Remove(mask) {
		reply(fmt.Sprintf("No entry for %s", mask))
		return nil
	}
	if err := s.users.Save(); err != nil {
		reply(fmt.Sprintf("Save failed: %v", err))
		return err
	}
	reply(fmt.Sprintf("Removed %s", mask))
	return nil
}

func (s *Session) cmdUptime(reply func(string), args string) error {
	now := s.now()
	up := now.Sub(s.started).Round(time.Second)
	if s.connected.IsZero() {
		reply(fmt.Sprintf("Up %s", up))
		return nil
	}
	reply(fmt.Sprintf("Up %s, connected for %s", up, now.Sub(s.connected).Round(time.Second)))
	return nil
}

func (s *Session) cmdVersion(reply func(string), args string) error {
	reply(fmt.Sprintf("Luna %s (built %s, commit %s)", Version, BuildDate, GitCommit))
	return nil
}

// logCommand appends to the audit log and saves it
func (s *Session) logCommand(hostmask, command string) {
	timestamp := s.now().UTC().Format("Mon Jan 02, 2006 at 15:04:05 GMT")
	entry := fmt.Sprintf("%s: %s -> %s", timestamp, hostmask, command)

	s.audit = storage.AddAudit(s.audit, entry)
	if err := storage.SaveAudit(s.cfg.DataDir, s.audit); err != nil {
		s.log.Warnf("Error saving audit log: %v", err)
	}
}
