package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircfmt"
	"github.com/ergochat/irc-go/ircutils"

	"github.com/chmod222/Luna/internal/config"
	"github.com/chmod222/Luna/internal/dispatch"
	"github.com/chmod222/Luna/internal/irc"
	"github.com/chmod222/Luna/internal/state"
)

/*
Reaction Summary:

Registration:
- 001 (onWelcome): registration complete, adopts the nick the server uses
- 005 (onISupport): CHANMODES, PREFIX, CHANTYPES, CASEMAPPING
- 376/422 (onEndOfMotd): emits connect, joins configured channels
- 433 (onNickInUse): alternate nick, or "_" appended, then a cycling
  digit once the nick is at its length cap, until registered

Channel state:
- JOIN: self join creates the channel and asks for MODE and WHO; others
  are added and announced with channel_join
- 352 (onWhoReply): member with user, host and status symbols
- 353 (onNames): members with status symbols
- 315 (onEndOfWho): channel_join_sync after a self join
- 324/329/332/333: modes, creation time, topic, topic setter
- MODE: channel mode delta; unknown status targets trigger a WHO
- TOPIC: topic_change
- PART/KICK: announced first, then removed; self removal drops the channel
- QUIT: user_quit, then removed from every channel
- NICK: renamed everywhere, nick_change

Messages:
- PRIVMSG: CTCP first (ACTION becomes public/private_action), then
  commands, then public/private_message
- NOTICE: CTCP responses, server notices, public/private_notice
- INVITE: invite
- PING: PONG, ping

Every line is also emitted as raw after its reaction ran.
*/

type reaction func(s *Session, ev irc.Event) error

var reactions = map[irc.Verb]reaction{
	irc.VerbPing:    (*Session).onPing,
	irc.VerbJoin:    (*Session).onJoin,
	irc.VerbPart:    (*Session).onPart,
	irc.VerbQuit:    (*Session).onQuit,
	irc.VerbKick:    (*Session).onKick,
	irc.VerbNick:    (*Session).onNick,
	irc.VerbMode:    (*Session).onMode,
	irc.VerbTopic:   (*Session).onTopic,
	irc.VerbInvite:  (*Session).onInvite,
	irc.VerbPrivmsg: (*Session).onPrivmsg,
	irc.VerbNotice:  (*Session).onNotice,
}

var numericReactions = map[int]reaction{
	irc.RplWelcome:       (*Session).onWelcome,
	irc.RplISupport:      (*Session).onISupport,
	irc.RplEndOfWho:      (*Session).onEndOfWho,
	irc.RplChannelModeIs: (*Session).onChannelModeIs,
	irc.RplCreationTime:  (*Session).onCreationTime,
	irc.RplTopic:         (*Session).onTopicReply,
	irc.RplTopicWhoTime:  (*Session).onTopicWhoTime,
	irc.RplWhoReply:      (*Session).onWhoReply,
	irc.RplNamReply:      (*Session).onNames,
	irc.RplEndOfMotd:     (*Session).onEndOfMotd,
	irc.ErrNoMotd:        (*Session).onEndOfMotd,
	irc.ErrNicknameInUse: (*Session).onNickInUse,
}

// handleLine parses one inbound line, runs its reaction and emits raw
func (s *Session) handleLine(line string) {
	ev, err := irc.Parse(line)
	if err != nil {
		s.log.Debugf("Dropping line %q: %v", line, err)
		return
	}
	s.log.Debugf(">> %s", line)

	if err := s.react(ev); err != nil {
		log := s.log.WithField("command", ev.Command)
		if errors.Is(err, state.ErrNoSuchChannel) {
			// replies for channels already left
			log.Debugf("Reaction skipped: %v", err)
		} else {
			log.Warnf("Reaction failed: %v", err)
		}
	}
	s.disp.Emit(dispatch.SignalRaw, dispatch.Raw{Event: ev})
}

func (s *Session) react(ev irc.Event) error {
	var r reaction
	if ev.Verb == irc.VerbNumeric {
		r = numericReactions[ev.Code]
	} else {
		r = reactions[ev.Verb]
	}
	if r == nil {
		return nil
	}
	return r(s, ev)
}

func need(ev irc.Event, params []string, n int) error {
	if len(params) < n {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrMissingParams, ev.Command, n, len(params))
	}
	return nil
}

func (s *Session) isSelf(nick string) bool {
	return irc.SameNick(nick, s.nick, s.caps.Casemap())
}

func (s *Session) fold(name string) string {
	return s.caps.Casemap()(name)
}

func parseUnix(v string) time.Time {
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func (s *Session) onPing(ev irc.Event) error {
	token, ok := ev.Last()
	if !ok {
		return need(ev, nil, 1)
	}
	if err := s.Send("PONG", token); err != nil {
		return err
	}
	s.disp.Emit(dispatch.SignalPing, dispatch.Empty{})
	return nil
}

func (s *Session) onWelcome(ev irc.Event) error {
	s.welcomed = true
	if nick := ev.Param(0); nick != "" && nick != "*" {
		s.nick = nick
	}
	s.log.Infof("Registered as %s", s.nick)
	return nil
}

func (s *Session) onISupport(ev irc.Event) error {
	if len(ev.Params) < 2 {
		return nil
	}
	s.caps.Apply(ev.Params[1:])
	s.dir.SetCasemap(s.caps.Casemap())
	return nil
}

func (s *Session) onEndOfMotd(ev irc.Event) error {
	if s.motdSeen {
		return nil
	}
	s.motdSeen = true
	s.log.Info("Connected to IRC server")
	s.disp.Emit(dispatch.SignalConnect, dispatch.Empty{})

	for _, ch := range s.cfg.Channels {
		if err := s.Send("JOIN", ch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) onNickInUse(ev irc.Event) error {
	if s.welcomed {
		return nil
	}
	s.nickTries++

	next := s.cfg.Alternate
	if next == "" || irc.SameNick(next, s.nick, s.caps.Casemap()) {
		// <me> <nick> :Nickname is already in use
		rejected := s.nick
		if len(ev.Params) > 1 && ev.Params[1] != "" {
			rejected = ev.Params[1]
		}
		next = nextNick(s.nick, rejected, s.nickTries)
	}
	s.log.Infof("Nick %s is in use, trying %s", s.nick, next)
	s.nick = next
	return s.Send("NICK", next)
}

// nextNick derives a replacement for a nick in use. An underscore is
// appended while there is room. Once the cap is reached, or the server
// reported a shorter nick than the one sent, the last character cycles
// through digits instead.
func nextNick(current, rejected string, try int) string {
	limit := config.MaxNickLen
	if len(rejected) < len(current) {
		limit = len(rejected)
	}
	if len(current)+1 <= limit {
		return current + "_"
	}

	base := ircutils.TruncateUTF8Safe(current, limit-1)
	for i := 0; i < 10; i++ {
		next := base + strconv.Itoa((try+i)%10)
		if next != current && next != rejected {
			return next
		}
	}
	return base + "_"
}

func (s *Session) onJoin(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 1); err != nil {
		return err
	}
	channel := all[0]

	if s.isSelf(ev.Sender.Nick) {
		s.dir.AddChannel(channel)
		s.syncing[s.fold(channel)] = true
		if err := s.Send("MODE", channel); err != nil {
			return err
		}
		return s.Send("WHO", channel)
	}

	sender := ev.Sender
	if err := s.dir.AddMember(channel, sender.Nick, sender.User, sender.Host); err != nil {
		return err
	}
	member, err := s.dir.FindMember(channel, sender.Nick)
	if err != nil {
		return err
	}
	s.disp.Emit(dispatch.SignalChannelJoin, dispatch.Join{Sender: sender, Channel: channel, Member: member})
	return nil
}

func (s *Session) onWhoReply(ev irc.Event) error {
	// <me> <channel> <user> <host> <server> <nick> <flags> :<hops> <realname>
	if err := need(ev, ev.Params, 7); err != nil {
		return err
	}
	channel, nick := ev.Params[1], ev.Params[5]
	if err := s.dir.AddMember(channel, nick, ev.Params[2], ev.Params[3]); err != nil {
		return err
	}
	return s.modes.ApplyStatusPrefixes(channel, nick, ev.Params[6])
}

func (s *Session) onNames(ev irc.Event) error {
	// <me> <symbol> <channel> :<names>
	if err := need(ev, ev.Params, 3); err != nil {
		return err
	}
	channel := ev.Params[2]
	if !s.dir.HasChannel(channel) {
		return fmt.Errorf("%w: %s", state.ErrNoSuchChannel, channel)
	}
	for _, entry := range strings.Fields(ev.Trailing) {
		symbols, rest := s.modes.SplitPrefixes(entry)
		addr := irc.ParseAddress(rest)
		if addr.Nick == "" {
			continue
		}
		if err := s.dir.AddMember(channel, addr.Nick, addr.User, addr.Host); err != nil {
			return err
		}
		if err := s.modes.ApplyStatusPrefixes(channel, addr.Nick, symbols); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) onEndOfWho(ev irc.Event) error {
	if err := need(ev, ev.Params, 2); err != nil {
		return err
	}
	channel := ev.Params[1]
	key := s.fold(channel)
	if !s.syncing[key] {
		return nil
	}
	delete(s.syncing, key)

	snap, err := s.dir.Channel(channel)
	if err != nil {
		return err
	}
	s.log.WithField("channel", snap.Name).Debugf("Joined channel with %d members, topic %q", len(snap.Members), snap.Topic)
	s.disp.Emit(dispatch.SignalChannelJoinSync, dispatch.JoinSync{Channel: snap})
	return nil
}

func (s *Session) onChannelModeIs(ev irc.Event) error {
	// <me> <channel> <flags> [args...]
	all := ev.AllParams()
	if err := need(ev, all, 3); err != nil {
		return err
	}
	_, err := s.modes.Apply(all[1], all[2], all, 3)
	return err
}

func (s *Session) onCreationTime(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 3); err != nil {
		return err
	}
	return s.dir.SetCreated(all[1], parseUnix(all[2]))
}

func (s *Session) onTopicReply(ev irc.Event) error {
	if err := need(ev, ev.Params, 2); err != nil {
		return err
	}
	topic := ev.Trailing
	if !ev.HasTrailing {
		topic = ev.Param(2)
	}
	return s.dir.SetTopic(ev.Params[1], topic)
}

func (s *Session) onTopicWhoTime(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 4); err != nil {
		return err
	}
	return s.dir.SetTopicMeta(all[1], all[2], parseUnix(all[3]))
}

func (s *Session) onMode(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 2); err != nil {
		return err
	}
	target := all[0]
	if s.isSelf(target) || !s.caps.IsChannel(target) {
		s.log.Debugf("User mode %s for %s", all[1], target)
		return nil
	}

	res, err := s.modes.Apply(target, all[1], all, 2)
	if err != nil {
		return err
	}
	if len(res.UnknownMembers) > 0 {
		return s.Send("WHO", target)
	}
	return nil
}

func (s *Session) onTopic(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 1); err != nil {
		return err
	}
	channel := all[0]
	topic := ev.Trailing
	if !ev.HasTrailing {
		topic = ev.Param(1)
	}

	if err := s.dir.SetTopic(channel, topic); err != nil {
		return err
	}
	if err := s.dir.SetTopicMeta(channel, ev.Sender.String(), s.now()); err != nil {
		return err
	}
	s.disp.Emit(dispatch.SignalTopicChange, dispatch.Topic{Sender: ev.Sender, Channel: channel, Topic: topic})
	return nil
}

func (s *Session) onPart(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 1); err != nil {
		return err
	}
	channel := all[0]
	if _, err := s.dir.FindMember(channel, ev.Sender.Nick); err != nil && !s.isSelf(ev.Sender.Nick) {
		return err
	}

	var reason string
	if len(all) > 1 {
		reason = all[len(all)-1]
	}
	s.disp.Emit(dispatch.SignalChannelPart, dispatch.Part{Sender: ev.Sender, Channel: channel, Reason: reason})

	if s.isSelf(ev.Sender.Nick) {
		delete(s.syncing, s.fold(channel))
		return s.dir.RemoveChannel(channel)
	}
	return s.dir.RemoveMember(channel, ev.Sender.Nick)
}

func (s *Session) onKick(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 2); err != nil {
		return err
	}
	channel, target := all[0], all[1]
	if !s.dir.HasChannel(channel) {
		_, err := s.dir.Channel(channel)
		return err
	}

	var reason string
	if len(all) > 2 {
		reason = all[len(all)-1]
	}
	s.disp.Emit(dispatch.SignalUserKicked, dispatch.Kick{Sender: ev.Sender, Channel: channel, Target: target, Reason: reason})

	if s.isSelf(target) {
		delete(s.syncing, s.fold(channel))
		return s.dir.RemoveChannel(channel)
	}
	return s.dir.RemoveMember(channel, target)
}

func (s *Session) onQuit(ev irc.Event) error {
	var channels []string
	for _, ch := range s.dir.Channels() {
		if _, err := s.dir.FindMember(ch, ev.Sender.Nick); err == nil {
			channels = append(channels, ch)
		}
	}

	reason, _ := ev.Last()
	s.disp.Emit(dispatch.SignalUserQuit, dispatch.Quit{Sender: ev.Sender, Reason: reason, Channels: channels})
	s.dir.RemoveMemberEverywhere(ev.Sender.Nick)
	return nil
}

func (s *Session) onNick(ev irc.Event) error {
	newNick, ok := ev.Last()
	if !ok || newNick == "" {
		return need(ev, nil, 1)
	}

	if s.isSelf(ev.Sender.Nick) {
		s.log.Infof("Nick changed to %s", newNick)
		s.nick = newNick
	}
	channels := s.dir.RenameMember(ev.Sender.Nick, newNick)
	s.disp.Emit(dispatch.SignalNickChange, dispatch.Nick{Sender: ev.Sender, NewNick: newNick, Channels: channels})
	return nil
}

func (s *Session) onInvite(ev irc.Event) error {
	all := ev.AllParams()
	if err := need(ev, all, 2); err != nil {
		return err
	}
	s.disp.Emit(dispatch.SignalInvite, dispatch.Invite{Sender: ev.Sender, Target: all[0], Channel: all[1]})
	return nil
}

// text returns target and message text of a PRIVMSG or NOTICE
func text(ev irc.Event) (target, msg string, err error) {
	all := ev.AllParams()
	if err := need(ev, all, 2); err != nil {
		return "", "", err
	}
	return all[0], all[len(all)-1], nil
}

func (s *Session) onPrivmsg(ev irc.Event) error {
	target, msg, err := text(ev)
	if err != nil {
		return err
	}
	public := s.caps.IsChannel(target)

	if verb, args, ok := irc.ParseCTCP(msg); ok {
		s.onCTCP(ev.Sender, target, verb, args, public, false)
		return nil
	}

	if cmd, args, ok := s.parseCommand(msg); ok {
		signal := dispatch.SignalPrivateCommand
		if public {
			signal = dispatch.SignalPublicCommand
		}
		s.disp.Emit(signal, dispatch.Command{Sender: ev.Sender, Target: target, Command: cmd, Args: args})
		return nil
	}

	signal := dispatch.SignalPrivateMessage
	if public {
		signal = dispatch.SignalPublicMessage
	}
	s.disp.Emit(signal, dispatch.Message{Sender: ev.Sender, Target: target, Text: msg})
	return nil
}

func (s *Session) onNotice(ev irc.Event) error {
	target, msg, err := text(ev)
	if err != nil {
		return err
	}
	public := s.caps.IsChannel(target)

	if verb, args, ok := irc.ParseCTCP(msg); ok {
		s.onCTCP(ev.Sender, target, verb, args, public, true)
		return nil
	}

	signal := dispatch.SignalPrivateNotice
	switch {
	case ev.Sender.IsZero() || ev.Sender.IsServer():
		signal = dispatch.SignalNotice
	case public:
		signal = dispatch.SignalPublicNotice
	}
	s.disp.Emit(signal, dispatch.Message{Sender: ev.Sender, Target: target, Text: msg})
	return nil
}

func (s *Session) onCTCP(sender irc.Address, target, verb, args string, public, response bool) {
	if strings.EqualFold(verb, "ACTION") {
		signal := dispatch.SignalPrivateAction
		if public {
			signal = dispatch.SignalPublicAction
		}
		s.disp.Emit(signal, dispatch.Message{Sender: sender, Target: target, Text: args})
		return
	}

	var signal string
	switch {
	case public && response:
		signal = dispatch.SignalPublicCTCPResponse
	case response:
		signal = dispatch.SignalPrivateCTCPResponse
	case public:
		signal = dispatch.SignalPublicCTCP
	default:
		signal = dispatch.SignalPrivateCTCP
	}
	s.disp.Emit(signal, dispatch.CTCP{Sender: sender, Target: target, Verb: verb, Args: args})
}

// parseCommand recognizes "<nick>: <command> <args>" and, when a trigger
// is configured, "<trigger><command> <args>"
func (s *Session) parseCommand(msg string) (cmd, args string, ok bool) {
	var body string
	switch {
	case s.cfg.Trigger != "" && strings.HasPrefix(msg, s.cfg.Trigger):
		body = msg[len(s.cfg.Trigger):]
	default:
		head, rest, found := strings.Cut(msg, ":")
		if !found || !s.isSelf(head) || strings.ContainsAny(head, "!@ ") {
			return "", "", false
		}
		body = rest
	}

	cmd, args, _ = strings.Cut(strings.TrimLeft(body, " "), " ")
	cmd = ircfmt.Strip(cmd)
	if cmd == "" {
		return "", "", false
	}
	return cmd, strings.TrimSpace(args), true
}
