package dispatch

import (
	"github.com/chmod222/Luna/internal/irc"
	"github.com/chmod222/Luna/internal/state"
)

// Payload is the closed set of values a signal carries. Handlers switch on
// the concrete type.
type Payload interface {
	payload()
}

// Empty carries nothing (connect, disconnect, idle, ping)
type Empty struct{}

// Raw carries the full inbound event
type Raw struct {
	Event irc.Event
}

// Message is a PRIVMSG, NOTICE or CTCP ACTION
type Message struct {
	Sender irc.Address
	Target string
	Text   string
}

// Command is a message addressed to the bot as a command
type Command struct {
	Sender  irc.Address
	Target  string
	Command string
	Args    string
}

// CTCP is a CTCP request or reply
type CTCP struct {
	Sender irc.Address
	Target string
	Verb   string
	Args   string
}

// Join is another user joining a channel
type Join struct {
	Sender  irc.Address
	Channel string
	Member  state.Member
}

// JoinSync fires once the member list of a channel the bot joined is known
type JoinSync struct {
	Channel state.Channel
}

// Part is a user leaving a channel, sent before the directory forgets them
type Part struct {
	Sender  irc.Address
	Channel string
	Reason  string
}

// Quit is a user leaving the network
type Quit struct {
	Sender   irc.Address
	Reason   string
	Channels []string
}

// Nick is a nick change
type Nick struct {
	Sender   irc.Address
	NewNick  string
	Channels []string
}

// Topic is a topic change
type Topic struct {
	Sender  irc.Address
	Channel string
	Topic   string
}

// Kick is a user being removed from a channel
type Kick struct {
	Sender  irc.Address
	Channel string
	Target  string
	Reason  string
}

// Invite is an invitation to a channel
type Invite struct {
	Sender  irc.Address
	Target  string
	Channel string
}

// Module names a handler module being loaded or unloaded
type Module struct {
	Name string
}

func (Empty) payload()    {}
func (Raw) payload()      {}
func (Message) payload()  {}
func (Command) payload()  {}
func (CTCP) payload()     {}
func (Join) payload()     {}
func (JoinSync) payload() {}
func (Part) payload()     {}
func (Quit) payload()     {}
func (Nick) payload()     {}
func (Topic) payload()    {}
func (Kick) payload()     {}
func (Invite) payload()   {}
func (Module) payload()   {}
