package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircutils"

	"github.com/chmod222/Luna/internal/irc"
)

var (
	ErrNoSuchChannel = errors.New("no such channel")
	ErrNoSuchMember  = errors.New("no such member")
)

const (
	// MaxStatusModes caps a member's status string; extra modes are dropped
	MaxStatusModes = 15
	// MaxTopicLen caps stored topics
	MaxTopicLen = 390

	flagCount = 2 * 26
)

// FlagKind tags the payload of a Flag
type FlagKind int

const (
	FlagUnset FlagKind = iota
	FlagBoolean
	FlagSingle
	FlagList
)

// Flag is one entry of a channel's mode table
type Flag struct {
	Kind  FlagKind
	Value string
	List  []string
}

// IsSet reports whether the flag is present at all
func (f Flag) IsSet() bool {
	return f.Kind != FlagUnset
}

func flagIndex(mode byte) (int, bool) {
	switch {
	case mode >= 'A' && mode <= 'Z':
		return int(mode - 'A'), true
	case mode >= 'a' && mode <= 'z':
		return 26 + int(mode-'a'), true
	}
	return 0, false
}

func flagMode(i int) byte {
	if i < 26 {
		return byte('A' + i)
	}
	return byte('a' + i - 26)
}

// Member is a user seen in a channel
type Member struct {
	ID    uint64
	Nick  string
	User  string
	Host  string
	Modes string
}

// Address returns the member's full address as far as it is known
func (m Member) Address() irc.Address {
	return irc.Address{Nick: m.Nick, User: m.User, Host: m.Host}
}

// HasMode reports whether the member holds a status mode
func (m Member) HasMode(mode byte) bool {
	return strings.IndexByte(m.Modes, mode) >= 0
}

// Channel is a read-only snapshot of a joined channel
type Channel struct {
	Name        string
	Topic       string
	TopicSetter string
	TopicSet    time.Time
	Created     time.Time
	Members     []Member
	Flags       map[byte]Flag
}

type channel struct {
	name        string
	topic       string
	topicSetter string
	topicSet    time.Time
	created     time.Time

	// members is the primary store, keyed by an id that survives renames;
	// byNick is the casemapped secondary index.
	members map[uint64]*Member
	byNick  map[string]uint64
	order   []uint64

	flags [flagCount]Flag
}

func (c *channel) snapshot() Channel {
	snap := Channel{
		Name:        c.name,
		Topic:       c.topic,
		TopicSetter: c.topicSetter,
		TopicSet:    c.topicSet,
		Created:     c.created,
		Members:     make([]Member, 0, len(c.order)),
		Flags:       make(map[byte]Flag),
	}
	for _, id := range c.order {
		snap.Members = append(snap.Members, *c.members[id])
	}
	for i, f := range c.flags {
		if f.IsSet() {
			f.List = append([]string(nil), f.List...)
			snap.Flags[flagMode(i)] = f
		}
	}
	return snap
}

func (c *channel) dropMember(id uint64) {
	delete(c.members, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Directory owns the joined channels and their members
type Directory struct {
	channels map[string]*channel
	order    []string
	fold     irc.Casemap
	nextID   uint64
}

// NewDirectory returns an empty directory using rfc1459 casemapping
func NewDirectory() *Directory {
	return &Directory{
		channels: make(map[string]*channel),
		fold:     irc.CasemapRFC1459,
	}
}

// SetCasemap switches the folding function and re-keys existing entries
func (d *Directory) SetCasemap(fold irc.Casemap) {
	if fold == nil {
		fold = irc.CasemapRFC1459
	}
	d.fold = fold

	channels := make(map[string]*channel, len(d.channels))
	order := make([]string, 0, len(d.order))
	for _, old := range d.order {
		c := d.channels[old]
		key := fold(c.name)
		channels[key] = c
		order = append(order, key)
		c.byNick = make(map[string]uint64, len(c.members))
		for id, m := range c.members {
			c.byNick[fold(m.Nick)] = id
		}
	}
	d.channels = channels
	d.order = order
}

// Clear drops every channel
func (d *Directory) Clear() {
	d.channels = make(map[string]*channel)
	d.order = nil
}

func (d *Directory) get(name string) (*channel, error) {
	c, ok := d.channels[d.fold(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchChannel, name)
	}
	return c, nil
}

// AddChannel creates an empty channel. Adding a known channel is a no-op,
// duplicate JOIN confirmations must not create duplicates.
func (d *Directory) AddChannel(name string) {
	key := d.fold(name)
	if _, ok := d.channels[key]; ok {
		return
	}
	d.channels[key] = &channel{
		name:    name,
		members: make(map[uint64]*Member),
		byNick:  make(map[string]uint64),
	}
	d.order = append(d.order, key)
}

// RemoveChannel discards a channel and all of its members
func (d *Directory) RemoveChannel(name string) error {
	key := d.fold(name)
	if _, ok := d.channels[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchChannel, name)
	}
	delete(d.channels, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

// HasChannel reports whether the channel is joined
func (d *Directory) HasChannel(name string) bool {
	_, ok := d.channels[d.fold(name)]
	return ok
}

// Channel returns a snapshot of one channel
func (d *Directory) Channel(name string) (Channel, error) {
	c, err := d.get(name)
	if err != nil {
		return Channel{}, err
	}
	return c.snapshot(), nil
}

// Channels lists joined channel names in join order
func (d *Directory) Channels() []string {
	names := make([]string, 0, len(d.order))
	for _, key := range d.order {
		names = append(names, d.channels[key].name)
	}
	return names
}

// AddMember inserts a member, or fills in user and host of a known one
func (d *Directory) AddMember(channel, nick, user, host string) error {
	c, err := d.get(channel)
	if err != nil {
		return err
	}
	if id, ok := c.byNick[d.fold(nick)]; ok {
		m := c.members[id]
		if user != "" {
			m.User = user
		}
		if host != "" {
			m.Host = host
		}
		return nil
	}

	d.nextID++
	c.members[d.nextID] = &Member{ID: d.nextID, Nick: nick, User: user, Host: host}
	c.byNick[d.fold(nick)] = d.nextID
	c.order = append(c.order, d.nextID)
	return nil
}

// RemoveMember drops a member from one channel
func (d *Directory) RemoveMember(channel, nick string) error {
	c, err := d.get(channel)
	if err != nil {
		return err
	}
	key := d.fold(irc.NickOf(nick))
	id, ok := c.byNick[key]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrNoSuchMember, nick, channel)
	}
	delete(c.byNick, key)
	c.dropMember(id)
	return nil
}

// RemoveMemberEverywhere drops a member from every channel and returns the
// channels it was in
func (d *Directory) RemoveMemberEverywhere(nick string) []string {
	var left []string
	for _, key := range d.order {
		c := d.channels[key]
		if d.RemoveMember(c.name, nick) == nil {
			left = append(left, c.name)
		}
	}
	return left
}

// RenameMember applies a nick change to every channel in one pass and
// returns the channels where the member was found. Only the nick index is
// rewritten; member ids stay put.
func (d *Directory) RenameMember(oldNick, newNick string) []string {
	oldKey := d.fold(irc.NickOf(oldNick))
	newKey := d.fold(newNick)

	var renamed []string
	for _, key := range d.order {
		c := d.channels[key]
		id, ok := c.byNick[oldKey]
		if !ok {
			continue
		}
		delete(c.byNick, oldKey)
		if stale, taken := c.byNick[newKey]; taken && stale != id {
			c.dropMember(stale)
		}
		c.byNick[newKey] = id
		c.members[id].Nick = newNick
		renamed = append(renamed, c.name)
	}
	return renamed
}

// FindMember looks a member up by nick
func (d *Directory) FindMember(channel, nick string) (Member, error) {
	m, err := d.member(channel, nick)
	if err != nil {
		return Member{}, err
	}
	return *m, nil
}

func (d *Directory) member(channel, nick string) (*Member, error) {
	c, err := d.get(channel)
	if err != nil {
		return nil, err
	}
	id, ok := c.byNick[d.fold(irc.NickOf(nick))]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoSuchMember, nick, channel)
	}
	return c.members[id], nil
}

// SetTopic stores the topic text, cut to MaxTopicLen bytes
func (d *Directory) SetTopic(channel, topic string) error {
	c, err := d.get(channel)
	if err != nil {
		return err
	}
	c.topic = ircutils.TruncateUTF8Safe(topic, MaxTopicLen)
	return nil
}

// SetTopicMeta stores who set the topic and when
func (d *Directory) SetTopicMeta(channel, setter string, at time.Time) error {
	c, err := d.get(channel)
	if err != nil {
		return err
	}
	c.topicSetter = setter
	c.topicSet = at
	return nil
}

// SetCreated stores the channel creation time
func (d *Directory) SetCreated(channel string, at time.Time) error {
	c, err := d.get(channel)
	if err != nil {
		return err
	}
	c.created = at
	return nil
}

// Flag returns one entry of a channel's mode table
func (d *Directory) Flag(channel string, mode byte) (Flag, error) {
	c, err := d.get(channel)
	if err != nil {
		return Flag{}, err
	}
	i, ok := flagIndex(mode)
	if !ok {
		return Flag{}, fmt.Errorf("mode `%c' out of range", mode)
	}
	f := c.flags[i]
	f.List = append([]string(nil), f.List...)
	return f, nil
}
