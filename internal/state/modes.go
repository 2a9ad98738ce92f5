package state

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ModeResult tells the caller what a mode change touched
type ModeResult struct {
	// StatusTouched is set when a member status mode (op, voice) changed
	StatusTouched bool
	// UnknownMembers lists status mode targets missing from the channel,
	// a sign that the member list is stale
	UnknownMembers []string
}

// ModeEngine applies mode deltas to the directory, classifying each flag
// through the capability table
type ModeEngine struct {
	dir  *Directory
	caps *Capabilities
	log  logrus.FieldLogger
}

// NewModeEngine binds the engine to a directory and a capability table
func NewModeEngine(dir *Directory, caps *Capabilities, log logrus.FieldLogger) *ModeEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ModeEngine{dir: dir, caps: caps, log: log}
}

// Apply processes a flag string such as "+ob-k" against channel.
// Positional arguments are taken from params starting at argIndex.
func (e *ModeEngine) Apply(channel, flags string, params []string, argIndex int) (ModeResult, error) {
	var res ModeResult

	c, err := e.dir.get(channel)
	if err != nil {
		return res, err
	}
	log := e.log.WithField("channel", channel)

	next := argIndex
	nextArg := func() (string, bool) {
		if next < 0 || next >= len(params) {
			return "", false
		}
		arg := params[next]
		next++
		return arg, true
	}

	set := true
	for i := 0; i < len(flags); i++ {
		mode := flags[i]
		switch mode {
		case '+':
			set = true
			continue
		case '-':
			set = false
			continue
		}

		category := e.caps.Classify(mode)
		idx, inRange := flagIndex(mode)

		switch {
		case category == CategoryAddressList,
			category == CategoryAlwaysValue,
			category == CategoryValueWhenSet && set:
			arg, ok := nextArg()
			if !ok {
				log.Warnf("Mode `%c' is missing its argument", mode)
				continue
			}
			if !inRange {
				log.Warnf("Mode `%c' out of range", mode)
				continue
			}
			applyValue(&c.flags[idx], category == CategoryAddressList, set, arg)

		case category == CategoryStatus:
			arg, ok := nextArg()
			if !ok {
				log.Warnf("Mode `%c' is missing its argument", mode)
				continue
			}
			res.StatusTouched = true
			m, err := e.dir.member(channel, arg)
			if err != nil {
				log.WithField("nick", arg).Warnf("Tried to alter unknown user `%s'", arg)
				res.UnknownMembers = append(res.UnknownMembers, arg)
				continue
			}
			if set {
				m.Modes = addStatus(m.Modes, mode)
			} else {
				m.Modes = removeStatus(m.Modes, mode)
			}

		default:
			if !inRange {
				log.Warnf("Mode `%c' out of range", mode)
				continue
			}
			if category == CategoryUnknown {
				log.Debugf("Unrecognized mode `%c', treating it as boolean", mode)
			}
			if set {
				c.flags[idx] = Flag{Kind: FlagBoolean}
			} else {
				c.flags[idx] = Flag{}
			}
		}
	}

	return res, nil
}

func applyValue(f *Flag, list, set bool, arg string) {
	switch {
	case set && list:
		if f.Kind != FlagList {
			*f = Flag{Kind: FlagList}
		}
		f.List = append(f.List, arg)
	case set:
		*f = Flag{Kind: FlagSingle, Value: arg}
	case list:
		if f.Kind != FlagList {
			return
		}
		for i, entry := range f.List {
			if strings.EqualFold(entry, arg) {
				f.List = append(f.List[:i], f.List[i+1:]...)
				break
			}
		}
		if len(f.List) == 0 {
			*f = Flag{}
		}
	default:
		*f = Flag{}
	}
}

func addStatus(modes string, mode byte) string {
	if strings.IndexByte(modes, mode) >= 0 || len(modes) >= MaxStatusModes {
		return modes
	}
	return modes + string(mode)
}

func removeStatus(modes string, mode byte) string {
	var b strings.Builder
	for i := 0; i < len(modes); i++ {
		if modes[i] != mode {
			b.WriteByte(modes[i])
		}
	}
	return b.String()
}

// ApplyStatusPrefixes grants the modes behind member list symbols such as
// "@+" or a WHO flag field like "H@". Characters that are not prefix
// symbols are ignored.
func (e *ModeEngine) ApplyStatusPrefixes(channel, nick, symbols string) error {
	m, err := e.dir.member(channel, nick)
	if err != nil {
		return err
	}
	for i := 0; i < len(symbols); i++ {
		if mode, ok := e.caps.ModeForSymbol(symbols[i]); ok {
			m.Modes = addStatus(m.Modes, mode)
		}
	}
	return nil
}

// SplitPrefixes separates the leading status symbols of a NAMES entry
// from the nick
func (e *ModeEngine) SplitPrefixes(entry string) (symbols, nick string) {
	i := 0
	for i < len(entry) {
		if _, ok := e.caps.ModeForSymbol(entry[i]); !ok {
			break
		}
		i++
	}
	return entry[:i], entry[i:]
}
