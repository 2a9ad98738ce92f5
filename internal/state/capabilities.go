package state

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chmod222/Luna/internal/irc"
)

// Category is the server-negotiated class of a channel mode character
type Category int

const (
	// CategoryUnknown flags are treated as boolean
	CategoryUnknown Category = iota
	// CategoryAddressList flags always take a value and hold a list (bans)
	CategoryAddressList
	// CategoryAlwaysValue flags always take a value (channel key)
	CategoryAlwaysValue
	// CategoryValueWhenSet flags take a value only when set (limit)
	CategoryValueWhenSet
	// CategoryNoValue flags never take a value
	CategoryNoValue
	// CategoryStatus flags apply to a member (op, voice)
	CategoryStatus
)

func (c Category) String() string {
	switch c {
	case CategoryAddressList:
		return "address-list"
	case CategoryAlwaysValue:
		return "always-value"
	case CategoryValueWhenSet:
		return "value-when-set"
	case CategoryNoValue:
		return "no-value"
	case CategoryStatus:
		return "status"
	}
	return "unknown"
}

// Prefix maps a member list symbol to the mode it stands for
type Prefix struct {
	Symbol byte
	Mode   byte
}

// Defaults used until the server announces its own
const (
	DefaultChanModes = "b,k,l,imnpst"
	DefaultPrefix    = "(ov)@+"
	DefaultChanTypes = "#&"
	DefaultCasemap   = "rfc1459"
)

// Capabilities holds the mode classification and related ISUPPORT
// tokens of the current connection.
type Capabilities struct {
	AddressList  string
	AlwaysValue  string
	ValueWhenSet string
	NoValue      string
	Prefixes     []Prefix
	ChanTypes    string
	CasemapName  string

	casemap irc.Casemap
	log     logrus.FieldLogger
}

// NewCapabilities returns a table filled with the protocol defaults
func NewCapabilities(log logrus.FieldLogger) *Capabilities {
	c := &Capabilities{log: log}
	c.Reset()
	return c
}

// Reset restores the defaults. Called on every new connection.
func (c *Capabilities) Reset() {
	c.AddressList, c.AlwaysValue, c.ValueWhenSet, c.NoValue = "", "", "", ""
	c.Prefixes = nil
	c.setPrefix(DefaultPrefix)
	c.setChanModes(DefaultChanModes)
	c.ChanTypes = DefaultChanTypes
	c.CasemapName = DefaultCasemap
	c.casemap = irc.CasemapByName(DefaultCasemap)
}

// Apply consumes the tokens of one RPL_ISUPPORT line (without the leading
// target and the trailing text). Servers may send several such lines.
func (c *Capabilities) Apply(tokens []string) {
	for _, tok := range tokens {
		if tok == "" || tok[0] == '-' {
			continue
		}
		key, val, _ := strings.Cut(tok, "=")

		switch strings.ToUpper(key) {
		case "CHANMODES":
			c.setChanModes(val)
		case "PREFIX":
			c.setPrefix(val)
		case "CHANTYPES":
			c.ChanTypes = val
		case "CASEMAPPING":
			c.CasemapName = val
			c.casemap = irc.CasemapByName(val)
		}
	}
}

func (c *Capabilities) setChanModes(val string) {
	parts := strings.SplitN(val, ",", 5)
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	var seen [256]bool
	for _, p := range c.Prefixes {
		seen[p.Mode] = true
	}

	keep := func(set string) string {
		var b strings.Builder
		for i := 0; i < len(set); i++ {
			if seen[set[i]] {
				c.warn("Mode `%c' announced in more than one category, keeping the first", set[i])
				continue
			}
			seen[set[i]] = true
			b.WriteByte(set[i])
		}
		return b.String()
	}

	c.AddressList = keep(parts[0])
	c.AlwaysValue = keep(parts[1])
	c.ValueWhenSet = keep(parts[2])
	c.NoValue = keep(parts[3])
}

// setPrefix parses "(ov)@+"
func (c *Capabilities) setPrefix(val string) {
	if !strings.HasPrefix(val, "(") {
		if val == "" {
			c.Prefixes = nil
			return
		}
		c.warn("Malformed PREFIX `%s'", val)
		return
	}
	modes, symbols, ok := strings.Cut(val[1:], ")")
	if !ok || len(modes) != len(symbols) {
		c.warn("Malformed PREFIX `%s'", val)
		return
	}

	prefixes := make([]Prefix, 0, len(modes))
	for i := 0; i < len(modes); i++ {
		prefixes = append(prefixes, Prefix{Symbol: symbols[i], Mode: modes[i]})
	}
	c.Prefixes = prefixes
}

func (c *Capabilities) warn(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Warnf(format, args...)
	}
}

// Classify returns the category of a channel mode character. Status modes
// win over the four CHANMODES categories.
func (c *Capabilities) Classify(mode byte) Category {
	for _, p := range c.Prefixes {
		if p.Mode == mode {
			return CategoryStatus
		}
	}
	switch {
	case strings.IndexByte(c.AddressList, mode) >= 0:
		return CategoryAddressList
	case strings.IndexByte(c.AlwaysValue, mode) >= 0:
		return CategoryAlwaysValue
	case strings.IndexByte(c.ValueWhenSet, mode) >= 0:
		return CategoryValueWhenSet
	case strings.IndexByte(c.NoValue, mode) >= 0:
		return CategoryNoValue
	}
	return CategoryUnknown
}

// ModeForSymbol maps a member list symbol such as '@' to its mode
func (c *Capabilities) ModeForSymbol(symbol byte) (byte, bool) {
	for _, p := range c.Prefixes {
		if p.Symbol == symbol {
			return p.Mode, true
		}
	}
	return 0, false
}

// IsChannel reports whether target names a channel
func (c *Capabilities) IsChannel(target string) bool {
	return target != "" && strings.IndexByte(c.ChanTypes, target[0]) >= 0
}

// Casemap returns the folding function announced by the server
func (c *Capabilities) Casemap() irc.Casemap {
	if c.casemap == nil {
		return irc.CasemapRFC1459
	}
	return c.casemap
}
