package modules

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chmod222/Luna/internal/dispatch"
	"github.com/chmod222/Luna/internal/irc"
)

// ctcp answers the common CTCP queries
type ctcp struct {
	host Host
	log  logrus.FieldLogger
	now  func() time.Time
}

func newCTCP(log logrus.FieldLogger) Module {
	return &ctcp{log: log, now: time.Now}
}

func (c *ctcp) Load(scope *dispatch.Scope, host Host) error {
	c.host = host
	scope.OnFunc(dispatch.SignalPrivateCTCP, c.onCTCP)
	scope.OnFunc(dispatch.SignalPublicCTCP, c.onCTCP)
	return nil
}

func (c *ctcp) Unload() error {
	return nil
}

func (c *ctcp) onCTCP(signal string, p dispatch.Payload) error {
	req, ok := p.(dispatch.CTCP)
	if !ok || req.Sender.Nick == "" {
		return nil
	}

	var reply string
	switch strings.ToUpper(req.Verb) {
	case "VERSION":
		reply = "Luna " + c.host.Version()
	case "PING":
		reply = req.Args
	case "TIME":
		reply = c.now().Format(time.RFC1123Z)
	case "CLIENTINFO":
		reply = "ACTION CLIENTINFO PING TIME VERSION"
	default:
		return nil
	}

	c.log.WithField("nick", req.Sender.Nick).Debugf("CTCP %s", req.Verb)
	return c.host.Send("NOTICE", req.Sender.Nick, irc.CTCP(strings.ToUpper(req.Verb), reply))
}
