package modules

import (
	"github.com/sirupsen/logrus"

	"github.com/chmod222/Luna/internal/dispatch"
	"github.com/chmod222/Luna/internal/irc"
)

// rejoin joins a channel again after the bot was kicked from it
type rejoin struct {
	host Host
	log  logrus.FieldLogger
}

func newRejoin(log logrus.FieldLogger) Module {
	return &rejoin{log: log}
}

func (r *rejoin) Load(scope *dispatch.Scope, host Host) error {
	r.host = host
	scope.OnFunc(dispatch.SignalUserKicked, r.onKick)
	return nil
}

func (r *rejoin) Unload() error {
	return nil
}

func (r *rejoin) onKick(signal string, p dispatch.Payload) error {
	kick, ok := p.(dispatch.Kick)
	if !ok {
		return nil
	}
	if !irc.SameNick(kick.Target, r.host.Nick(), r.host.Capabilities().Casemap()) {
		return nil
	}

	r.log.WithField("channel", kick.Channel).Infof("Kicked by %s, rejoining", kick.Sender.Nick)
	return r.host.Send("JOIN", kick.Channel)
}
