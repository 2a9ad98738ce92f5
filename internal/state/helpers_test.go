package state

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, channels ...string) (*Directory, *Capabilities, *ModeEngine) {
	t.Helper()
	log := quietLogger()
	dir := NewDirectory()
	caps := NewCapabilities(log)
	for _, c := range channels {
		dir.AddChannel(c)
	}
	return dir, caps, NewModeEngine(dir, caps, log)
}
