// Package session runs the connection to one server: dialing and
// reconnecting, registration, the read loop, the built-in reactions that
// keep the channel directory current, and signal dispatch.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ergochat/irc-go/ircreader"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/chmod222/Luna/internal/config"
	"github.com/chmod222/Luna/internal/dispatch"
	"github.com/chmod222/Luna/internal/modules"
	"github.com/chmod222/Luna/internal/state"
	"github.com/chmod222/Luna/internal/storage"
)

// Version information, set by the main package
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	ErrRetriesExhausted = errors.New("connection retries exhausted")
	ErrPingTimeout      = errors.New("ping timeout")
	ErrMissingParams    = errors.New("missing parameters")
)

// ConnectError is a failed connection attempt
type ConnectError struct {
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// State is the connection lifecycle stage
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateRegistered
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	}
	return "idle"
}

const (
	readBufferInitial = 1024
	readBufferMax     = 8192 + 512
	writeTimeout      = 30 * time.Second
)

// Session is the single connection engine of the process
type Session struct {
	cfg *config.Config
	log logrus.FieldLogger

	dir     *state.Directory
	caps    *state.Capabilities
	modes   *state.ModeEngine
	disp    *dispatch.Dispatcher
	modules *modules.Manager
	users   *storage.Users
	audit   []string

	dial     DialFunc
	conn     net.Conn
	reader   ircreader.Reader
	out      io.Writer
	limiter  *rate.Limiter
	fallback *encoding.Decoder
	ctx      context.Context

	state     State
	nick      string
	nickTries int
	welcomed  bool
	motdSeen  bool
	syncing   map[string]bool
	started   time.Time
	connected time.Time
	lastRecv  time.Time
	probeSent time.Time
	now       func() time.Time
}

// Option configures a Session
type Option func(*Session)

// WithDialer replaces the network dialer
func WithDialer(dial DialFunc) Option {
	return func(s *Session) {
		s.dial = dial
	}
}

// WithRegistry replaces the builtin module registry
func WithRegistry(r *modules.Registry) Option {
	return func(s *Session) {
		s.modules = modules.NewManager(r, s.disp, s, s.log)
	}
}

// New builds a session from configuration. Nothing is dialed until Run.
func New(cfg *config.Config, log logrus.FieldLogger, opts ...Option) (*Session, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		dir:     state.NewDirectory(),
		caps:    state.NewCapabilities(log),
		disp:    dispatch.New(log),
		nick:    cfg.Nick,
		syncing: make(map[string]bool),
		now:     time.Now,
		ctx:     context.Background(),
	}
	s.modes = state.NewModeEngine(s.dir, s.caps, log)
	s.modules = modules.NewManager(modules.Builtins(), s.disp, s, log)

	if cfg.FloodRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.FloodRate), cfg.FloodBurst)
	}

	if cfg.Charset != "" {
		enc, err := htmlindex.Get(cfg.Charset)
		if err != nil {
			return nil, fmt.Errorf("unknown charset %q: %w", cfg.Charset, err)
		}
		s.fallback = enc.NewDecoder()
	}

	dial, err := newDialer(cfg)
	if err != nil {
		return nil, err
	}
	s.dial = dial

	for _, opt := range opts {
		opt(s)
	}

	usersFile := cfg.UsersFile
	if !filepath.IsAbs(usersFile) {
		usersFile = filepath.Join(cfg.DataDir, usersFile)
	}
	s.users, err = storage.LoadUsers(usersFile)
	if err != nil {
		return nil, err
	}
	s.audit, err = storage.LoadAudit(cfg.DataDir)
	if err != nil {
		log.Warnf("Could not load audit log: %v", err)
		s.audit = nil
	}

	s.registerCommands()
	return s, nil
}

// Dispatcher returns the signal dispatcher handlers register with
func (s *Session) Dispatcher() *dispatch.Dispatcher {
	return s.disp
}

// Modules returns the module manager
func (s *Session) Modules() *modules.Manager {
	return s.modules
}

// Directory returns the channel directory. Callers must not hold on to it
// across reconnects.
func (s *Session) Directory() *state.Directory {
	return s.dir
}

// Capabilities returns the capability table of the current connection
func (s *Session) Capabilities() *state.Capabilities {
	return s.caps
}

// Nick returns the nick currently in use
func (s *Session) Nick() string {
	return s.nick
}

// Version returns the version string announced to other clients
func (s *Session) Version() string {
	return Version
}

// State returns the lifecycle stage
func (s *Session) State() State {
	return s.state
}

// Run connects and serves until ctx is cancelled or the retry budget is
// spent. A cancelled context is not an error.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	s.started = s.now()
	s.loadModules()
	defer s.modules.UnloadAll()

	retries := s.cfg.Retries
	delay := s.cfg.ReconnectDelay
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		attempt++
		if err := s.connect(ctx, attempt); err != nil {
			s.log.Warn(err)
			retries--
			if retries <= 0 {
				return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			}
			if !sleep(ctx, delay) {
				return nil
			}
			delay = backoff(delay, s.cfg.MaxReconnect)
			continue
		}

		retries = s.cfg.Retries
		delay = s.cfg.ReconnectDelay
		attempt = 0

		err := s.serve(ctx)
		s.teardown()
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warnf("Disconnected: %v", err)
		if !sleep(ctx, delay) {
			return nil
		}
	}
}

func (s *Session) loadModules() {
	for _, name := range s.cfg.Modules {
		if err := s.modules.Load(name); err != nil {
			s.log.WithField("module", name).Errorf("Could not load module: %v", err)
		}
	}
	if len(s.cfg.Modules) > 0 && len(s.modules.Loaded()) == 0 {
		s.log.Error("None of the configured modules could be loaded")
	}
}

func backoff(delay, max time.Duration) time.Duration {
	delay *= 2
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Session) connect(ctx context.Context, attempt int) error {
	s.state = StateConnecting
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	s.log.Infof("Connecting to %s (attempt %d)", addr, attempt)

	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		s.state = StateIdle
		return &ConnectError{Attempt: attempt, Err: err}
	}
	s.attach(conn)

	if err := s.login(); err != nil {
		s.teardown()
		return &ConnectError{Attempt: attempt, Err: err}
	}
	s.log.Infof("Connected to %s", addr)
	return nil
}

// attach resets all per-connection state and binds the transport
func (s *Session) attach(conn net.Conn) {
	s.conn = conn
	s.out = conn
	s.reader.Initialize(conn, readBufferInitial, readBufferMax)

	s.dir.Clear()
	s.caps.Reset()
	s.dir.SetCasemap(s.caps.Casemap())
	s.syncing = make(map[string]bool)

	s.nick = s.cfg.Nick
	s.nickTries = 0
	s.welcomed = false
	s.motdSeen = false
	s.connected = s.now()
	s.lastRecv = s.connected
	s.probeSent = time.Time{}
}

func (s *Session) login() error {
	if s.cfg.ServerPass != "" {
		if err := s.Send("PASS", s.cfg.ServerPass); err != nil {
			return err
		}
	}
	if err := s.Send("NICK", s.nick); err != nil {
		return err
	}
	if err := s.Send("USER", s.cfg.Username, "*", "0", s.cfg.RealName); err != nil {
		return err
	}
	s.state = StateRegistered
	return nil
}

func (s *Session) teardown() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = nil
	s.out = nil
	s.state = StateIdle
}

// serve runs the read loop of one connection
func (s *Session) serve(ctx context.Context) error {
	s.state = StateActive
	defer s.disp.Emit(dispatch.SignalDisconnect, dispatch.Empty{})

	for {
		if ctx.Err() != nil {
			s.state = StateClosing
			if err := s.writeLine(s.quitLine()); err != nil {
				s.log.Debugf("Could not send QUIT: %v", err)
			}
			return nil
		}

		s.conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
		line, err := s.reader.ReadLine()
		if err != nil {
			if errors.Is(err, ircreader.ErrReadQ) {
				s.log.Warn("Oversized line, reconnecting")
				return fmt.Errorf("read failed: %w", err)
			}
			if isTimeout(err) {
				if err := s.tick(); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("read failed: %w", err)
		}

		s.lastRecv = s.now()
		s.probeSent = time.Time{}
		s.handleLine(s.decode(line))
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// tick runs on every read timeout
func (s *Session) tick() error {
	now := s.now()
	switch {
	case s.probeSent.IsZero() && now.Sub(s.lastRecv) > s.cfg.Inactivity:
		if err := s.Send("PING", s.cfg.Server); err != nil {
			return fmt.Errorf("failed to send liveness probe: %w", err)
		}
		s.probeSent = now
	case !s.probeSent.IsZero() && now.Sub(s.probeSent) > s.cfg.Inactivity:
		return ErrPingTimeout
	}

	s.disp.Emit(dispatch.SignalIdle, dispatch.Empty{})
	return nil
}
