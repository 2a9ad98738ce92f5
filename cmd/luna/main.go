package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/chmod222/Luna/internal/config"
	"github.com/chmod222/Luna/internal/session"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	foreground := flag.Bool("x", false, "Run in foreground (don't daemonize)")
	configPath := flag.String("c", "./config.yaml", "Path to configuration file")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	showVersionLong := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("luna version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	session.Version = version
	session.BuildDate = buildDate
	session.GitCommit = gitCommit

	if !*foreground {
		daemonize()
		return
	}

	os.Exit(run(*configPath))
}

// daemonize restarts the binary detached from the terminal with -x
func daemonize() {
	args := append(os.Args[1:], "-x")
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fork: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Now becoming a daemon\nMy pid is %d, this has been written to pid.txt\n", cmd.Process.Pid)
	os.Exit(0)
}

func writePIDFile() error {
	return os.WriteFile("pid.txt", []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

func newLogger(cfg *config.Config) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	if cfg.LogFile == "" {
		return log, func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return log, func() { f.Close() }, nil
}

// run is the foreground process; it returns the exit status
func run(configPath string) int {
	if !filepath.IsAbs(configPath) {
		wd, _ := os.Getwd()
		configPath = filepath.Join(wd, configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	if err := writePIDFile(); err != nil {
		log.Warnf("Could not write PID file: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Errorf("Failed to create data directory: %v", err)
		return 1
	}

	s, err := session.New(cfg, log)
	if err != nil {
		log.Errorf("Failed to create session: %v", err)
		return 1
	}

	var t tomb.Tomb
	ctx := t.Context(nil)
	t.Go(func() error {
		return s.Run(ctx)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Infof("Received signal %v, shutting down...", sig)
			t.Kill(nil)
		case <-t.Dying():
		}
	}()

	if err := t.Wait(); err != nil {
		if errors.Is(err, session.ErrRetriesExhausted) {
			log.Errorf("Giving up: %v", err)
		} else {
			log.Errorf("Session failed: %v", err)
		}
		return 1
	}
	log.Info("Shut down")
	return 0
}
