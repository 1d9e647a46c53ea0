// Copyright (c) 2023 BVK Chaitanya

// Package daemonize restarts the current program as a background process.
package daemonize

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"log/syslog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/candlebot/ctxutil"
	"golang.org/x/sys/unix"
)

// CheckFunc verifies that the background process is initialized. It is
// retried until it returns nil or the background process dies.
type CheckFunc func(ctx context.Context, child *os.Process) error

// Daemonize respawns the current program in the background with the same
// command-line arguments, environment and working directory. Input
// environment variable identifies the background process and must not be used
// for anything else. Daemonize must be called during the program startup
// before opening databases, starting servers, etc.
//
// Standard input and outputs of the background process are replaced with
// /dev/null and standard library log is redirected to syslog.
//
// When successful, Daemonize returns nil in the background process and exits
// the parent process (i.e., never returns). When unsuccessful, it returns a
// non-nil error to the parent process.
func Daemonize(ctx context.Context, envKey string, check CheckFunc) error {
	if v := os.Getenv(envKey); len(v) == 0 {
		if err := daemonizeParent(ctx, envKey, check); err != nil {
			return err
		}
		os.Exit(0)
	}
	if err := daemonizeChild(); err != nil {
		slog.Error("could not initialize the background process", "err", err)
		os.Exit(1)
	}
	return nil
}

func daemonizeParent(ctx context.Context, envKey string, check CheckFunc) error {
	binary, err := exec.LookPath(os.Args[0])
	if err != nil {
		return fmt.Errorf("could not lookup binary: %w", err)
	}
	binaryPath, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for binary: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("could not determine working directory: %w", err)
	}

	file, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", os.DevNull, err)
	}
	defer file.Close()

	// Receive signal when child-process dies.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGCHLD, os.Interrupt)
	defer stop()

	attr := &os.ProcAttr{
		Dir:   wd,
		Env:   append(os.Environ(), fmt.Sprintf("%s=%d", envKey, os.Getpid())),
		Files: []*os.File{file, file, file},
	}
	child, err := os.StartProcess(binaryPath, os.Args, attr)
	if err != nil {
		return fmt.Errorf("could not start process: %w", err)
	}

	if check != nil {
		ctxutil.Sleep(ctx, time.Second)
		for ctx.Err() == nil {
			if err := check(ctx, child); err != nil {
				slog.WarnContext(ctx, "background process is not yet initialized", "pid", child.Pid, "err", err)
				ctxutil.Sleep(ctx, time.Second)
				continue
			}
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("could not initialize the background process: %w", err)
	}
	return nil
}

func daemonizeChild() error {
	syslogger, err := syslog.New(syslog.LOG_INFO, "candlebot")
	if err != nil {
		return fmt.Errorf("could not create syslog: %w", err)
	}
	log.SetOutput(syslogger)

	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("could not set session id: %w", err)
	}
	return nil
}
