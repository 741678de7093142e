// Package updater performs offline self-updates: it stops the service, backs up
// the SQLite database, runs a silent installer, migrates and starts the service
// again, restoring the backup when any step fails.
package updater

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"visitor-registry/config"
	"visitor-registry/monitoring"
)

const DefaultVersion = "0.0.0"

var (
	ErrInProgress = errors.New("update already in progress")
	ErrForbidden  = errors.New("forbidden")
)

// Runner executes an external command and reports its exit code. A non-zero
// exit is not an error; err is set only when the command could not run.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (int, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	err := exec.CommandContext(ctx, name, args...).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// Migrator brings the schema up to date in-process. It is used when no
// migrate command is configured.
type Migrator func(ctx context.Context) error

// Request carries the installer source. An uploaded installer wins over a URL;
// without either the configured INSTALLER_URL is used, and with none at all the
// installer step is skipped.
type Request struct {
	InstallerURL string
	Installer    io.Reader
}

type Result struct {
	OK                bool `json:"ok"`
	InstallerExitCode *int `json:"installer_exitcode"`
}

type Updater struct {
	cfg     config.UpdateConfig
	dbPath  string
	migrate Migrator
	runner  Runner
	http    *resty.Client
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	busy atomic.Bool
}

// New returns an updater for the application in cfg.AppDir. dbPath is the
// SQLite file to back up; empty disables the backup.
func New(cfg config.UpdateConfig, dbPath string, migrate Migrator, logger *zap.Logger) *Updater {
	return &Updater{
		cfg:     cfg,
		dbPath:  dbPath,
		migrate: migrate,
		runner:  execRunner{},
		http: resty.New().
			SetTimeout(5 * time.Minute).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second),
		logger: logger,
		now:    time.Now,
	}
}

func (u *Updater) WithRunner(r Runner) *Updater {
	u.runner = r
	return u
}

// Version reads the VERSION file of the application directory.
func (u *Updater) Version() string {
	data, err := os.ReadFile(filepath.Join(u.cfg.AppDir, "VERSION"))
	if err != nil {
		return DefaultVersion
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return DefaultVersion
	}
	return v
}

// Busy reports whether an update is running.
func (u *Updater) Busy() bool {
	return u.busy.Load()
}

// Authorize accepts a request carrying the configured token. Without a
// configured token only loopback clients are accepted.
func (u *Updater) Authorize(token, remoteIP string) error {
	if u.cfg.Token != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(u.cfg.Token)) != 1 {
			return ErrForbidden
		}
		return nil
	}
	ip := net.ParseIP(remoteIP)
	if ip == nil || !ip.IsLoopback() {
		return ErrForbidden
	}
	return nil
}

// Run performs one update. Concurrent calls fail with ErrInProgress.
func (u *Updater) Run(ctx context.Context, req Request) (Result, error) {
	if !u.mu.TryLock() {
		return Result{}, ErrInProgress
	}
	defer u.mu.Unlock()
	u.busy.Store(true)
	defer u.busy.Store(false)

	if u.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.Timeout)
		defer cancel()
	}

	started := u.now()
	u.logger.Info("update started", zap.String("version", u.Version()))

	u.runService(ctx, "stop", u.cfg.StopCommand)

	backup, err := u.backupDB()
	if err != nil {
		monitoring.UpdateRuns.WithLabelValues("failed").Inc()
		u.runService(ctx, "start", u.cfg.StartCommand)
		return Result{}, err
	}

	result, err := u.apply(ctx, req)
	if err != nil {
		monitoring.UpdateRuns.WithLabelValues("failed").Inc()
		u.logger.Error("update failed, restoring database", zap.String("backup", backup), zap.Error(err))
		if rerr := u.restoreDB(backup); rerr != nil {
			u.logger.Error("failed to restore database backup", zap.String("backup", backup), zap.Error(rerr))
		}
		u.runService(ctx, "start", u.cfg.StartCommand)
		return Result{}, err
	}

	u.runService(ctx, "start", u.cfg.StartCommand)
	monitoring.UpdateRuns.WithLabelValues("ok").Inc()
	u.logger.Info("update finished",
		zap.String("version", u.Version()),
		zap.Duration("took", u.now().Sub(started)),
	)
	return result, nil
}

func (u *Updater) apply(ctx context.Context, req Request) (Result, error) {
	installer, cleanup, err := u.obtainInstaller(ctx, req)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	result := Result{OK: true}
	if installer != "" {
		code, err := u.runner.Run(ctx, installer, config.Fields(u.cfg.InstallerArgs)...)
		if err != nil {
			return Result{}, fmt.Errorf("failed to run installer: %w", err)
		}
		u.logger.Info("installer finished", zap.Int("exit_code", code))
		result.InstallerExitCode = &code
	}

	if err := u.runMigrations(ctx); err != nil {
		return Result{}, err
	}
	return result, nil
}

// obtainInstaller stores the installer in a temporary executable file and
// returns its path, or "" when there is nothing to install.
func (u *Updater) obtainInstaller(ctx context.Context, req Request) (string, func(), error) {
	noop := func() {}
	url := req.InstallerURL
	if url == "" {
		url = u.cfg.InstallerURL
	}
	if req.Installer == nil && url == "" {
		return "", noop, nil
	}

	f, err := os.CreateTemp("", "installer-*.exe")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create installer file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if req.Installer != nil {
		_, err = io.Copy(f, req.Installer)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			cleanup()
			return "", noop, fmt.Errorf("failed to save uploaded installer: %w", err)
		}
	} else {
		_ = f.Close()
		resp, err := u.http.R().SetContext(ctx).SetOutput(path).Get(url)
		if err != nil {
			cleanup()
			return "", noop, fmt.Errorf("failed to download installer: %w", err)
		}
		if resp.IsError() {
			cleanup()
			return "", noop, fmt.Errorf("failed to download installer: %s", resp.Status())
		}
	}

	if err := os.Chmod(path, 0o755); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to make installer executable: %w", err)
	}
	return path, cleanup, nil
}

func (u *Updater) runMigrations(ctx context.Context) error {
	if argv := config.Fields(u.cfg.MigrateCmd); len(argv) > 0 {
		code, err := u.runner.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if code != 0 {
			return fmt.Errorf("migrations exited with code %d", code)
		}
		return nil
	}
	if u.migrate == nil {
		return nil
	}
	if err := u.migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// runService runs a stop or start command. Failures are logged and ignored.
func (u *Updater) runService(ctx context.Context, what, command string) {
	argv := config.Fields(command)
	if len(argv) == 0 {
		return
	}
	code, err := u.runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil || code != 0 {
		u.logger.Warn("service command failed",
			zap.String("action", what),
			zap.Int("exit_code", code),
			zap.Error(err),
		)
	}
}

// backupDB copies the database to <db>.bak.<unix seconds> and returns the copy's
// path, or "" when there is no database file.
func (u *Updater) backupDB() (string, error) {
	if u.dbPath == "" {
		return "", nil
	}
	if _, err := os.Stat(u.dbPath); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	backup := fmt.Sprintf("%s.bak.%d", u.dbPath, u.now().Unix())
	if err := copyFile(u.dbPath, backup); err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}
	u.logger.Info("database backed up", zap.String("backup", backup))
	return backup, nil
}

func (u *Updater) restoreDB(backup string) error {
	if backup == "" {
		return nil
	}
	return copyFile(backup, u.dbPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
