// Package activity keeps an append-only JSON audit trail of user actions.
package activity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the activity log name inside the data directory.
const FileName = "activity.log"

// DefaultMaxBytes is the size above which the log is rotated.
const DefaultMaxBytes int64 = 1 << 20

// Options configures a Log.
type Options struct {
	Now      func() time.Time
	MaxBytes int64
}

// Log writes one JSON object per line:
// {"timestamp":...,"level":"INFO","action":...,"user":...,"ip":...}.
// A nil *Log discards everything.
type Log struct {
	file   *rotatingFile
	logger *slog.Logger
	ip     string
}

// Open creates dir if needed and opens <dir>/activity.log for appending.
func Open(dir string, opts Options) (*Log, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory: %w", err)
	}

	f := &rotatingFile{path: filepath.Join(dir, FileName), maxBytes: opts.MaxBytes, now: opts.Now}
	if err := f.open(); err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String("timestamp", opts.Now().Format(time.RFC3339Nano))
			case slog.MessageKey:
				a.Key = "action"
			}
			return a
		},
	})

	ip := os.Getenv("REMOTE_ADDR")
	if ip == "" {
		ip = "local"
	}

	return &Log{file: f, logger: slog.New(handler), ip: ip}, nil
}

// Path returns the active log file path.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.file.path
}

// Record logs a successful action for user. An empty user is logged as "unknown".
func (l *Log) Record(ctx context.Context, user, action string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, user, action, attrs)
}

// Failure logs a failed action with its error.
func (l *Log) Failure(ctx context.Context, user, action string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log(ctx, slog.LevelError, user, action, attrs)
}

func (l *Log) log(ctx context.Context, level slog.Level, user, action string, attrs []slog.Attr) {
	if l == nil {
		return
	}
	if user == "" {
		user = "unknown"
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("user", user), slog.String("ip", l.ip))
	all = append(all, attrs...)
	l.logger.LogAttrs(ctx, level, action, all...)
	if err := l.file.failure(); err != nil {
		slog.Warn("Failed to write activity log", "error", err)
	}
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.file.close()
}

// rotatingFile renames the log to <path>.<YYYYMMDD> once it grows past maxBytes.
type rotatingFile struct {
	f        *os.File
	err      error
	now      func() time.Time
	path     string
	size     int64
	maxBytes int64
	mu       sync.Mutex
}

var _ io.Writer = (*rotatingFile)(nil)

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat activity log: %w", err)
	}
	r.f = f
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size > r.maxBytes {
		if err := r.rotate(); err != nil {
			r.err = err
			return 0, err
		}
	}
	if r.f == nil {
		r.err = os.ErrClosed
		return 0, r.err
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	r.err = err
	return n, err
}

func (r *rotatingFile) rotate() error {
	if r.f != nil {
		if err := r.f.Close(); err != nil {
			return err
		}
		r.f = nil
	}
	target := fmt.Sprintf("%s.%s", r.path, r.now().Format("20060102"))
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = fmt.Sprintf("%s.%s.%d", r.path, r.now().Format("20060102"), i)
	}
	if err := os.Rename(r.path, target); err != nil {
		return fmt.Errorf("failed to rotate activity log: %w", err)
	}
	return r.open()
}

// failure returns and clears the last write error.
func (r *rotatingFile) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.err = nil
	return err
}

func (r *rotatingFile) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
