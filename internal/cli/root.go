// Package cli implements the attendance command-line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/client"
	"github.com/noah-isme/attendance-api/internal/clientcache"
	"github.com/noah-isme/attendance-api/internal/localcache"
	"github.com/noah-isme/attendance-api/pkg/logger"
)

const (
	envPrefix      = "ATTENDANCE"
	defaultAPIURL  = "http://localhost:8080/api/v1"
	defaultBackend = "file"
)

// Options overrides what the CLI would otherwise build from its configuration. Zero values
// fall back to the configured defaults.
type Options struct {
	Backend    localcache.Backend
	Session    localcache.Backend
	Clock      clockwork.Clock
	HTTPClient *http.Client
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
}

type app struct {
	opts Options
	v    *viper.Viper

	logger  *zap.Logger
	api     *client.Client
	backend localcache.Backend
	store   *localcache.Store
	session *sessionStore
	closers []func() error

	metrics    *clientcache.MetricsService
	history    *clientcache.AttendanceHistoryService
	attendance *clientcache.AttendanceLogService
	students   *clientcache.StudentService
}

// Execute runs the CLI against the process environment.
func Execute() {
	if err := NewRootCmd(Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd assembles the command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	a := &app{opts: opts, v: viper.New()}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "attendance",
		Short:         "Attendance tracker client",
		Long:          "Check students in, browse attendance and manage the roster of an attendance API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	flags := root.PersistentFlags()
	flags.String("api-url", defaultAPIURL, "Base URL of the attendance API")
	flags.String("token", "", "Access token (overrides the saved session)")
	flags.String("cache-dir", "", "Directory of the local cache (default: user cache dir)")
	flags.String("cache-backend", defaultBackend, "Local cache backend: file, memory or redis")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis cache backend")
	flags.String("cache-prefix", "attendance-cli:", "Key prefix for the redis cache backend")
	flags.Bool("json", false, "Emit JSON instead of tables")
	flags.BoolP("verbose", "v", false, "Verbose debug output to stderr")
	for _, name := range []string{"api-url", "token", "cache-dir", "cache-backend", "redis-addr", "cache-prefix", "json", "verbose"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.checkinCmd(),
		a.metricsCmd(),
		a.studentsCmd(),
		a.attendanceCmd(),
		a.importCmd(),
		a.exportCmd(),
		a.cacheCmd(),
	)
	return root
}

func (a *app) setup() error {
	log, err := logger.NewCLI(a.v.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = log

	cacheDir, err := a.cacheDir()
	if err != nil {
		return err
	}

	a.backend = a.opts.Backend
	if a.backend == nil {
		if a.backend, err = a.openBackend(cacheDir); err != nil {
			return err
		}
	}
	sessionBackend := a.opts.Session
	if sessionBackend == nil {
		if sessionBackend, err = localcache.NewFileBackend(filepath.Join(cacheDir, "session")); err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
	}
	a.session = &sessionStore{backend: sessionBackend}
	a.store = localcache.NewStore(a.backend, a.opts.Clock, a.logger)

	clientOpts := []client.Option{client.WithLogger(a.logger)}
	if a.opts.HTTPClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(a.opts.HTTPClient))
	}
	a.api = client.New(a.v.GetString("api-url"), clientOpts...)
	token := a.v.GetString("token")
	if token == "" {
		if sess, err := a.session.Load(context.Background()); err == nil && sess != nil {
			token = sess.Token
		}
	}
	a.api.SetToken(token)

	a.metrics = clientcache.NewMetricsService(a.api, a.store, a.logger)
	a.history = clientcache.NewAttendanceHistoryService(a.api, a.store, a.logger)
	a.attendance = clientcache.NewAttendanceLogService(a.api, a.store, a.logger)
	a.students = clientcache.NewStudentService(a.api, a.store, a.logger)
	return nil
}

func (a *app) openBackend(cacheDir string) (localcache.Backend, error) {
	switch kind := strings.ToLower(a.v.GetString("cache-backend")); kind {
	case "", "file":
		backend, err := localcache.NewFileBackend(filepath.Join(cacheDir, "entries"))
		if err != nil {
			return nil, fmt.Errorf("open cache dir: %w", err)
		}
		return backend, nil
	case "memory":
		return localcache.NewMemoryBackend(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: a.v.GetString("redis-addr")})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		backend, err := localcache.NewRedisBackend(rdb, a.v.GetString("cache-prefix"))
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}
}

func (a *app) cacheDir() (string, error) {
	if dir := a.v.GetString("cache-dir"); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(base, "attendance-cli"), nil
}

func (a *app) close() error {
	for _, fn := range a.closers {
		_ = fn()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}

func (a *app) today() string {
	return a.opts.Clock.Now().Format("2006-01-02")
}
