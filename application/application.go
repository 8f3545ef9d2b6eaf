package application

import (
	"fmt"
	"os"
	"strings"

	"github.com/lk2023060901/propbridge/bridge"
	"github.com/lk2023060901/propbridge/internal/json"
	zlog "github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/metrics"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
	zviper "github.com/lk2023060901/propbridge/pkg/util/viper"
)

const (
	envPrefix         = "PROPBRIDGE"
	envConfigFilePath = envPrefix + "_CONFIG_FILE_PATH"
	defaultConfigPath = "./config.yaml"

	// bridgeLoggerName is the module logger handed to the bridge when configured.
	bridgeLoggerName = "bridge"
)

// Application is the runtime container that hosts a property bridge.
// It owns configuration, loggers and the bridge itself.
type Application struct {
	args    []string
	cfg     *zviper.Config
	loggers map[string]*zlog.MLogger
	bridge  *bridge.Bridge
}

// Option customizes an Application.
type Option func(*Application)

// WithArgs replaces os.Args[1:] as the command-line arguments.
func WithArgs(args []string) Option {
	return func(a *Application) {
		a.args = args
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{args: os.Args[1:]}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run loads configuration, initializes logging and builds the bridge.
// The configuration file is resolved with the following priority:
//  1. Default: ./config.yaml (optional)
//  2. Env: PROPBRIDGE_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// Every key can be overridden by env, e.g. cache.dir by PROPBRIDGE_CACHE_DIR.
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}
	return a.initBridge()
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Bridge returns the bridge built by Run.
func (a *Application) Bridge() *bridge.Bridge {
	return a.bridge
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// Close releases the bridge and flushes loggers.
func (a *Application) Close() error {
	var errs []error
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	for _, lg := range a.loggers {
		_ = lg.Sync()
	}
	return merr.Combine(errs...)
}

// resolveConfigPath returns the config path and whether it was given explicitly.
func (a *Application) resolveConfigPath() (string, bool, error) {
	configPath, explicit := defaultConfigPath, false

	if envPath := os.Getenv(envConfigFilePath); envPath != "" {
		configPath, explicit = envPath, true
	}

	for i := 0; i < len(a.args); i++ {
		arg := a.args[i]
		if arg == "--config" {
			if i+1 >= len(a.args) {
				return "", false, fmt.Errorf("missing value after --config")
			}
			configPath, explicit = a.args[i+1], true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				configPath, explicit = val, true
			}
		}
	}
	return configPath, explicit, nil
}

// loadConfig resolves the config file path and loads it via viper wrapper.
// A missing default file is not an error; defaults and env still apply.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath, explicit, err := a.resolveConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := zviper.New()
	for key, value := range bridge.Defaults() {
		cfg.SetDefault(key, value)
	}
	cfg.BindEnv(envPrefix)

	if _, statErr := os.Stat(configPath); statErr != nil && !explicit && os.IsNotExist(statErr) {
		return cfg, nil
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv configures the process-wide logger based on PROPBRIDGE_LOG_* env vars.
//
//   - PROPBRIDGE_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - PROPBRIDGE_LOG_LEVEL: log level (default "info").
//   - PROPBRIDGE_LOG_STDOUT: whether to log to stdout (default false).
//   - PROPBRIDGE_LOG_FILE_DIR: log directory.
//   - PROPBRIDGE_LOG_FILE: log file name (empty means no file).
//   - PROPBRIDGE_LOG_FORMAT: log format ("text" or "json", default "text").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool(envPrefix+"_LOG_ENABLE", false)

	cfg := &zlog.Config{
		Level:               getenvDefault(envPrefix+"_LOG_LEVEL", "info"),
		Format:              getenvDefault(envPrefix+"_LOG_FORMAT", zlog.FormatText),
		Stdout:              getenvBool(envPrefix+"_LOG_STDOUT", false),
		DisableErrorVerbose: true,
		File: zlog.FileLogConfig{
			RootPath: getenvDefault(envPrefix+"_LOG_FILE_DIR", ""),
			Filename: getenvDefault(envPrefix+"_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger from env: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from the "logging" section.
//
// Example:
//
//	logging:
//	  bridge:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: bridge.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}
	return nil
}

// initBridge decodes the bridge configuration and builds the bridge.
func (a *Application) initBridge() error {
	bcfg := bridge.DefaultConfig()
	if err := a.cfg.Unmarshal(&bcfg); err != nil {
		return fmt.Errorf("decode bridge config: %w", err)
	}

	opts := []bridge.Option{bridge.WithRegisterer(metrics.GetRegisterer())}
	if _, ok := a.loggers[bridgeLoggerName]; ok {
		opts = append(opts, bridge.WithLogger(a.Logger(bridgeLoggerName)))
	}
	b, err := bridge.New(bcfg, opts...)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	// The application owns the only bridge, so opaque member values follow its engine too.
	json.SetEngine(b.Config().JSON.Engine)
	a.bridge = b
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
