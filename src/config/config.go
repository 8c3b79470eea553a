package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/compress"
	"github.com/idsov/recordstore/src/record"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultInfoLogFile and DefaultDebugLogFile are the names of the log files
	// written to LogDir.
	DefaultInfoLogFile  = "recordstore_info.log"
	DefaultDebugLogFile = "recordstore_debug.log"
)

// Default configuration values.
const (
	DefaultLogLevel     = "debug"
	DefaultServiceAddr  = "127.0.0.1:8000"
	DefaultCacheSize    = 10000
	DefaultStore        = false
	DefaultCompression  = "zstd"
	DefaultIngestQueue  = 256
	DefaultResolveRetry = time.Duration(0)
	DefaultPath         = record.DefaultPath
)

// Config contains all the configuration properties of a record store node.
type Config struct {
	// DataDir is the top-level directory containing the configuration file,
	// the private key and, by default, the database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogDir, if set, receives info and debug log files on top of the console
	// output.
	LogDir string `mapstructure:"log-dir"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Store activates persistant storage. Without it, everything is lost when
	// the process exits.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Compression is the algorithm applied to entry bytes in the database:
	// none, lz4 or zstd.
	Compression string `mapstructure:"compression"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// IngestQueue is the number of remote deliveries that can wait to be
	// applied.
	IngestQueue int `mapstructure:"ingest-queue"`

	// ResolveRetry is how long a read waits before looking up a missing action
	// a second time. Zero disables the retry.
	ResolveRetry time.Duration `mapstructure:"resolve-retry"`

	// Path is the name of the collection records are linked from.
	Path string `mapstructure:"anchor"`

	// Key is the private key of the node. Its public key is the author of
	// local actions.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     DefaultLogLevel,
		ServiceAddr:  DefaultServiceAddr,
		CacheSize:    DefaultCacheSize,
		Store:        DefaultStore,
		DatabaseDir:  DefaultDatabaseDir(),
		Compression:  DefaultCompression,
		IngestQueue:  DefaultIngestQueue,
		ResolveRetry: DefaultResolveRetry,
		Path:         DefaultPath,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// CompressionTag parses Compression.
func (c *Config) CompressionTag() (compress.Tag, error) {
	return compress.ParseTag(c.Compression)
}

// Logger returns a formatted logrus Entry, with prefix set to "recordstore".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogDir != "" {
			c.addFileHook()
		}
	}
	return c.logger.WithField("prefix", "recordstore")
}

// addFileHook copies info and debug messages to files in LogDir.
func (c *Config) addFileHook() {
	if err := os.MkdirAll(c.LogDir, 0700); err != nil {
		c.logger.WithError(err).Warn("Failed to create log directory, using stderr only")
		return
	}

	pathMap := lfshook.PathMap{
		logrus.InfoLevel:  filepath.Join(c.LogDir, DefaultInfoLogFile),
		logrus.DebugLevel: filepath.Join(c.LogDir, DefaultDebugLogFile),
	}

	c.logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".RecordStore")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "RecordStore")
		} else {
			return filepath.Join(home, ".recordstore")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
