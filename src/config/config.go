package config

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/peers"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database of the result cache
	DefaultBadgerFile = "cache_db"
)

// Default configuration values.
const (
	DefaultLogLevel     = "info"
	DefaultRetries      = 3
	DefaultTimeout      = 2000 * time.Millisecond
	DefaultCacheStore   = false
	DefaultNodeIP       = "127.0.0.1"
	DefaultNodePort     = 9001
	DefaultServiceAddr  = "127.0.0.1:8000"
	DefaultNoService    = false
	DefaultPurgeTimeout = time.Minute
)

// Port range accepted for archivers and the local node.
const (
	MinPort = 1024
	MaxPort = 65535
)

// Config contains all the configuration properties of a peerfetch client.
type Config struct {
	// DataDir is the top-level directory containing the configuration file and
	// the persisted active peer.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Archivers is the bootstrap registry: the well-known peers that are only
	// asked for the current list of network members.
	Archivers []peers.BootstrapPeer `mapstructure:"archivers"`

	// Retries is the attempt budget of each network query.
	Retries int `mapstructure:"retries"`

	// Timeout applies to every HTTP request, to archivers, peers and the local
	// node alike.
	Timeout time.Duration `mapstructure:"timeout"`

	// CacheStore keeps the result cache in a Badger database under CacheDir
	// instead of in memory, so that it survives restarts.
	CacheStore bool `mapstructure:"cache-store"`

	// CacheDir is the directory of the Badger database.
	CacheDir string `mapstructure:"cache-dir"`

	// NodeIP and NodePort locate the status endpoint of the local node.
	NodeIP   string `mapstructure:"node-ip"`
	NodePort int    `mapstructure:"node-port"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP API service.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values. The archiver
// list is empty; it has to come from the configuration file or the command
// line.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:     DefaultDataDir(),
		LogLevel:    DefaultLogLevel,
		Retries:     DefaultRetries,
		Timeout:     DefaultTimeout,
		CacheStore:  DefaultCacheStore,
		CacheDir:    DefaultCacheDir(),
		NodeIP:      DefaultNodeIP,
		NodePort:    DefaultNodePort,
		NoService:   DefaultNoService,
		ServiceAddr: DefaultServiceAddr,
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

// SetDataDir sets the top-level directory, and updates the cache directory if
// it is currently set to the default value. If the cache directory is not
// currently the default, it means the user has explicitely set it to something
// else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.CacheDir == DefaultCacheDir() {
		c.CacheDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Archivers) == 0 {
		return fmt.Errorf("at least one archiver is required")
	}

	for i, a := range c.Archivers {
		if a.IP == "" {
			return fmt.Errorf("archiver %d: missing ip", i)
		}
		if err := checkPort(a.Port); err != nil {
			return fmt.Errorf("archiver %d: %w", i, err)
		}
	}

	if err := checkPort(c.NodePort); err != nil {
		return fmt.Errorf("node-port: %w", err)
	}

	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}

	return nil
}

func checkPort(p int) error {
	if p < MinPort || p > MaxPort {
		return fmt.Errorf("port %d out of range [%d, %d]", p, MinPort, MaxPort)
	}
	return nil
}

// ParseArchiver parses an archiver given as ip:port:publicKey. IPv6
// addresses are given in brackets, eg [::1]:4000:publicKey.
func ParseArchiver(s string) (peers.BootstrapPeer, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 || i == len(s)-1 {
		return peers.BootstrapPeer{}, fmt.Errorf("archiver %q: expected ip:port:publicKey", s)
	}

	host, portStr, err := net.SplitHostPort(s[:i])
	if err != nil {
		return peers.BootstrapPeer{}, fmt.Errorf("archiver %q: %w", s, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return peers.BootstrapPeer{}, fmt.Errorf("archiver %q: %w", s, err)
	}

	return peers.BootstrapPeer{
		IP:        host,
		Port:      port,
		PublicKey: s[i+1:],
	}, nil
}

// Logger returns a formatted logrus Entry, with prefix set to "peerfetch".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(newFileHook(c.LogFile))
		}
	}
	return c.logger.WithField("prefix", "peerfetch")
}

func newFileHook(path string) logrus.Hook {
	pathMap := lfshook.PathMap{}
	for _, level := range logrus.AllLevels {
		pathMap[level] = path
	}

	return lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	)
}

// DefaultCacheDir returns the default path for the badger database files.
func DefaultCacheDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Peerfetch")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Peerfetch")
		} else {
			return filepath.Join(home, ".peerfetch")
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
