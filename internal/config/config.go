package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "info"
	}
}

const (
	DefaultBlockSize  = 128
	DefaultMaxEntries = 256
	DefaultMaxNameLen = 63
)

type Config struct {
	DiskListen  string
	FSListen    string
	HTTPAddr    string
	DiskAddr    string
	BackingPath string
	Cylinders   int
	Sectors     int
	BlockSize   int
	TrackDelay  time.Duration
	MmapReads   bool
	MaxEntries  int
	MaxNameLen  int
	LogLevel    LogLevel
	EnableHTTP  bool
}

func Load() *Config {
	return &Config{
		DiskListen:  getEnv("BLOCKFS_DISK_LISTEN", "0.0.0.0:7780"),
		FSListen:    getEnv("BLOCKFS_FS_LISTEN", "0.0.0.0:7790"),
		HTTPAddr:    getEnv("BLOCKFS_HTTP", "127.0.0.1:8080"),
		DiskAddr:    getEnv("BLOCKFS_DISK_ADDR", "127.0.0.1:7780"),
		BackingPath: getEnv("BLOCKFS_BACKING", "disk.img"),
		Cylinders:   getEnvInt("BLOCKFS_CYLINDERS", 64),
		Sectors:     getEnvInt("BLOCKFS_SECTORS", 16),
		BlockSize:   getEnvInt("BLOCKFS_BLOCK_SIZE", DefaultBlockSize),
		TrackDelay:  getEnvDuration("BLOCKFS_TRACK_DELAY", 10*time.Microsecond),
		MmapReads:   getEnvBool("BLOCKFS_MMAP_READS", false),
		MaxEntries:  getEnvInt("BLOCKFS_MAX_ENTRIES", DefaultMaxEntries),
		MaxNameLen:  getEnvInt("BLOCKFS_MAX_NAME", DefaultMaxNameLen),
		LogLevel:    ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		EnableHTTP:  getEnvBool("BLOCKFS_HTTP_ENABLE", false),
	}
}

// ValidateDisk checks the settings the block device server depends on.
func (c *Config) ValidateDisk() error {
	if c.Cylinders <= 0 || c.Sectors <= 0 {
		return fmt.Errorf("bad geometry: cylinders=%d sectors=%d", c.Cylinders, c.Sectors)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("bad block size: %d", c.BlockSize)
	}
	if c.TrackDelay < 0 {
		return errors.New("track delay must not be negative")
	}
	if c.BackingPath == "" {
		return errors.New("backing file path is empty")
	}
	return nil
}

// ValidateFS checks the settings the filesystem server depends on.
func (c *Config) ValidateFS() error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("bad block size: %d", c.BlockSize)
	}
	if c.MaxEntries < 2 {
		return fmt.Errorf("entry table needs room for root and one entry, got %d", c.MaxEntries)
	}
	if c.MaxNameLen <= 0 {
		return fmt.Errorf("bad max name length: %d", c.MaxNameLen)
	}
	if c.DiskAddr == "" {
		return errors.New("disk server address is empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		v := strings.ToLower(value)
		return v == "true" || v == "1" || v == "yes"
	}
	return defaultValue
}

func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
