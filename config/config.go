// Package config loads serialfeed settings from YAML, JSON or CUE.
//
// Files are parsed with CUE and checked against an embedded schema before
// being decoded, so a typo in a key or an out-of-range value is reported
// with its position instead of being silently ignored.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/encoding/yaml"

	serial "github.com/luhtfiimanal/serialfeed"
	"github.com/luhtfiimanal/serialfeed/feed"
	"github.com/luhtfiimanal/serialfeed/reassembly"
	"github.com/luhtfiimanal/serialfeed/sink/natssink"
)

//go:embed schema.cue
var schema string

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds every setting of the serialfeed command.
type Config struct {
	Device string `json:"device"`
	// Driver is "termios" or "portable"; empty picks the platform default.
	Driver     string `json:"driver"`
	BaudRate   int    `json:"baud_rate"`
	ReadBuffer int    `json:"read_buffer"`
	// MaxLineBytes caps a line; 0 means unbounded, nil means the default.
	MaxLineBytes *int       `json:"max_line_bytes"`
	Overflow     string     `json:"overflow"`
	LogLevel     string     `json:"log_level"`
	NATS         NATSConfig `json:"nats"`
	HTTP         HTTPConfig `json:"http"`
}

type NATSConfig struct {
	// URL enables publishing when set.
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

type HTTPConfig struct {
	// Addr enables the dashboard when set.
	Addr string `json:"addr"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = serial.DefaultBaudRate
	}
	if c.ReadBuffer == 0 {
		c.ReadBuffer = feed.DefaultReadBuffer
	}
	if c.MaxLineBytes == nil {
		n := reassembly.DefaultMaxLine
		c.MaxLineBytes = &n
	}
	if c.Overflow == "" {
		c.Overflow = feed.OverflowDiscard.String()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = natssink.DefaultSubject
	}
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	if c.BaudRate < 0 {
		return fmt.Errorf("%w: baud_rate %d", ErrInvalid, c.BaudRate)
	}
	if c.MaxLineBytes != nil && *c.MaxLineBytes < 0 {
		return fmt.Errorf("%w: max_line_bytes %d", ErrInvalid, *c.MaxLineBytes)
	}
	if _, err := feed.ParseOverflowPolicy(c.Overflow); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// MaxLine returns the effective line cap.
func (c *Config) MaxLine() int {
	if c.MaxLineBytes == nil {
		return reassembly.DefaultMaxLine
	}
	return *c.MaxLineBytes
}

// OverflowPolicy returns the parsed overflow policy.
func (c *Config) OverflowPolicy() feed.OverflowPolicy {
	p, _ := feed.ParseOverflowPolicy(c.Overflow)
	return p
}

// Level returns the parsed log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// Load reads, checks and decodes the config at path, then applies defaults.
func Load(path string) (*Config, error) {
	val, err := LoadValue(path)
	if err != nil {
		return nil, err
	}
	return decode(val)
}

// LoadReader is Load for YAML or JSON content.
func LoadReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	file, err := yaml.Extract("", data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	val := cuecontext.New().BuildFile(file)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}
	return decode(val)
}

func decode(val cue.Value) (*Config, error) {
	def := val.Context().CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	checked := def.Unify(val)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var c Config
	if err := checked.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadValue loads a file or CUE package directory as a CUE value.
// .cue files and directories go through load.Instances so imports work;
// anything else is parsed as YAML, which covers JSON.
func LoadValue(path string) (cue.Value, error) {
	ctx := cuecontext.New()

	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("stat config: %w", err)
	}

	var val cue.Value
	if info.IsDir() || strings.EqualFold(filepath.Ext(path), ".cue") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("resolve config path: %w", err)
		}
		dir := filepath.Dir(abs)
		if info.IsDir() {
			dir = abs
		}
		instances := load.Instances([]string{abs}, &load.Config{Dir: dir, DataFiles: true})
		if len(instances) == 0 {
			return cue.Value{}, fmt.Errorf("no instances loaded from %s", path)
		}
		if err := instances[0].Err; err != nil {
			return cue.Value{}, fmt.Errorf("load config: %w", err)
		}
		val = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read config: %w", err)
		}
		file, err := yaml.Extract(path, data)
		if err != nil {
			return cue.Value{}, fmt.Errorf("parse config: %w", err)
		}
		val = ctx.BuildFile(file)
	}
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("build config: %w", err)
	}
	return val, nil
}
