// Package config loads the tsls TOML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/jward/tsls/internal/syntax"
)

// Server modes.
const (
	ModeStdio = "stdio"
	ModeTCP   = "tcp"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the full configuration. The zero value is not useful; start
// from Default.
type Config struct {
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`
	Queries Queries `toml:"queries"`
	Engine  Engine  `toml:"engine"`
	Dump    Dump    `toml:"dump"`
}

type Server struct {
	Mode    string `toml:"mode"`
	Address string `toml:"address"`
	Name    string `toml:"name"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"` // empty means stderr
}

// Queries locates external query assets. Files under Dir take precedence
// over the bundled copy; Watch reloads them on change.
type Queries struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Engine struct {
	Languages []string `toml:"languages"` // empty means all
	Parallel  bool     `toml:"parallel"`
}

type Dump struct {
	Path    string `toml:"path"`
	Workers int    `toml:"workers"` // 0 means one per CPU
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{Mode: ModeStdio, Address: "127.0.0.1:12345", Name: "tsls"},
		Log:    Log{Level: "info", Format: FormatConsole},
		Engine: Engine{Parallel: true},
		Dump:   Dump{Path: "tsls.db"},
	}
}

// Load reads the file at path over Default. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := cfg.decode(path, data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data over Default without reading a file.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode("<input>", data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			perr.Message = serr.String()
		}
		return perr
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ModeStdio, ModeTCP}, c.Server.Mode) {
		return fmt.Errorf("server.mode: unknown mode %q", c.Server.Mode)
	}
	if c.Server.Mode == ModeTCP && c.Server.Address == "" {
		return errors.New("server.address: required in tcp mode")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if !slices.Contains([]string{FormatConsole, FormatJSON}, c.Log.Format) {
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	for _, lang := range c.Engine.Languages {
		if _, ok := syntax.LanguageForID(lang); !ok {
			return fmt.Errorf("engine.languages: unsupported language %q", lang)
		}
	}
	if c.Dump.Workers < 0 {
		return fmt.Errorf("dump.workers: must not be negative, got %d", c.Dump.Workers)
	}
	return nil
}

// Languages returns the configured languages in canonical form.
func (c *Config) Languages() []string {
	var out []string
	for _, lang := range c.Engine.Languages {
		if canonical, ok := syntax.LanguageForID(lang); ok && !slices.Contains(out, canonical) {
			out = append(out, canonical)
		}
	}
	return out
}

// ParseError describes a malformed configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
