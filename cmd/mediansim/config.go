package main

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Config is a scenario: host settings plus the steps to run.
type Config struct {
	SampleRate  float64  `koanf:"sample-rate"`
	VectorSize  int      `koanf:"vector-size"`
	LogLevel    string   `koanf:"log-level"`
	Workers     int      `koanf:"workers"`
	MetricsAddr string   `koanf:"metrics-addr"`
	Externals   []string `koanf:"externals"`
	Steps       []Step   `koanf:"steps"`
}

// Step is one scenario action. Which fields matter depends on Op.
type Step struct {
	Op string `koanf:"op"`
	// ID names the object a step acts on.
	ID string `koanf:"id"`
	// Class is the class to instantiate for "new".
	Class string `koanf:"class"`
	// Args are whitespace separated atoms: creation arguments, message
	// arguments or attribute values.
	Args  string `koanf:"args"`
	Inlet int    `koanf:"inlet"`
	// To and Outlet describe the far end of a "connect" step.
	To       string  `koanf:"to"`
	Outlet   int     `koanf:"outlet"`
	Selector string  `koanf:"selector"`
	Name     string  `koanf:"name"`
	Ms       float64 `koanf:"ms"`
	Frames   int     `koanf:"frames"`
	Channels int     `koanf:"channels"`
	Value    float64 `koanf:"value"`
	Type     string  `koanf:"type"`
	Planes   int     `koanf:"planes"`
	Dims     []int   `koanf:"dims"`
}

const (
	opNew     = "new"
	opSend    = "send"
	opAttr    = "attr"
	opDSP     = "dsp"
	opAdvance = "advance"
	opMatrix  = "matrix"
	opBuffer  = "buffer"
	opFree    = "free"
	opConnect = "connect"
)

// addConfigFlags registers the flags that may override scenario settings.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.Float64("sample-rate", 44100, "DSP sample rate")
	fs.Int("vector-size", 64, "DSP vector size")
	fs.String("log-level", "info", "framework log level")
	fs.Int("workers", 4, "parallel matrix workers")
	fs.String("metrics-addr", "", "serve prometheus metrics on this address")
	fs.StringSlice("externals", nil, "externals to load (default all)")
}

// loadConfig reads path, when given, and applies flags on top of it.
func loadConfig(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code(max.CodeConfigInvalid).With("path", path).Wrapf(err, "load scenario")
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, oops.Code(max.CodeConfigInvalid).Wrapf(err, "load flags")
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code(max.CodeConfigInvalid).Wrapf(err, "decode scenario")
	}
	return cfg, cfg.Validate()
}

// Validate checks settings and that every step names a known operation and
// carries the fields it needs.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return oops.Code(max.CodeConfigInvalid).With("sample-rate", c.SampleRate).Errorf("sample rate must be positive")
	}
	if c.VectorSize <= 0 {
		return oops.Code(max.CodeConfigInvalid).With("vector-size", c.VectorSize).Errorf("vector size must be positive")
	}
	for i, s := range c.Steps {
		if err := s.validate(); err != nil {
			return oops.Code(max.CodeConfigInvalid).With("step", i).With("op", s.Op).Wrap(err)
		}
	}
	return nil
}

func (s Step) validate() error {
	need := func(ok bool, field string) error {
		if ok {
			return nil
		}
		return oops.Errorf("%s step needs %s", s.Op, field)
	}
	switch s.Op {
	case opNew:
		if err := need(s.ID != "", "id"); err != nil {
			return err
		}
		return need(s.Class != "", "class")
	case opSend:
		if err := need(s.ID != "", "id"); err != nil {
			return err
		}
		return need(s.Selector != "", "selector")
	case opAttr:
		if err := need(s.ID != "", "id"); err != nil {
			return err
		}
		return need(s.Name != "", "name")
	case opConnect:
		if err := need(s.ID != "", "id"); err != nil {
			return err
		}
		return need(s.To != "", "to")
	case opDSP, opFree:
		return need(s.ID != "", "id")
	case opAdvance:
		return need(s.Ms >= 0, "a non-negative ms")
	case opMatrix:
		if err := need(s.ID != "", "id"); err != nil {
			return err
		}
		if err := need(s.Planes > 0, "planes"); err != nil {
			return err
		}
		return need(len(s.Dims) > 0, "dims")
	case opBuffer:
		if err := need(s.Name != "", "name"); err != nil {
			return err
		}
		return need(s.Channels > 0 && s.Frames > 0, "channels and frames")
	default:
		return oops.Errorf("unknown op %q", s.Op)
	}
}
