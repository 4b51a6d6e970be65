package depthpipe

import (
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Config bundles the CLI flags and koanf-backed settings a depthpipe
// consumer (in practice, cmd/depthpipe-inspect) needs at construction
// time, mirroring the teacher's Bgpipe.F/Bgpipe.K pairing.
type Config struct {
	F *pflag.FlagSet
	K *koanf.Koanf
}

// NewConfig builds a Config with the standard depthpipe flags registered.
func NewConfig(progname string) *Config {
	c := &Config{
		F: pflag.NewFlagSet(progname, pflag.ExitOnError),
		K: koanf.New("."),
	}
	c.F.String("model", "pinhole", "calibration model: pinhole or kannala_brandt")
	c.F.String("log", "info", "log level: trace, debug, info, warn, error")
	return c
}

// Parse parses CLI args and loads them into K.
func (c *Config) Parse(args []string) error {
	if err := c.F.Parse(args); err != nil {
		return err
	}
	return c.K.Load(posflag.Provider(c.F, ".", c.K), nil)
}

// Model returns the configured calibration model name.
func (c *Config) Model() string { return c.K.String("model") }

// LogLevel parses the configured log level, defaulting to Info on error.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.K.String("log"))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
