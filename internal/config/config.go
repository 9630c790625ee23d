package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/biolog/internal/collector"
	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/queue"
	"codeberg.org/mutker/biolog/internal/reading"
	"codeberg.org/mutker/biolog/internal/sink"
	"codeberg.org/mutker/biolog/internal/source/gpu"
	"codeberg.org/mutker/biolog/internal/source/thinkgear"
	"codeberg.org/mutker/biolog/internal/supervisor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix     = "BIOLOG"
	DefaultConfigFile    = "/etc/biolog.toml"
	DefaultOutput        = "./biolog.json.gz"
	DefaultLogLevel      = "info"
	DefaultDrainInterval = 100 * time.Millisecond
	DefaultJoinTimeout   = time.Second
)

type Config struct {
	Output              string        `mapstructure:"output"`
	Compression         string        `mapstructure:"compression"`
	LogLevel            string        `mapstructure:"log_level"`
	DrainInterval       time.Duration `mapstructure:"drain_interval"`
	JoinTimeout         time.Duration `mapstructure:"join_timeout"`
	StopOnWorkerFailure bool          `mapstructure:"stop_on_worker_failure"`

	Queue      QueueConfig      `mapstructure:"queue"`
	Summary    SummaryConfig    `mapstructure:"summary"`
	Marker     MarkerConfig     `mapstructure:"marker"`
	ThinkGear  ThinkGearConfig  `mapstructure:"thinkgear"`
	GPU        GPUConfig        `mapstructure:"gpu"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type QueueConfig struct {
	Discipline string `mapstructure:"discipline"`
	Capacity   int    `mapstructure:"capacity"`
}

type SummaryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Kinds    []int         `mapstructure:"kinds"`
}

type MarkerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ThinkGearConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	OpenRetries int           `mapstructure:"open_retries"`
}

type GPUConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Index    int           `mapstructure:"index"`
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
}

type PrometheusConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from defaults, a TOML file, the environment and
// command line flags, in increasing order of precedence, and validates it.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	// Define flags
	fs := pflag.NewFlagSet("biolog", pflag.ContinueOnError)
	fs.String("output", DefaultOutput, "Path of the compressed reading log")
	fs.String("config", "", "Path to a TOML configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("output", fs.Lookup("output")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("log_level", fs.Lookup("log-level")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load configuration from file
	if path := configPath(o, fs); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("compression", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("drain_interval", DefaultDrainInterval)
	v.SetDefault("join_timeout", DefaultJoinTimeout)
	v.SetDefault("stop_on_worker_failure", false)

	v.SetDefault("queue.discipline", string(queue.FIFO))
	v.SetDefault("queue.capacity", 0)

	collectorDefaults := collector.DefaultConfig()
	kinds := make([]int, 0, len(collectorDefaults.WatchedKinds))
	for _, k := range collectorDefaults.WatchedKinds {
		kinds = append(kinds, int(k))
	}
	v.SetDefault("summary.enabled", collectorDefaults.SummaryEnabled)
	v.SetDefault("summary.interval", collectorDefaults.SummaryInterval)
	v.SetDefault("summary.kinds", kinds)

	v.SetDefault("marker.enabled", true)

	tg := thinkgear.DefaultConfig()
	v.SetDefault("thinkgear.enabled", false)
	v.SetDefault("thinkgear.port", "")
	v.SetDefault("thinkgear.baud_rate", tg.BaudRate)
	v.SetDefault("thinkgear.read_timeout", tg.ReadTimeout)
	v.SetDefault("thinkgear.open_retries", tg.OpenRetries)

	g := gpu.DefaultConfig()
	v.SetDefault("gpu.enabled", false)
	v.SetDefault("gpu.index", g.Index)
	v.SetDefault("gpu.interval", g.Interval)

	m := metrics.DefaultConfig()
	v.SetDefault("metrics.enabled", m.Enabled)
	v.SetDefault("metrics.db_path", m.DBPath)
	v.SetDefault("metrics.batch_size", m.BatchSize)
	v.SetDefault("metrics.batch_timeout", m.BatchTimeout)

	v.SetDefault("prometheus.addr", "")
}

func configPath(o *options, fs *pflag.FlagSet) string {
	if o.configPath != "" {
		return o.configPath
	}
	if path, err := fs.GetString("config"); err == nil && path != "" {
		return path
	}
	if path := os.Getenv(o.envPrefix + "_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Output == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "output must be set")
	}
	if _, err := c.Codec(); err != nil {
		return err
	}
	if _, err := queue.ParseDiscipline(c.Queue.Discipline); err != nil {
		return err
	}
	if c.Queue.Capacity < 0 {
		return errFactory.WithData(queue.ErrInvalidCapacity, c.Queue.Capacity)
	}
	if err := c.SupervisorConfig().Validate(); err != nil {
		return err
	}
	if err := c.CollectorConfig().Validate(); err != nil {
		return err
	}
	if c.ThinkGear.Enabled {
		if err := c.ThinkGearConfig().Validate(); err != nil {
			return err
		}
	}
	if c.GPU.Enabled {
		if err := c.GPUConfig().Validate(); err != nil {
			return err
		}
	}
	return c.MetricsConfig().Validate()
}

// Codec returns the configured compression, derived from the output path
// when none is set.
func (c *Config) Codec() (sink.Codec, error) {
	if c.Compression == "" {
		return sink.CodecForPath(c.Output), nil
	}
	return sink.ParseCodec(c.Compression)
}

func (c *Config) Discipline() queue.Discipline {
	d, err := queue.ParseDiscipline(c.Queue.Discipline)
	if err != nil {
		return queue.FIFO
	}
	return d
}

func (c *Config) SupervisorConfig() supervisor.Config {
	return supervisor.Config{
		DrainInterval:       c.DrainInterval,
		JoinTimeout:         c.JoinTimeout,
		StopOnWorkerFailure: c.StopOnWorkerFailure,
	}
}

func (c *Config) CollectorConfig() collector.Config {
	kinds := make([]reading.Kind, 0, len(c.Summary.Kinds))
	for _, k := range c.Summary.Kinds {
		kinds = append(kinds, reading.Kind(k))
	}
	return collector.Config{
		SummaryEnabled:  c.Summary.Enabled,
		SummaryInterval: c.Summary.Interval,
		WatchedKinds:    kinds,
	}
}

func (c *Config) ThinkGearConfig() thinkgear.Config {
	return thinkgear.Config{
		Port:        c.ThinkGear.Port,
		BaudRate:    c.ThinkGear.BaudRate,
		ReadTimeout: c.ThinkGear.ReadTimeout,
		OpenRetries: c.ThinkGear.OpenRetries,
	}
}

func (c *Config) GPUConfig() gpu.Config {
	return gpu.Config{
		Index:    c.GPU.Index,
		Interval: c.GPU.Interval,
	}
}

func (c *Config) MetricsConfig() metrics.Config {
	m := metrics.DefaultConfig()
	m.Enabled = c.Metrics.Enabled
	m.DBPath = c.Metrics.DBPath
	m.BatchSize = c.Metrics.BatchSize
	m.BatchTimeout = c.Metrics.BatchTimeout
	return m
}
