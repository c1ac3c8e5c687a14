package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Neighborhoods []NeighborhoodConfig `yaml:"neighborhoods" mapstructure:"neighborhoods"`
	Geometry      GeometryConfig       `yaml:"geometry" mapstructure:"geometry"`
	Output        OutputConfig         `yaml:"output" mapstructure:"output"`
	Store         StoreConfig          `yaml:"store" mapstructure:"store"`
	Batch         BatchConfig          `yaml:"batch" mapstructure:"batch"`
	Log           LogConfig            `yaml:"log" mapstructure:"log"`
}

// NeighborhoodConfig lists the input layers and survey trips of one neighborhood.
type NeighborhoodConfig struct {
	Name      string            `yaml:"name" mapstructure:"name"`
	Buildings string            `yaml:"buildings" mapstructure:"buildings"`
	Zones     map[string]string `yaml:"zones" mapstructure:"zones"`
	Trips     []TripConfig      `yaml:"trips" mapstructure:"trips"`
	OutputDir string            `yaml:"output_dir" mapstructure:"output_dir"`
	// LayerCRS is the reference system of the zone and building shapefiles.
	LayerCRS string `yaml:"layer_crs" mapstructure:"layer_crs"`
}

// TripConfig points at the coordinate and attribute files of one survey trip.
type TripConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Coords     string `yaml:"coords" mapstructure:"coords"`
	Attributes string `yaml:"attributes" mapstructure:"attributes"`
}

// GeometryConfig configures projection and buffering.
type GeometryConfig struct {
	SourceCRS     string  `yaml:"source_crs" mapstructure:"source_crs"`
	TargetCRS     string  `yaml:"target_crs" mapstructure:"target_crs"`
	BufferRadius  float64 `yaml:"buffer_radius" mapstructure:"buffer_radius"`
	QuadSegments  int     `yaml:"quad_segments" mapstructure:"quad_segments"`
	AttrDelimiter string  `yaml:"attr_delimiter" mapstructure:"attr_delimiter"`
}

// OutputConfig configures report persistence.
type OutputConfig struct {
	WriteSummary bool `yaml:"write_summary" mapstructure:"write_summary"`
}

// StoreConfig configures the run ledger database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures batch parallelism.
type BatchConfig struct {
	MaxConcurrentNeighborhoods int `yaml:"max_concurrent_neighborhoods" mapstructure:"max_concurrent_neighborhoods"`
	MaxConcurrentZones         int `yaml:"max_concurrent_zones" mapstructure:"max_concurrent_zones"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Neighborhood returns the configured neighborhood with the given name.
func (c *Config) Neighborhood(name string) (NeighborhoodConfig, bool) {
	for _, n := range c.Neighborhoods {
		if n.Name == name {
			return n, true
		}
	}
	return NeighborhoodConfig{}, false
}

// DefaultNeighborhoods returns the three surveyed neighborhoods with their
// conventional directory layout relative to the working directory.
func DefaultNeighborhoods() []NeighborhoodConfig {
	return []NeighborhoodConfig{
		defaultNeighborhood("qn1", 2),
		defaultNeighborhood("qn2", 3),
		defaultNeighborhood("bk1", 2),
	}
}

func defaultNeighborhood(name string, trips int) NeighborhoodConfig {
	n := NeighborhoodConfig{
		Name:      name,
		Buildings: name + "/" + name + "_bldgs/" + name + "_bldgs.shp",
		Zones: map[string]string{
			"residential": name + "/" + name + "_r/" + name + "_r.shp",
			"commercial":  name + "/" + name + "_c/" + name + "_c.shp",
			"mixed":       name + "/" + name + "_m/" + name + "_m.shp",
		},
		OutputDir: name + "/" + name + "_cvrg",
		LayerCRS:  "EPSG:2263",
	}
	for i := 1; i <= trips; i++ {
		trip := name + "_" + strconv.Itoa(i)
		n.Trips = append(n.Trips, TripConfig{
			Name:       trip,
			Coords:     name + "/" + trip + ".txt",
			Attributes: name + "/" + trip + "_att.csv",
		})
	}
	return n
}

// Validate checks that the loaded configuration can drive a run.
func (c *Config) Validate() error {
	if c.Geometry.BufferRadius <= 0 {
		return eris.Errorf("config: geometry.buffer_radius must be positive, got %v", c.Geometry.BufferRadius)
	}
	if c.Geometry.QuadSegments < 1 {
		return eris.Errorf("config: geometry.quad_segments must be at least 1, got %d", c.Geometry.QuadSegments)
	}
	seen := make(map[string]bool, len(c.Neighborhoods))
	for _, n := range c.Neighborhoods {
		if n.Name == "" {
			return eris.New("config: neighborhood without name")
		}
		if seen[n.Name] {
			return eris.Errorf("config: duplicate neighborhood %q", n.Name)
		}
		seen[n.Name] = true
		if n.Buildings == "" {
			return eris.Errorf("config: neighborhood %q has no buildings layer", n.Name)
		}
		if len(n.Zones) == 0 {
			return eris.Errorf("config: neighborhood %q has no zone layers", n.Name)
		}
		if len(n.Trips) == 0 {
			return eris.Errorf("config: neighborhood %q has no trips", n.Name)
		}
	}
	return nil
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// looks for an optional config.yaml in the working directory; an explicit
// path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("FOVCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fovcover.db")
	v.SetDefault("geometry.source_crs", "EPSG:4326")
	v.SetDefault("geometry.target_crs", "EPSG:2263")
	v.SetDefault("geometry.buffer_radius", 4.0)
	v.SetDefault("geometry.quad_segments", 16)
	v.SetDefault("geometry.attr_delimiter", ",")
	v.SetDefault("output.write_summary", true)
	v.SetDefault("batch.max_concurrent_neighborhoods", 1)
	v.SetDefault("batch.max_concurrent_zones", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Neighborhoods) == 0 {
		cfg.Neighborhoods = DefaultNeighborhoods()
	}
	for i := range cfg.Neighborhoods {
		if cfg.Neighborhoods[i].LayerCRS == "" {
			cfg.Neighborhoods[i].LayerCRS = cfg.Geometry.TargetCRS
		}
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
