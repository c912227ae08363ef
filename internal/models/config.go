package models

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	// Clock
	TickInterval          time.Duration `mapstructure:"tick_interval"`
	AverageSpeedMps       float64       `mapstructure:"average_speed_mps"`
	SpeedMultiplier       float64       `mapstructure:"speed_multiplier"`
	ClockFailureTickLimit int           `mapstructure:"clock_failure_tick_limit"`

	// Routing
	UseMockRoutes  bool          `mapstructure:"use_mock_routes"`
	OSRMBaseURL    string        `mapstructure:"osrm_base_url"`
	RouteTimeout   time.Duration `mapstructure:"route_timeout"`
	RouteCacheSize int           `mapstructure:"route_cache_size"`

	// Persistence
	StoreDriver string `mapstructure:"store_driver"` // memory | postgres | mongo
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MongoURI    string `mapstructure:"mongo_uri"`
	MongoDB     string `mapstructure:"mongo_db"`

	// Tick sync
	SyncBackend     string `mapstructure:"sync_backend"` // none | http | kafka | mqtt | console
	SyncEndpoint    string `mapstructure:"sync_endpoint"`
	SyncQueueSize   int    `mapstructure:"sync_queue_size"`
	KafkaBrokerList string `mapstructure:"kafka_broker_list"`
	KafkaTopic      string `mapstructure:"kafka_topic"`
	MQTTBroker      string `mapstructure:"mqtt_broker"`
	MQTTTopicPrefix string `mapstructure:"mqtt_topic_prefix"`

	// Trace export
	TraceEnabled bool   `mapstructure:"trace_enabled"`
	TraceDir     string `mapstructure:"trace_dir"`
	S3Bucket     string `mapstructure:"s3_bucket"`
	S3Region     string `mapstructure:"s3_region"`

	// Demo fleet
	DemoFleetSize int `mapstructure:"demo_fleet_size"`
}

// LoadConfig initializes and reads the configuration using Viper
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Default config location
		viper.AddConfigPath(".")
		viper.AddConfigPath("examples")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // Read in environment variables that match

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and flags cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := viper.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("tick_interval", "33ms")
	viper.SetDefault("average_speed_mps", 16.67) // ~60 km/h
	viper.SetDefault("speed_multiplier", 50.0)
	viper.SetDefault("clock_failure_tick_limit", 3)
	viper.SetDefault("use_mock_routes", false)
	viper.SetDefault("osrm_base_url", "https://router.project-osrm.org")
	viper.SetDefault("route_timeout", "8s")
	viper.SetDefault("route_cache_size", 256)
	viper.SetDefault("store_driver", "memory")
	viper.SetDefault("mongo_db", "trucksim")
	viper.SetDefault("sync_backend", "none")
	viper.SetDefault("sync_queue_size", 512)
	viper.SetDefault("kafka_topic", "simulation_ticks")
	viper.SetDefault("mqtt_topic_prefix", "trucksim/ticks")
	viper.SetDefault("trace_dir", "traces")
	viper.SetDefault("demo_fleet_size", 5)
}
