package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "trucksim",
	Short: "Simulates truck movement along planned shipment routes",
	Long:  `trucksim is the vehicle-motion simulation engine of the fleet-tracking admin platform. It synthesizes plausible truck movement along a planned route when live GPS telemetry is unavailable, for demos, fallback tracking, and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := models.LoadConfig(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger()
		if err := runService(cfg, logger); err != nil {
			logger.WithError(err).Fatal("engine service failed")
		}
	},
}

// runService runs the engine against the configured stores until
// interrupted, resuming any simulations the registry persisted across the
// last shutdown.
func runService(cfg *models.Config, logger *log.Logger) error {
	ctx := context.Background()

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.ResumeActive(ctx); err != nil {
		logger.WithError(err).Warn("could not resume persisted simulations")
	}
	logger.WithField("store_driver", cfg.StoreDriver).Info("simulation engine ready")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	logger.Info("shutting down simulation engine")
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().Duration("tick-interval", 0, "Clock tick period (default 33ms)")
	rootCmd.PersistentFlags().Float64("average-speed-mps", 16.67, "Average truck speed in m/s")
	rootCmd.PersistentFlags().Float64("speed-multiplier", 50, "Simulated-time speed multiplier")
	rootCmd.PersistentFlags().Bool("use-mock-routes", false, "Skip the directions provider and use synthetic routes")
	rootCmd.PersistentFlags().String("osrm-base-url", "https://router.project-osrm.org", "OSRM-compatible directions endpoint")
	rootCmd.PersistentFlags().String("store-driver", "memory", "Vehicle state store: memory, postgres or mongo")
	rootCmd.PersistentFlags().String("sync-backend", "none", "Tick sync backend: none, console, http, kafka or mqtt")
	rootCmd.PersistentFlags().String("sync-endpoint", "", "Backend tick endpoint URL (http backend)")
	rootCmd.PersistentFlags().String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	rootCmd.PersistentFlags().String("mqtt-broker", "tcp://localhost:1883", "MQTT broker address")
	rootCmd.PersistentFlags().Bool("trace-enabled", false, "Record run traces and export them as parquet")
	rootCmd.PersistentFlags().Int("demo-fleet-size", 5, "Number of demo shipments to simulate")

	viper.BindPFlag("tick_interval", rootCmd.PersistentFlags().Lookup("tick-interval"))
	viper.BindPFlag("average_speed_mps", rootCmd.PersistentFlags().Lookup("average-speed-mps"))
	viper.BindPFlag("speed_multiplier", rootCmd.PersistentFlags().Lookup("speed-multiplier"))
	viper.BindPFlag("use_mock_routes", rootCmd.PersistentFlags().Lookup("use-mock-routes"))
	viper.BindPFlag("osrm_base_url", rootCmd.PersistentFlags().Lookup("osrm-base-url"))
	viper.BindPFlag("store_driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	viper.BindPFlag("sync_backend", rootCmd.PersistentFlags().Lookup("sync-backend"))
	viper.BindPFlag("sync_endpoint", rootCmd.PersistentFlags().Lookup("sync-endpoint"))
	viper.BindPFlag("kafka_broker_list", rootCmd.PersistentFlags().Lookup("kafka-broker-list"))
	viper.BindPFlag("mqtt_broker", rootCmd.PersistentFlags().Lookup("mqtt-broker"))
	viper.BindPFlag("trace_enabled", rootCmd.PersistentFlags().Lookup("trace-enabled"))
	viper.BindPFlag("demo_fleet_size", rootCmd.PersistentFlags().Lookup("demo-fleet-size"))
}

func initConfig() {
	// .env is optional; environment variables override config file values.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.AutomaticEnv()
}

func newLogger() *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
