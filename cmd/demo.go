package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetdata/trucksim/internal/factories"
	"github.com/fleetdata/trucksim/internal/models"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a synthetic demo fleet until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := models.LoadConfig(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger()
		if err := runDemo(cfg, logger); err != nil {
			logger.WithError(err).Fatal("demo fleet failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// runDemo spins up a faker-generated fleet, confirms pickups so the clock
// has something to move, and reports positions until interrupted.
func runDemo(cfg *models.Config, logger *log.Logger) error {
	ctx := context.Background()

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	inputFactory := &factories.InputFactory{}
	bar := progressbar.Default(int64(cfg.DemoFleetSize), "starting demo fleet")

	var shipmentIDs []string
	for i := 0; i < cfg.DemoFleetSize; i++ {
		input := inputFactory.CreateInput(cfg)
		vehicle, err := engine.Start(ctx, input)
		if err != nil {
			logger.WithField("shipment_id", input.ShipmentID).WithError(err).
				Error("could not start demo simulation")
			bar.Add(1)
			continue
		}
		shipmentIDs = append(shipmentIDs, vehicle.ShipmentID)

		// Put idle trucks on the road so the demo shows motion.
		if vehicle.Status == models.StatusIdle {
			if _, err := engine.ConfirmPickup(ctx, vehicle.ShipmentID); err != nil {
				logger.WithField("shipment_id", vehicle.ShipmentID).WithError(err).
					Warn("pickup confirmation failed")
			}
		}
		bar.Add(1)
	}

	logger.WithField("fleet_size", len(shipmentIDs)).Info("demo fleet running, ctrl-c to stop")

	report := time.NewTicker(2 * time.Second)
	defer report.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-interrupt:
			logger.Info("shutting down demo fleet")
			for _, id := range shipmentIDs {
				engine.Stop(ctx, id)
			}
			return nil

		case <-report.C:
			vehicles, err := engine.Vehicles(ctx)
			if err != nil {
				logger.WithError(err).Error("could not read fleet state")
				continue
			}
			for _, vehicle := range vehicles {
				entry := logger.WithFields(log.Fields{
					"shipment_id": vehicle.ShipmentID,
					"status":      string(vehicle.Status),
					"lat":         vehicle.Position.Lat,
					"lon":         vehicle.Position.Lon,
					"bearing":     vehicle.Bearing,
				})
				if length := vehicle.RouteLength(); length > 0 {
					entry = entry.WithField("progress", vehicle.TraveledDistance/length)
				}
				entry.Info("vehicle position")

				// Auto-confirm arrivals so demo runs complete end to end.
				if vehicle.Status == models.StatusPendingDelivery {
					if _, err := engine.ConfirmDelivery(ctx, vehicle.ShipmentID); err != nil {
						logger.WithField("shipment_id", vehicle.ShipmentID).WithError(err).
							Warn("delivery confirmation failed")
					}
				}
			}
		}
	}
}
