// Package trace captures per-tick snapshots of simulated vehicles and
// exports finished runs as parquet files, optionally archiving a JSONL
// copy to S3. Everything here is best-effort: trace failures never affect
// the simulation itself.
package trace

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fleetdata/trucksim/internal/models"
	log "github.com/sirupsen/logrus"
)

// TickTrace is one recorded tick of one vehicle.
type TickTrace struct {
	ShipmentID       string  `json:"shipmentId" parquet:"name=shipmentId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp        int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Status           string  `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
	Lat              float64 `json:"lat" parquet:"name=lat,type=DOUBLE"`
	Lon              float64 `json:"lon" parquet:"name=lon,type=DOUBLE"`
	Bearing          float64 `json:"bearing" parquet:"name=bearing,type=DOUBLE"`
	TraveledDistance float64 `json:"traveledDistance" parquet:"name=traveledDistance,type=DOUBLE"`
	RouteLength      float64 `json:"routeLength" parquet:"name=routeLength,type=DOUBLE"`
}

type Recorder struct {
	dir      string
	uploader *S3Uploader // nil disables archiving
	bucket   string
	logger   *log.Logger

	mu   sync.Mutex
	runs map[string][]TickTrace
}

func NewRecorder(config *models.Config, logger *log.Logger) (*Recorder, error) {
	r := &Recorder{
		dir:    config.TraceDir,
		bucket: config.S3Bucket,
		logger: logger,
		runs:   make(map[string][]TickTrace),
	}
	if config.S3Bucket != "" {
		uploader, err := NewS3Uploader(config.S3Region)
		if err != nil {
			return nil, fmt.Errorf("trace archiver: %w", err)
		}
		r.uploader = uploader
	}
	return r, nil
}

// Record appends a snapshot of the vehicle to its run buffer.
func (r *Recorder) Record(vehicle *models.SimulatedVehicle, now time.Time) {
	if r == nil {
		return
	}
	event := TickTrace{
		ShipmentID:       vehicle.ShipmentID,
		Timestamp:        now.UnixMilli(),
		Status:           string(vehicle.Status),
		Lat:              vehicle.Position.Lat,
		Lon:              vehicle.Position.Lon,
		Bearing:          vehicle.Bearing,
		TraveledDistance: vehicle.TraveledDistance,
		RouteLength:      vehicle.RouteLength(),
	}
	r.mu.Lock()
	r.runs[vehicle.ShipmentID] = append(r.runs[vehicle.ShipmentID], event)
	r.mu.Unlock()
}

// FlushRun exports and clears the buffered trace of one run. Missing runs
// are a no-op.
func (r *Recorder) FlushRun(shipmentID string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	events := r.runs[shipmentID]
	delete(r.runs, shipmentID)
	r.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	name := fmt.Sprintf("%s_%s", shipmentID, stamp)

	parquetPath := filepath.Join(r.dir, name+".parquet")
	if err := writeParquet(parquetPath, events); err != nil {
		r.logger.WithField("shipment_id", shipmentID).WithError(err).Error("parquet trace export failed")
		return err
	}

	if r.uploader != nil {
		if err := r.archiveJSONL(name, events); err != nil {
			r.logger.WithField("shipment_id", shipmentID).WithError(err).Warn("s3 trace archive failed")
		}
	}
	return nil
}

func (r *Recorder) archiveJSONL(name string, events []TickTrace) error {
	writer, err := r.uploader.NewWriter(r.bucket, "traces/"+name+".jsonl")
	if err != nil {
		return err
	}
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return writer.Close()
}

// Close flushes every buffered run.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := r.FlushRun(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
