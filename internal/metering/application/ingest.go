package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	metering "home-energy/internal/metering/domain"
	"home-energy/internal/observability/metrics"
)

// MaxIngestItems bounds the items of one ingest request.
const MaxIngestItems = 1000

// IngestService stores raw reading items reported by devices.
type IngestService struct {
	writer metering.RawRecordWriter
	logger *log.Logger
}

// NewIngestService constructs the service.
func NewIngestService(writer metering.RawRecordWriter, logger *log.Logger) (*IngestService, error) {
	if writer == nil {
		return nil, errors.New("ingest service: nil writer")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestService{writer: writer, logger: logger}, nil
}

// Ingest validates and stores items for a device. Every item needs a positive
// integer sortkey or timestamp; otherwise nothing is stored.
func (s *IngestService) Ingest(ctx context.Context, deviceID string, items []metering.RawItem) (err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveIngest(metrics.Result(err), time.Since(started))
	}()

	if err := metering.ValidateDeviceID(deviceID); err != nil {
		metrics.IncIngestError("device_id")
		return err
	}
	if len(items) == 0 {
		metrics.IncIngestError("empty")
		return fmt.Errorf("%w: no items", metering.ErrValidation)
	}
	if len(items) > MaxIngestItems {
		metrics.IncIngestError("too_many")
		return fmt.Errorf("%w: more than %d items", metering.ErrValidation, MaxIngestItems)
	}
	for i, item := range items {
		if metering.ParseRawItem(item).Kind == metering.RecordInvalid {
			metrics.IncIngestError("timestamp")
			return fmt.Errorf("%w: item %d", metering.ErrInvalidTimestamp, i)
		}
	}

	if err := s.writer.AppendRawRecords(ctx, deviceID, items); err != nil {
		metrics.IncIngestError("store")
		s.logger.Printf("ingest: device=%s items=%d err=%v", deviceID, len(items), err)
		return err
	}
	metrics.AddIngestItems(len(items))
	return nil
}
