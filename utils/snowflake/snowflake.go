// Package snowflake generates time-ordered unique IDs. The engine uses
// them for audit events and for platform-shaped object IDs in test
// fixtures.
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch (January 1, 2024 00:00:00 UTC) in
	// milliseconds.
	Epoch int64 = 1704067200000

	workerIDBits uint8 = 10
	sequenceBits uint8 = 12

	workerIDMask = -1 ^ (-1 << workerIDBits)
	sequenceMask = -1 ^ (-1 << sequenceBits)

	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

var (
	ErrInvalidWorkerID     = errors.New("worker ID exceeds maximum value")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Config holds the configuration for the Generator.
type Config struct {
	Epoch    int64
	WorkerID int64
}

// Generator generates unique IDs using the Snowflake layout: 41 bits of
// millisecond timestamp, 10 bits of worker ID, 12 bits of sequence.
type Generator struct {
	mu sync.Mutex

	epoch    int64
	workerID int64

	sequence      int64
	lastTimestamp int64
}

// NewGenerator creates a Generator for the given worker.
func NewGenerator(config Config) (*Generator, error) {
	if config.Epoch == 0 {
		config.Epoch = Epoch
	}
	if config.WorkerID < 0 || config.WorkerID > workerIDMask {
		return nil, ErrInvalidWorkerID
	}

	return &Generator{
		epoch:    config.Epoch,
		workerID: config.WorkerID,
	}, nil
}

// NextID generates the next unique ID.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := currentTimestamp()
	if timestamp < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & sequenceMask
		// Sequence overflow - wait for next millisecond
		if g.sequence == 0 {
			timestamp = waitNextMillis(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp

	id := ((timestamp - g.epoch) << timestampShift) |
		(g.workerID << workerIDShift) |
		g.sequence

	return id, nil
}

// NextString generates the next ID formatted as a decimal string, the
// shape platform object IDs take on the wire.
func (g *Generator) NextString() (string, error) {
	id, err := g.NextID()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Parse extracts the components from a Snowflake ID.
func (g *Generator) Parse(id int64) (timestamp, workerID, sequence int64) {
	sequence = id & sequenceMask
	workerID = (id >> workerIDShift) & workerIDMask
	timestamp = (id >> timestampShift) + g.epoch
	return
}

func currentTimestamp() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func waitNextMillis(lastTimestamp int64) int64 {
	timestamp := currentTimestamp()
	for timestamp <= lastTimestamp {
		timestamp = currentTimestamp()
	}
	return timestamp
}
