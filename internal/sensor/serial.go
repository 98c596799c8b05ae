package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate is the ADC front-end's default line rate.
	DefaultBaudRate = 115200

	// SerialStaleAfter is how long a printed count stays valid. The
	// front-end prints several lines per second.
	SerialStaleAfter = time.Second
)

// SerialSource reads an ADC front-end that prints one raw count per line.
type SerialSource struct {
	port     string
	baudRate int
	bits     int
	vref     float32
	logger   *zap.Logger

	mu     sync.Mutex
	conn   serial.Port
	ctx    context.Context
	cancel context.CancelFunc
	last   latest
}

// NewSerialSource creates a source for the given port. Call Open to start reading.
func NewSerialSource(port string, baudRate, bits int, vref float32, logger *zap.Logger) *SerialSource {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SerialSource{
		port:     port,
		baudRate: baudRate,
		bits:     bits,
		vref:     vref,
		logger:   logger.With(zap.String("component", "sensor"), zap.String("port", port)),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.last.maxAge = SerialStaleAfter
	return s
}

// Open opens the serial port and starts the reader goroutine.
func (s *SerialSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("serial port %s already open", s.port)
	}

	conn, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.port, err)
	}
	s.conn = conn

	go s.scan(conn)
	return nil
}

// Read returns the last good voltage, or ErrStale once the port has gone
// quiet or the reader has exited.
func (s *SerialSource) Read() (float32, error) {
	return s.last.load()
}

// Close stops the reader and closes the port.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", s.port, err)
	}
	return nil
}

// scan consumes lines until r fails or the source is closed.
func (s *SerialSource) scan(r io.Reader) {
	defer s.last.stop()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		counts, err := parseCounts(line, s.bits)
		if err != nil {
			s.logger.Debug("discarding sensor line", zap.String("line", line), zap.Error(err))
			continue
		}
		s.last.store(CountsToVolts(counts, s.bits, s.vref))
	}

	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		s.logger.Error("serial read failed", zap.Error(err))
	}
}

// parseCounts parses one decimal ADC count and checks it fits in bits.
func parseCounts(line string, bits int) (uint16, error) {
	v, err := strconv.ParseUint(line, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid reading: %w", err)
	}
	if uint32(v) > maxCounts(bits) {
		return 0, fmt.Errorf("reading out of range: %d (max %d)", v, maxCounts(bits))
	}
	return uint16(v), nil
}
