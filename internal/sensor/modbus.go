package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const (
	// DefaultPoll is how often the Modbus register is read.
	DefaultPoll = 100 * time.Millisecond

	// staleAfterPolls is how many poll periods a sample stays valid.
	staleAfterPolls = 5
)

// registerReader is the part of *modbus.ModbusClient the poller uses.
type registerReader interface {
	ReadRegister(addr uint16, regType modbus.RegType) (uint16, error)
}

// ModbusSource polls one input register of a Modbus analog input module.
type ModbusSource struct {
	client   *modbus.ModbusClient
	reader   registerReader
	register uint16
	poll     time.Duration
	bits     int
	vref     float32
	logger   *zap.Logger

	once    sync.Once
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	last    latest
}

// NewModbusSource creates a source for url (e.g. "tcp://10.0.0.5:502" or
// "rtu:///dev/ttyUSB0"). Call Open to connect and start polling.
func NewModbusSource(url string, unit uint8, register uint16, poll time.Duration, bits int, vref float32, logger *zap.Logger) (*ModbusSource, error) {
	if poll <= 0 {
		poll = DefaultPoll
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: poll,
	})
	if err != nil {
		return nil, fmt.Errorf("create modbus client %s: %w", url, err)
	}
	if unit > 0 {
		if err := client.SetUnitId(unit); err != nil {
			return nil, fmt.Errorf("set modbus unit %d: %w", unit, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &ModbusSource{
		client:   client,
		reader:   client,
		register: register,
		poll:     poll,
		bits:     bits,
		vref:     vref,
		logger:   logger.With(zap.String("component", "sensor"), zap.String("url", url)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.last.maxAge = staleAfterPolls * poll
	return m, nil
}

// Open connects and starts the polling goroutine.
func (m *ModbusSource) Open() error {
	if err := m.client.Open(); err != nil {
		return fmt.Errorf("open modbus client: %w", err)
	}
	m.started = true
	go m.run()
	return nil
}

// Read returns the last good voltage, or ErrStale after staleAfterPolls
// periods without a successful poll.
func (m *ModbusSource) Read() (float32, error) {
	return m.last.load()
}

// Close stops polling and closes the connection.
func (m *ModbusSource) Close() error {
	var err error
	m.once.Do(func() {
		m.cancel()
		if m.started {
			<-m.done
		}
		if cerr := m.client.Close(); cerr != nil {
			err = fmt.Errorf("close modbus client: %w", cerr)
		}
	})
	return err
}

func (m *ModbusSource) run() {
	defer close(m.done)
	defer m.last.stop()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	failing := false
	for {
		if err := m.pollOnce(); err != nil {
			if !failing {
				m.logger.Warn("modbus read failed", zap.Error(err))
			}
			failing = true
		} else if failing {
			m.logger.Info("modbus read recovered")
			failing = false
		}

		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce reads the register and stores the converted voltage.
func (m *ModbusSource) pollOnce() error {
	counts, err := m.reader.ReadRegister(m.register, modbus.INPUT_REGISTER)
	if err != nil {
		return fmt.Errorf("read input register %d: %w", m.register, err)
	}
	if uint32(counts) > maxCounts(m.bits) {
		return fmt.Errorf("register %d out of range: %d", m.register, counts)
	}
	m.last.store(CountsToVolts(counts, m.bits, m.vref))
	return nil
}
