package xcoder

import (
	"sync"
	"time"

	"github.com/netint/go-xcoder/internal/block"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/lba"
	"github.com/netint/go-xcoder/internal/logging"
	"github.com/netint/go-xcoder/internal/metrics"
	"github.com/netint/go-xcoder/internal/status"
)

// Options configures device-wide behavior that every session opened
// from it inherits: logging, metrics collection, and the keep-alive
// timeout every session is opened with (constants.DefaultKeepAliveTimeout
// when KeepAliveTimeout is zero or negative).
type Options struct {
	Logger          *logging.Logger
	Observer        metrics.Observer
	KeepAliveTimeout time.Duration

	// DumpRoot, if set, mirrors Decoder and Encoder sessions' input packets/frames
	// and output frames/packets to a claimed stream directory under
	// this mount root (spec.md §6 "File dumps (optional)").
	DumpRoot string
}

func (o *Options) logger() *logging.Logger {
	if o == nil || o.Logger == nil {
		return logging.Default()
	}
	return o.Logger
}

func (o *Options) observer() metrics.Observer {
	if o == nil || o.Observer == nil {
		return metrics.NoOpObserver{}
	}
	return o.Observer
}

func (o *Options) keepAliveTimeout() time.Duration {
	if o == nil || o.KeepAliveTimeout <= 0 {
		return constants.DefaultKeepAliveTimeout
	}
	return o.KeepAliveTimeout
}

func (o *Options) dumpRoot() string {
	if o == nil {
		return ""
	}
	return o.DumpRoot
}

// blockDevice is what Device needs from its underlying handle: the
// block.Interface every LBA command is built on, plus Close. Tests
// substitute internal/block/mockdevice.Device for it.
type blockDevice interface {
	block.Interface
	Close() error
}

// Device is one opened NVMe-addressed accelerator. It owns the raw
// block handle, a free-list of the 7-bit session ids the LBA wire
// format addresses (spec.md §3: "session_id ... 7-bit"), and the
// device-wide options every session it opens inherits.
type Device struct {
	dev    blockDevice
	path   string
	opts   *Options
	logger *logging.Logger

	mu       sync.Mutex
	nextID   uint16
	freeIDs  []uint16
	identify *status.Identify
}

// Open opens the NVMe character device at path (e.g. "/dev/nvme0") and
// prepares it for sessions. options may be nil to take every default.
func Open(path string, options *Options) (*Device, error) {
	dev, err := block.Open(path)
	if err != nil {
		return nil, WrapError("open-device", ErrCodeIO, err)
	}
	return newDevice(dev, path, options), nil
}

func newDevice(dev blockDevice, path string, options *Options) *Device {
	return &Device{
		dev:    dev,
		path:   path,
		opts:   options,
		logger: options.logger().WithDevice(path),
	}
}

// Close releases the underlying device handle. Callers must Close
// every session opened from this Device first.
func (d *Device) Close() error {
	return d.dev.Close()
}

// Path returns the device path this Device was opened against.
func (d *Device) Path() string { return d.path }

// Identify reads and caches the accelerator's identify-device payload
// (spec.md §6). Every session Open call uses it to gate firmware-
// version-dependent behavior (SW-version-announce, scaler stack mode),
// and Uploader additionally uses it to decide whether P2P is available.
func (d *Device) Identify() (status.Identify, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.identify != nil {
		return *d.identify, nil
	}
	buf, err := d.dev.ReadAt(lba.IdentifyLBA, status.IdentifyPayloadSize)
	if err != nil {
		return status.Identify{}, WrapError("identify-device", ErrCodeIO, err)
	}
	id, err := status.ParseIdentify(buf)
	if err != nil {
		return status.Identify{}, WrapError("identify-device", ErrCodeIO, err)
	}
	d.identify = &id
	return id, nil
}

// allocSessionID hands out the next unused 7-bit session slot
// (0..UnassignedSessionID-1), reusing ids released by releaseSessionID
// in the order they were released before advancing nextID.
func (d *Device) allocSessionID() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.freeIDs) > 0 {
		id := d.freeIDs[0]
		d.freeIDs = d.freeIDs[1:]
		return id, nil
	}
	if d.nextID >= constants.UnassignedSessionID {
		return 0, NewError("alloc-session-id", ErrCodeInvalidParam, "no free session slots")
	}
	id := d.nextID
	d.nextID++
	return id, nil
}

func (d *Device) releaseSessionID(id uint16) {
	d.mu.Lock()
	d.freeIDs = append(d.freeIDs, id)
	d.mu.Unlock()
}

