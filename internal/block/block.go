// Package block provides the page-aligned pread/pwrite primitive every
// LBA command and every data-window transfer is built on (spec.md §4.2).
package block

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/netint/go-xcoder/internal/constants"
)

// Interface is what session, status and keepalive depend on: a device
// addressed by LBA. *Device satisfies it against real hardware; the
// mockdevice package satisfies it in tests.
type Interface interface {
	ReadAt(lba uint32, n int) ([]byte, error)
	WriteAt(lba uint32, buf []byte) error
}

// Device is a raw block device addressed by LBA. It does not interpret
// command semantics; it only turns (lba, buf) pairs into pread/pwrite
// calls at the right byte offset.
type Device struct {
	f    *os.File
	path string
}

var _ Interface = (*Device)(nil)

// Open opens path for buffered read/write (O_RDWR); O_DIRECT is not
// requested.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("block: open %s: %w", path, err)
	}
	return &Device{f: f, path: path}, nil
}

// NewFromFile wraps an already-open file, used by callers that manage
// fd lifetime themselves (and by tests pointed at a regular file
// standing in for a block device).
func NewFromFile(f *os.File) *Device {
	return &Device{f: f, path: f.Name()}
}

func (d *Device) Path() string { return d.path }

func (d *Device) Close() error {
	return d.f.Close()
}

// offset converts an LBA to a byte offset within the device.
func offset(lba uint32) int64 {
	return int64(lba) << constants.LBABitOffset
}

// ReadAt reads n bytes starting at lba. n is rounded up to a whole
// number of pages; the caller gets back exactly n bytes.
func (d *Device) ReadAt(lba uint32, n int) ([]byte, error) {
	buf := AlignedBuffer(n)
	if err := d.ReadAtInto(lba, buf); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ReadAtInto reads len(buf) bytes into buf starting at lba. buf must
// be page-aligned in length (use AlignedBuffer); the underlying
// backing array need not be page-aligned in memory for the mock and
// test paths, only for O_DIRECT devices.
func (d *Device) ReadAtInto(lba uint32, buf []byte) error {
	off := offset(lba)
	n, err := unix.Pread(int(d.f.Fd()), buf, off)
	if err != nil {
		return fmt.Errorf("block: pread lba=%d len=%d: %w", lba, len(buf), err)
	}
	if n != len(buf) {
		return fmt.Errorf("block: short pread lba=%d: got %d want %d", lba, n, len(buf))
	}
	return nil
}

// WriteAt writes buf starting at lba. len(buf) must be a multiple of
// PageSize; callers use AlignedBuffer/Align to satisfy this.
func (d *Device) WriteAt(lba uint32, buf []byte) error {
	if len(buf)%constants.PageSize != 0 {
		return fmt.Errorf("block: write length %d is not page-aligned", len(buf))
	}
	off := offset(lba)
	n, err := unix.Pwrite(int(d.f.Fd()), buf, off)
	if err != nil {
		return fmt.Errorf("block: pwrite lba=%d len=%d: %w", lba, len(buf), err)
	}
	if n != len(buf) {
		return fmt.Errorf("block: short pwrite lba=%d: got %d want %d", lba, n, len(buf))
	}
	return nil
}

// Align rounds n up to the next multiple of PageSize.
func Align(n int) int {
	if n%constants.PageSize == 0 {
		return n
	}
	return (n/constants.PageSize + 1) * constants.PageSize
}

// AlignedBuffer returns a zeroed buffer whose length is n rounded up
// to a whole number of pages. Every frame/packet/scratch buffer in
// this driver is built through this one helper rather than sprinkling
// padding arithmetic at each call site (spec.md §9).
func AlignedBuffer(n int) []byte {
	return make([]byte, Align(n))
}
