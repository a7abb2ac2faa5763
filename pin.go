package pioline

import (
	"time"

	"github.com/pkg/errors"
)

// DefaultSysfsRoot is where the kernel exposes the gpio class.
const DefaultSysfsRoot = "/sys/class/gpio"

// Config carries the construction parameters of a Pin. The zero value gives
// an input line without edge detection on the default sysfs tree.
type Config struct {
	// Direction is in, out, or the construction-only sugar high/low which
	// configures an output and sets its initial level. Empty means in.
	Direction Direction

	// Edge selects the transitions reported to watchers. Ignored when an
	// initial level was given through Direction.
	Edge Edge

	// DebounceTimeout is the settle window after a dispatched interrupt,
	// zero disables debouncing.
	DebounceTimeout time.Duration

	// Pads maps pin ids to pad names, DefaultPads when nil.
	Pads PadMap

	// SysfsRoot overrides the sysfs gpio directory, mainly for tests.
	SysfsRoot string

	// StrictReconfigure makes construction fail when direction or edge
	// cannot be re-applied to an already exported line. Off by default:
	// a pre-claimed line frequently rejects reconfiguration but is still
	// usable for value I/O.
	StrictReconfigure bool
}

func (c Config) sysfsRoot() string {
	if c.SysfsRoot == "" {
		return DefaultSysfsRoot
	}
	return c.SysfsRoot
}

func (c Config) pads() PadMap {
	if c.Pads == nil {
		return DefaultPads
	}
	return c.Pads
}

// Pin is the handle for one exported GPIO line: lifecycle, value I/O and
// interrupt watching. A Pin is usable between New and Unexport. Watch and
// Unwatch are safe from any goroutine; value I/O follows the usual sysfs
// discipline of one caller at a time.
type Pin struct {
	line    *line
	watcher *watcher
	closed  bool
}

// newNotifier is swapped out by tests.
var newNotifier = sharedNotifier

// New exports the line behind pin if the kernel has not already, applies the
// configuration and opens its value descriptor.
func New(pin uint, cfg Config) (*Pin, error) {
	pad, err := cfg.pads().Lookup(pin)
	if err != nil {
		return nil, err
	}

	l, err := newLine(pin, pad, cfg)
	if err != nil {
		return nil, err
	}

	return &Pin{
		line:    l,
		watcher: newWatcher(l.fd(), l.readValue, cfg.DebounceTimeout, newNotifier),
	}, nil
}

// Number returns the logical pin id the Pin was constructed with.
func (p *Pin) Number() uint {
	return p.line.number
}

// Pad returns the resolved pad name.
func (p *Pin) Pad() string {
	return p.line.pad
}

func (p *Pin) guard() error {
	if p.closed {
		return errors.Wrapf(ErrResource, "pin %d already unexported", p.line.number)
	}
	return nil
}

// Read returns the current line level, read fresh from the hardware.
func (p *Pin) Read() (int, error) {
	if err := p.guard(); err != nil {
		return 0, err
	}
	return p.line.readValue()
}

// ReadAsync reads the line level without blocking the caller, delivering
// the value or the error through the callback.
func (p *Pin) ReadAsync(fn func(value int, err error)) {
	go func() {
		fn(p.Read())
	}()
}

// Write sets the line level, 0 or 1.
func (p *Pin) Write(value int) error {
	if err := p.guard(); err != nil {
		return err
	}
	return p.line.writeValue(value)
}

// WriteAsync sets the line level without blocking the caller.
func (p *Pin) WriteAsync(value int, fn func(err error)) {
	go func() {
		fn(p.Write(value))
	}()
}

// Direction reads the direction control file.
func (p *Pin) Direction() (Direction, error) {
	if err := p.guard(); err != nil {
		return "", err
	}
	return p.line.direction()
}

// SetDirection writes the direction control file, in or out only.
func (p *Pin) SetDirection(d Direction) error {
	if err := p.guard(); err != nil {
		return err
	}
	return p.line.setDirection(d)
}

// Edge reads the edge control file.
func (p *Pin) Edge() (Edge, error) {
	if err := p.guard(); err != nil {
		return "", err
	}
	return p.line.edge()
}

// SetEdge writes the edge control file.
func (p *Pin) SetEdge(e Edge) error {
	if err := p.guard(); err != nil {
		return err
	}
	return p.line.setEdge(e)
}

// Watch registers fn for debounced edge interrupts. The first registered
// listener arms the readiness registration of the value descriptor.
func (p *Pin) Watch(fn WatchFunc) error {
	if err := p.guard(); err != nil {
		return err
	}
	return p.watcher.add(fn)
}

// Unwatch removes every registered occurrence of fn. Removing the last
// listener disarms the readiness registration.
func (p *Pin) Unwatch(fn WatchFunc) {
	p.watcher.remove(fn)
}

// UnwatchAll removes every listener and disarms.
func (p *Pin) UnwatchAll() {
	p.watcher.remove(nil)
}

// Unexport disarms watching, closes the value descriptor and releases the
// line back to the kernel. Every operation afterwards, including a second
// Unexport, fails with ErrResource.
func (p *Pin) Unexport() error {
	if err := p.guard(); err != nil {
		return err
	}
	p.watcher.remove(nil)
	p.closed = true
	return p.line.unexport()
}
