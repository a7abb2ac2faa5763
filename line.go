package pioline

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Direction configures a line as input or output. High and Low are accepted
// at construction only: they configure an output and set its initial level.
type Direction string

const (
	In   Direction = "in"
	Out  Direction = "out"
	High Direction = "high"
	Low  Direction = "low"
)

// Edge selects which transitions of an input line generate interrupts.
type Edge string

const (
	EdgeNone    Edge = "none"
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
	EdgeBoth    Edge = "both"
)

func validEdge(e Edge) bool {
	switch e {
	case EdgeNone, EdgeRising, EdgeFalling, EdgeBoth:
		return true
	}
	return false
}

// line owns the sysfs control surface of a single GPIO line: the export and
// unexport files of the tree, the per-pad direction and edge files, and the
// open value descriptor.
type line struct {
	number uint
	pad    string
	root   string
	value  *os.File
}

func padDir(root, pad string) string {
	return filepath.Join(root, "pio"+pad)
}

// newLine exports the pin if the kernel has not done so yet, applies the
// requested configuration and opens the value descriptor. A line that was
// already exported is reconfigured best-effort unless strict reconfiguration
// was requested: the kernel refuses some writes on lines claimed elsewhere,
// and the handle is still perfectly usable for value I/O.
func newLine(number uint, pad string, cfg Config) (*line, error) {
	l := &line{number: number, pad: pad, root: cfg.sysfsRoot()}

	preExported, err := l.export()
	if err != nil {
		return nil, err
	}
	mustConfigure := !preExported || cfg.StrictReconfigure

	direction, initial := splitDirection(cfg.Direction)
	if direction == "" {
		return nil, errors.Wrapf(ErrInvalidArgument, "direction %q", cfg.Direction)
	}
	if err := l.setDirection(direction); err != nil && mustConfigure {
		return nil, err
	}

	l.value, err = os.OpenFile(l.controlPath("value"), os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(ErrResource, "opening value of pio%s: %v", pad, err)
	}

	if initial >= 0 {
		if err := l.writeValue(initial); err != nil {
			l.value.Close()
			return nil, err
		}
	} else if cfg.Edge != "" {
		if err := l.setEdge(cfg.Edge); err != nil && mustConfigure {
			l.value.Close()
			return nil, err
		}
	}

	// Baseline read, so the first interrupt registration does not fire on
	// readiness state left over from before the descriptor was opened.
	if _, err := l.readValue(); err != nil {
		l.value.Close()
		return nil, err
	}

	return l, nil
}

// splitDirection separates the high/low construction sugar into the real
// direction and an initial level (-1 when none was given).
func splitDirection(d Direction) (Direction, int) {
	switch d {
	case "", In:
		return In, -1
	case Out:
		return Out, -1
	case High:
		return Out, 1
	case Low:
		return Out, 0
	}
	return "", -1
}

func (l *line) export() (preExported bool, err error) {
	if _, statErr := os.Stat(padDir(l.root, l.pad)); statErr == nil {
		return true, nil
	}
	path := filepath.Join(l.root, "export")
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uint64(l.number), 10)), 0200); err != nil {
		return false, errors.Wrapf(ErrResource, "exporting pin %d: %v", l.number, err)
	}
	return false, nil
}

func (l *line) controlPath(name string) string {
	return filepath.Join(padDir(l.root, l.pad), name)
}

func (l *line) fd() int {
	return int(l.value.Fd())
}

// readValue reads one byte of the value file at offset 0. '1' maps to 1,
// anything else to 0.
func (l *line) readValue() (int, error) {
	buf := make([]byte, 1)
	if _, err := l.value.ReadAt(buf, 0); err != nil {
		return 0, errors.Wrapf(ErrResource, "reading pio%s value: %v", l.pad, err)
	}
	if buf[0] == '1' {
		return 1, nil
	}
	return 0, nil
}

func (l *line) writeValue(value int) error {
	if value != 0 && value != 1 {
		return errors.Wrapf(ErrInvalidArgument, "value %d", value)
	}
	if _, err := l.value.WriteAt([]byte{byte('0' + value)}, 0); err != nil {
		return errors.Wrapf(ErrResource, "writing pio%s value: %v", l.pad, err)
	}
	return nil
}

// direction and edge are never cached, each accessor performs fresh I/O on
// the control file.
func (l *line) direction() (Direction, error) {
	raw, err := os.ReadFile(l.controlPath("direction"))
	if err != nil {
		return "", errors.Wrapf(ErrResource, "reading direction of pio%s: %v", l.pad, err)
	}
	return Direction(strings.TrimSpace(string(raw))), nil
}

func (l *line) setDirection(d Direction) error {
	if d != In && d != Out {
		return errors.Wrapf(ErrInvalidArgument, "direction %q", d)
	}
	if err := os.WriteFile(l.controlPath("direction"), []byte(d), 0644); err != nil {
		return errors.Wrapf(ErrResource, "setting direction of pio%s: %v", l.pad, err)
	}
	return nil
}

func (l *line) edge() (Edge, error) {
	raw, err := os.ReadFile(l.controlPath("edge"))
	if err != nil {
		return "", errors.Wrapf(ErrResource, "reading edge of pio%s: %v", l.pad, err)
	}
	return Edge(strings.TrimSpace(string(raw))), nil
}

func (l *line) setEdge(e Edge) error {
	if !validEdge(e) {
		return errors.Wrapf(ErrInvalidArgument, "edge %q", e)
	}
	if err := os.WriteFile(l.controlPath("edge"), []byte(e), 0644); err != nil {
		return errors.Wrapf(ErrResource, "setting edge of pio%s: %v", l.pad, err)
	}
	return nil
}

// unexport closes the value descriptor and releases the line back to the
// kernel. A second call fails, the descriptor is already gone.
func (l *line) unexport() error {
	if l.value == nil {
		return errors.Wrapf(ErrResource, "pio%s already unexported", l.pad)
	}
	closeErr := l.value.Close()
	l.value = nil

	path := filepath.Join(l.root, "unexport")
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uint64(l.number), 10)), 0200); err != nil {
		return errors.Wrapf(ErrResource, "unexporting pin %d: %v", l.number, err)
	}
	if closeErr != nil {
		return errors.Wrapf(ErrResource, "closing pio%s value: %v", l.pad, closeErr)
	}
	return nil
}
