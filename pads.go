package pioline

import "github.com/pkg/errors"

// PadMap maps a logical pin id to the SoC pad name behind it. The sysfs
// directory of a pad named "A21" is pioA21. The compiled-in tables are
// configuration data and must not be mutated.
type PadMap map[uint]string

// Lookup resolves a pin id to its pad name.
func (m PadMap) Lookup(pin uint) (string, error) {
	pad, ok := m[pin]
	if !ok {
		return "", errors.Wrapf(ErrUnknownPin, "pin %d", pin)
	}
	return pad, nil
}

// AriettaG25Pads maps the user-accessible J4 connector pins of the Acme
// Systems Arietta G25 to their AT91SAM9G25 pads.
var AriettaG25Pads = PadMap{
	2:  "A17",
	3:  "A18",
	4:  "A21",
	5:  "A22",
	6:  "A23",
	7:  "A24",
	8:  "A25",
	9:  "A26",
	10: "A27",
	11: "A28",
	12: "A29",
	13: "A0",
	14: "A1",
	15: "A8",
	16: "A7",
	17: "A6",
	18: "A5",
	20: "B0",
	21: "B1",
	22: "B2",
	23: "B3",
	24: "A30",
	25: "A31",
	26: "C0",
	27: "C1",
	28: "C2",
	29: "C3",
	30: "C4",
	31: "C5",
	32: "C6",
	33: "C7",
}

// DefaultPads is used when Config.Pads is left nil.
var DefaultPads = AriettaG25Pads
