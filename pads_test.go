package pioline

import (
	"errors"
	"testing"
)

func TestPadLookup(t *testing.T) {
	pad, err := AriettaG25Pads.Lookup(4)
	if err != nil {
		t.Fatalf("Lookup returned err: %v", err)
	}
	if pad != "A21" {
		t.Errorf("got %q want A21", pad)
	}
}

func TestPadLookupUnknown(t *testing.T) {
	_, err := AriettaG25Pads.Lookup(999)
	if !errors.Is(err, ErrUnknownPin) {
		t.Errorf("got %v, want ErrUnknownPin", err)
	}
}

func TestPadLookupCustomMap(t *testing.T) {
	custom := PadMap{7: "D12"}
	pad, err := custom.Lookup(7)
	if err != nil {
		t.Fatalf("Lookup returned err: %v", err)
	}
	if pad != "D12" {
		t.Errorf("got %q want D12", pad)
	}
}
