package pioline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSysfs builds a gpio class tree in a temp dir: export/unexport control
// files plus a fully populated pio<PAD> directory per given pad, the way the
// kernel leaves an already exported line.
func fakeSysfs(t *testing.T, pads ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"export", "unexport"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	for _, pad := range pads {
		dir := filepath.Join(root, "pio"+pad)
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatal(err)
		}
		for name, content := range map[string]string{
			"direction": "in\n",
			"edge":      "none\n",
			"value":     "0\n",
		} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func readControl(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(raw))
}

func TestNewUnknownPin(t *testing.T) {
	_, err := New(999, Config{SysfsRoot: fakeSysfs(t)})
	if !errors.Is(err, ErrUnknownPin) {
		t.Errorf("got %v, want ErrUnknownPin", err)
	}
}

func TestNewInvalidDirection(t *testing.T) {
	_, err := New(4, Config{Direction: "up", SysfsRoot: fakeSysfs(t, "A21")})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestNewWritesExportFile(t *testing.T) {
	root := fakeSysfs(t)

	// Without a kernel behind it the pad directory never appears, so
	// construction fails after claiming the line.
	_, err := New(4, Config{SysfsRoot: root})
	if !errors.Is(err, ErrResource) {
		t.Errorf("got %v, want ErrResource", err)
	}

	got := readControl(t, filepath.Join(root, "export"))
	if got != "4" {
		t.Errorf("export file holds %q, want \"4\"", got)
	}
}

func TestNewPreExportedLine(t *testing.T) {
	root := fakeSysfs(t, "A21")

	p, err := New(4, Config{Direction: Out, SysfsRoot: root})
	if err != nil {
		t.Fatalf("New on pre-exported line returned err: %v", err)
	}

	if p.Pad() != "A21" {
		t.Errorf("Pad() = %q, want A21", p.Pad())
	}
	if p.Number() != 4 {
		t.Errorf("Number() = %d, want 4", p.Number())
	}

	got := readControl(t, filepath.Join(root, "pioA21", "direction"))
	if got != "out" {
		t.Errorf("direction file holds %q, want out", got)
	}

	if err := p.Write(1); err != nil {
		t.Fatalf("Write returned err: %v", err)
	}
	value, err := p.Read()
	if err != nil {
		t.Fatalf("Read returned err: %v", err)
	}
	assertInt(t, value, 1)
}

func TestNewInitialLevel(t *testing.T) {
	cases := []struct {
		direction Direction
		want      string
	}{
		{High, "1"},
		{Low, "0"},
	}

	for _, tc := range cases {
		t.Run(string(tc.direction), func(t *testing.T) {
			root := fakeSysfs(t, "A21")

			// An initial level is a level, not an edge: the edge file
			// must stay untouched.
			p, err := New(4, Config{Direction: tc.direction, Edge: EdgeBoth, SysfsRoot: root})
			if err != nil {
				t.Fatalf("New returned err: %v", err)
			}

			value, err := p.Read()
			if err != nil {
				t.Fatalf("Read returned err: %v", err)
			}
			if got := readControl(t, filepath.Join(root, "pioA21", "value")); got[:1] != tc.want {
				t.Errorf("value file holds %q, want %s", got, tc.want)
			}
			if tc.want == "1" {
				assertInt(t, value, 1)
			} else {
				assertInt(t, value, 0)
			}

			if got := readControl(t, filepath.Join(root, "pioA21", "edge")); got != "none" {
				t.Errorf("edge file holds %q, want none", got)
			}
		})
	}
}

func TestNewWritesEdge(t *testing.T) {
	root := fakeSysfs(t, "A21")

	_, err := New(4, Config{Edge: EdgeBoth, SysfsRoot: root})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	if got := readControl(t, filepath.Join(root, "pioA21", "edge")); got != "both" {
		t.Errorf("edge file holds %q, want both", got)
	}
}

func TestRoundTrip(t *testing.T) {
	p, err := New(4, Config{Direction: Out, SysfsRoot: fakeSysfs(t, "A21")})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	for _, v := range []int{0, 1, 0} {
		if err := p.Write(v); err != nil {
			t.Fatalf("Write(%d) returned err: %v", v, err)
		}
		got, err := p.Read()
		if err != nil {
			t.Fatalf("Read returned err: %v", err)
		}
		assertInt(t, got, v)
	}
}

func TestRoundTripAsync(t *testing.T) {
	p, err := New(4, Config{Direction: Out, SysfsRoot: fakeSysfs(t, "A21")})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	for _, v := range []int{1, 0} {
		wrote := make(chan error, 1)
		p.WriteAsync(v, func(err error) { wrote <- err })
		if err := <-wrote; err != nil {
			t.Fatalf("WriteAsync(%d) returned err: %v", v, err)
		}

		type result struct {
			value int
			err   error
		}
		read := make(chan result, 1)
		p.ReadAsync(func(value int, err error) { read <- result{value, err} })
		got := <-read
		if got.err != nil {
			t.Fatalf("ReadAsync returned err: %v", got.err)
		}
		assertInt(t, got.value, v)
	}
}

func TestWriteInvalidValue(t *testing.T) {
	p, err := New(4, Config{Direction: Out, SysfsRoot: fakeSysfs(t, "A21")})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	if err := p.Write(2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Write(2) got %v, want ErrInvalidArgument", err)
	}
}

func TestDirectionAndEdgeAccessors(t *testing.T) {
	p, err := New(4, Config{SysfsRoot: fakeSysfs(t, "A21")})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	if err := p.SetDirection(Out); err != nil {
		t.Fatalf("SetDirection returned err: %v", err)
	}
	d, err := p.Direction()
	if err != nil {
		t.Fatalf("Direction returned err: %v", err)
	}
	if d != Out {
		t.Errorf("Direction() = %q, want out", d)
	}

	if err := p.SetEdge(EdgeFalling); err != nil {
		t.Fatalf("SetEdge returned err: %v", err)
	}
	e, err := p.Edge()
	if err != nil {
		t.Fatalf("Edge returned err: %v", err)
	}
	if e != EdgeFalling {
		t.Errorf("Edge() = %q, want falling", e)
	}

	if err := p.SetDirection(High); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetDirection(High) got %v, want ErrInvalidArgument", err)
	}
	if err := p.SetEdge("sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetEdge got %v, want ErrInvalidArgument", err)
	}
}

func TestStrictReconfigure(t *testing.T) {
	brokenSysfs := func(t *testing.T) string {
		root := fakeSysfs(t, "A21")
		// A direction entry that rejects writes, like a line claimed by
		// another owner would.
		dirFile := filepath.Join(root, "pioA21", "direction")
		if err := os.Remove(dirFile); err != nil {
			t.Fatal(err)
		}
		if err := os.Mkdir(dirFile, 0755); err != nil {
			t.Fatal(err)
		}
		return root
	}

	t.Run("best effort accepts it", func(t *testing.T) {
		p, err := New(4, Config{Direction: Out, SysfsRoot: brokenSysfs(t)})
		if err != nil {
			t.Fatalf("New returned err: %v", err)
		}
		if _, err := p.Read(); err != nil {
			t.Errorf("Read returned err: %v", err)
		}
	})

	t.Run("strict fails", func(t *testing.T) {
		_, err := New(4, Config{Direction: Out, SysfsRoot: brokenSysfs(t), StrictReconfigure: true})
		if !errors.Is(err, ErrResource) {
			t.Errorf("got %v, want ErrResource", err)
		}
	})
}

func TestPostUnexportGuard(t *testing.T) {
	root := fakeSysfs(t, "A21")
	p, err := New(4, Config{Direction: Out, SysfsRoot: root})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	if err := p.Unexport(); err != nil {
		t.Fatalf("Unexport returned err: %v", err)
	}
	if got := readControl(t, filepath.Join(root, "unexport")); got != "4" {
		t.Errorf("unexport file holds %q, want \"4\"", got)
	}

	if _, err := p.Read(); !errors.Is(err, ErrResource) {
		t.Errorf("Read after Unexport got %v, want ErrResource", err)
	}
	if err := p.Write(0); !errors.Is(err, ErrResource) {
		t.Errorf("Write after Unexport got %v, want ErrResource", err)
	}
	if err := p.Watch(func(int) {}); !errors.Is(err, ErrResource) {
		t.Errorf("Watch after Unexport got %v, want ErrResource", err)
	}
	if err := p.Unexport(); !errors.Is(err, ErrResource) {
		t.Errorf("second Unexport got %v, want ErrResource", err)
	}
}

func TestPinWatchDispatch(t *testing.T) {
	n := &fakeNotifier{}
	restore := newNotifier
	newNotifier = func() (notifier, error) { return n, nil }
	defer func() { newNotifier = restore }()

	root := fakeSysfs(t, "A21")
	p, err := New(4, Config{Edge: EdgeBoth, SysfsRoot: root})
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}

	var got []int
	if err := p.Watch(func(v int) { got = append(got, v) }); err != nil {
		t.Fatalf("Watch returned err: %v", err)
	}

	// Hardware flips the line high, the readiness event follows.
	valueFile := filepath.Join(root, "pioA21", "value")
	if err := os.WriteFile(valueFile, []byte("1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	n.fire()

	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("listener got %v, want exactly one call with 1", got)
	}

	p.UnwatchAll()
	_, _, deregisters := n.counts()
	assertInt(t, deregisters, 1)

	if err := os.WriteFile(valueFile, []byte("0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	n.fire()
	assertInt(t, len(got), 1)

	if err := p.Unexport(); err != nil {
		t.Errorf("Unexport returned err: %v", err)
	}
}
