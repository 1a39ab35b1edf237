package loadstate

import (
	"errors"
	"testing"
)

type recorder struct {
	seen []Phase
}

func (r *recorder) listen(_, next Phase) { r.seen = append(r.seen, next) }

func equalPhases(a, b []Phase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMachine_Paths(t *testing.T) {
	tests := []struct {
		name string
		run  func(m *Machine, tok Token) error
		want []Phase
		end  Phase
	}{
		{
			name: "raster succeeds",
			run:  func(m *Machine, tok Token) error { return m.RasterSucceeded(tok) },
			want: []Phase{Loading, Loaded},
			end:  Loaded,
		},
		{
			name: "fallback succeeds",
			run: func(m *Machine, tok Token) error {
				if err := m.RasterFailed(tok); err != nil {
					return err
				}
				return m.FallbackSucceeded(tok)
			},
			want: []Phase{Loading, RasterFailed, FallbackLoading, FallbackLoaded},
			end:  FallbackLoaded,
		},
		{
			name: "fallback fails",
			run: func(m *Machine, tok Token) error {
				if err := m.RasterFailed(tok); err != nil {
					return err
				}
				return m.FallbackFailed(tok)
			},
			want: []Phase{Loading, RasterFailed, FallbackLoading, FallbackFailed},
			end:  FallbackFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			m := New(rec.listen)
			tok := m.Begin()
			if err := tt.run(m, tok); err != nil {
				t.Fatalf("transition failed: %v", err)
			}
			if m.Phase() != tt.end {
				t.Errorf("phase: got %s, want %s", m.Phase(), tt.end)
			}
			if !m.Phase().Terminal() {
				t.Errorf("%s should be terminal", m.Phase())
			}
			if !equalPhases(rec.seen, tt.want) {
				t.Errorf("path: got %v, want %v", rec.seen, tt.want)
			}
		})
	}
}

func TestMachine_OnTransition(t *testing.T) {
	first, late := &recorder{}, &recorder{}
	m := New(first.listen)
	tok := m.Begin()
	m.OnTransition(late.listen)

	if err := m.RasterFailed(tok); err != nil {
		t.Fatal(err)
	}
	if err := m.FallbackSucceeded(tok); err != nil {
		t.Fatal(err)
	}

	if want := []Phase{Loading, RasterFailed, FallbackLoading, FallbackLoaded}; !equalPhases(first.seen, want) {
		t.Errorf("constructor listener: got %v, want %v", first.seen, want)
	}
	if want := []Phase{RasterFailed, FallbackLoading, FallbackLoaded}; !equalPhases(late.seen, want) {
		t.Errorf("registered listener: got %v, want %v", late.seen, want)
	}
}

func TestMachine_InvalidTransitions(t *testing.T) {
	m := New()
	tok := m.Begin()

	if err := m.FallbackSucceeded(tok); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FallbackSucceeded from loading: got %v", err)
	}
	if _, err := m.Retry(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Retry from loading: got %v", err)
	}
	if _, err := m.ForceFallback(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ForceFallback from loading: got %v", err)
	}

	if err := m.RasterSucceeded(tok); err != nil {
		t.Fatal(err)
	}
	if err := m.RasterFailed(tok); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("RasterFailed after loaded: got %v", err)
	}
	if m.Phase() != Loaded {
		t.Errorf("terminal phase changed to %s", m.Phase())
	}
}

func TestMachine_StaleToken(t *testing.T) {
	m := New()
	old := m.Begin()
	current := m.Begin()

	if old == current {
		t.Fatal("Begin reused a token")
	}
	if err := m.RasterSucceeded(old); !errors.Is(err, ErrStaleToken) {
		t.Errorf("stale completion: got %v, want ErrStaleToken", err)
	}
	if m.Phase() != Loading {
		t.Errorf("stale completion changed phase to %s", m.Phase())
	}
	if err := m.RasterSucceeded(current); err != nil {
		t.Errorf("current completion rejected: %v", err)
	}
	if err := New().RasterSucceeded(NoToken); !errors.Is(err, ErrStaleToken) {
		t.Errorf("idle machine accepted completion: %v", err)
	}
}

func TestMachine_SupersedeResets(t *testing.T) {
	for _, end := range []Phase{Loaded, FallbackLoaded, FallbackFailed} {
		m := New()
		tok := m.Begin()
		switch end {
		case Loaded:
			_ = m.RasterSucceeded(tok)
		case FallbackLoaded:
			_ = m.RasterFailed(tok)
			_ = m.FallbackSucceeded(tok)
		case FallbackFailed:
			_ = m.RasterFailed(tok)
			_ = m.FallbackFailed(tok)
		}
		if m.Phase() != end {
			t.Fatalf("setup: got %s, want %s", m.Phase(), end)
		}
		m.Begin()
		if m.Phase() != Loading {
			t.Errorf("Begin from %s: got %s, want loading", end, m.Phase())
		}
	}
}

func TestMachine_Recovery(t *testing.T) {
	m := New()
	tok := m.Begin()
	_ = m.RasterFailed(tok)
	_ = m.FallbackFailed(tok)

	forced, err := m.ForceFallback()
	if err != nil {
		t.Fatalf("ForceFallback: %v", err)
	}
	if m.Phase() != FallbackLoading {
		t.Errorf("after ForceFallback: got %s", m.Phase())
	}
	if err := m.FallbackFailed(tok); !errors.Is(err, ErrStaleToken) {
		t.Errorf("old token after ForceFallback: got %v", err)
	}
	if err := m.FallbackFailed(forced); err != nil {
		t.Fatal(err)
	}

	retried, err := m.Retry()
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if m.Phase() != Loading || !m.Current(retried) {
		t.Errorf("after Retry: phase %s current=%v", m.Phase(), m.Current(retried))
	}
}

func TestPhase_Text(t *testing.T) {
	b, err := FallbackLoaded.MarshalText()
	if err != nil || string(b) != "fallback-loaded" {
		t.Errorf("MarshalText: got %q, %v", b, err)
	}
	if Phase(42).String() != "phase(42)" {
		t.Errorf("unknown phase: got %s", Phase(42))
	}
	if !Loading.Pending() || Loaded.Pending() {
		t.Error("Pending misreported")
	}
}
