package loadstate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Phase is one step of the load lifecycle.
type Phase int

const (
	Idle Phase = iota
	Loading
	Loaded
	RasterFailed
	FallbackLoading
	FallbackLoaded
	FallbackFailed
)

var phaseNames = [...]string{
	Idle:            "idle",
	Loading:         "loading",
	Loaded:          "loaded",
	RasterFailed:    "raster-failed",
	FallbackLoading: "fallback-loading",
	FallbackLoaded:  "fallback-loaded",
	FallbackFailed:  "fallback-failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether the phase ends a cycle.
func (p Phase) Terminal() bool {
	return p == Loaded || p == FallbackLoaded || p == FallbackFailed
}

// Pending reports whether a load is in flight.
func (p Phase) Pending() bool {
	return p == Loading || p == FallbackLoading
}

var (
	// ErrStaleToken is returned for completions of a superseded cycle.
	ErrStaleToken = errors.New("stale load token")
	// ErrInvalidTransition is returned when an event does not apply to the
	// current phase.
	ErrInvalidTransition = errors.New("invalid load state transition")
)

// Token identifies one render cycle.
type Token uuid.UUID

// NoToken is the token of the Idle machine.
var NoToken Token

func (t Token) String() string { return uuid.UUID(t).String() }

// Listener is called after every phase change.
type Listener func(prev, next Phase)

// Machine is the load state machine. It is not safe for concurrent use; the
// viewer's event loop owns it.
type Machine struct {
	phase     Phase
	token     Token
	listeners []Listener
}

// New returns an Idle machine.
func New(listeners ...Listener) *Machine {
	return &Machine{phase: Idle, listeners: listeners}
}

// OnTransition registers l for every later phase change.
func (m *Machine) OnTransition(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Token returns the token of the current cycle.
func (m *Machine) Token() Token { return m.token }

// Current reports whether tok belongs to the current cycle.
func (m *Machine) Current(tok Token) bool {
	return m.phase != Idle && tok == m.token
}

// Begin starts a new cycle in Loading from any phase, superseding the
// previous cycle's token.
func (m *Machine) Begin() Token {
	m.token = Token(uuid.New())
	m.set(Loading)
	return m.token
}

// RasterSucceeded completes the raster path: Loading → Loaded.
func (m *Machine) RasterSucceeded(tok Token) error {
	if err := m.expect(tok, Loading); err != nil {
		return err
	}
	m.set(Loaded)
	return nil
}

// RasterFailed records a raster failure and moves straight on to the
// fallback path: Loading → RasterFailed → FallbackLoading. The cycle keeps
// its token.
func (m *Machine) RasterFailed(tok Token) error {
	if err := m.expect(tok, Loading); err != nil {
		return err
	}
	m.set(RasterFailed)
	m.set(FallbackLoading)
	return nil
}

// FallbackSucceeded completes the fallback path: FallbackLoading → FallbackLoaded.
func (m *Machine) FallbackSucceeded(tok Token) error {
	if err := m.expect(tok, FallbackLoading); err != nil {
		return err
	}
	m.set(FallbackLoaded)
	return nil
}

// FallbackFailed ends the cycle in error: FallbackLoading → FallbackFailed.
func (m *Machine) FallbackFailed(tok Token) error {
	if err := m.expect(tok, FallbackLoading); err != nil {
		return err
	}
	m.set(FallbackFailed)
	return nil
}

// Retry restarts the raster path after total failure: FallbackFailed → Loading.
func (m *Machine) Retry() (Token, error) {
	if m.phase != FallbackFailed {
		return NoToken, fmt.Errorf("%w: retry from %s", ErrInvalidTransition, m.phase)
	}
	return m.Begin(), nil
}

// ForceFallback retries only the fallback path after total failure:
// FallbackFailed → FallbackLoading, under a new token.
func (m *Machine) ForceFallback() (Token, error) {
	if m.phase != FallbackFailed {
		return NoToken, fmt.Errorf("%w: force fallback from %s", ErrInvalidTransition, m.phase)
	}
	m.token = Token(uuid.New())
	m.set(FallbackLoading)
	return m.token, nil
}

func (m *Machine) expect(tok Token, want Phase) error {
	if !m.Current(tok) {
		return ErrStaleToken
	}
	if m.phase != want {
		return fmt.Errorf("%w: expected %s, in %s", ErrInvalidTransition, want, m.phase)
	}
	return nil
}

func (m *Machine) set(next Phase) {
	prev := m.phase
	m.phase = next
	for _, l := range m.listeners {
		l(prev, next)
	}
}
