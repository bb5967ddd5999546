// Package session runs one controller per browser page session. A controller
// owns the camera reducer state, the dial surface, power, the roll and the
// galleria navigator, and serializes every change through a single goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/onnwee/viewfinder/internal/camera"
	"github.com/onnwee/viewfinder/internal/catalog"
	"github.com/onnwee/viewfinder/internal/galleria"
)

// Timing defaults.
const (
	DefaultFlashReset   = 900 * time.Millisecond
	DefaultBootDuration = 1200 * time.Millisecond
	DefaultStandbyAfter = 5 * time.Minute
)

// Controller errors.
var (
	ErrClosed            = errors.New("session closed")
	ErrNotReady          = errors.New("camera is not powered on")
	ErrInvalidPowerEvent = errors.New("invalid power event")
)

// Config tunes a controller. Zero durations fall back to the defaults except
// StandbyAfter, where zero or a negative value disables auto-standby.
type Config struct {
	FlashReset   time.Duration
	BootDuration time.Duration
	StandbyAfter time.Duration
	RollCapacity int
	// StartOff leaves a new body powered off instead of booting it.
	StartOff bool
}

func (c Config) withDefaults() Config {
	if c.FlashReset <= 0 {
		c.FlashReset = DefaultFlashReset
	}
	if c.BootDuration <= 0 {
		c.BootDuration = DefaultBootDuration
	}
	if c.RollCapacity <= 0 {
		c.RollCapacity = camera.DefaultRollCapacity
	}
	return c
}

// Result is what a command produced.
type Result struct {
	Snapshot Snapshot
	Changed  bool
}

// step is a unit of work run on the controller goroutine. It returns the
// event to publish when something changed.
type step func(c *Controller) (EventType, bool, error)

type command struct {
	run   step
	reply chan commandReply
}

type commandReply struct {
	res Result
	err error
}

// timerKind identifies a controller-scoped timer.
type timerKind int

const (
	timerFlash timerKind = iota
	timerBoot
	timerIdle
	timerSlide
)

var timerKinds = [...]timerKind{timerFlash, timerBoot, timerIdle, timerSlide}

type timerFired struct {
	kind timerKind
	gen  uint64
}

// Controller is the single owner of a session's state.
type Controller struct {
	id     string
	cfg    Config
	clock  clock.Clock
	bus    *Bus
	logger *slog.Logger

	cmds   chan command
	fired  chan timerFired
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	lastActive atomic.Int64

	// Owned by the run goroutine.
	state    *camera.State
	settings camera.Settings
	power    camera.Power
	roll     *camera.Roll
	nav      *galleria.Navigator
	version  uint64
	frameSeq int
	timers   [len(timerKinds)]*clock.Timer
	gens     [len(timerKinds)]uint64
	snap     Snapshot
}

// NewController starts a controller for cat. The controller runs until
// Close is called or parent is cancelled.
func NewController(parent context.Context, id string, cat *catalog.Catalog, cfg Config, clk clock.Clock, logger *slog.Logger) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(parent)

	c := &Controller{
		id:       id,
		cfg:      cfg,
		clock:    clk,
		bus:      NewBus(logger),
		logger:   logger.With(slog.String("session_id", id)),
		cmds:     make(chan command),
		fired:    make(chan timerFired, len(timerKinds)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    camera.InitialState(),
		settings: camera.DefaultSettings(),
		power:    camera.PowerOff,
		roll:     camera.NewRoll(cfg.RollCapacity, cat.Roll),
		nav:      galleria.New(cat),
	}
	c.frameSeq = c.roll.Len()
	c.touch()
	if !cfg.StartOff {
		c.applyPower(camera.PowerEventOn)
	}
	c.snap = c.buildSnapshot()

	go c.run()
	return c
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Bus returns the controller's event bus.
func (c *Controller) Bus() *Bus {
	return c.bus
}

// Subscribe registers a listener on the controller's event bus.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.bus.Subscribe(buffer)
}

// LastActive returns when the session last received a command.
func (c *Controller) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// Done is closed once the controller has stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close stops the controller and its timers and closes the event bus. It
// blocks until the run goroutine has exited.
func (c *Controller) Close() {
	c.once.Do(c.cancel)
	<-c.done
}

func (c *Controller) touch() {
	c.lastActive.Store(c.clock.Now().UnixNano())
}

// do runs s on the controller goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, s step) (Result, error) {
	cmd := command{run: s, reply: make(chan commandReply, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.ctx.Done():
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.res, r.err
	case <-c.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Controller) run() {
	defer close(c.done)
	defer c.bus.Close()
	defer c.stopTimers()

	for {
		select {
		case <-c.ctx.Done():
			c.bus.Publish(Event{Type: EventClosed, SessionID: c.id, Timestamp: c.clock.Now(), Snapshot: c.snap})
			return
		case cmd := <-c.cmds:
			c.touch()
			evt, changed, err := cmd.run(c)
			if changed {
				c.commit(evt)
			}
			cmd.reply <- commandReply{res: Result{Snapshot: c.snap, Changed: changed}, err: err}
		case f := <-c.fired:
			if f.gen != c.gens[f.kind] {
				continue
			}
			c.timers[f.kind] = nil
			if evt, changed := c.onTimer(f.kind); changed {
				c.commit(evt)
			}
		}
	}
}

func (c *Controller) commit(evt EventType) {
	c.version++
	c.snap = c.buildSnapshot()
	c.bus.Publish(Event{Type: evt, SessionID: c.id, Timestamp: c.snap.UpdatedAt, Snapshot: c.snap})
}

func (c *Controller) buildSnapshot() Snapshot {
	s := Snapshot{
		ID:        c.id,
		Version:   c.version,
		Power:     c.power,
		Camera:    *c.state,
		Settings:  c.settings.Clone(),
		Derived:   derive(c.state, c.settings),
		RollSize:  c.roll.Len(),
		Galleria:  c.nav.View(),
		UpdatedAt: c.clock.Now(),
	}
	if c.state.AlbumOpen {
		s.Album = c.roll.Frames()
	}
	return s
}

// arm (re)starts the timer of kind. Firings from earlier arms are ignored
// through the generation counter.
func (c *Controller) arm(kind timerKind, d time.Duration) {
	c.disarm(kind)
	c.gens[kind]++
	gen := c.gens[kind]
	c.timers[kind] = c.clock.AfterFunc(d, func() {
		select {
		case c.fired <- timerFired{kind: kind, gen: gen}:
		case <-c.ctx.Done():
		}
	})
}

func (c *Controller) disarm(kind timerKind) {
	if t := c.timers[kind]; t != nil {
		t.Stop()
		c.timers[kind] = nil
	}
	c.gens[kind]++
}

func (c *Controller) stopTimers() {
	for _, k := range timerKinds {
		c.disarm(k)
	}
}

func (c *Controller) onTimer(kind timerKind) (EventType, bool) {
	switch kind {
	case timerFlash:
		return EventCamera, c.reduce(camera.ResetFlash{})
	case timerBoot:
		return EventPower, c.applyPower(camera.PowerEventBootComplete)
	case timerIdle:
		return EventPower, c.applyPower(camera.PowerEventIdleTimeout)
	case timerSlide:
		changed, err := c.nav.Next()
		if err != nil {
			c.logger.Warn("slideshow advance failed", slog.String("error", err.Error()))
		}
		if c.nav.State().Slideshow {
			c.arm(timerSlide, c.nav.State().SlideInterval)
		}
		return EventGalleria, changed
	}
	return "", false
}

// applyPower moves the power state machine and (re)arms the timers tied to
// it.
func (c *Controller) applyPower(e camera.PowerEvent) bool {
	next := camera.NextPower(c.power, e)
	if next == c.power {
		return false
	}
	prev := c.power
	c.power = next
	c.logger.Debug("power transition",
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
		slog.String("event", string(e)),
	)

	switch next {
	case camera.PowerBooting:
		c.arm(timerBoot, c.cfg.BootDuration)
	case camera.PowerOn:
		c.disarm(timerBoot)
		c.resetIdle()
	case camera.PowerStandby:
		c.disarm(timerIdle)
	case camera.PowerOff:
		c.disarm(timerBoot)
		c.disarm(timerIdle)
		c.disarm(timerFlash)
		c.state = camera.Reduce(c.state, camera.ResetFlash{})
	}
	return true
}

func (c *Controller) resetIdle() {
	if c.cfg.StandbyAfter > 0 && c.power == camera.PowerOn {
		c.arm(timerIdle, c.cfg.StandbyAfter)
	}
}

// admit gates body input on power. Input in standby wakes the body first.
// It reports whether the input may proceed and whether waking changed state.
func (c *Controller) admit() (ok, woke bool) {
	switch c.power {
	case camera.PowerOn:
		c.resetIdle()
		return true, false
	case camera.PowerStandby:
		c.applyPower(camera.PowerEventWake)
		return true, true
	default:
		return false, false
	}
}

// reduce runs the camera reducer and applies its side effects.
func (c *Controller) reduce(a camera.Action) bool {
	next := camera.ReduceAt(c.state, a, c.clock.Now())
	if next == c.state {
		return false
	}
	c.state = next
	c.settings.Exposure = next.Exposure
	if _, ok := a.(camera.TriggerFlash); ok {
		c.arm(timerFlash, c.cfg.FlashReset)
	}
	if _, ok := a.(camera.ResetFlash); ok {
		c.disarm(timerFlash)
	}
	return true
}

// Dispatch runs a reducer action. Actions sent while the body is off or
// booting are ignored.
func (c *Controller) Dispatch(ctx context.Context, a camera.Action) (Result, error) {
	return c.do(ctx, func(c *Controller) (EventType, bool, error) {
		ok, woke := c.admit()
		if !ok {
			return "", false, nil
		}
		return EventCamera, c.reduce(a) || woke, nil
	})
}

// SetDial moves a dial to value.
func (c *Controller) SetDial(ctx context.Context, dial camera.Dial, value any) (Result, error) {
	return c.dial(ctx, func(s camera.Settings) (camera.Settings, bool, error) {
		return s.SetDial(dial, value)
	})
}

// StepDial turns a dial by delta detents.
func (c *Controller) StepDial(ctx context.Context, dial camera.Dial, delta int) (Result, error) {
	return c.dial(ctx, func(s camera.Settings) (camera.Settings, bool, error) {
		return s.StepDial(dial, delta)
	})
}

// ToggleAssist switches a shooting aid.
func (c *Controller) ToggleAssist(ctx context.Context, a camera.Assist, on bool) (Result, error) {
	return c.dial(ctx, func(s camera.Settings) (camera.Settings, bool, error) {
		return s.ToggleAssist(a, on)
	})
}

// SetHUDVisible shows or hides the HUD.
func (c *Controller) SetHUDVisible(ctx context.Context, visible bool) (Result, error) {
	return c.dial(ctx, func(s camera.Settings) (camera.Settings, bool, error) {
		next, changed := s.SetHUDVisible(visible)
		return next, changed, nil
	})
}

func (c *Controller) dial(ctx context.Context, f func(camera.Settings) (camera.Settings, bool, error)) (Result, error) {
	return c.do(ctx, func(c *Controller) (EventType, bool, error) {
		ok, woke := c.admit()
		if !ok {
			return "", false, nil
		}
		next, changed, err := f(c.settings)
		if err != nil {
			return EventPower, woke, err
		}
		if changed {
			c.settings = next
			c.state = camera.Reduce(c.state, camera.SetExposure{Value: next.Exposure})
		}
		return EventDials, changed || woke, nil
	})
}

// Power sends a power event from the user. Timer-only events are rejected.
func (c *Controller) Power(ctx context.Context, e camera.PowerEvent) (Result, error) {
	if !e.Valid() || e == camera.PowerEventBootComplete || e == camera.PowerEventIdleTimeout {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPowerEvent, e)
	}
	return c.do(ctx, func(c *Controller) (EventType, bool, error) {
		return EventPower, c.applyPower(e), nil
	})
}

// Capture records a frame with the current settings. Flash "on" and
// "red-eye" fire the flash; "auto" fires it in night mode. Unlike other
// input, capturing while off or booting is an error.
func (c *Controller) Capture(ctx context.Context) (camera.Frame, Result, error) {
	var frame camera.Frame
	res, err := c.do(ctx, func(c *Controller) (EventType, bool, error) {
		ok, _ := c.admit()
		if !ok {
			return "", false, ErrNotReady
		}
		now := c.clock.Now()
		if fires(c.settings.Flash, c.state.CameraMode) {
			c.reduce(camera.TriggerFlash{At: &now})
		}
		c.frameSeq++
		frame = camera.Expose(fmt.Sprintf("frame-%d", c.frameSeq), c.state, c.settings, now)
		c.roll.Add(frame)
		return EventCapture, true, nil
	})
	return frame, res, err
}

func fires(mode camera.FlashMode, cm camera.Mode) bool {
	switch mode {
	case camera.FlashOn, camera.FlashRedEye:
		return true
	case camera.FlashAuto:
		return cm == camera.ModeNight
	}
	return false
}

// Navigate runs a galleria command and keeps the slideshow timer in step
// with the navigator.
func (c *Controller) Navigate(ctx context.Context, cmd galleria.Command) (Result, error) {
	return c.do(ctx, func(c *Controller) (EventType, bool, error) {
		changed, err := c.nav.Apply(cmd)
		if err != nil {
			return "", false, err
		}
		if changed {
			c.syncSlideshow()
		}
		return EventGalleria, changed, nil
	})
}

func (c *Controller) syncSlideshow() {
	st := c.nav.State()
	if st.Slideshow {
		c.arm(timerSlide, st.SlideInterval)
		return
	}
	c.disarm(timerSlide)
}

// SetCatalog rebinds the navigator after a catalog reload. Rebinding the
// catalog already in use changes nothing. The slideshow timer is re-armed
// only when the rebind stopped the slideshow.
func (c *Controller) SetCatalog(ctx context.Context, cat *catalog.Catalog) (Result, error) {
	return c.do(ctx, func(c *Controller) (EventType, bool, error) {
		if cat == nil || cat == c.nav.Catalog() {
			return "", false, nil
		}
		before := c.nav.State()
		c.nav.SetCatalog(cat)
		if after := c.nav.State(); after.Slideshow != before.Slideshow || after.SlideInterval != before.SlideInterval {
			c.syncSlideshow()
		}
		return EventCatalog, true, nil
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	res, err := c.do(ctx, func(*Controller) (EventType, bool, error) {
		return "", false, nil
	})
	return res.Snapshot, err
}
