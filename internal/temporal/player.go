package temporal

import (
	"context"
	"math"
	"time"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/rs/zerolog/log"
)

// minSpeed is the slowest playback multiplier.
const minSpeed = 0.1

// Player moves a cursor through an engine's domain under an external clock.
type Player struct {
	engine    *Engine
	state     State
	playing   bool
	speed     float64
	windowSec float64
}

// NewPlayer returns a paused player at the start of mode's cursor range.
// windowSec is the number of data seconds covered per wall-clock second at speed 1.
func NewPlayer(e *Engine, mode Mode, speed, windowSec float64) *Player {
	p := &Player{engine: e, speed: speed, windowSec: windowSec}
	p.state.Mode = mode
	d := e.Domain()
	p.state.RangeStart, p.state.RangeEnd = d.Min, d.Max
	p.state.Cursor, _ = e.CursorRange(p.state)
	return p
}

// State returns the current view state.
func (p *Player) State() State { return p.state }

// Playing reports whether Tick advances the cursor.
func (p *Player) Playing() bool { return p.playing }

// Play starts advancing on Tick.
func (p *Player) Play() { p.playing = true }

// Pause stops advancing; the cursor stays where it is.
func (p *Player) Pause() { p.playing = false }

// SetSpeed changes the playback multiplier.
func (p *Player) SetSpeed(speed float64) { p.speed = speed }

// SetMode switches mode and re-clamps the cursor.
func (p *Player) SetMode(m Mode) {
	p.state.Mode = m
	p.clamp()
}

// SetRange sets the fixed window and re-clamps the cursor.
func (p *Player) SetRange(start, end float64) {
	p.state.RangeStart, p.state.RangeEnd = start, end
	p.clamp()
}

// Seek moves the cursor, clamped to the current cursor range.
func (p *Player) Seek(cursor float64) {
	p.state.Cursor = cursor
	p.clamp()
}

func (p *Player) clamp() {
	lower, upper := p.engine.CursorRange(p.state)
	p.state.Cursor = math.Max(lower, math.Min(upper, p.state.Cursor))
}

// Step returns the cursor advance, in milliseconds, for dt of wall-clock time.
func (p *Player) Step(dt time.Duration) float64 {
	return dt.Seconds() * p.windowSec * math.Max(minSpeed, p.speed) * 1000
}

// Tick advances a playing cursor by dt. On reaching the upper bound the
// cursor wraps to the domain start in full and cumulative modes, and stops
// at the bound in window modes, which also pauses playback. It reports
// whether the cursor moved.
func (p *Player) Tick(dt time.Duration) bool {
	if !p.playing || !p.engine.Domain().Known {
		return false
	}
	lower, upper := p.engine.CursorRange(p.state)
	before := p.state.Cursor

	next := before + p.Step(dt)
	if next >= upper {
		if p.state.Mode.windowed() {
			next = upper
			p.playing = false
		} else if before >= upper {
			next = p.engine.Domain().Min
		} else {
			next = upper
		}
	}
	if next < lower {
		next = lower
	}
	p.state.Cursor = next
	return next != before
}

// Frame returns the filtered datasets at the current state.
func (p *Player) Frame() []*geo.FeatureCollection {
	return p.engine.Filter(p.state)
}

// Run ticks the player every interval until ctx is done or playback stops,
// calling frame after each advance.
func (p *Player) Run(ctx context.Context, interval time.Duration, frame func(State, []*geo.FeatureCollection)) error {
	if !p.engine.Domain().Known {
		return geo.Errorf(geo.KindInputShape, "no parseable %q values to play", p.engine.Field())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Play()
	last := time.Now()
	for p.playing {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if p.Tick(dt) {
				frame(p.state, p.Frame())
			}
		}
	}

	log.Debug().Str("state", p.engine.Describe(p.state)).Msg("Playback stopped")
	return nil
}
