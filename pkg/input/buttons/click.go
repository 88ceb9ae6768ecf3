package buttons

import (
	"time"

	"github.com/robotalks/pktlink/pkg/l0/evtq"
)

// Default click timings.
const (
	DefaultLongPress = 600 * time.Millisecond
	DefaultClickGap  = 300 * time.Millisecond
)

// Click is a classified button input.
type Click struct {
	Button byte
	Type   byte
}

// Record converts the click to an EvtButtonInput record.
func (c Click) Record() evtq.Record {
	return evtq.ButtonRecord(c.Button, c.Type)
}

type buttonState struct {
	pressed    bool
	pressedAt  time.Time
	releasedAt time.Time
	count      int
}

// Clicker classifies press/release events into single, double, triple and
// long clicks. A press held for LongPress or more is a long click. Short
// clicks are counted until the button stays released for ClickGap, or the
// third one completes.
type Clicker struct {
	LongPress time.Duration
	ClickGap  time.Duration

	states [256]buttonState
}

// NewClicker creates a Clicker with default timings.
func NewClicker() *Clicker {
	return &Clicker{LongPress: DefaultLongPress, ClickGap: DefaultClickGap}
}

func clickType(count int) byte {
	switch count {
	case 1:
		return evtq.ClickSingle
	case 2:
		return evtq.ClickDouble
	default:
		return evtq.ClickTriple
	}
}

// Feed processes an event happened at t.
func (c *Clicker) Feed(ev Event, t time.Time) (clicks []Click) {
	st := &c.states[ev.Button]
	if ev.Init {
		st.pressed, st.pressedAt = ev.Pressed, t
		return nil
	}
	if ev.Pressed {
		if !st.pressed {
			st.pressed, st.pressedAt = true, t
		}
		return nil
	}
	if !st.pressed {
		return nil
	}
	st.pressed = false
	if t.Sub(st.pressedAt) >= c.LongPress {
		if st.count > 0 {
			clicks = append(clicks, Click{Button: ev.Button, Type: clickType(st.count)})
			st.count = 0
		}
		return append(clicks, Click{Button: ev.Button, Type: evtq.ClickLong})
	}
	st.count++
	st.releasedAt = t
	if st.count >= 3 {
		st.count = 0
		return append(clicks, Click{Button: ev.Button, Type: evtq.ClickTriple})
	}
	return nil
}

// Expire completes pending clicks whose gap has elapsed at t.
func (c *Clicker) Expire(t time.Time) (clicks []Click) {
	for n := range c.states {
		st := &c.states[n]
		if st.count > 0 && !st.pressed && t.Sub(st.releasedAt) >= c.ClickGap {
			clicks = append(clicks, Click{Button: byte(n), Type: clickType(st.count)})
			st.count = 0
		}
	}
	return
}
