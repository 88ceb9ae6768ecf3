package buttons

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pktlink/pkg/l0/evtq"
)

type clickStep struct {
	at      time.Duration
	button  byte
	pressed bool
	init    bool
	expire  bool
	clicks  []Click
}

func press(at time.Duration, button byte) clickStep {
	return clickStep{at: at, button: button, pressed: true}
}

func release(at time.Duration, button byte, clicks ...Click) clickStep {
	return clickStep{at: at, button: button, clicks: clicks}
}

func expire(at time.Duration, clicks ...Click) clickStep {
	return clickStep{at: at, expire: true, clicks: clicks}
}

func TestClicker(t *testing.T) {
	ms := time.Millisecond
	testCases := []struct {
		name  string
		steps []clickStep
	}{
		{
			name: "single",
			steps: []clickStep{
				press(0, 1), release(100*ms, 1),
				expire(300*ms),
				expire(400*ms, Click{1, evtq.ClickSingle}),
				expire(800*ms),
			},
		},
		{
			name: "double",
			steps: []clickStep{
				press(0, 2), release(80*ms, 2),
				press(200*ms, 2), release(280*ms, 2),
				expire(400*ms),
				expire(580*ms, Click{2, evtq.ClickDouble}),
			},
		},
		{
			name: "triple completes immediately",
			steps: []clickStep{
				press(0, 0), release(50*ms, 0),
				press(100*ms, 0), release(150*ms, 0),
				press(200*ms, 0), release(250*ms, 0, Click{0, evtq.ClickTriple}),
				expire(time.Second),
			},
		},
		{
			name: "long",
			steps: []clickStep{
				press(0, 3), release(700*ms, 3, Click{3, evtq.ClickLong}),
				expire(2 * time.Second),
			},
		},
		{
			name: "click then long",
			steps: []clickStep{
				press(0, 3), release(100*ms, 3),
				press(200*ms, 3),
				expire(600*ms),
				release(900*ms, 3, Click{3, evtq.ClickSingle}, Click{3, evtq.ClickLong}),
			},
		},
		{
			name: "independent buttons",
			steps: []clickStep{
				press(0, 1), press(10*ms, 4),
				release(50*ms, 1), release(60*ms, 4),
				expire(400*ms, Click{1, evtq.ClickSingle}, Click{4, evtq.ClickSingle}),
			},
		},
		{
			name: "init state and stray release",
			steps: []clickStep{
				{at: 0, button: 5, pressed: true, init: true},
				release(100*ms, 5),
				release(200*ms, 6),
				expire(time.Second, Click{5, evtq.ClickSingle}),
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClicker()
			start := time.Now()
			for n, step := range tc.steps {
				var clicks []Click
				if step.expire {
					clicks = c.Expire(start.Add(step.at))
				} else {
					clicks = c.Feed(Event{Button: step.button, Pressed: step.pressed, Init: step.init}, start.Add(step.at))
				}
				require.Equal(t, step.clicks, clicks, "step %d", n)
			}
		})
	}
}

func TestClickRecord(t *testing.T) {
	require.Equal(t, evtq.Record{evtq.EvtButtonInput, 0x02, evtq.ClickDouble},
		Click{Button: 2, Type: evtq.ClickDouble}.Record())
}
