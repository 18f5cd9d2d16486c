package power

import "testing"

type fakeEnv struct {
	conducts map[Pos]bool
	feeds    map[Pos]bool
}

func (e fakeEnv) Conducts(p Pos) bool { return e.conducts[p] }
func (e fakeEnv) Feeds(p Pos) bool    { return e.feeds[p] }

func TestReach_FollowsConductorsOnly(t *testing.T) {
	env := fakeEnv{conducts: map[Pos]bool{
		{X: 1}: true,
		{X: 2}: true,
		// gap at X=3
		{X: 4}: true,
	}}
	got := Reach(env, []Pos{{X: 0}})
	for _, p := range []Pos{{X: 0}, {X: 1}, {X: 2}} {
		if _, ok := got[p]; !ok {
			t.Fatalf("expected %+v reached", p)
		}
	}
	if _, ok := got[Pos{X: 4}]; ok {
		t.Fatalf("conductor past a gap must not be reached")
	}
	if len(got) != 3 {
		t.Fatalf("visited=%d want 3", len(got))
	}
}

func TestReach_SeedsDeduplicated(t *testing.T) {
	env := fakeEnv{}
	got := Reach(env, []Pos{{X: 5}, {X: 5}, {Y: -3}})
	if len(got) != 2 {
		t.Fatalf("visited=%d want 2", len(got))
	}
}

func TestTouches(t *testing.T) {
	set := map[Pos]struct{}{{X: 0, Y: 1, Z: 0}: {}}
	if !Touches(set, Pos{}) {
		t.Fatalf("expected neighbour above to touch")
	}
	if Touches(set, Pos{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("diagonal must not touch")
	}
}

func TestStepButton_PulseLength(t *testing.T) {
	s := ButtonState{Active: true, TicksRemaining: 4}
	active := 0
	for i := 0; i < 10; i++ {
		s = StepButton(s)
		if s.Active {
			active++
		}
	}
	if active != 4 {
		t.Fatalf("active ticks=%d want 4", active)
	}
	if s.TicksRemaining != 0 || s.Active {
		t.Fatalf("button should end released: %+v", s)
	}
}

func TestStepRepeater_DelayAndDrop(t *testing.T) {
	s := RepeaterState{DelayTicks: 3}
	for i := 1; i <= 2; i++ {
		s = StepRepeater(s, true)
		if s.Active {
			t.Fatalf("active too early at step %d", i)
		}
	}
	s = StepRepeater(s, true)
	if !s.Active {
		t.Fatalf("expected active after 3 steps")
	}
	s = StepRepeater(s, true)
	if !s.Active {
		t.Fatalf("expected to stay active with input")
	}
	s = StepRepeater(s, false)
	if s.Active || s.TicksRemaining != 0 {
		t.Fatalf("expected immediate drop: %+v", s)
	}
}

func TestStepRepeater_ZeroDelayActsAsOne(t *testing.T) {
	s := StepRepeater(RepeaterState{}, true)
	if !s.Active {
		t.Fatalf("zero delay should activate on first step")
	}
}
