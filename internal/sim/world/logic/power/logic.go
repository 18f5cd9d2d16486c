package power

type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) Add(d Pos) Pos {
	return Pos{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// Env is the read side of the block grid as seen by the propagation rules.
// Positions without a loaded block must behave like AIR.
type Env interface {
	// Conducts reports whether current travels through the block at p.
	Conducts(p Pos) bool
	// Feeds reports whether the block at p is powered or is itself an active source.
	Feeds(p Pos) bool
}

// Dirs are the six face-adjacent offsets.
var Dirs = [6]Pos{
	{X: 1, Y: 0, Z: 0},
	{X: -1, Y: 0, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 0, Z: 1},
	{X: 0, Y: 0, Z: -1},
}

// Reach runs a multi-source breadth-first search from seeds through conducting blocks.
// Seeds are always part of the result, conducting or not.
func Reach(env Env, seeds []Pos) map[Pos]struct{} {
	visited := make(map[Pos]struct{}, len(seeds))
	q := make([]Pos, 0, len(seeds))
	for _, p := range seeds {
		if _, ok := visited[p]; ok {
			continue
		}
		visited[p] = struct{}{}
		q = append(q, p)
	}

	for len(q) > 0 {
		p := q[0]
		q = q[1:]
		for _, d := range Dirs {
			np := p.Add(d)
			if _, ok := visited[np]; ok {
				continue
			}
			if !env.Conducts(np) {
				continue
			}
			visited[np] = struct{}{}
			q = append(q, np)
		}
	}
	return visited
}

// Touches reports whether any face neighbour of p is in set.
func Touches(set map[Pos]struct{}, p Pos) bool {
	for _, d := range Dirs {
		if _, ok := set[p.Add(d)]; ok {
			return true
		}
	}
	return false
}

// HasInput reports whether any face neighbour of p feeds it.
func HasInput(env Env, p Pos) bool {
	for _, d := range Dirs {
		if env.Feeds(p.Add(d)) {
			return true
		}
	}
	return false
}

type ButtonState struct {
	Active         bool
	TicksRemaining uint8
}

// StepButton advances a pressed button by one tick. A button stays active for
// as many ticks as it had remaining when the tick began.
func StepButton(s ButtonState) ButtonState {
	if s.TicksRemaining > 0 {
		s.TicksRemaining--
		s.Active = true
		return s
	}
	s.Active = false
	return s
}

type RepeaterState struct {
	Active         bool
	TicksRemaining uint8
	DelayTicks     uint8
}

// StepRepeater advances a repeater by one tick given whether it saw input at the
// end of the previous tick. Losing input turns it off immediately.
func StepRepeater(s RepeaterState, input bool) RepeaterState {
	if !input {
		s.Active = false
		s.TicksRemaining = 0
		return s
	}
	if s.Active {
		return s
	}
	if s.TicksRemaining == 0 {
		s.TicksRemaining = s.DelayTicks
		if s.TicksRemaining == 0 {
			s.TicksRemaining = 1
		}
	}
	s.TicksRemaining--
	if s.TicksRemaining == 0 {
		s.Active = true
	}
	return s
}
