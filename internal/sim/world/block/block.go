// Package block defines the block types of the world and their static properties.
package block

type Type uint8

const (
	Air Type = iota
	CopperWire
	Insulator
	PowerSource
	Switch
	Button
	Light
	Sensor
	Repeater

	TypeCount
)

// DefaultRepeaterDelay is the delay of a freshly created repeater, in ticks.
const DefaultRepeaterDelay uint8 = 2

var typeNames = [TypeCount]string{
	Air:         "AIR",
	CopperWire:  "COPPER_WIRE",
	Insulator:   "INSULATOR",
	PowerSource: "POWER_SOURCE",
	Switch:      "SWITCH",
	Button:      "BUTTON",
	Light:       "LIGHT",
	Sensor:      "SENSOR",
	Repeater:    "REPEATER",
}

func (t Type) Valid() bool { return t < TypeCount }

func (t Type) String() string {
	if !t.Valid() {
		return "UNKNOWN"
	}
	return typeNames[t]
}

func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return Air, false
}

// Types returns every known type in id order.
func Types() []Type {
	out := make([]Type, 0, TypeCount)
	for t := Air; t < TypeCount; t++ {
		out = append(out, t)
	}
	return out
}

// Behavior is the static role a block type plays in power propagation.
type Behavior struct {
	Conducts     bool // current flows through it
	StaticSource bool // always emits
	Consumer     bool // powered by adjacency to the powered network
	Toggleable   bool // flipped by use
	Pulsed       bool // active for a countdown after use
	Delayed      bool // activates a few ticks after its input
}

// Emits reports whether blocks of this kind can seed propagation when active.
func (b Behavior) Emits() bool { return b.Toggleable || b.Pulsed || b.Delayed }

var behaviors = [TypeCount]Behavior{
	CopperWire:  {Conducts: true},
	PowerSource: {Conducts: true, StaticSource: true},
	Switch:      {Toggleable: true},
	Button:      {Pulsed: true},
	Light:       {Consumer: true},
	Sensor:      {Consumer: true},
	Repeater:    {Conducts: true, Delayed: true},
}

// BehaviorOf returns the zero Behavior for unknown types.
func BehaviorOf(t Type) Behavior {
	if !t.Valid() {
		return Behavior{}
	}
	return behaviors[t]
}

// Block is one voxel. Simulation fields that do not apply to a type stay at
// their zero value except DelayTicks, which every block carries.
type Block struct {
	Type           Type
	Powered        bool
	PowerLevel     uint8 // 0 or 1
	Rotation       uint8 // 0-3, rendering only
	Active         bool
	TicksRemaining uint8
	DelayTicks     uint8
}

func New(t Type) Block {
	return Block{Type: t, DelayTicks: DefaultRepeaterDelay}
}

func (b Block) IsSolid() bool { return b.Type != Air }

func (b Block) ConductsElectricity() bool { return BehaviorOf(b.Type).Conducts }

func (b Block) IsPowerSource() bool { return BehaviorOf(b.Type).StaticSource }

func (b Block) IsSwitch() bool {
	bh := BehaviorOf(b.Type)
	return bh.Toggleable || bh.Pulsed
}

func (b Block) IsConsumer() bool { return BehaviorOf(b.Type).Consumer }

// IsActiveSource reports whether the block seeds propagation this tick.
func (b Block) IsActiveSource() bool {
	bh := BehaviorOf(b.Type)
	if bh.StaticSource {
		return true
	}
	return bh.Emits() && b.Active
}

// SetPowered writes the binary power state.
func (b *Block) SetPowered(on bool) {
	b.Powered = on
	if on {
		b.PowerLevel = 1
	} else {
		b.PowerLevel = 0
	}
}
