package block

import "github.com/go-gl/mathgl/mgl32"

type Info struct {
	Name        string
	Description string
	Solid       bool
	Color       mgl32.Vec3
}

// UnknownColor is returned for types outside the registry.
var UnknownColor = mgl32.Vec3{1, 0, 1}

const poweredTint = 0.3

var registry = [TypeCount]Info{
	Air:         {Name: "Air", Description: "Empty space", Solid: false, Color: mgl32.Vec3{0.5, 0.5, 0.5}},
	CopperWire:  {Name: "Copper Wire", Description: "Conducts electricity", Solid: true, Color: mgl32.Vec3{0.8, 0.4, 0.0}},
	Insulator:   {Name: "Insulator", Description: "Blocks electricity", Solid: true, Color: mgl32.Vec3{0.2, 0.2, 0.2}},
	PowerSource: {Name: "Power Source", Description: "Generates electricity", Solid: true, Color: mgl32.Vec3{1.0, 1.0, 0.0}},
	Switch:      {Name: "Switch", Description: "Toggles power on and off", Solid: true, Color: mgl32.Vec3{0.5, 0.2, 0.2}},
	Button:      {Name: "Button", Description: "Emits a short pulse when pressed", Solid: true, Color: mgl32.Vec3{0.6, 0.3, 0.3}},
	Light:       {Name: "Light", Description: "Lights up when powered", Solid: true, Color: mgl32.Vec3{1.0, 1.0, 0.5}},
	Sensor:      {Name: "Sensor", Description: "Reports whether it is powered", Solid: true, Color: mgl32.Vec3{0.3, 0.3, 0.8}},
	Repeater:    {Name: "Repeater", Description: "Relays power after a delay", Solid: true, Color: mgl32.Vec3{0.8, 0.2, 0.8}},
}

// GetBlockInfo returns nil, false for types outside the registry.
func GetBlockInfo(t Type) (*Info, bool) {
	if !t.Valid() {
		return nil, false
	}
	return &registry[t], true
}

// GetBlockColor returns the render color of t. Powered non-air blocks are
// tinted toward white.
func GetBlockColor(t Type, powered bool) mgl32.Vec3 {
	info, ok := GetBlockInfo(t)
	if !ok {
		return UnknownColor
	}
	c := info.Color
	if powered && t != Air {
		white := mgl32.Vec3{1, 1, 1}
		c = c.Mul(1 - poweredTint).Add(white.Mul(poweredTint))
	}
	return c
}
