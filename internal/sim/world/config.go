package world

import (
	"time"

	"blec.dev/internal/sim/tuning"
	"blec.dev/internal/sim/world/block"
)

type WorldConfig struct {
	ID string

	TickRateHz  int
	FrameRateHz int
	// MaxTicksPerUpdate caps the ticks one Update call may run. Zero means no cap.
	MaxTicksPerUpdate int

	LoadDistanceChunks int
	UnloadEveryTicks   int
	SnapshotEveryTicks int

	ButtonPulseTicks      int
	RepeaterDelayTicks    int
	MaxRepeaterDelayTicks int

	MaxReach        float32
	PlaceCooldown   time.Duration
	DestroyCooldown time.Duration

	// Actions a session may send per ActionWindowTicks. Zero in either disables the limit.
	ActionWindowTicks   int
	MaxActionsPerWindow int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "default"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.FrameRateHz <= 0 {
		c.FrameRateHz = 60
	}
	if c.MaxTicksPerUpdate < 0 {
		c.MaxTicksPerUpdate = 0
	}
	if c.LoadDistanceChunks <= 0 {
		c.LoadDistanceChunks = 8
	}
	if c.UnloadEveryTicks < 0 {
		c.UnloadEveryTicks = 0
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
	if c.ButtonPulseTicks <= 0 || c.ButtonPulseTicks > 255 {
		c.ButtonPulseTicks = 4
	}
	if c.MaxRepeaterDelayTicks <= 0 || c.MaxRepeaterDelayTicks > 255 {
		c.MaxRepeaterDelayTicks = 8
	}
	if c.RepeaterDelayTicks <= 0 || c.RepeaterDelayTicks > c.MaxRepeaterDelayTicks {
		c.RepeaterDelayTicks = int(block.DefaultRepeaterDelay)
	}
	if c.MaxReach <= 0 {
		c.MaxReach = 6.0
	}
	if c.PlaceCooldown < 0 {
		c.PlaceCooldown = 0
	}
	if c.DestroyCooldown < 0 {
		c.DestroyCooldown = 0
	}
	if c.ActionWindowTicks < 0 {
		c.ActionWindowTicks = 0
	}
	if c.MaxActionsPerWindow < 0 {
		c.MaxActionsPerWindow = 0
	}
}

// TickInterval is the simulated time covered by one tick.
func (c WorldConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}

// ConfigFromTuning maps a tuning file onto a world config for world id.
func ConfigFromTuning(id string, tune tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                    id,
		TickRateHz:            tune.TickRateHz,
		FrameRateHz:           tune.FrameRateHz,
		MaxTicksPerUpdate:     tune.MaxTicksPerUpdate,
		LoadDistanceChunks:    tune.LoadDistanceChunks,
		UnloadEveryTicks:      tune.UnloadEveryTicks,
		SnapshotEveryTicks:    tune.SnapshotEveryTicks,
		ButtonPulseTicks:      tune.ButtonPulseTicks,
		RepeaterDelayTicks:    tune.RepeaterDelayTicks,
		MaxRepeaterDelayTicks: tune.MaxRepeaterDelayTicks,
		MaxReach:              tune.Interaction.MaxReach,
		PlaceCooldown:         time.Duration(tune.Interaction.PlaceCooldownMs) * time.Millisecond,
		DestroyCooldown:       time.Duration(tune.Interaction.DestroyCooldownMs) * time.Millisecond,
		ActionWindowTicks:     tune.Interaction.ActionWindowTicks,
		MaxActionsPerWindow:   tune.Interaction.MaxActionsPerWindow,
	}
}
