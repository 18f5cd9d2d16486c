package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"blec.dev/internal/sim/world/block"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz        int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	FrameRateHz       int `yaml:"frame_rate_hz" json:"frame_rate_hz"`
	MaxTicksPerUpdate int `yaml:"max_ticks_per_update" json:"max_ticks_per_update"`

	LoadDistanceChunks int `yaml:"load_distance_chunks" json:"load_distance_chunks"`
	UnloadEveryTicks   int `yaml:"unload_every_ticks" json:"unload_every_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	SpawnRadiusChunks int    `yaml:"spawn_radius_chunks" json:"spawn_radius_chunks"`
	SpawnFill         string `yaml:"spawn_fill" json:"spawn_fill"`

	ButtonPulseTicks      int `yaml:"button_pulse_ticks" json:"button_pulse_ticks"`
	RepeaterDelayTicks    int `yaml:"repeater_delay_ticks" json:"repeater_delay_ticks"`
	MaxRepeaterDelayTicks int `yaml:"max_repeater_delay_ticks" json:"max_repeater_delay_ticks"`

	Interaction Interaction `yaml:"interaction" json:"interaction"`
}

type Interaction struct {
	MaxReach          float32 `yaml:"max_reach" json:"max_reach"`
	PlaceCooldownMs   int     `yaml:"place_cooldown_ms" json:"place_cooldown_ms"`
	DestroyCooldownMs int     `yaml:"destroy_cooldown_ms" json:"destroy_cooldown_ms"`

	// Per-session action budget over fixed tick windows. Zero disables it.
	ActionWindowTicks   int `yaml:"action_window_ticks" json:"action_window_ticks"`
	MaxActionsPerWindow int `yaml:"max_actions_per_window" json:"max_actions_per_window"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:       "1.0",
		TickRateHz:            20,
		FrameRateHz:           60,
		MaxTicksPerUpdate:     0,
		LoadDistanceChunks:    8,
		UnloadEveryTicks:      100,
		SnapshotEveryTicks:    6000,
		SpawnRadiusChunks:     2,
		SpawnFill:             "AIR",
		ButtonPulseTicks:      4,
		RepeaterDelayTicks:    2,
		MaxRepeaterDelayTicks: 8,
		Interaction: Interaction{
			MaxReach:          6.0,
			PlaceCooldownMs:   100,
			DestroyCooldownMs: 100,

			ActionWindowTicks:   20,
			MaxActionsPerWindow: 60,
		},
	}
}

// Load reads path on top of Defaults, so omitted keys keep their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in [1,1000], got %d", t.TickRateHz)
	}
	if t.FrameRateHz <= 0 {
		return fmt.Errorf("frame_rate_hz must be positive, got %d", t.FrameRateHz)
	}
	if t.MaxTicksPerUpdate < 0 {
		return fmt.Errorf("max_ticks_per_update must be >= 0, got %d", t.MaxTicksPerUpdate)
	}
	if t.LoadDistanceChunks <= 0 {
		return fmt.Errorf("load_distance_chunks must be positive, got %d", t.LoadDistanceChunks)
	}
	if t.SpawnRadiusChunks < 0 {
		return fmt.Errorf("spawn_radius_chunks must be >= 0, got %d", t.SpawnRadiusChunks)
	}
	if _, ok := block.ParseType(t.SpawnFill); !ok {
		return fmt.Errorf("spawn_fill: unknown block %q", t.SpawnFill)
	}
	if t.ButtonPulseTicks < 1 || t.ButtonPulseTicks > 255 {
		return fmt.Errorf("button_pulse_ticks must be in [1,255], got %d", t.ButtonPulseTicks)
	}
	if t.MaxRepeaterDelayTicks < 1 || t.MaxRepeaterDelayTicks > 255 {
		return fmt.Errorf("max_repeater_delay_ticks must be in [1,255], got %d", t.MaxRepeaterDelayTicks)
	}
	if t.RepeaterDelayTicks < 1 || t.RepeaterDelayTicks > t.MaxRepeaterDelayTicks {
		return fmt.Errorf("repeater_delay_ticks must be in [1,%d], got %d", t.MaxRepeaterDelayTicks, t.RepeaterDelayTicks)
	}
	if t.Interaction.MaxReach <= 0 {
		return fmt.Errorf("interaction.max_reach must be positive")
	}
	if t.Interaction.PlaceCooldownMs < 0 || t.Interaction.DestroyCooldownMs < 0 {
		return fmt.Errorf("interaction cooldowns must be >= 0")
	}
	if t.Interaction.ActionWindowTicks < 0 || t.Interaction.MaxActionsPerWindow < 0 {
		return fmt.Errorf("interaction action budget must be >= 0")
	}
	return nil
}
