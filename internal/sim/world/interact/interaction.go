// Package interact turns player input into block edits: placing, destroying,
// using switches and buttons, and picking blocks from the hotbar.
package interact

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"blec.dev/internal/sim/world/block"
)

// Env is the block access the interaction layer needs from the world.
type Env interface {
	GetBlock(x, y, z int) *block.Block
	SetBlock(x, y, z int, b block.Block)
}

var (
	ErrInvalidPlacement = errors.New("interact: target is not an empty loaded cell")
	ErrCannotDestroy    = errors.New("interact: nothing to destroy")
	ErrNotInteractive   = errors.New("interact: block cannot be used")
	ErrNoTarget         = errors.New("interact: no block in reach")
	ErrCooldown         = errors.New("interact: cooling down")
	ErrBadDelay         = errors.New("interact: delay out of range")
	ErrNothingSelected  = errors.New("interact: no block selected")
)

type Config struct {
	MaxReach         float32
	PlaceCooldown    time.Duration
	DestroyCooldown  time.Duration
	ButtonPulseTicks uint8
	RepeaterDelay    uint8
	MaxRepeaterDelay uint8
}

func DefaultConfig() Config {
	return Config{
		MaxReach:         6.0,
		PlaceCooldown:    100 * time.Millisecond,
		DestroyCooldown:  100 * time.Millisecond,
		ButtonPulseTicks: 4,
		RepeaterDelay:    block.DefaultRepeaterDelay,
		MaxRepeaterDelay: 8,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxReach <= 0 {
		c.MaxReach = d.MaxReach
	}
	if c.PlaceCooldown < 0 {
		c.PlaceCooldown = 0
	}
	if c.DestroyCooldown < 0 {
		c.DestroyCooldown = 0
	}
	if c.ButtonPulseTicks == 0 {
		c.ButtonPulseTicks = d.ButtonPulseTicks
	}
	if c.RepeaterDelay == 0 {
		c.RepeaterDelay = d.RepeaterDelay
	}
	if c.MaxRepeaterDelay == 0 {
		c.MaxRepeaterDelay = d.MaxRepeaterDelay
	}
	if c.RepeaterDelay > c.MaxRepeaterDelay {
		c.RepeaterDelay = c.MaxRepeaterDelay
	}
}

// Interaction holds one player's selection and cooldown timers.
type Interaction struct {
	cfg      Config
	selected block.Type

	lastPlace   time.Time
	lastDestroy time.Time
}

func New(cfg Config) *Interaction {
	cfg.applyDefaults()
	return &Interaction{cfg: cfg, selected: block.CopperWire}
}

func (ia *Interaction) Config() Config { return ia.cfg }

func (ia *Interaction) SelectedBlock() block.Type { return ia.selected }

func (ia *Interaction) SetSelectedBlock(t block.Type) {
	if !t.Valid() {
		return
	}
	ia.selected = t
}

// Cooldowns returns when the last place and destroy succeeded.
func (ia *Interaction) Cooldowns() (place, destroy time.Time) {
	return ia.lastPlace, ia.lastDestroy
}

func (ia *Interaction) RestoreCooldowns(place, destroy time.Time) {
	ia.lastPlace = place
	ia.lastDestroy = destroy
}

func (ia *Interaction) IsValidPlacement(env Env, p Pos) bool {
	b := env.GetBlock(p.X, p.Y, p.Z)
	return b != nil && b.Type == block.Air
}

func (ia *Interaction) CanDestroy(env Env, p Pos) bool {
	b := env.GetBlock(p.X, p.Y, p.Z)
	return b != nil && b.Type != block.Air
}

// PlaceBlock writes the selected block at p.
func (ia *Interaction) PlaceBlock(env Env, p Pos, now time.Time) error {
	if ia.selected == block.Air {
		return ErrNothingSelected
	}
	if !ia.IsValidPlacement(env, p) {
		return ErrInvalidPlacement
	}
	if coolingDown(ia.lastPlace, now, ia.cfg.PlaceCooldown) {
		return ErrCooldown
	}
	nb := block.New(ia.selected)
	switch ia.selected {
	case block.PowerSource:
		nb.SetPowered(true)
		nb.Active = true
	case block.Repeater:
		nb.DelayTicks = ia.cfg.RepeaterDelay
	}
	env.SetBlock(p.X, p.Y, p.Z, nb)
	ia.lastPlace = now
	return nil
}

// DestroyBlock replaces the block at p with air.
func (ia *Interaction) DestroyBlock(env Env, p Pos, now time.Time) error {
	if !ia.CanDestroy(env, p) {
		return ErrCannotDestroy
	}
	if coolingDown(ia.lastDestroy, now, ia.cfg.DestroyCooldown) {
		return ErrCooldown
	}
	env.SetBlock(p.X, p.Y, p.Z, block.New(block.Air))
	ia.lastDestroy = now
	return nil
}

// Use toggles a switch or presses a button in place. The change is picked up
// by the next simulation tick.
func (ia *Interaction) Use(env Env, p Pos) error {
	b := env.GetBlock(p.X, p.Y, p.Z)
	if b == nil {
		return ErrNotInteractive
	}
	bh := block.BehaviorOf(b.Type)
	switch {
	case bh.Toggleable:
		b.Active = !b.Active
	case bh.Pulsed:
		b.Active = true
		b.TicksRemaining = ia.cfg.ButtonPulseTicks
	default:
		return ErrNotInteractive
	}
	return nil
}

// SetDelay changes a repeater's delay and restarts its countdown.
func (ia *Interaction) SetDelay(env Env, p Pos, ticks int) error {
	b := env.GetBlock(p.X, p.Y, p.Z)
	if b == nil || !block.BehaviorOf(b.Type).Delayed {
		return ErrNotInteractive
	}
	if ticks < 1 || ticks > int(ia.cfg.MaxRepeaterDelay) {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrBadDelay, ticks, ia.cfg.MaxRepeaterDelay)
	}
	b.DelayTicks = uint8(ticks)
	b.TicksRemaining = 0
	return nil
}

type ClickButton int

const (
	ClickLeft ClickButton = iota
	ClickRight
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePlaced
	OutcomeDestroyed
	OutcomeUsed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlaced:
		return "PLACED"
	case OutcomeDestroyed:
		return "DESTROYED"
	case OutcomeUsed:
		return "USED"
	default:
		return "NONE"
	}
}

type Result struct {
	Outcome Outcome
	Pos     Pos // cell that changed
	Hit     Hit
}

// Click resolves a mouse click along a view ray. A right click on a switch or
// button uses it; any other right click places against the hit face. A left
// click destroys the hit block.
func (ia *Interaction) Click(env Env, origin, dir mgl32.Vec3, button ClickButton, now time.Time) (Result, error) {
	hit, ok := Raycast(env, origin, dir, ia.cfg.MaxReach)
	if !ok {
		return Result{}, ErrNoTarget
	}
	switch button {
	case ClickLeft:
		if err := ia.DestroyBlock(env, hit.Block, now); err != nil {
			return Result{Hit: hit}, err
		}
		return Result{Outcome: OutcomeDestroyed, Pos: hit.Block, Hit: hit}, nil
	case ClickRight:
		if b := env.GetBlock(hit.Block.X, hit.Block.Y, hit.Block.Z); b != nil && b.IsSwitch() {
			if err := ia.Use(env, hit.Block); err != nil {
				return Result{Hit: hit}, err
			}
			return Result{Outcome: OutcomeUsed, Pos: hit.Block, Hit: hit}, nil
		}
		if err := ia.PlaceBlock(env, hit.Adjacent, now); err != nil {
			return Result{Hit: hit}, err
		}
		return Result{Outcome: OutcomePlaced, Pos: hit.Adjacent, Hit: hit}, nil
	default:
		return Result{}, fmt.Errorf("interact: unknown button %d", button)
	}
}

func coolingDown(last, now time.Time, cd time.Duration) bool {
	if last.IsZero() || cd <= 0 {
		return false
	}
	return now.Sub(last) < cd
}
