package interact

import "blec.dev/internal/sim/world/block"

const HotbarSize = 10

var defaultHotbar = [HotbarSize]block.Type{
	block.CopperWire,
	block.Insulator,
	block.PowerSource,
	block.Switch,
	block.Button,
	block.Light,
	block.Sensor,
	block.Repeater,
	block.Air,
	block.Air,
}

// Selector tracks the hotbar, the selected slot and the block menu.
type Selector struct {
	hotbar      [HotbarSize]block.Type
	slot        int
	selected    block.Type
	menuVisible bool
}

func NewSelector() *Selector {
	s := &Selector{hotbar: defaultHotbar}
	s.selected = s.hotbar[0]
	return s
}

func (s *Selector) Selected() block.Type { return s.selected }
func (s *Selector) Slot() int            { return s.slot }

func (s *Selector) SelectByHotbar(slot int) bool {
	if slot < 0 || slot >= HotbarSize {
		return false
	}
	s.slot = slot
	s.selected = s.hotbar[slot]
	return true
}

func (s *Selector) CycleNext() {
	s.SelectByHotbar((s.slot + 1) % HotbarSize)
}

func (s *Selector) CyclePrevious() {
	s.SelectByHotbar((s.slot + HotbarSize - 1) % HotbarSize)
}

// HotbarBlock returns AIR for slots out of range.
func (s *Selector) HotbarBlock(slot int) block.Type {
	if slot < 0 || slot >= HotbarSize {
		return block.Air
	}
	return s.hotbar[slot]
}

func (s *Selector) SetHotbarBlock(slot int, t block.Type) {
	if slot < 0 || slot >= HotbarSize || !t.Valid() {
		return
	}
	s.hotbar[slot] = t
	if slot == s.slot {
		s.selected = t
	}
}

func (s *Selector) Hotbar() []block.Type {
	out := make([]block.Type, HotbarSize)
	copy(out, s.hotbar[:])
	return out
}

// AvailableBlocks lists everything the menu offers, which is every type but AIR.
func (s *Selector) AvailableBlocks() []block.Type {
	all := block.Types()
	out := make([]block.Type, 0, len(all)-1)
	for _, t := range all {
		if t != block.Air {
			out = append(out, t)
		}
	}
	return out
}

func (s *Selector) MenuVisible() bool { return s.menuVisible }
func (s *Selector) ToggleMenu()       { s.menuVisible = !s.menuVisible }

// SelectFromMenu picks t directly and closes the menu. The hotbar is unchanged.
func (s *Selector) SelectFromMenu(t block.Type) bool {
	if !t.Valid() || t == block.Air {
		return false
	}
	s.selected = t
	s.menuVisible = false
	return true
}

// Restore overwrites the selector with saved state. Unknown hotbar types become
// AIR, a slot out of range falls back to 0 and an unknown selection falls back
// to the slot's block.
func (s *Selector) Restore(hotbar []block.Type, slot int, selected block.Type, menuVisible bool) {
	for i := range s.hotbar {
		s.hotbar[i] = block.Air
		if i < len(hotbar) && hotbar[i].Valid() {
			s.hotbar[i] = hotbar[i]
		}
	}
	if slot < 0 || slot >= HotbarSize {
		slot = 0
	}
	s.slot = slot
	s.selected = s.hotbar[slot]
	if selected.Valid() {
		s.selected = selected
	}
	s.menuVisible = menuVisible
}
