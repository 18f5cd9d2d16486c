// Package encoding packs chunk block states for the wire.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// A packed state holds the block type in bits 0-7, powered in bit 8 and
// active in bit 9.
const (
	poweredBit uint16 = 1 << 8
	activeBit  uint16 = 1 << 9
	stateMask         = 0xFF | poweredBit | activeBit
)

func PackState(t uint8, powered, active bool) uint16 {
	s := uint16(t)
	if powered {
		s |= poweredBit
	}
	if active {
		s |= activeBit
	}
	return s
}

func UnpackState(s uint16) (t uint8, powered, active bool) {
	return uint8(s), s&poweredBit != 0, s&activeBit != 0
}

// EncodeRLE encodes packed states as base64 of (state, run_len) uvarint pairs.
func EncodeRLE(states []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(states); {
		s := states[i]
		run := 1
		for i+run < len(states) && states[i+run] == s {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(s))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE expands an EncodeRLE string. It fails instead of producing more
// than max states.
func DecodeRLE(b64 string, max int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		s, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if s&^uint64(stateMask) != 0 {
			return nil, fmt.Errorf("bad state %#x", s)
		}
		if run == 0 || run > uint64(max-len(out)) {
			return nil, fmt.Errorf("run of %d at %d exceeds %d states", run, i, max)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(s))
		}
	}
	return out, nil
}
