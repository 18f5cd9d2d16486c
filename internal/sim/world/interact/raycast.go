package interact

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Pos struct {
	X int
	Y int
	Z int
}

// Face identifies the side of a block a ray entered through.
type Face int8

const (
	FaceNone Face = iota - 1
	FacePosX
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

type Hit struct {
	Block    Pos // first solid block along the ray
	Adjacent Pos // last empty cell before Block, where a placement goes
	Distance float32
	Face     Face
}

// Raycast walks the voxel grid from origin along dir and reports the first
// solid block within maxDist. Missing chunks are treated as air.
func Raycast(env Env, origin, dir mgl32.Vec3, maxDist float32) (Hit, bool) {
	if dir.Len() == 0 || maxDist <= 0 {
		return Hit{}, false
	}
	d := dir.Normalize()

	o := [3]float64{float64(origin[0]), float64(origin[1]), float64(origin[2])}
	v := [3]int{int(math.Floor(o[0])), int(math.Floor(o[1])), int(math.Floor(o[2]))}
	if solidAt(env, v) {
		p := Pos{X: v[0], Y: v[1], Z: v[2]}
		return Hit{Block: p, Adjacent: p, Distance: 0, Face: FaceNone}, true
	}

	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		di := float64(d[i])
		switch {
		case di > 0:
			step[i] = 1
			tMax[i] = (float64(v[i]+1) - o[i]) / di
			tDelta[i] = 1 / di
		case di < 0:
			step[i] = -1
			tMax[i] = (o[i] - float64(v[i])) / -di
			tDelta[i] = 1 / -di
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	limit := float64(maxDist)
	for {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t := tMax[axis]
		if t > limit {
			return Hit{}, false
		}
		prev := v
		v[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		if !solidAt(env, v) {
			continue
		}
		return Hit{
			Block:    Pos{X: v[0], Y: v[1], Z: v[2]},
			Adjacent: Pos{X: prev[0], Y: prev[1], Z: prev[2]},
			Distance: float32(t),
			Face:     enteredFace(axis, step[axis]),
		}, true
	}
}

func solidAt(env Env, v [3]int) bool {
	b := env.GetBlock(v[0], v[1], v[2])
	return b != nil && b.IsSolid()
}

// enteredFace maps a traversal step to the face of the block being entered.
// Moving toward +X enters through the block's -X face.
func enteredFace(axis, step int) Face {
	switch axis {
	case 0:
		if step > 0 {
			return FaceNegX
		}
		return FacePosX
	case 1:
		if step > 0 {
			return FaceNegY
		}
		return FacePosY
	default:
		if step > 0 {
			return FaceNegZ
		}
		return FacePosZ
	}
}
