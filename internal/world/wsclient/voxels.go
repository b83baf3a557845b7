package wsclient

import (
	"encoding/json"

	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/protocol"
	"voxelcraft.ai/vcterm/internal/world"
)

// blockAir is the palette name of empty space.
const blockAir = "AIR"

// maxVoxelRadius bounds the cube the session keeps.
const maxVoxelRadius = 32

// voxelCube is the last observed block cube in palette ids.
type voxelCube struct {
	center [3]int
	radius int
	ids    []uint16
}

func (s *Session) onPalette(c protocol.CatalogMsg) {
	var names []string
	if err := json.Unmarshal(c.Data, &names); err != nil {
		s.log.Debug("bad block palette", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Part <= 1 {
		s.partial = nil
	}
	s.partial = append(s.partial, names...)
	if c.TotalParts <= 1 || c.Part >= c.TotalParts {
		s.palette, s.partial = s.partial, nil
	}
}

// applyVoxelsLocked updates the cube from one observation. A delta that does
// not fit the cube held drops it until the next full frame.
func (s *Session) applyVoxelsLocked(v protocol.VoxelsObs) {
	if v.Radius < 0 || v.Radius > maxVoxelRadius {
		return
	}
	n := protocol.VoxelCount(v.Radius)
	switch v.Encoding {
	case protocol.EncodingRLE:
		ids, err := protocol.DecodeRLE(v.Data, n)
		if err != nil || len(ids) != n {
			s.log.Debug("bad voxels", zap.Int("cells", len(ids)), zap.Error(err))
			s.voxels = voxelCube{}
			return
		}
		s.voxels = voxelCube{center: v.Center, radius: v.Radius, ids: ids}
	case protocol.EncodingDelta:
		if len(s.voxels.ids) != n || s.voxels.radius != v.Radius {
			s.voxels = voxelCube{}
			return
		}
		s.voxels.center = v.Center
		r := v.Radius
		for _, op := range v.Ops {
			d := op.D
			if d[0] < -r || d[0] > r || d[1] < -r || d[1] > r || d[2] < -r || d[2] > r {
				continue
			}
			s.voxels.ids[protocol.VoxelIndex(r, d)] = op.B
		}
	}
}

// FindBlocks implements world.World over the last observed cube.
func (s *Session) FindBlocks(maxDistance float64, count int, match func(world.Block) bool) []world.Block {
	s.mu.RLock()
	origin := s.self.Pos
	cube := s.voxels
	var blocks []world.Block
	if len(cube.ids) > 0 && len(s.palette) > 0 {
		r := cube.radius
		i := 0
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				for dx := -r; dx <= r; dx++ {
					id := cube.ids[i]
					i++
					if int(id) >= len(s.palette) || s.palette[id] == blockAir {
						continue
					}
					blocks = append(blocks, world.Block{
						Pos:  world.BlockPos{X: cube.center[0] + dx, Y: cube.center[1] + dy, Z: cube.center[2] + dz},
						Name: s.palette[id],
					})
				}
			}
		}
	}
	s.mu.RUnlock()
	return world.NearestBlocks(origin, blocks, maxDistance, count, match)
}
