package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Voxel encodings.
const (
	EncodingRLE   = "RLE"
	EncodingDelta = "DELTA"
)

// CatalogBlockPalette names the catalog that maps voxel ids to block names.
const CatalogBlockPalette = "block_palette"

// VoxelsObs is the cube of blocks around Center. Cells are ordered dy, then
// dz, then dx, each running from -Radius to Radius.
type VoxelsObs struct {
	Center   [3]int         `json:"center"`
	Radius   int            `json:"radius"`
	Encoding string         `json:"encoding"` // "RLE" or "DELTA"
	Data     string         `json:"data,omitempty"`
	Ops      []VoxelDeltaOp `json:"ops,omitempty"`
}

type VoxelDeltaOp struct {
	D [3]int `json:"d"` // delta from center (dx,dy,dz)
	B uint16 `json:"b"` // block palette id
}

// VoxelCount is the number of cells in a cube of radius r.
func VoxelCount(r int) int {
	dim := 2*r + 1
	return dim * dim * dim
}

// VoxelIndex is the offset of the cell at d from the center.
func VoxelIndex(r int, d [3]int) int {
	dim := 2*r + 1
	return ((d[1]+r)*dim+(d[2]+r))*dim + (d[0] + r)
}

// EncodeRLE encodes a sequence of palette ids into base64(varint pairs).
// The pairs are (block_id, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b; j++ {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. Output longer than limit is an error.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("block id too large: %d", b)
		}
		if run > uint64(limit-len(out)) {
			return nil, fmt.Errorf("voxel data longer than %d", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}
