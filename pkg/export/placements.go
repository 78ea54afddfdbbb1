package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/scatter"
)

// DumpVersion is written into every placement dump
const DumpVersion = 1

// zstd frame magic, used to detect compressed dumps on read
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// PlacementRecord is the serialized form of one placement.
// Rotation is a quaternion in glTF order (x, y, z, w); Euler is XYZ radians.
type PlacementRecord struct {
	Candidate int        `json:"candidate"`
	Name      string     `json:"name"`
	Position  [3]float64 `json:"position"`
	Normal    [3]float64 `json:"normal"`
	Rotation  [4]float64 `json:"rotation"`
	Euler     [3]float64 `json:"euler"`
	Scale     float64    `json:"scale"`
	Surface   int        `json:"surface"`
	SurfaceID string     `json:"surfaceId"`
	Triangle  int        `json:"triangle"`
}

// Dump is the document written by WritePlacements
type Dump struct {
	Version    int               `json:"version"`
	Placements []PlacementRecord `json:"placements"`
	Report     scatter.Report    `json:"report"`
}

// NewRecord converts a placement to its serialized form
func NewRecord(p scatter.Placement) PlacementRecord {
	euler := p.Orientation.Euler()
	return PlacementRecord{
		Candidate: p.Candidate,
		Name:      p.CandidateName,
		Position:  [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Normal:    [3]float64{p.Normal.X, p.Normal.Y, p.Normal.Z},
		Rotation:  p.Orientation.Array(),
		Euler:     [3]float64{euler.X, euler.Y, euler.Z},
		Scale:     p.Scale,
		Surface:   p.Surface,
		SurfaceID: p.SurfaceID,
		Triangle:  p.Triangle,
	}
}

// Placement converts the record back; Euler is derived data and is ignored
func (r PlacementRecord) Placement() scatter.Placement {
	return scatter.Placement{
		Candidate:     r.Candidate,
		CandidateName: r.Name,
		Position:      core.NewVec3(r.Position[0], r.Position[1], r.Position[2]),
		Normal:        core.NewVec3(r.Normal[0], r.Normal[1], r.Normal[2]),
		Orientation:   core.QuatFromArray(r.Rotation),
		Scale:         r.Scale,
		Surface:       r.Surface,
		SurfaceID:     r.SurfaceID,
		Triangle:      r.Triangle,
	}
}

// WritePlacements writes the result as JSON, zstd-compressed when compress is set
func WritePlacements(w io.Writer, result *scatter.Result, compress bool) error {
	dump := Dump{
		Version:    DumpVersion,
		Placements: make([]PlacementRecord, len(result.Placements)),
		Report:     result.Report,
	}
	for i, p := range result.Placements {
		dump.Placements[i] = NewRecord(p)
	}

	content, err := json.Marshal(dump)
	if err != nil {
		return fmt.Errorf("failed to encode placements: %w", err)
	}

	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		defer enc.Close()
		content = enc.EncodeAll(content, nil)
	}

	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("failed to write placements: %w", err)
	}
	return nil
}

// ReadPlacements reads a dump written by WritePlacements, compressed or not
func ReadPlacements(r io.Reader) (*scatter.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read placements: %w", err)
	}

	if bytes.HasPrefix(content, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if content, err = dec.DecodeAll(content, nil); err != nil {
			return nil, fmt.Errorf("failed to decompress placements: %w", err)
		}
	}

	var dump Dump
	if err := json.Unmarshal(content, &dump); err != nil {
		return nil, fmt.Errorf("failed to decode placements: %w", err)
	}
	if dump.Version != DumpVersion {
		return nil, fmt.Errorf("unsupported placement dump version %d", dump.Version)
	}

	result := &scatter.Result{
		Placements: make([]scatter.Placement, len(dump.Placements)),
		Report:     dump.Report,
	}
	for i, rec := range dump.Placements {
		result.Placements[i] = rec.Placement()
	}
	return result, nil
}
