package uvclean

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/df07/go-surface-scatter/pkg/core"
)

// PrimitiveReport is the outcome for one primitive
type PrimitiveReport struct {
	Mesh      string       `json:"mesh"`
	Primitive int          `json:"primitive"`
	Sets      []UVAnalysis `json:"sets"`
	Removed   []string     `json:"removed,omitempty"`
	AllEmpty  bool         `json:"allEmpty"` // Every set was empty, so none were removed
}

// CleanReport summarizes a Clean pass
type CleanReport struct {
	Primitives []PrimitiveReport `json:"primitives"`
	Processed  int               `json:"processed"`
	Deleted    int               `json:"deleted"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// String returns a multi-line human readable summary
func (r CleanReport) String() string {
	var b strings.Builder
	for _, p := range r.Primitives {
		fmt.Fprintf(&b, "%s[%d]: %d UV maps\n", p.Mesh, p.Primitive, len(p.Sets))
		for _, a := range p.Sets {
			fmt.Fprintf(&b, "  %s\n", a)
		}
		switch {
		case len(p.Removed) > 0:
			fmt.Fprintf(&b, "  removed %s\n", strings.Join(p.Removed, ", "))
		case p.AllEmpty:
			b.WriteString("  all UV maps are empty, keeping them\n")
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	fmt.Fprintf(&b, "Processed %d primitives, deleted %d empty UV maps\n", r.Processed, r.Deleted)
	return b.String()
}

// Clean removes empty UV sets from every triangle primitive that keeps at least one
// non-empty set. Remaining sets are renumbered densely and material texture
// references follow the renumbering.
func Clean(doc *gltf.Document) (*CleanReport, error) {
	report := &CleanReport{}
	remapped := make(map[int]map[int]int) // material index -> applied mapping

	for mi, mesh := range doc.Meshes {
		name := mesh.Name
		if name == "" {
			name = fmt.Sprintf("mesh%d", mi)
		}

		for pi, prim := range mesh.Primitives {
			sets := UVSets(prim)
			if len(sets) == 0 || prim.Mode != gltf.PrimitiveTriangles {
				continue
			}

			pr := PrimitiveReport{Mesh: name, Primitive: pi}
			empty := make(map[int]bool)
			for _, set := range sets {
				analysis, err := AnalyzeUVSet(doc, prim, set)
				if err != nil {
					return nil, fmt.Errorf("%s primitive %d: %w", name, pi, err)
				}
				pr.Sets = append(pr.Sets, analysis)
				empty[set] = analysis.Empty
			}
			report.Processed++

			kept := 0
			for _, set := range sets {
				if !empty[set] {
					kept++
				}
			}

			switch {
			case kept == 0:
				pr.AllEmpty = true
			case kept < len(sets):
				mapping := renumberSets(prim, sets, empty)
				for _, set := range sets {
					if empty[set] {
						pr.Removed = append(pr.Removed, SetName(set))
					}
				}
				report.Deleted += len(pr.Removed)

				if prim.Material != nil {
					material := *prim.Material
					if previous, done := remapped[material]; done {
						if !sameMapping(previous, mapping) {
							report.Warnings = append(report.Warnings,
								fmt.Sprintf("material %d is shared by primitives with different UV layouts", material))
						}
					} else if material < len(doc.Materials) {
						remapped[material] = mapping
						report.Warnings = append(report.Warnings, remapMaterial(doc.Materials[material], material, mapping)...)
					}
				}
			}
			report.Primitives = append(report.Primitives, pr)
		}
	}

	return report, nil
}

// renumberSets drops empty sets and shifts the rest down; returns old -> new for kept sets
func renumberSets(prim *gltf.Primitive, sets []int, empty map[int]bool) map[int]int {
	accessors := make(map[int]int)
	for _, set := range sets {
		accessors[set] = prim.Attributes[SetName(set)]
		delete(prim.Attributes, SetName(set))
	}

	mapping := make(map[int]int)
	next := 0
	for _, set := range sets {
		if empty[set] {
			continue
		}
		mapping[set] = next
		prim.Attributes[SetName(next)] = accessors[set]
		next++
	}
	return mapping
}

func sameMapping(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// remapMaterial rewrites texture coordinate references; references to removed sets are reported
func remapMaterial(m *gltf.Material, index int, mapping map[int]int) []string {
	var warnings []string
	remap := func(slot string, texCoord *int) {
		if next, ok := mapping[*texCoord]; ok {
			*texCoord = next
		} else {
			warnings = append(warnings, fmt.Sprintf("material %d %s uses removed UV set %d", index, slot, *texCoord))
		}
	}

	if pbr := m.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorTexture != nil {
			remap("baseColorTexture", &pbr.BaseColorTexture.TexCoord)
		}
		if pbr.MetallicRoughnessTexture != nil {
			remap("metallicRoughnessTexture", &pbr.MetallicRoughnessTexture.TexCoord)
		}
	}
	if m.NormalTexture != nil {
		remap("normalTexture", &m.NormalTexture.TexCoord)
	}
	if m.OcclusionTexture != nil {
		remap("occlusionTexture", &m.OcclusionTexture.TexCoord)
	}
	if m.EmissiveTexture != nil {
		remap("emissiveTexture", &m.EmissiveTexture.TexCoord)
	}
	return warnings
}

// CleanFile cleans a .gltf/.glb file and writes the result to out (which may equal in)
func CleanFile(in, out string, logger core.Logger) (*CleanReport, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}

	doc, err := gltf.Open(in)
	if err != nil {
		return nil, fmt.Errorf("failed to open glTF file: %w", err)
	}

	report, err := Clean(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}
	logger.Printf("%s", report)

	if strings.EqualFold(filepath.Ext(out), ".gltf") {
		err = gltf.Save(doc, out)
	} else {
		err = gltf.SaveBinary(doc, out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}
	return report, nil
}
