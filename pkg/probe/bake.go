package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taigrr/occlude/pkg/dds"
)

// BakePaths returns the files Bake writes for probe h of the map at
// mapName: a directory named after the map without its extension holding
// DiffuseProbe-<h>.dds and SpecularProbe-<h>.dds.
func BakePaths(mapName string, h Handle) (diffuse, specular string) {
	dir := strings.TrimSuffix(mapName, filepath.Ext(mapName))
	return filepath.Join(dir, fmt.Sprintf("DiffuseProbe-%d.dds", h)),
		filepath.Join(dir, fmt.Sprintf("SpecularProbe-%d.dds", h))
}

// Bake writes the current diffuse and specular sums of the probe to the
// paths returned by BakePaths. The diffuse cube keeps only its first
// level; the specular cube keeps its full mip chain. HDR probes are stored
// as packed R11G11B10 floats, the others as RGBA8.
func (p *Probe) Bake(mapName string) (diffusePath, specularPath string, err error) {
	rp := p.world.EnvProbe(p.probeHandle)
	if rp == nil {
		return "", "", fmt.Errorf("bake: probe is not registered")
	}
	diffusePath, specularPath = BakePaths(mapName, p.probeHandle)
	if err := os.MkdirAll(filepath.Dir(diffusePath), 0o755); err != nil {
		return "", "", fmt.Errorf("bake: %w", err)
	}

	format := dds.FormatRGBA8
	if p.def.UseHDR {
		format = dds.FormatR11G11B10F
	}
	diffuse := firstLevel(rp.DiffuseSumCube())
	if err := dds.WriteFile(diffusePath, diffuse, format); err != nil {
		return "", "", fmt.Errorf("bake diffuse: %w", err)
	}
	if err := dds.WriteFile(specularPath, rp.SpecularSumCube(), format); err != nil {
		return "", "", fmt.Errorf("bake specular: %w", err)
	}
	Logger().Info("baked env probe",
		"handle", p.probeHandle,
		"diffuse", diffusePath,
		"specular", specularPath,
		"format", format,
	)
	return diffusePath, specularPath, nil
}

// firstLevel returns img limited to its first mip level.
func firstLevel(img *dds.Image) *dds.Image {
	out := *img
	out.Faces = make([][]dds.Surface, len(img.Faces))
	for i, face := range img.Faces {
		out.Faces[i] = face[:1]
	}
	return &out
}
