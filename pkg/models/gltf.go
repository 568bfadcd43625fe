package models

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/occlude/pkg/math3d"
)

// GLTFLoader loads GLTF/GLB files into Mesh format.
type GLTFLoader struct {
	// CalculateNormals fills in normals when the file has none.
	CalculateNormals bool
	SmoothNormals    bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
	}
}

// LoadGLB loads a binary GLTF (.glb) file.
func LoadGLB(path string) (*Mesh, error) {
	return NewGLTFLoader().Load(path)
}

// LoadGLBWithTexture loads a GLTF or GLB file and returns the mesh plus the
// first image of the document that decodes, or nil when there is none.
func LoadGLBWithTexture(path string) (*Mesh, image.Image, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open gltf: %w", err)
	}
	images := decodeImages(doc, filepath.Dir(path))
	mesh, err := NewGLTFLoader().build(doc, filepath.Base(path), images)
	if err != nil {
		return nil, nil, err
	}
	for _, img := range images {
		if img != nil {
			return mesh, img, nil
		}
	}
	return mesh, nil, nil
}

// Load loads a GLTF or GLB file and returns a Mesh.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return l.build(doc, filepath.Base(path), decodeImages(doc, filepath.Dir(path)))
}

// build converts every triangle primitive of doc. images holds the decoded
// document images by index.
func (l *GLTFLoader) build(doc *gltf.Document, name string, images []image.Image) (*Mesh, error) {
	mesh := NewMesh(name)
	for _, m := range doc.Materials {
		mesh.Materials = append(mesh.Materials, convertMaterial(doc, m, images))
	}
	for _, m := range doc.Meshes {
		for i, prim := range m.Primitives {
			if err := addPrimitive(doc, prim, mesh); err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
			}
		}
	}

	if l.CalculateNormals && !hasNormals(mesh) {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}
	mesh.CalculateBounds()
	return mesh, nil
}

func hasNormals(m *Mesh) bool {
	for _, v := range m.Vertices {
		if v.Normal.Len() > 0.001 {
			return true
		}
	}
	return false
}

// addPrimitive appends the vertices and faces of a triangle primitive.
// Lines and points are skipped.
func addPrimitive(doc *gltf.Document, prim *gltf.Primitive, mesh *Mesh) error {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}
	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return fmt.Errorf("read normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return fmt.Errorf("read uvs: %w", err)
		}
	}

	base := len(mesh.Vertices)
	for i, p := range positions {
		v := MeshVertex{Position: vec3(p)}
		if i < len(normals) {
			v.Normal = vec3(normals[i])
		}
		if i < len(uvs) {
			// GLTF puts V=0 on the top row of the image.
			v.UV = math3d.V2(float64(uvs[i][0]), 1-float64(uvs[i][1]))
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	material := -1
	if prim.Material != nil {
		material = *prim.Material
	}
	// Both GLTF and the rasterizer treat counter-clockwise as front facing.
	for i := 0; i+2 < len(indices); i += 3 {
		face := Face{Material: material}
		for j := range 3 {
			vi := int(indices[i+j])
			if vi >= len(positions) {
				return fmt.Errorf("index %d out of %d vertices", vi, len(positions))
			}
			face.V[j] = base + vi
		}
		mesh.Faces = append(mesh.Faces, face)
	}
	return nil
}

func vec3(v [3]float32) math3d.Vec3 {
	return math3d.V3(float64(v[0]), float64(v[1]), float64(v[2]))
}

// convertMaterial reads the metallic-roughness parameters of m. Missing
// factors take their GLTF defaults.
func convertMaterial(doc *gltf.Document, m *gltf.Material, images []image.Image) Material {
	mat := Material{
		Name:        m.Name,
		BaseColor:   [4]float64{1, 1, 1, 1},
		Metallic:    1,
		Roughness:   1,
		DoubleSided: m.DoubleSided,
		Blend:       m.AlphaMode == gltf.AlphaBlend,
	}
	pbr := m.PBRMetallicRoughness
	if pbr == nil {
		return mat
	}
	if pbr.BaseColorFactor != nil {
		mat.BaseColor = *pbr.BaseColorFactor
	}
	if pbr.MetallicFactor != nil {
		mat.Metallic = *pbr.MetallicFactor
	}
	if pbr.RoughnessFactor != nil {
		mat.Roughness = *pbr.RoughnessFactor
	}
	if pbr.BaseColorTexture != nil {
		mat.BaseMap = textureImage(doc, pbr.BaseColorTexture.Index, images)
		mat.HasTexture = mat.BaseMap != nil
	}
	return mat
}

// textureImage returns the decoded source image of texture index, or nil.
func textureImage(doc *gltf.Document, index int, images []image.Image) image.Image {
	if index < 0 || index >= len(doc.Textures) {
		return nil
	}
	src := doc.Textures[index].Source
	if src == nil || *src < 0 || *src >= len(images) {
		return nil
	}
	return images[*src]
}

// decodeImages decodes every image of doc, from its buffer view or from a
// file next to the document. Images that fail to load are nil.
func decodeImages(doc *gltf.Document, dir string) []image.Image {
	images := make([]image.Image, len(doc.Images))
	for i, img := range doc.Images {
		var data []byte
		switch {
		case img.BufferView != nil:
			bv := doc.BufferViews[*img.BufferView]
			buf := doc.Buffers[bv.Buffer]
			if end := bv.ByteOffset + bv.ByteLength; end <= len(buf.Data) {
				data = buf.Data[bv.ByteOffset:end]
			}
		case img.URI != "" && !img.IsEmbeddedResource():
			data, _ = os.ReadFile(filepath.Join(dir, img.URI))
		case img.IsEmbeddedResource():
			data, _ = img.MarshalData()
		}
		if len(data) == 0 {
			continue
		}
		if decoded, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			images[i] = decoded
		}
	}
	return images
}
