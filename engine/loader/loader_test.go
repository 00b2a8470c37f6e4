package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/soft_device"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

func ptr[T any](v T) *T { return &v }

// quadBuffer holds an upward facing unit quad in the XZ plane: positions, texture
// coordinates and six uint16 indices.
func quadBuffer() []byte {
	var buf bytes.Buffer
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}
	uvs := [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	indices := []uint16{0, 3, 2, 0, 2, 1}
	binary.Write(&buf, binary.LittleEndian, positions)
	binary.Write(&buf, binary.LittleEndian, uvs)
	binary.Write(&buf, binary.LittleEndian, indices)
	return buf.Bytes()
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// testDocument describes a courtyard: a translated parent node whose scaled child draws a
// two-primitive mesh (red opaque, textured cut-out), plus a root node drawing an
// unmaterialed mesh.
func testDocument(t *testing.T, bufferURI string, byteLength int) gltfDocument {
	t.Helper()
	attrs := map[string]int{"POSITION": 0, "TEXCOORD_0": 1}
	return gltfDocument{
		Asset:  gltfAsset{Version: "2.0"},
		Scene:  ptr(0),
		Scenes: []gltfScene{{Name: "yard", Nodes: []int{0, 2}}},
		Nodes: []gltfNode{
			{Name: "parent", Translation: &[3]float32{10, 0, 0}, Children: []int{1}},
			{Name: "tile", Mesh: ptr(0), Scale: &[3]float32{2, 2, 2}},
			{Mesh: ptr(1)},
		},
		Meshes: []gltfMesh{
			{Name: "quads", Primitives: []gltfPrimitive{
				{Attributes: attrs, Indices: ptr(2), Material: ptr(0)},
				{Attributes: attrs, Indices: ptr(2), Material: ptr(1)},
			}},
			{Primitives: []gltfPrimitive{{Attributes: attrs, Indices: ptr(2)}}},
		},
		Accessors: []gltfAccessor{
			{BufferView: ptr(0), ComponentType: gltfComponentTypeFloat, Count: 4, Type: gltfAccessorTypeVec3},
			{BufferView: ptr(1), ComponentType: gltfComponentTypeFloat, Count: 4, Type: gltfAccessorTypeVec2},
			{BufferView: ptr(2), ComponentType: gltfComponentTypeUnsignedShort, Count: 6, Type: gltfAccessorTypeScalar},
		},
		BufferViews: []gltfBufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 48},
			{Buffer: 0, ByteOffset: 48, ByteLength: 32},
			{Buffer: 0, ByteOffset: 80, ByteLength: 12},
		},
		Buffers: []gltfBuffer{{URI: bufferURI, ByteLength: byteLength}},
		Materials: []gltfMaterial{
			{Name: "brick", PbrMetallicRoughness: &gltfPbrMetallicRoughness{BaseColorFactor: &[4]float32{1, 0, 0, 1}}},
			{Name: "leaves", AlphaMode: gltfAlphaModeMask, PbrMetallicRoughness: &gltfPbrMetallicRoughness{
				BaseColorTexture: &gltfTextureInfo{Index: 0},
			}},
		},
		Textures: []gltfTexture{{Source: ptr(0)}},
		Images:   []gltfImage{{URI: pngDataURI(t)}},
	}
}

func marshalDocument(t *testing.T, doc gltfDocument) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return data
}

func embeddedDocument(t *testing.T) []byte {
	t.Helper()
	buf := quadBuffer()
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf)
	return marshalDocument(t, testDocument(t, uri, len(buf)))
}

func newTestLoader() Loader {
	return NewLoader(WithLogger(zap.NewNop()))
}

func approx(a, b [3]float32) bool {
	for i := range 3 {
		if math.Abs(float64(a[i]-b[i])) > 1e-5 {
			return false
		}
	}
	return true
}

func TestLoadReaderFlattensHierarchy(t *testing.T) {
	m, err := newTestLoader().LoadReader("yard.gltf", bytes.NewReader(embeddedDocument(t)), false)
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	if m.Name != "yard" {
		t.Errorf("Name = %q, want yard", m.Name)
	}
	if len(m.Submeshes) != 3 {
		t.Fatalf("got %d submeshes, want 3", len(m.Submeshes))
	}

	tile := m.Submeshes[0]
	if tile.Name != "tile_0" || tile.Material != 0 {
		t.Errorf("first submesh = %s/material %d", tile.Name, tile.Material)
	}
	// parent translation (10, 0, 0) after child scale 2
	if got := tile.Primitive.Vertices[2].Position; !approx(got, [3]float32{12, 0, 2}) {
		t.Errorf("vertex 2 = %v, want [12 0 2]", got)
	}
	for i, v := range tile.Primitive.Vertices {
		if !approx(v.Normal, [3]float32{0, 1, 0}) {
			t.Errorf("generated normal %d = %v, want up", i, v.Normal)
		}
	}
	if got := tile.Primitive.Vertices[2].TexCoord; got != [2]float32{1, 1} {
		t.Errorf("texcoord 2 = %v", got)
	}

	root := m.Submeshes[2]
	if got := root.Primitive.Vertices[2].Position; !approx(got, [3]float32{1, 0, 1}) {
		t.Errorf("untransformed vertex = %v", got)
	}
	if root.Material != 2 || m.Materials[2].Name != defaultMaterialName {
		t.Errorf("unmaterialed primitive uses %d of %d materials", root.Material, len(m.Materials))
	}
}

func TestMaterials(t *testing.T) {
	m, err := newTestLoader().LoadReader("yard", bytes.NewReader(embeddedDocument(t)), false)
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}

	brick := m.Materials[0]
	if brick.AlphaTest {
		t.Error("brick should be opaque")
	}
	if brick.Albedo.Width != 1 || !bytes.Equal(brick.Albedo.Pixels, []byte{255, 0, 0, 255}) {
		t.Errorf("brick albedo = %dx%d %v", brick.Albedo.Width, brick.Albedo.Height, brick.Albedo.Pixels)
	}

	leaves := m.Materials[1]
	if !leaves.AlphaTest {
		t.Error("MASK material should be alpha-tested")
	}
	if leaves.Albedo.Width != 2 || leaves.Albedo.Height != 2 || leaves.Albedo.Layers != 1 {
		t.Fatalf("leaves albedo = %dx%dx%d", leaves.Albedo.Width, leaves.Albedo.Height, leaves.Albedo.Layers)
	}
	if a := leaves.Albedo.Pixels[3*4+3]; a != 0 {
		t.Errorf("transparent texel alpha = %d", a)
	}
	if a := leaves.Albedo.Pixels[3]; a != 255 {
		t.Errorf("opaque texel alpha = %d", a)
	}
}

func TestLoadGLB(t *testing.T) {
	bin := quadBuffer()
	js := marshalDocument(t, testDocument(t, "", len(bin)))
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var glb bytes.Buffer
	binary.Write(&glb, binary.LittleEndian, gltfGLBHeader{
		Magic:   gltfGLBMagic,
		Version: gltfGLBVersion,
		Length:  uint32(12 + 8 + len(js) + 8 + len(bin)),
	})
	binary.Write(&glb, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	glb.Write(js)
	binary.Write(&glb, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	glb.Write(bin)

	path := filepath.Join(t.TempDir(), "yard.glb")
	if err := os.WriteFile(path, glb.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	l := newTestLoader()
	m, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Submeshes) != 3 || m.TriangleCount() != 6 {
		t.Errorf("got %d submeshes, %d triangles", len(m.Submeshes), m.TriangleCount())
	}
	again, err := l.Load(path)
	if err != nil || again != m {
		t.Error("second Load should be served from the cache")
	}
	if len(l.Models()) != 1 {
		t.Errorf("cache holds %d models", len(l.Models()))
	}
}

func TestLoadExternalBuffer(t *testing.T) {
	dir := t.TempDir()
	buf := quadBuffer()
	if err := os.WriteFile(filepath.Join(dir, "quad.bin"), buf, 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "quad.gltf")
	if err := os.WriteFile(path, marshalDocument(t, testDocument(t, "quad.bin", len(buf))), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestLoader().Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	buf := quadBuffer()
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf)

	tests := []struct {
		name   string
		mutate func(*gltfDocument)
		want   error
	}{
		{"version", func(d *gltfDocument) { d.Asset.Version = "1.0" }, ErrInvalidModel},
		{"lines", func(d *gltfDocument) { d.Meshes[1].Primitives[0].Mode = ptr(1) }, ErrUnsupported},
		{"no position", func(d *gltfDocument) { d.Meshes[1].Primitives[0].Attributes = map[string]int{} }, ErrInvalidModel},
		{"short buffer", func(d *gltfDocument) { d.Buffers[0].ByteLength = 1000 }, ErrInvalidModel},
		{"view overrun", func(d *gltfDocument) { d.Accessors[0].Count = 40 }, ErrInvalidModel},
		{"material range", func(d *gltfDocument) { d.Meshes[1].Primitives[0].Material = ptr(7) }, ErrInvalidModel},
		{"node cycle", func(d *gltfDocument) { d.Nodes[1].Children = []int{0} }, ErrInvalidModel},
		{"required extension", func(d *gltfDocument) { d.ExtensionsRequired = []string{"KHR_draco_mesh_compression"} }, ErrUnsupported},
		{"bad index", func(d *gltfDocument) { d.Accessors[2].ComponentType = gltfComponentTypeFloat }, ErrInvalidModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument(t, uri, len(buf))
			tt.mutate(&doc)
			_, err := newTestLoader().LoadReader(tt.name, bytes.NewReader(marshalDocument(t, doc)), false)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadRejectsFormat(t *testing.T) {
	_, err := newTestLoader().Load("sponza.obj")
	if !errors.Is(err, ErrUnsupported) || !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestMirroredNodeKeepsWinding(t *testing.T) {
	p := scene.Primitive{
		Vertices: []scene.GPUVertex{
			{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 1, 0}},
			{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 1, 0}},
			{Position: [3]float32{0, 0, 1}, Normal: [3]float32{0, 1, 0}},
		},
		Indices: []uint32{0, 2, 1},
	}
	transformPrimitive(&p, nodeMatrix(&gltfNode{Scale: &[3]float32{-1, 1, 1}}))

	if got := p.Indices; got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("indices = %v, want winding flipped to [0 1 2]", got)
	}
	if got := p.Vertices[1].Position; !approx(got, [3]float32{-1, 0, 0}) {
		t.Errorf("mirrored vertex = %v", got)
	}
	if !approx(p.Vertices[0].Normal, [3]float32{0, 1, 0}) {
		t.Errorf("normal = %v, want up", p.Vertices[0].Normal)
	}
}

func TestNodeRotation(t *testing.T) {
	// a quarter turn about +Y maps +X to -Z
	s := float32(math.Sqrt2 / 2)
	m := nodeMatrix(&gltfNode{Rotation: &[4]float32{0, s, 0, s}, Translation: &[3]float32{0, 5, 0}})
	p := scene.Primitive{Vertices: []scene.GPUVertex{{Position: [3]float32{1, 0, 0}}}}
	transformPrimitive(&p, m)
	if got := p.Vertices[0].Position; !approx(got, [3]float32{0, 5, -1}) {
		t.Errorf("rotated vertex = %v, want [0 5 -1]", got)
	}
}

func TestModelNewScene(t *testing.T) {
	m, err := newTestLoader().LoadReader("yard", bytes.NewReader(embeddedDocument(t)), false)
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}

	dev := soft_device.New(soft_device.WithWorkers(1), soft_device.WithLogger(zap.NewNop()))
	defer dev.Release()

	sc, err := m.NewScene(dev)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	if sc.Name() != "yard" {
		t.Errorf("scene name = %q", sc.Name())
	}
	if n := len(sc.OpaqueMesh().Submeshes()); n != 2 {
		t.Errorf("opaque submeshes = %d, want 2", n)
	}
	if n := len(sc.AlphaTestMesh().Submeshes()); n != 1 {
		t.Errorf("alpha-tested submeshes = %d, want 1", n)
	}
	if n := len(sc.Materials()); n != 3 {
		t.Errorf("materials = %d, want 3", n)
	}

	sc.Release()
	if live := dev.Stats().Live(); live != 0 {
		t.Errorf("%d resources live after Release", live)
	}
}
