package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

var (
	errInvalidGLTFVersion = fmt.Errorf("%w: glTF version must be 2.x", ErrInvalidModel)
	errInvalidGLBMagic    = fmt.Errorf("%w: bad GLB magic", ErrInvalidModel)
	errInvalidGLBVersion  = fmt.Errorf("%w: GLB version must be 2", ErrInvalidModel)
	errMissingJSONChunk   = fmt.Errorf("%w: GLB has no JSON chunk", ErrInvalidModel)
	errBufferSizeMismatch = fmt.Errorf("%w: buffer shorter than its byteLength", ErrInvalidModel)
)

// gltfParser loads a glTF or GLB document with its buffers and reads typed accessor data.
type gltfParser struct {
	baseDir  string
	document *gltfDocument
	glbChunk []byte
}

// newGLTFParser creates a parser resolving external URIs against baseDir.
//
// Parameters:
//   - baseDir: the directory relative buffer and image URIs are resolved against
//
// Returns:
//   - *gltfParser: the parser
func newGLTFParser(baseDir string) *gltfParser {
	return &gltfParser{baseDir: baseDir}
}

// parseFile reads path and detects the container from the extension or the GLB magic.
func (p *gltfParser) parseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	isGLB := strings.EqualFold(filepath.Ext(path), ".glb") ||
		(len(data) >= 4 && binary.LittleEndian.Uint32(data) == gltfGLBMagic)
	return p.parse(data, isGLB)
}

// parseReader reads the whole stream before parsing.
func (p *gltfParser) parseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return p.parse(data, isGLB)
}

func (p *gltfParser) parse(data []byte, isGLB bool) error {
	if isGLB {
		var err error
		if data, err = p.splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if len(doc.ExtensionsRequired) > 0 {
		return fmt.Errorf("%w: required extensions %v", ErrUnsupported, doc.ExtensionsRequired)
	}
	if err := p.loadBuffers(&doc); err != nil {
		return err
	}
	p.document = &doc
	return nil
}

// splitGLB returns the JSON chunk of a GLB container and keeps its BIN chunk for buffer 0.
func (p *gltfParser) splitGLB(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: GLB header: %v", ErrInvalidModel, err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return nil, errInvalidGLBVersion
	}

	var jsonChunk []byte
	for {
		var ch gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: GLB chunk header: %v", ErrInvalidModel, err)
		}
		chunk := make([]byte, ch.ChunkLength)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("%w: GLB chunk: %v", ErrInvalidModel, err)
		}
		switch ch.ChunkType {
		case gltfGLBChunkJSON:
			jsonChunk = chunk
		case gltfGLBChunkBIN:
			p.glbChunk = chunk
		}
	}
	if jsonChunk == nil {
		return nil, errMissingJSONChunk
	}
	return jsonChunk, nil
}

func (p *gltfParser) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && p.glbChunk != nil:
			buf.Data = p.glbChunk
		case buf.URI == "":
			return fmt.Errorf("%w: buffer %d has no data", ErrInvalidModel, i)
		default:
			data, err := p.loadURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}
		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

// loadURI resolves a base64 data URI or a file relative to the document.
func (p *gltfParser) loadURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		data, _, err := decodeDataURI(uri)
		return data, err
	}
	return os.ReadFile(filepath.Join(p.baseDir, filepath.FromSlash(uri)))
}

// decodeDataURI decodes data:[<mediatype>];base64,<data> and returns the media type.
func decodeDataURI(uri string) ([]byte, string, error) {
	comma := strings.IndexByte(uri, ',')
	if !strings.HasPrefix(uri, "data:") || comma < 0 {
		return nil, "", fmt.Errorf("%w: malformed data URI", ErrInvalidModel)
	}
	header := uri[len("data:"):comma]
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: data URI encoding %q", ErrUnsupported, header)
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return data, mime, nil
}

// bufferView returns the bytes of a buffer view.
func (p *gltfParser) bufferView(index int) ([]byte, error) {
	doc := p.document
	if index < 0 || index >= len(doc.BufferViews) {
		return nil, fmt.Errorf("%w: bufferView %d out of range", ErrInvalidModel, index)
	}
	bv := &doc.BufferViews[index]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, fmt.Errorf("%w: buffer %d out of range", ErrInvalidModel, bv.Buffer)
	}
	data := doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if bv.ByteOffset < 0 || end > len(data) {
		return nil, fmt.Errorf("%w: bufferView %d exceeds its buffer", ErrInvalidModel, index)
	}
	return data[bv.ByteOffset:end], nil
}

// accessorElements returns one byte slice per element of an accessor, honoring the view stride.
func (p *gltfParser) accessorElements(index int) (*gltfAccessor, [][]byte, error) {
	doc := p.document
	if index < 0 || index >= len(doc.Accessors) {
		return nil, nil, fmt.Errorf("%w: accessor %d out of range", ErrInvalidModel, index)
	}
	acc := &doc.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("%w: sparse accessor %d", ErrUnsupported, index)
	}
	if acc.BufferView == nil {
		return nil, nil, fmt.Errorf("%w: accessor %d has no bufferView", ErrUnsupported, index)
	}
	view, err := p.bufferView(*acc.BufferView)
	if err != nil {
		return nil, nil, err
	}

	elemSize := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elemSize == 0 {
		return nil, nil, fmt.Errorf("%w: accessor %d has type %s/%d", ErrInvalidModel, index, acc.Type, acc.ComponentType)
	}
	stride := elemSize
	if bv := doc.BufferViews[*acc.BufferView]; bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	if acc.Count > 0 && acc.ByteOffset+(acc.Count-1)*stride+elemSize > len(view) {
		return nil, nil, fmt.Errorf("%w: accessor %d exceeds its bufferView", ErrInvalidModel, index)
	}

	elems := make([][]byte, acc.Count)
	for i := range elems {
		off := acc.ByteOffset + i*stride
		elems[i] = view[off : off+elemSize]
	}
	return acc, elems, nil
}

// readFloats reads an accessor of n-component vectors as float32. Normalized integer
// components are mapped to [0, 1] or [-1, 1].
func (p *gltfParser) readFloats(index, n int) ([][4]float32, error) {
	acc, elems, err := p.accessorElements(index)
	if err != nil {
		return nil, err
	}
	if componentCount(acc.Type) != n {
		return nil, fmt.Errorf("%w: accessor %d is %s, want %d components", ErrInvalidModel, index, acc.Type, n)
	}
	if acc.ComponentType != gltfComponentTypeFloat && !acc.Normalized {
		return nil, fmt.Errorf("%w: accessor %d is not float or normalized", ErrUnsupported, index)
	}

	size := componentSize(acc.ComponentType)
	out := make([][4]float32, len(elems))
	for i, e := range elems {
		for c := range n {
			b := e[c*size:]
			switch acc.ComponentType {
			case gltfComponentTypeFloat:
				out[i][c] = math.Float32frombits(binary.LittleEndian.Uint32(b))
			case gltfComponentTypeUnsignedByte:
				out[i][c] = float32(b[0]) / 255
			case gltfComponentTypeUnsignedShort:
				out[i][c] = float32(binary.LittleEndian.Uint16(b)) / 65535
			case gltfComponentTypeByte:
				out[i][c] = max(float32(int8(b[0]))/127, -1)
			case gltfComponentTypeShort:
				out[i][c] = max(float32(int16(binary.LittleEndian.Uint16(b)))/32767, -1)
			default:
				return nil, fmt.Errorf("%w: accessor %d component type %d", ErrUnsupported, index, acc.ComponentType)
			}
		}
	}
	return out, nil
}

// readIndices reads a scalar unsigned index accessor.
func (p *gltfParser) readIndices(index int) ([]uint32, error) {
	acc, elems, err := p.accessorElements(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("%w: index accessor %d is %s", ErrInvalidModel, index, acc.Type)
	}
	out := make([]uint32, len(elems))
	for i, e := range elems {
		switch acc.ComponentType {
		case gltfComponentTypeUnsignedByte:
			out[i] = uint32(e[0])
		case gltfComponentTypeUnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(e))
		case gltfComponentTypeUnsignedInt:
			out[i] = binary.LittleEndian.Uint32(e)
		default:
			return nil, fmt.Errorf("%w: index component type %d", ErrInvalidModel, acc.ComponentType)
		}
	}
	return out, nil
}

func componentSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func componentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	default:
		return 0
	}
}
