package data

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/klauspost/compress/zstd"
)

var ErrCorruptPayload = errors.New("corrupt mesh payload")

const (
	payloadMagic   = "gtms"
	payloadVersion = uint32(1)

	// upper bound on any single array to reject garbage lengths before allocating
	maxPayloadArrayLen = 1 << 26
)

// Contains a renderable sphere section. Positions are expressed relative to Center to keep
// float32 precision on planet sized coordinates.
type MeshPayload struct {
	Code      string
	Cols      int // vertices per row
	Rows      int // vertices per column
	Center    r3.Vector
	Positions []float32 // x,y,z per vertex
	Normals   []float32 // x,y,z per vertex
	UVs       []float32 // u,v per vertex
	Colors    []uint8   // r,g,b,a per vertex
	Indices   []uint32  // 3 per triangle
	Heights   []float32 // Rows x Cols elevation samples, row 0 at the top
}

func (p *MeshPayload) NumVertices() int {
	return len(p.Positions) / 3
}

func (p *MeshPayload) NumTriangles() int {
	return len(p.Indices) / 3
}

// Absolute position of vertex i
func (p *MeshPayload) Vertex(i int) r3.Vector {
	return r3.Vector{
		X: p.Center.X + float64(p.Positions[i*3]),
		Y: p.Center.Y + float64(p.Positions[i*3+1]),
		Z: p.Center.Z + float64(p.Positions[i*3+2]),
	}
}

// Bilinear sample of the stored heights at fractional tile coordinates
func (p *MeshPayload) HeightAt(u, v float64) float64 {
	return bilinear(p.Heights, p.Cols, p.Rows, u, v)
}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() {
	encoder, codecErr = zstd.NewWriter(nil)
	if codecErr != nil {
		return
	}
	decoder, codecErr = zstd.NewReader(nil)
}

// Serializes the payload in the binary tile format and compresses it
func EncodeMeshPayload(p *MeshPayload) ([]byte, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, codecErr
	}

	buf := new(bytes.Buffer)
	buf.WriteString(payloadMagic)                 // magic
	writeUint32(buf, payloadVersion)              // version number
	writeUint32(buf, uint32(len(p.Code)))         // code length
	buf.WriteString(p.Code)                       // code
	writeUint32(buf, uint32(p.Cols))              // cols
	writeUint32(buf, uint32(p.Rows))              // rows
	_ = binary.Write(buf, binary.LittleEndian, p.Center.X)
	_ = binary.Write(buf, binary.LittleEndian, p.Center.Y)
	_ = binary.Write(buf, binary.LittleEndian, p.Center.Z)

	for _, arr := range []interface{}{p.Positions, p.Normals, p.UVs, p.Colors, p.Indices, p.Heights} {
		writeUint32(buf, uint32(arrayLen(arr)))
		if err := binary.Write(buf, binary.LittleEndian, arr); err != nil {
			return nil, err
		}
	}

	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

// Decompresses and validates a blob produced by EncodeMeshPayload
func DecodeMeshPayload(blob []byte) (*MeshPayload, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, codecErr
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorruptPayload)
	}

	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}

	r := bytes.NewReader(raw)
	magic := make([]byte, len(payloadMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != payloadMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptPayload)
	}

	version, err := readUint32(r)
	if err != nil || version != payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrCorruptPayload)
	}

	codeLen, err := readLen(r, 1)
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if err := binary.Read(r, binary.LittleEndian, code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}

	p := &MeshPayload{Code: string(code)}
	cols, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	rows, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	p.Cols, p.Rows = int(cols), int(rows)

	center := make([]float64, 3)
	if err := binary.Read(r, binary.LittleEndian, center); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	p.Center = r3.Vector{X: center[0], Y: center[1], Z: center[2]}

	if p.Positions, err = readFloat32s(r); err != nil {
		return nil, err
	}
	if p.Normals, err = readFloat32s(r); err != nil {
		return nil, err
	}
	if p.UVs, err = readFloat32s(r); err != nil {
		return nil, err
	}
	n, err := readLen(r, 1)
	if err != nil {
		return nil, err
	}
	p.Colors = make([]uint8, n)
	if err := binary.Read(r, binary.LittleEndian, p.Colors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	n, err = readLen(r, 4)
	if err != nil {
		return nil, err
	}
	p.Indices = make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, p.Indices); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if p.Heights, err = readFloat32s(r); err != nil {
		return nil, err
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MeshPayload) validate() error {
	numVertices := len(p.Positions) / 3
	switch {
	case len(p.Positions)%3 != 0:
		return fmt.Errorf("%w: positions not a multiple of 3", ErrCorruptPayload)
	case numVertices != p.Cols*p.Rows:
		return fmt.Errorf("%w: %d vertices for a %dx%d grid", ErrCorruptPayload, numVertices, p.Cols, p.Rows)
	case len(p.Normals) != len(p.Positions):
		return fmt.Errorf("%w: normals count mismatch", ErrCorruptPayload)
	case len(p.UVs) != numVertices*2:
		return fmt.Errorf("%w: uv count mismatch", ErrCorruptPayload)
	case len(p.Colors) != numVertices*4:
		return fmt.Errorf("%w: color count mismatch", ErrCorruptPayload)
	case len(p.Heights) != numVertices:
		return fmt.Errorf("%w: height count mismatch", ErrCorruptPayload)
	case len(p.Indices)%3 != 0:
		return fmt.Errorf("%w: indices not a multiple of 3", ErrCorruptPayload)
	}
	for _, idx := range p.Indices {
		if int(idx) >= numVertices {
			return fmt.Errorf("%w: index %d out of range", ErrCorruptPayload, idx)
		}
	}
	return nil
}

func arrayLen(arr interface{}) int {
	switch a := arr.(type) {
	case []float32:
		return len(a)
	case []uint8:
		return len(a)
	case []uint32:
		return len(a)
	}
	return 0
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// Reads an array length and checks that the remaining bytes can hold it
func readLen(r *bytes.Reader, elemSize int) (int, error) {
	n, err := readUint32(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if n > maxPayloadArrayLen || int(n)*elemSize > r.Len() {
		return 0, fmt.Errorf("%w: array length %d exceeds payload", ErrCorruptPayload, n)
	}
	return int(n), nil
}

func readFloat32s(r *bytes.Reader) ([]float32, error) {
	n, err := readLen(r, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return out, nil
}
