package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/codectx/codectx/pkg/types"
)

// On-disk formats. Everything is little-endian.
//
// Shard file: a 32-byte header followed by vector_count records of
// dimensions × 4 bytes of f32. Record i starts at 32 + i×D×4; the file
// length after a successful flush is exactly 32 + vector_count×D×4.
//
// Index file: a 12-byte header followed by entry_count length-prefixed
// entries mapping chunk IDs to shard positions plus chunk metadata.
const (
	shardMagic   = 0x43545856 // "VXTC" little-endian on disk
	shardVersion = 1
	// ShardHeaderLen is the fixed shard header size including padding.
	ShardHeaderLen = 32

	indexMagic   = 0x43545849 // "IXTC"
	indexVersion = 1
)

// shardHeader is the fixed-size prefix of every shard file.
type shardHeader struct {
	Dimensions  uint16
	VectorCount uint32
}

// encodeShardHeader renders the 32-byte shard header.
func encodeShardHeader(h shardHeader) []byte {
	buf := make([]byte, ShardHeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], shardMagic)
	binary.LittleEndian.PutUint16(buf[4:6], shardVersion)
	binary.LittleEndian.PutUint16(buf[6:8], h.Dimensions)
	binary.LittleEndian.PutUint32(buf[8:12], h.VectorCount)
	// buf[12:32] reserved, zero.
	return buf
}

// decodeShardHeader parses and validates a shard header.
func decodeShardHeader(buf []byte) (shardHeader, error) {
	var h shardHeader
	if len(buf) < ShardHeaderLen {
		return h, fmt.Errorf("shard header truncated: %d bytes", len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != shardMagic {
		return h, fmt.Errorf("bad shard magic 0x%08x", magic)
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != shardVersion {
		return h, fmt.Errorf("unsupported shard version %d", v)
	}
	h.Dimensions = binary.LittleEndian.Uint16(buf[6:8])
	h.VectorCount = binary.LittleEndian.Uint32(buf[8:12])
	return h, nil
}

// encodeVectors renders vectors as packed little-endian f32 records.
func encodeVectors(vectors [][]float32) []byte {
	if len(vectors) == 0 {
		return nil
	}
	dims := len(vectors[0])
	buf := make([]byte, 0, len(vectors)*dims*4)
	var scratch [4]byte
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(x))
			buf = append(buf, scratch[:]...)
		}
	}
	return buf
}

// decodeVectors parses count packed records of dims f32 each.
func decodeVectors(buf []byte, count, dims int) ([][]float32, error) {
	want := count * dims * 4
	if len(buf) != want {
		return nil, fmt.Errorf("shard data length %d, want %d (%d vectors × %d dims)", len(buf), want, count, dims)
	}
	vectors := make([][]float32, count)
	off := 0
	for i := 0; i < count; i++ {
		v := make([]float32, dims)
		for j := 0; j < dims; j++ {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}

// indexEntry is one record in the per-collection index: where the
// vector lives plus the chunk metadata search returns.
type indexEntry struct {
	ShardID uint32
	Offset  uint32 // record index within the shard
	Dims    uint16
	Live    bool
	Meta    ChunkMeta
}

func writeString16(w *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes exceeds u16 length prefix", len(s))
	}
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(s)))
	w.Write(n[:])
	w.WriteString(s)
	return nil
}

func writeBytes32(w *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(b)))
	w.Write(n[:])
	w.Write(b)
}

// encodeIndex renders the full index file: header then every entry.
// Entries are written in sorted chunk ID order so the file is
// byte-identical across runs with identical state.
func encodeIndex(entries []*indexEntry) ([]byte, error) {
	var buf bytes.Buffer

	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], indexMagic)
	binary.LittleEndian.PutUint16(header[4:6], indexVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(entries)))
	buf.Write(header)

	var scratch [4]byte
	for _, e := range entries {
		if err := writeString16(&buf, e.Meta.ChunkID); err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(scratch[:], e.ShardID)
		buf.Write(scratch[:])
		binary.LittleEndian.PutUint32(scratch[:], e.Offset)
		buf.Write(scratch[:])
		binary.LittleEndian.PutUint16(scratch[:2], e.Dims)
		buf.Write(scratch[:2])
		if e.Live {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		if err := writeString16(&buf, e.Meta.FilePath); err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(scratch[:], uint32(e.Meta.StartLine))
		buf.Write(scratch[:])
		binary.LittleEndian.PutUint32(scratch[:], uint32(e.Meta.EndLine))
		buf.Write(scratch[:])
		writeBytes32(&buf, []byte(e.Meta.Content))

		var extra []byte
		if len(e.Meta.Extra) > 0 {
			var err error
			extra, err = json.Marshal(e.Meta.Extra)
			if err != nil {
				return nil, fmt.Errorf("marshal entry metadata: %w", err)
			}
		}
		writeBytes32(&buf, extra)
	}
	return buf.Bytes(), nil
}

type indexReader struct {
	buf []byte
	off int
}

func (r *indexReader) u16() (uint16, error) {
	if r.off+2 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *indexReader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *indexReader) byte() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *indexReader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *indexReader) string16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *indexReader) bytes32() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

// decodeIndex parses an index file into entries keyed by chunk ID.
func decodeIndex(buf []byte) (map[string]*indexEntry, error) {
	r := &indexReader{buf: buf}

	magic, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("index header truncated")
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("bad index magic 0x%08x", magic)
	}
	version, err := r.u16()
	if err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	if version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	if _, err := r.u16(); err != nil { // padding
		return nil, io.ErrUnexpectedEOF
	}
	count, err := r.u32()
	if err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	entries := make(map[string]*indexEntry, count)
	for i := uint32(0); i < count; i++ {
		e := &indexEntry{}
		if e.Meta.ChunkID, err = r.string16(); err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		if e.ShardID, err = r.u32(); err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		if e.Offset, err = r.u32(); err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		if e.Dims, err = r.u16(); err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		live, err := r.byte()
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		e.Live = live == 1
		if e.Meta.FilePath, err = r.string16(); err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		start, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		end, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		e.Meta.StartLine = int(start)
		e.Meta.EndLine = int(end)
		content, err := r.bytes32()
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		e.Meta.Content = string(content)
		extra, err := r.bytes32()
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &e.Meta.Extra); err != nil {
				return nil, fmt.Errorf("index entry %d metadata: %w", i, err)
			}
		}
		entries[e.Meta.ChunkID] = e
	}
	if r.off != len(buf) {
		return nil, fmt.Errorf("index has %d trailing bytes", len(buf)-r.off)
	}
	return entries, nil
}

// collectionMeta is the meta.json sidecar of one collection directory.
type collectionMeta struct {
	Dimensions  int       `json:"dimensions"`
	ShardCount  int       `json:"shard_count"`
	NextShardID uint32    `json:"next_shard_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// corrupt wraps a format error as the StoreCorrupt kind.
func corrupt(collection string, err error) error {
	return types.Wrap(types.KindStoreCorrupt, err, "collection %q failed integrity checks", collection).
		With("collection", collection)
}
