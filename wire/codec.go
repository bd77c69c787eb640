// Package wire implements the canonical on-the-wire and on-disk encoding
// described in spec §6: big-endian, length-prefixed varints, a name-path of
// string frames per message, and a per-transaction replica-id dictionary.
//
// The format is pinned by the specification byte-for-byte, so this package
// hand-rolls its varint primitives (putUvarint/uvarint below) rather than
// using a general-purpose serialization library.
package wire

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/latticekit/collab/replica"
)

// ErrMalformed is returned when a byte stream does not decode to a valid
// wire value. It maps to the Malformed taxonomy error at the collab layer.
var ErrMalformed = errors.New("wire: malformed input")

// Writer accumulates a canonical byte encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// PutUvarint appends v as an unsigned varint.
func (w *Writer) PutUvarint(v uint64) {
	var tmp [10]byte
	n := putUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

// PutByte appends a single raw byte (e.g. a tag discriminating a save's
// encoding variant).
func (w *Writer) PutByte(b byte) {
	w.buf.WriteByte(b)
}

// PutString appends a varint length prefix followed by s's bytes.
func (w *Writer) PutString(s string) {
	w.PutUvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

// PutBytes appends a varint length prefix followed by b.
func (w *Writer) PutBytes(b []byte) {
	w.PutUvarint(uint64(len(b)))
	w.buf.Write(b)
}

func putUvarint(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// Reader decodes a canonical byte encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for decoding. b is not copied; the caller must not
// mutate it while the Reader is in use.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Uvarint decodes the next unsigned varint.
func (r *Reader) Uvarint() (uint64, error) {
	v, n := uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errors.Wrap(ErrMalformed, "truncated varint")
	}
	r.pos += n
	return v, nil
}

func uvarint(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if i == 10 {
			return 0, -1
		}
		if b < 0x80 {
			if i == 9 && b > 1 {
				return 0, -1
			}
			return x | uint64(b)<<s, i + 1
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0
}

// Byte decodes a single raw byte.
func (r *Reader) Byte() (byte, error) {
	if r.Len() < 1 {
		return 0, errors.Wrap(ErrMalformed, "truncated byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// String decodes a varint-length-prefixed string.
func (r *Reader) String() (string, error) {
	n, err := r.Uvarint()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.buf) {
		return "", errors.Wrap(ErrMalformed, "truncated string")
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// Bytes decodes a varint-length-prefixed byte slice. The returned slice
// aliases the Reader's backing array.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, errors.Wrap(ErrMalformed, "truncated bytes")
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// ReplicaDict assigns stable, transaction-scoped indices to replica ids so
// a transaction need not repeat a full 11-byte id per reference.
type ReplicaDict struct {
	byID    map[replica.ID]uint64
	byIndex []replica.ID
}

// NewReplicaDict returns an empty dictionary.
func NewReplicaDict() *ReplicaDict {
	return &ReplicaDict{byID: make(map[replica.ID]uint64)}
}

// Index returns the stable index for id, assigning a new one if id has not
// been seen in this dictionary before.
func (d *ReplicaDict) Index(id replica.ID) uint64 {
	if idx, ok := d.byID[id]; ok {
		return idx
	}
	idx := uint64(len(d.byIndex))
	d.byID[id] = idx
	d.byIndex = append(d.byIndex, id)
	return idx
}

// Lookup resolves an index back to a replica id.
func (d *ReplicaDict) Lookup(idx uint64) (replica.ID, error) {
	if idx >= uint64(len(d.byIndex)) {
		return "", errors.Wrapf(ErrMalformed, "replica dict index %d out of range", idx)
	}
	return d.byIndex[idx], nil
}

// WriteDict serializes the dictionary as it stands: count then each id.
func (d *ReplicaDict) WriteDict(w *Writer) {
	w.PutUvarint(uint64(len(d.byIndex)))
	for _, id := range d.byIndex {
		w.PutString(string(id))
	}
}

// ReadDict decodes a dictionary written by WriteDict.
func ReadDict(r *Reader) (*ReplicaDict, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	d := NewReplicaDict()
	for i := uint64(0); i < n; i++ {
		s, err := r.String()
		if err != nil {
			return nil, err
		}
		d.Index(replica.ID(s))
	}
	return d, nil
}
