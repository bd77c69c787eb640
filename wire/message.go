package wire

// NamePath is an ordered sequence of child-name strings locating a collab
// from the root. An empty path denotes the root itself.
type NamePath []string

// String frames may be a short ASCII name or a tagged byte payload; the
// high bit of the first byte distinguishes the two (spec §6). The runtime
// encodes every name-path segment, including the names of dynamically
// created children (set.DeletingMut, collabmap.Lazy), as a plain frame.
const tagBit = 0x80

// Frame is one element of a NamePath as it appears on the wire: either a
// plain short name or an opaque tagged payload.
type Frame struct {
	Tagged  bool
	Name    string
	Payload []byte
}

// PlainFrame wraps a short ASCII child name.
func PlainFrame(name string) Frame { return Frame{Name: name} }

// TaggedFrame wraps an opaque byte payload (e.g. a (sender, counter) mark
// serialized as a dynamic child's name).
func TaggedFrame(payload []byte) Frame { return Frame{Tagged: true, Payload: payload} }

func (w *Writer) putFrame(f Frame) {
	if f.Tagged {
		w.buf.WriteByte(tagBit)
		w.PutBytes(f.Payload)
		return
	}
	w.buf.WriteByte(0)
	w.PutString(f.Name)
}

func (r *Reader) frame() (Frame, error) {
	if r.Len() < 1 {
		return Frame{}, ErrMalformed
	}
	marker := r.buf[r.pos]
	r.pos++
	if marker&tagBit != 0 {
		n, err := r.Uvarint()
		if err != nil {
			return Frame{}, err
		}
		if r.pos+int(n) > len(r.buf) {
			return Frame{}, ErrMalformed
		}
		payload := r.buf[r.pos : r.pos+int(n)]
		r.pos += int(n)
		return TaggedFrame(payload), nil
	}
	name, err := r.String()
	if err != nil {
		return Frame{}, err
	}
	return PlainFrame(name), nil
}

// PutNamePath appends a name-path as a count followed by each frame.
func (w *Writer) PutNamePath(path []Frame) {
	w.PutUvarint(uint64(len(path)))
	for _, f := range path {
		w.putFrame(f)
	}
}

// NamePathFrames decodes a name-path written by PutNamePath.
func (r *Reader) NamePathFrames() ([]Frame, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	path := make([]Frame, 0, n)
	for i := uint64(0); i < n; i++ {
		f, err := r.frame()
		if err != nil {
			return nil, err
		}
		path = append(path, f)
	}
	return path, nil
}

// Strings renders a name-path of plain frames as a []string, for routing
// lookups against a Collab tree's registered plain names. Tagged frames
// render as their payload bytes reinterpreted as a string, since dynamic
// children key their slot by the same bytes.
func Strings(path []Frame) NamePath {
	out := make(NamePath, len(path))
	for i, f := range path {
		if f.Tagged {
			out[i] = string(f.Payload)
		} else {
			out[i] = f.Name
		}
	}
	return out
}

// Message is one primitive's outbound payload plus the name-path
// addressing it from the root.
type Message struct {
	Path    []Frame
	Payload []byte
}

// Encode appends m to w.
func (m Message) Encode(w *Writer) {
	w.PutNamePath(m.Path)
	w.PutBytes(m.Payload)
}

// DecodeMessage decodes one Message from r.
func DecodeMessage(r *Reader) (Message, error) {
	path, err := r.NamePathFrames()
	if err != nil {
		return Message{}, err
	}
	payload, err := r.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Path: path, Payload: payload}, nil
}
