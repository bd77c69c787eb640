package wire

// Save is the persisted-state layout of spec §6: a pre-order tree walk of
// (selfBytesLen, selfBytes, childCount, (nameLen, name, childBlob)*). Saves
// are self-describing; a collab reading an older save with missing fields
// applies defaults rather than failing.
type Save struct {
	Self     []byte
	Children []ChildSave
}

// ChildSave names one child's framed save blob.
type ChildSave struct {
	Name string
	Save Save
}

// Encode serializes the save tree.
func (s Save) Encode(w *Writer) {
	w.PutBytes(s.Self)
	w.PutUvarint(uint64(len(s.Children)))
	for _, c := range s.Children {
		w.PutString(c.Name)
		c.Save.Encode(w)
	}
}

// Marshal encodes s as a standalone byte slice.
func (s Save) Marshal() []byte {
	w := NewWriter()
	s.Encode(w)
	return w.Bytes()
}

// DecodeSave decodes a Save written by Encode.
func DecodeSave(r *Reader) (Save, error) {
	self, err := r.Bytes()
	if err != nil {
		return Save{}, err
	}
	n, err := r.Uvarint()
	if err != nil {
		return Save{}, err
	}
	s := Save{Self: self, Children: make([]ChildSave, 0, n)}
	for i := uint64(0); i < n; i++ {
		name, err := r.String()
		if err != nil {
			return Save{}, err
		}
		child, err := DecodeSave(r)
		if err != nil {
			return Save{}, err
		}
		s.Children = append(s.Children, ChildSave{Name: name, Save: child})
	}
	return s, nil
}

// UnmarshalSave decodes a standalone byte slice produced by Save.Marshal.
func UnmarshalSave(data []byte) (Save, error) {
	r := NewReader(data)
	s, err := DecodeSave(r)
	if err != nil {
		return Save{}, err
	}
	if r.Len() != 0 {
		return Save{}, ErrMalformed
	}
	return s, nil
}
