package wire

import (
	"github.com/latticekit/collab/replica"
)

// VCEntry is one (replica, counter) pair in a transaction's vector-clock
// prefix: the dependency set the receiver must already have observed
// before this transaction is causally deliverable.
type VCEntry struct {
	Replica replica.ID
	Counter uint64
}

// Transaction is the on-the-wire shape of one batched, causally-stamped
// group of messages (spec §6).
type Transaction struct {
	Sender        replica.ID
	SenderCounter uint64
	HasLamport    bool
	Lamport       uint64
	HasWallClock  bool
	WallClock     int64
	VCPrefix      []VCEntry
	Messages      []Message
}

// Encode serializes t using dict to compress replica-id references.
func (t Transaction) Encode(dict *ReplicaDict) []byte {
	w := NewWriter()
	w.PutUvarint(dict.Index(t.Sender))
	w.PutUvarint(t.SenderCounter)

	flags := byte(0)
	if t.HasLamport {
		flags |= 1
	}
	if t.HasWallClock {
		flags |= 2
	}
	w.buf.WriteByte(flags)
	if t.HasLamport {
		w.PutUvarint(t.Lamport)
	}
	if t.HasWallClock {
		w.PutUvarint(uint64(t.WallClock))
	}

	w.PutUvarint(uint64(len(t.VCPrefix)))
	for _, e := range t.VCPrefix {
		w.PutUvarint(dict.Index(e.Replica))
		w.PutUvarint(e.Counter)
	}

	w.PutUvarint(uint64(len(t.Messages)))
	for _, m := range t.Messages {
		m.Encode(w)
	}

	full := NewWriter()
	dict.WriteDict(full)
	full.buf.Write(w.Bytes())
	return full.Bytes()
}

// DecodeTransaction decodes a Transaction encoded by Encode. The replica
// dictionary is embedded in the stream, so decoding is self-contained.
func DecodeTransaction(data []byte) (Transaction, error) {
	r := NewReader(data)
	dict, err := ReadDict(r)
	if err != nil {
		return Transaction{}, err
	}

	senderIdx, err := r.Uvarint()
	if err != nil {
		return Transaction{}, err
	}
	sender, err := dict.Lookup(senderIdx)
	if err != nil {
		return Transaction{}, err
	}

	senderCounter, err := r.Uvarint()
	if err != nil {
		return Transaction{}, err
	}

	if r.Len() < 1 {
		return Transaction{}, ErrMalformed
	}
	flags := r.buf[r.pos]
	r.pos++

	t := Transaction{Sender: sender, SenderCounter: senderCounter}
	if flags&1 != 0 {
		t.HasLamport = true
		if t.Lamport, err = r.Uvarint(); err != nil {
			return Transaction{}, err
		}
	}
	if flags&2 != 0 {
		t.HasWallClock = true
		wc, err := r.Uvarint()
		if err != nil {
			return Transaction{}, err
		}
		t.WallClock = int64(wc)
	}

	vcCount, err := r.Uvarint()
	if err != nil {
		return Transaction{}, err
	}
	t.VCPrefix = make([]VCEntry, 0, vcCount)
	for i := uint64(0); i < vcCount; i++ {
		idx, err := r.Uvarint()
		if err != nil {
			return Transaction{}, err
		}
		id, err := dict.Lookup(idx)
		if err != nil {
			return Transaction{}, err
		}
		cnt, err := r.Uvarint()
		if err != nil {
			return Transaction{}, err
		}
		t.VCPrefix = append(t.VCPrefix, VCEntry{Replica: id, Counter: cnt})
	}

	msgCount, err := r.Uvarint()
	if err != nil {
		return Transaction{}, err
	}
	t.Messages = make([]Message, 0, msgCount)
	for i := uint64(0); i < msgCount; i++ {
		m, err := DecodeMessage(r)
		if err != nil {
			return Transaction{}, err
		}
		t.Messages = append(t.Messages, m)
	}

	return t, nil
}
