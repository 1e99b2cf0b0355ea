package base

import "encoding/binary"

// SeqLen is the encoded width of a sequence number within an internal key.
const SeqLen = 8

// InternalKey is a user key tagged with the sequence number of the write
// that produced it: user_key || seq. Deletion is not encoded in the key
// itself; a zero-length value on the matching record marks a tombstone.
type InternalKey struct {
	UserKey []byte
	Seq     uint64
}

// MakeInternalKey builds an InternalKey from its parts.
func MakeInternalKey(userKey []byte, seq uint64) InternalKey {
	return InternalKey{UserKey: userKey, Seq: seq}
}

// Encode writes user_key || seq(8, little-endian) into a freshly
// allocated slice.
func (k InternalKey) Encode() []byte {
	buf := make([]byte, len(k.UserKey)+SeqLen)
	n := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[n:], k.Seq)
	return buf
}

// EncodeInto writes the internal key into dst, which must have length
// Size(). It returns dst for convenience.
func (k InternalKey) EncodeInto(dst []byte) []byte {
	n := copy(dst, k.UserKey)
	binary.LittleEndian.PutUint64(dst[n:], k.Seq)
	return dst
}

// Size returns the encoded length of the internal key.
func (k InternalKey) Size() int {
	return len(k.UserKey) + SeqLen
}

// DecodeInternalKey parses an encoded internal key. It panics if buf is
// shorter than SeqLen, matching the teacher's "this should never happen
// for a well-formed record" assumption for internal invariants.
func DecodeInternalKey(buf []byte) InternalKey {
	n := len(buf) - SeqLen
	return InternalKey{
		UserKey: buf[:n],
		Seq:     binary.LittleEndian.Uint64(buf[n:]),
	}
}

// LookupKey is the length-prefixed key used to seek into a skiplist or
// SSTable so that the newest version of user_key visible at snapshotSeq
// is found first: len(user_key+8)(8) || user_key || snapshot_seq(8).
type LookupKey struct {
	UserKey     []byte
	SnapshotSeq uint64
}

// Encode produces the on-the-wire lookup key bytes.
func (lk LookupKey) Encode() []byte {
	buf := make([]byte, 8+len(lk.UserKey)+SeqLen)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(lk.UserKey)+SeqLen))
	n := 8 + copy(buf[8:], lk.UserKey)
	binary.LittleEndian.PutUint64(buf[n:], lk.SnapshotSeq)
	return buf
}

// InternalKey returns the InternalKey a lookup key targets: seeking for
// it under InternalCompare lands on the newest version of UserKey with
// Seq <= SnapshotSeq, because internal keys order higher seq first.
func (lk LookupKey) InternalKey() InternalKey {
	return InternalKey{UserKey: lk.UserKey, Seq: lk.SnapshotSeq}
}
