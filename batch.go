package oblsm

// Batch accumulates a group of Put/Remove operations applied together
// as one atomic unit by DB.Apply.
type Batch struct {
	ops []batchOp
}

type batchOp struct {
	key     []byte
	value   []byte
	deleted bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Put stages a key/value write.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

// Remove stages a deletion.
func (b *Batch) Remove(key []byte) {
	b.ops = append(b.ops, batchOp{key: key, deleted: true})
}

// Len returns the number of staged operations.
func (b *Batch) Len() int { return len(b.ops) }
