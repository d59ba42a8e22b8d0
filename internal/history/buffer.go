package history

import "github.com/shopspring/decimal"

// DefaultCapacity holds five minutes of samples at one per second.
const DefaultCapacity = 300

// Buffer is a fixed-capacity FIFO sequence of price samples. Insertion
// order carries meaning: windowed lookups address samples by their
// distance from the newest entry.
type Buffer struct {
	capacity int
	samples  []decimal.Decimal
}

// New constructs a Buffer. Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, samples: make([]decimal.Decimal, 0, capacity)}
}

// Push appends a sample, evicting the oldest one once the buffer is full.
func (b *Buffer) Push(price decimal.Decimal) {
	b.samples = append(b.samples, price)
	if len(b.samples) > b.capacity {
		b.samples = b.samples[1:]
	}
}

// At returns the sample at index i counted from the oldest. Indices are
// clamped, so a caller reaching further back than the stored history gets
// the oldest available sample. An empty buffer yields decimal.Zero.
func (b *Buffer) At(i int) decimal.Decimal {
	if len(b.samples) == 0 {
		return decimal.Zero
	}
	if i < 0 {
		i = 0
	}
	if i >= len(b.samples) {
		i = len(b.samples) - 1
	}
	return b.samples[i]
}

// Len reports the number of stored samples.
func (b *Buffer) Len() int { return len(b.samples) }

// Capacity reports the maximum number of retained samples.
func (b *Buffer) Capacity() int { return b.capacity }

// Last returns the most recent sample, or decimal.Zero when empty.
func (b *Buffer) Last() decimal.Decimal {
	if len(b.samples) == 0 {
		return decimal.Zero
	}
	return b.samples[len(b.samples)-1]
}

// Values returns a copy of the stored samples, oldest first.
func (b *Buffer) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(b.samples))
	copy(out, b.samples)
	return out
}
