package history

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBufferEvictsOldest(t *testing.T) {
	b := New(300)
	for i := 1; i <= 301; i++ {
		b.Push(decimal.NewFromInt(int64(i)))
	}

	if b.Len() != 300 {
		t.Fatalf("expected length 300 after 301 pushes, got %d", b.Len())
	}
	if !b.At(0).Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected oldest sample 2, got %s", b.At(0))
	}
	if !b.Last().Equal(decimal.NewFromInt(301)) {
		t.Fatalf("expected newest sample 301, got %s", b.Last())
	}
}

func TestBufferClampsIndices(t *testing.T) {
	b := New(10)
	b.Push(decimal.NewFromInt(7))
	b.Push(decimal.NewFromInt(9))

	if !b.At(-5).Equal(decimal.NewFromInt(7)) {
		t.Fatalf("negative index should clamp to oldest, got %s", b.At(-5))
	}
	if !b.At(99).Equal(decimal.NewFromInt(9)) {
		t.Fatalf("oversized index should clamp to newest, got %s", b.At(99))
	}
}

func TestBufferEmpty(t *testing.T) {
	b := New(0)
	if b.Capacity() != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, b.Capacity())
	}
	if !b.At(0).IsZero() {
		t.Fatalf("empty buffer should read zero, got %s", b.At(0))
	}
	if !b.Last().IsZero() {
		t.Fatalf("empty buffer Last should be zero, got %s", b.Last())
	}
	if b.Len() != 0 {
		t.Fatalf("empty buffer length should be 0, got %d", b.Len())
	}
}

func TestBufferValuesIsCopy(t *testing.T) {
	b := New(5)
	b.Push(decimal.NewFromInt(1))
	vals := b.Values()
	vals[0] = decimal.NewFromInt(42)

	if !b.At(0).Equal(decimal.NewFromInt(1)) {
		t.Fatalf("mutating Values() must not affect the buffer, got %s", b.At(0))
	}
}
