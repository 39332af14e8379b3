package batch

import "testing"

func TestStatusPredicates(t *testing.T) {
	ok := OKBatch(Record{"x": 1}, Record{"x": 2})
	if !ok.IsOK() || ok.IsLast() || ok.IsError() {
		t.Fatalf("expected OK batch, got status %v", ok.Status())
	}
	if ok.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", ok.Len())
	}

	last := LastBatch()
	if !last.IsLast() || last.Len() != 0 {
		t.Fatalf("expected empty LAST batch, got len=%d status=%v", last.Len(), last.Status())
	}

	errb := ErrorBatch("boom")
	if !errb.IsError() || errb.Err() != "boom" {
		t.Fatalf("expected ERROR batch with message 'boom', got %q", errb.Err())
	}
}

func TestAppendDuringConstruction(t *testing.T) {
	b := New(OK, nil, nil)
	b.Append(Record{"a": 1})
	b.Append(Record{"a": 2})
	if b.Len() != 2 {
		t.Fatalf("expected 2 records after append, got %d", b.Len())
	}
	if b.At(1)["a"] != 2 {
		t.Fatalf("unexpected record at index 1: %v", b.At(1))
	}
}

func TestNilMetaNormalized(t *testing.T) {
	b := New(OK, nil, nil)
	if b.Meta() == nil {
		t.Fatal("expected non-nil metadata map")
	}
}

func TestNilBatchPredicatesAreFalse(t *testing.T) {
	var b *Batch
	if b.IsOK() || b.IsLast() || b.IsError() {
		t.Fatal("nil batch should not satisfy any status predicate")
	}
	if b.Len() != 0 {
		t.Fatal("nil batch should have zero length")
	}
}
