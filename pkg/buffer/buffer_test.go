package buffer

import (
	"io"
	"testing"
)

func TestBodySpoolStaysInMemoryUnderThreshold(t *testing.T) {
	spool := New(1024)
	defer spool.Close()

	if _, err := spool.Write([]byte("small body")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	body, spilled := spool.Finalize()
	if spilled {
		t.Fatalf("expected body to stay in memory")
	}
	if string(body) != "small body" {
		t.Fatalf("unexpected finalized body: %q", body)
	}
	if spool.IsSpilled() {
		t.Fatalf("expected IsSpilled to stay false")
	}
}

func TestBodySpoolSpillsPastThreshold(t *testing.T) {
	spool := New(10)
	defer spool.Close()

	if _, err := spool.Write([]byte("small")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if spool.IsSpilled() {
		t.Fatalf("expected data to stay in memory before the threshold is crossed")
	}

	if _, err := spool.Write([]byte("this is much larger data that exceeds the limit")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !spool.IsSpilled() {
		t.Fatalf("expected data to spill to disk")
	}
	if spool.Path() == "" {
		t.Fatalf("expected a temp file path once spilled")
	}

	body, spilled := spool.Finalize()
	if !spilled {
		t.Fatalf("expected Finalize to report spilled")
	}
	if body != nil {
		t.Fatalf("expected no in-memory body once spilled, got %q", body)
	}

	wantSize := int64(len("small") + len("this is much larger data that exceeds the limit"))
	if spool.Size() != wantSize {
		t.Fatalf("expected size %d, got %d", wantSize, spool.Size())
	}
}

func TestBodySpoolReaderServesSpilledData(t *testing.T) {
	spool := New(10)
	defer spool.Close()

	want := "this will spill to disk because it is too large for the threshold"
	if _, err := spool.Write([]byte(want)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !spool.IsSpilled() {
		t.Fatalf("expected data to spill")
	}

	r, err := spool.Reader()
	if err != nil {
		t.Fatalf("reader failed: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != want {
		t.Fatalf("data mismatch: expected %q, got %q", want, got)
	}
}

func TestBodySpoolCloseRemovesTempFile(t *testing.T) {
	spool := New(10)
	if _, err := spool.Write([]byte("spills to disk past the small threshold")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	path := spool.Path()
	if path == "" {
		t.Fatalf("expected a temp file path")
	}

	if err := spool.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := spool.Write([]byte("x")); err == nil {
		t.Fatalf("expected writes to a closed spool to fail")
	}
}
