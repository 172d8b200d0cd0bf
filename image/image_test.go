package image

import (
	"io/ioutil"
	"testing"
)

// newFakeImage returns a minimal MappedImage used to exercise the shared
// segmentedImage plumbing without needing a real ELF/PE file on disk.
func newFakeImage(segs ...segment) MappedImage {
	return &segmentedImage{segments: segs}
}

func TestBytesAtWithinSegment(t *testing.T) {
	img := newFakeImage(segment{
		vaddr:       0x1000,
		data:        []byte{0xAA, 0xBB, 0xCC, 0xDD},
		virtualSize: 4,
	})

	r, err := img.BytesAt(0x1002)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xCC, 0xDD}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestBytesAtOutsideAnySegmentFails(t *testing.T) {
	img := newFakeImage(segment{vaddr: 0x1000, data: []byte{0, 0}, virtualSize: 2})

	if _, err := img.BytesAt(0x2000); err == nil {
		t.Fatal("expected error for address outside every segment")
	}
}

func TestBytesAtZeroFillsBeyondFileData(t *testing.T) {
	img := newFakeImage(segment{
		vaddr:       0x4000,
		data:        []byte{0x01, 0x02},
		virtualSize: 6, // .bss-style tail beyond file data
	})

	r, err := img.BytesAt(0x4000)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 bytes (2 real + 4 zero-filled), got %d", len(got))
	}
	if got[0] != 0x01 || got[1] != 0x02 {
		t.Fatalf("expected leading file bytes preserved, got %x", got[:2])
	}
	for _, b := range got[2:] {
		if b != 0 {
			t.Fatalf("expected zero-filled tail, got %x", got)
		}
	}
}

func TestOpenUnsupportedFormat(t *testing.T) {
	if _, err := Open("/nonexistent", FileFormat(99)); err == nil {
		t.Fatal("expected ErrFormatUnsupported")
	}
}
