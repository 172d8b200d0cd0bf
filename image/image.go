// Package image provides a read-only, virtual-address-indexed byte view
// over loaded binary executables (ELF64 and PE64), the Mapped Image
// component consumed by the Block Translator.
package image

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"vexcore/bin"
)

// FileFormat selects the Mapped Image backend to construct.
type FileFormat int

const (
	// ELF64 selects the debug/elf-backed image reader.
	ELF64 FileFormat = iota
	// PE64 selects the debug/pe-backed image reader.
	PE64
)

// String returns the name of the file format.
func (f FileFormat) String() string {
	switch f {
	case ELF64:
		return "ELF64"
	case PE64:
		return "PE64"
	default:
		return "unknown"
	}
}

// ErrFormatUnsupported is returned when an unrecognized FileFormat is
// requested.
var ErrFormatUnsupported = errors.New("image: unsupported file format")

// ErrNoSegment is returned by BytesAt when addr is not covered by any
// loaded segment.
var ErrNoSegment = errors.New("image: address is not covered by any loaded segment")

// MappedImage is a read-only, virtual-address-addressable byte view of a
// binary's loaded bytes.
type MappedImage interface {
	// BytesAt returns a byte cursor positioned at addr, reading no further
	// than the end of the covering segment. It fails with an error wrapping
	// ErrNoSegment if addr lies outside every loaded segment.
	BytesAt(addr bin.Addr) (io.Reader, error)
	// Close releases any resources (open file handles) held by the image.
	Close() error
}

// Open opens path and returns a MappedImage backend selected by format.
func Open(path string, format FileFormat) (MappedImage, error) {
	switch format {
	case ELF64:
		return openELF64(path)
	case PE64:
		return openPE64(path)
	default:
		return nil, errors.WithStack(ErrFormatUnsupported)
	}
}

// segment is one loaded, addressable range of bytes: [vaddr, vaddr+len(data))
// backed by data, zero-extended up to virtualSize when virtualSize exceeds
// len(data) (e.g. a .bss-style segment whose file image is shorter than its
// in-memory footprint).
type segment struct {
	vaddr       bin.Addr
	data        []byte
	virtualSize uint64
}

func (s segment) contains(addr bin.Addr) bool {
	return addr >= s.vaddr && uint64(addr-s.vaddr) < s.virtualSize
}

func (s segment) readerAt(addr bin.Addr) io.Reader {
	off := uint64(addr - s.vaddr)
	if off >= uint64(len(s.data)) {
		// Entirely within the zero-filled tail.
		return bytes.NewReader(make([]byte, s.virtualSize-off))
	}
	head := s.data[off:]
	tail := s.virtualSize - uint64(len(s.data))
	if tail == 0 {
		return bytes.NewReader(head)
	}
	padded := make([]byte, uint64(len(head))+tail)
	copy(padded, head)
	return bytes.NewReader(padded)
}

// segmentedImage is a MappedImage backed by a fixed list of segments,
// shared by the ELF64 and PE64 backends.
type segmentedImage struct {
	segments []segment
	closer   io.Closer
}

func (m *segmentedImage) BytesAt(addr bin.Addr) (io.Reader, error) {
	for _, s := range m.segments {
		if s.contains(addr) {
			return s.readerAt(addr), nil
		}
	}
	return nil, errors.Wrapf(ErrNoSegment, "address %v", addr)
}

// addrOf converts a raw 64-bit virtual address into a bin.Addr.
func addrOf(v uint64) bin.Addr {
	return bin.Addr(v)
}

func (m *segmentedImage) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}
