package image

import (
	"debug/pe"

	"github.com/pkg/errors"

	"vexcore/bin"
)

// peCodeMask is the IMAGE_SCN_CNT_CODE characteristic bit, reused from the
// teacher's isExec helper; kept here for reference even though this backend
// indexes every section, not only executable ones, since bytes_at must also
// serve data referenced from a code window.
const peCodeMask = 0x00000020

// openPE64 opens path as a 64-bit PE image and indexes every section by its
// preferred virtual address, widening the teacher's PE32-only lifter.lift to
// a 64-bit image base as required by this module's 64-bit Addr.
func openPE64(path string) (MappedImage, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	optHdr, ok := f.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		f.Close()
		return nil, errors.New("image: not a 64-bit PE optional header")
	}
	base := bin.Addr(optHdr.ImageBase)

	var segments []segment
	for _, sect := range f.Sections {
		data, err := sect.Data()
		if err != nil {
			// Sections with no file data (e.g. pure .bss) are still
			// addressable; zero-fill for their declared virtual size.
			data = nil
		}
		vsize := uint64(sect.VirtualSize)
		if uint64(len(data)) > vsize {
			vsize = uint64(len(data))
		}
		if vsize == 0 {
			continue
		}
		segments = append(segments, segment{
			vaddr:       base + bin.Addr(sect.VirtualAddress),
			data:        data,
			virtualSize: vsize,
		})
	}

	return &segmentedImage{segments: segments, closer: f}, nil
}
