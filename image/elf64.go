package image

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// openELF64 opens path as a 64-bit ELF image and indexes every loadable
// program header by virtual address, generalizing the teacher's
// executable-section-only filtering (cmd/x's isExec) to any loaded,
// addressable segment, since a lift window may span code and adjacent data.
func openELF64(path string) (MappedImage, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if f.Class != elf.ELFCLASS64 {
		f.Close()
		return nil, errors.Errorf("image: %s is not a 64-bit ELF file", path)
	}

	var segments []segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz == 0 && prog.Memsz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "image: reading PT_LOAD segment at %#x", prog.Vaddr)
		}
		segments = append(segments, segment{
			vaddr:       addrOf(prog.Vaddr),
			data:        data,
			virtualSize: prog.Memsz,
		})
	}

	return &segmentedImage{segments: segments, closer: f}, nil
}
