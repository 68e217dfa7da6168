package container

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
)

type slot struct {
	offset   int64
	length   uint32
	checksum []byte
}

// Writer builds an .adapipe container at a destination path. Chunks can
// arrive out of sequence order, since the engine's worker pool processes
// them concurrently, so Writer buffers each arriving chunk's bytes to a
// scratch file as it shows up and only gathers them into sequence order
// at Finalize. Compression and Encryption stages can expand or shrink a
// chunk unpredictably (§4.2), so no pre-sized slot layout is safe; this is
// the append-then-gather strategy instead.
type Writer struct {
	finalPath string
	header    Header

	mu      sync.Mutex // held across each scratch write, and for the whole of Finalize/Abort
	scratch *os.File
	offset  int64
	slots   map[uint64]slot
}

// Create begins a new container at path, describing it with header. The
// destination is not touched until Finalize; only a scratch file is
// created alongside it.
func Create(path string, header Header) (*Writer, error) {
	dir := filepath.Dir(path)
	scratch, err := os.CreateTemp(dir, ".adapipe-scratch-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.Io, "create scratch file", err)
	}
	return &Writer{
		finalPath: path,
		header:    header,
		scratch:   scratch,
		slots:     make(map[uint64]slot),
	}, nil
}

// WriteChunk buffers one chunk's final bytes to the scratch file. Safe to
// call concurrently from many workers. Submitting the same sequence number
// twice fails Internal (§8): each sequence number may only be written once.
func (w *Writer) WriteChunk(ctx context.Context, record domain.ProcessedChunkRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.slots[record.Sequence]; exists {
		return apperr.WrapStage(apperr.Internal, "container.Writer", record.Sequence, "duplicate sequence number", nil)
	}

	off := w.offset
	n, err := w.scratch.WriteAt(record.Payload, off)
	if err != nil {
		return apperr.WrapStage(apperr.Io, "container.Writer", record.Sequence, "write chunk to scratch", err)
	}
	w.offset += int64(n)

	w.slots[record.Sequence] = slot{offset: off, length: uint32(n), checksum: record.Checksum}
	return nil
}

// Finalize gathers every buffered chunk into ascending sequence order,
// writes the full container layout to a temp file beside the
// destination, and atomically renames it into place.
func (w *Writer) Finalize(meta domain.ContainerMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sequences := make([]uint64, 0, len(w.slots))
	for seq := range w.slots {
		sequences = append(sequences, seq)
	}
	sort.Slice(sequences, func(i, j int) bool { return sequences[i] < sequences[j] })

	if err := checkSequenceDensity(sequences); err != nil {
		return err
	}

	dir := filepath.Dir(w.finalPath)
	out, err := os.CreateTemp(dir, ".adapipe-out-*")
	if err != nil {
		return apperr.Wrap(apperr.Io, "create output temp file", err)
	}
	tmpPath := out.Name()

	if err := w.writeLayout(out, meta, sequences); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.Io, "sync output file", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.Io, "close output file", err)
	}
	if err := os.Rename(tmpPath, w.finalPath); err != nil {
		os.Remove(tmpPath)
		return apperr.Wrap(apperr.Io, "rename output into place", err)
	}
	return w.closeScratch()
}

func (w *Writer) writeLayout(out *os.File, meta domain.ContainerMetadata, sequences []uint64) error {
	if err := writeMagicVersionHeader(out, w.header); err != nil {
		return err
	}

	var buf []byte
	for _, seq := range sequences {
		s := w.slots[seq]
		if cap(buf) < int(s.length) {
			buf = make([]byte, s.length)
		}
		payload := buf[:s.length]
		if _, err := w.scratch.ReadAt(payload, s.offset); err != nil {
			return apperr.Wrap(apperr.Io, "read chunk from scratch", err)
		}
		if err := writeChunkFrame(out, payload, s.checksum, w.header.PerChunkChecksum); err != nil {
			return err
		}
	}

	meta.ChunkCount = uint64(len(sequences))
	return writeFooter(out, meta)
}

// Abort discards the container: the scratch file is removed and the
// destination path is never touched.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeScratch()
}

// checkSequenceDensity verifies sequences (already sorted ascending) is
// exactly 0..len(sequences)-1 with no gaps, per §4.4's finalize invariant
// "all sequence numbers 0..N-1 are present exactly once". Duplicates are
// already rejected at WriteChunk, so a density failure here means a gap.
func checkSequenceDensity(sequences []uint64) error {
	for i, seq := range sequences {
		if seq != uint64(i) {
			return apperr.New(apperr.Integrity, fmt.Sprintf("missing sequence number %d at finalize", i))
		}
	}
	return nil
}

func (w *Writer) closeScratch() error {
	path := w.scratch.Name()
	if err := w.scratch.Close(); err != nil {
		return apperr.Wrap(apperr.Io, "close scratch file", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.Io, "remove scratch file", err)
	}
	return nil
}

func writeMagicVersionHeader(w *os.File, header Header) error {
	if _, err := w.Write(magic[:]); err != nil {
		return apperr.Wrap(apperr.Io, "write magic", err)
	}
	if _, err := w.Write([]byte{domain.CurrentFormatVersion.Major, domain.CurrentFormatVersion.Minor}); err != nil {
		return apperr.Wrap(apperr.Io, "write version", err)
	}

	body, err := json.Marshal(header)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal header", err)
	}
	if err := writeLengthPrefixed(w, body); err != nil {
		return err
	}
	return nil
}

func writeChunkFrame(w *os.File, payload []byte, checksum []byte, checksumPresent bool) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return apperr.Wrap(apperr.Io, "write chunk length", err)
	}

	if checksumPresent {
		if len(checksum) != checksumSize {
			return apperr.New(apperr.Internal, "header declares per-chunk checksums but a chunk carried none")
		}
		if _, err := w.Write(checksum); err != nil {
			return apperr.Wrap(apperr.Io, "write chunk checksum", err)
		}
	}
	if _, err := w.Write(payload); err != nil {
		return apperr.Wrap(apperr.Io, "write chunk payload", err)
	}
	return nil
}

// writeFooter writes the footer as a length-prefixed JSON body followed by
// a second copy of the 4-byte length, so a reader can find the footer by
// reading the last 4 bytes of the file.
func writeFooter(w *os.File, meta domain.ContainerMetadata) error {
	body, err := json.Marshal(meta)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal footer", err)
	}
	if err := writeLengthPrefixed(w, body); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return apperr.Wrap(apperr.Io, "write trailing footer length", err)
	}
	return nil
}

func writeLengthPrefixed(w *os.File, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return apperr.Wrap(apperr.Io, "write length prefix", err)
	}
	if _, err := w.Write(body); err != nil {
		return apperr.Wrap(apperr.Io, "write length-prefixed body", err)
	}
	return nil
}
