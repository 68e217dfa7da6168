package container

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
)

// Frame is one chunk frame as read back from a container, in on-disk
// sequence order (callers reconstruct domain.FileChunk sequence numbers
// from read order, since the frame itself carries no sequence field).
type Frame struct {
	Payload  []byte
	Checksum []byte // nil if the frame carried no checksum
}

// Reader provides sequential access to an .adapipe container: magic and
// version are validated and the header parsed at Open, the footer is
// recovered by seeking from EOF, and chunk frames are read forward one
// at a time via Next.
type Reader struct {
	f      *os.File
	Header Header
	Footer domain.ContainerMetadata

	chunksEnd int64 // byte offset where the chunk-frame region ends
	pos       int64
	seq       uint64 // next frame's sequence number, by read order
}

// Open validates the magic and version, parses the header, and recovers
// the footer by seeking 4 bytes before EOF per §4.4. The file is left
// positioned at the start of the chunk-frame region for Next.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Io, "open container", err)
	}

	r := &Reader{f: f}
	if err := r.readMagicVersionHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readFooter(); err != nil {
		f.Close()
		return nil, err
	}
	r.pos, err = f.Seek(r.pos, io.SeekStart)
	if err != nil {
		f.Close()
		return nil, apperr.Wrap(apperr.Io, "seek to chunk region", err)
	}
	return r, nil
}

func (r *Reader) readMagicVersionHeader() error {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r.f, gotMagic[:]); err != nil {
		return apperr.Wrap(apperr.Io, "read magic", err)
	}
	if gotMagic != magic {
		return apperr.New(apperr.Validation, "not an .adapipe container: bad magic")
	}

	var version [2]byte
	if _, err := io.ReadFull(r.f, version[:]); err != nil {
		return apperr.Wrap(apperr.Io, "read version", err)
	}
	if version[0] != domain.CurrentFormatVersion.Major {
		return apperr.New(apperr.Validation, "unsupported container major version")
	}

	headerBytes, err := readLengthPrefixed(r.f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(headerBytes, &r.Header); err != nil {
		return apperr.Wrap(apperr.Validation, "parse header JSON", err)
	}

	pos, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return apperr.Wrap(apperr.Io, "tell after header", err)
	}
	r.pos = pos
	return nil
}

// readFooter reads the trailing copy of the 4-byte footer length in the
// last 4 bytes of the file, reads the footer JSON immediately before it,
// and records where the chunk frame region ends (= where the leading
// footer length prefix, just before the JSON, starts).
func (r *Reader) readFooter() error {
	end, err := r.f.Seek(0, io.SeekEnd)
	if err != nil {
		return apperr.Wrap(apperr.Io, "seek to end", err)
	}
	if end < 4 {
		return apperr.New(apperr.Validation, "container too short to hold a footer")
	}

	if _, err := r.f.Seek(-4, io.SeekEnd); err != nil {
		return apperr.Wrap(apperr.Io, "seek to footer length prefix", err)
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.f, lenBuf[:]); err != nil {
		return apperr.Wrap(apperr.Io, "read footer length", err)
	}
	footerLen := int64(binary.BigEndian.Uint32(lenBuf[:]))

	footerStart := end - 4 - footerLen
	if footerStart < r.pos {
		return apperr.New(apperr.Validation, "footer length overruns chunk region")
	}

	if _, err := r.f.Seek(footerStart, io.SeekStart); err != nil {
		return apperr.Wrap(apperr.Io, "seek to footer", err)
	}
	footerBytes := make([]byte, footerLen)
	if _, err := io.ReadFull(r.f, footerBytes); err != nil {
		return apperr.Wrap(apperr.Io, "read footer body", err)
	}
	if err := json.Unmarshal(footerBytes, &r.Footer); err != nil {
		return apperr.Wrap(apperr.Validation, "parse footer JSON", err)
	}

	r.chunksEnd = footerStart - 4
	return nil
}

// Next returns the next chunk frame in on-disk order, or io.EOF once the
// chunk-frame region is exhausted.
func (r *Reader) Next() (Frame, error) {
	if r.pos >= r.chunksEnd {
		return Frame{}, io.EOF
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r.f, lenBuf[:]); err != nil {
		return Frame{}, apperr.Wrap(apperr.Io, "read chunk length", err)
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])

	var checksum []byte
	if r.Header.PerChunkChecksum {
		checksum = make([]byte, checksumSize)
		if _, err := io.ReadFull(r.f, checksum); err != nil {
			return Frame{}, apperr.Wrap(apperr.Io, "read chunk checksum", err)
		}
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.f, payload); err != nil {
		return Frame{}, apperr.Wrap(apperr.Io, "read chunk payload", err)
	}

	r.pos += int64(4+len(payload)) + int64(len(checksum))
	seq := r.seq
	r.seq++

	if r.Header.PerChunkChecksum {
		got := sha256.Sum256(payload)
		if !bytes.Equal(got[:], checksum) {
			return Frame{}, apperr.WrapStage(apperr.Integrity, "container.Reader", seq, "per-chunk checksum mismatch", nil)
		}
	}

	return Frame{Payload: payload, Checksum: checksum}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if err := r.f.Close(); err != nil {
		return apperr.Wrap(apperr.Io, "close container", err)
	}
	return nil
}

func readLengthPrefixed(f *os.File) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, apperr.Wrap(apperr.Io, "read length prefix", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(f, body); err != nil {
		return nil, apperr.Wrap(apperr.Io, "read length-prefixed body", err)
	}
	return body, nil
}
