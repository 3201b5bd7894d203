package dense

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

const (
	fileMagic   = "DRVX"
	fileVersion = uint32(1)
)

// header is the fixed prefix of a vector file.
type header struct {
	Magic     [4]byte
	Version   uint32
	Dimension uint32
	Count     uint32
}

// WriteTo serializes the index as a flat little-endian file: header, then
// Count rows of Dimension float32 values in chunk id order.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	h := header{Version: fileVersion, Dimension: uint32(idx.dim), Count: uint32(len(idx.rows))}
	copy(h.Magic[:], fileMagic)
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	written := int64(binary.Size(h))

	buf := make([]byte, 4*idx.dim)
	for _, row := range idx.rows {
		for j, x := range row {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(x))
		}
		n, err := bw.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// headerSize is the encoded size of header.
const headerSize = 16

// Read parses a vector file produced by WriteTo. size is the total byte
// length of r; a header whose row count and dimension disagree with it is
// rejected before any rows are allocated.
func Read(r io.Reader, size int64) (*Index, error) {
	br := bufio.NewReader(io.LimitReader(r, size))
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(h.Magic[:]) != fileMagic {
		return nil, ErrBadMagic
	}
	if h.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	if err := checkSize(h, size); err != nil {
		return nil, err
	}

	idx := &Index{dim: int(h.Dimension), rows: make([][]float32, h.Count)}
	buf := make([]byte, 4*idx.dim)
	for i := range idx.rows {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("reading row %d: %w", i, err)
		}
		row := make([]float32, idx.dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		idx.rows[i] = row
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after %d rows", h.Count)
	}
	return idx, nil
}

// checkSize verifies that size holds exactly h.Count rows of h.Dimension
// float32 values after the header.
func checkSize(h header, size int64) error {
	payload := size - headerSize
	rowBytes := int64(h.Dimension) * 4
	switch {
	case h.Count == 0 && payload == 0:
		return nil
	case rowBytes == 0, payload%rowBytes != 0, payload/rowBytes != int64(h.Count):
		return fmt.Errorf("%w: header declares %d rows of %d dimensions, file has %d bytes",
			ErrSizeMismatch, h.Count, h.Dimension, size)
	}
	return nil
}

// Save writes the index to path atomically via a temp file and rename.
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vectors-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := idx.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a vector file from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Read(f, info.Size())
}
