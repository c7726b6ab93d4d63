package data

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// The course ships embeddings and audio features as NPZ archives: a zip
// of NPY files, one per array. This reader covers the subset those
// files use: NPY v1.0/v2.0 headers, little-endian f8/f4, C order, 1-D
// and 2-D shapes.

var npyMagic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// Array is a dense numeric array read from an NPY file
type Array struct {
	Shape []int
	Data  []float64 // row-major
}

// Rows returns the first shape dimension, the row count the loaders
// align against
func (a *Array) Rows() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Matrix reshapes a 2-D array into per-row slices sharing the backing
// storage. 1-D arrays come back as a single row.
func (a *Array) Matrix() [][]float64 {
	switch len(a.Shape) {
	case 1:
		return [][]float64{a.Data}
	case 2:
		rows, cols := a.Shape[0], a.Shape[1]
		out := make([][]float64, rows)
		for i := 0; i < rows; i++ {
			out[i] = a.Data[i*cols : (i+1)*cols]
		}
		return out
	default:
		return nil
	}
}

// ReadNPY parses one NPY stream
func ReadNPY(r io.Reader) (*Array, error) {
	magic := make([]byte, 8)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read npy magic: %w", err)
	}
	for i, b := range npyMagic {
		if magic[i] != b {
			return nil, fmt.Errorf("not an npy file")
		}
	}
	major, minor := magic[6], magic[7]

	var headerLen int
	switch major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy v1 header length: %w", err)
		}
		headerLen = int(n)
	case 2:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy v2 header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d.%d", major, minor)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}

	descr, fortran, shape, err := parseNPYHeader(string(headerBytes))
	if err != nil {
		return nil, err
	}
	if fortran {
		return nil, fmt.Errorf("fortran-order npy arrays are not supported")
	}
	if len(shape) == 0 || len(shape) > 2 {
		return nil, fmt.Errorf("unsupported npy rank %d", len(shape))
	}

	var itemSize int
	switch descr {
	case "<f8", "|f8", "f8":
		itemSize = 8
	case "<f4", "|f4", "f4":
		itemSize = 4
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr)
	}

	count := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("negative npy dimension %d", dim)
		}
		count *= dim
	}

	raw := make([]byte, count*itemSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read npy payload: %w", err)
	}

	data := make([]float64, count)
	switch itemSize {
	case 8:
		for i := 0; i < count; i++ {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case 4:
		for i := 0; i < count; i++ {
			data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}

	return &Array{Shape: shape, Data: data}, nil
}

// parseNPYHeader pulls descr, fortran_order and shape out of the
// Python-dict header literal
func parseNPYHeader(header string) (descr string, fortran bool, shape []int, err error) {
	descr, err = headerString(header, "'descr'")
	if err != nil {
		return "", false, nil, err
	}

	fortranIdx := strings.Index(header, "'fortran_order'")
	if fortranIdx < 0 {
		return "", false, nil, fmt.Errorf("npy header missing fortran_order")
	}
	fortran = strings.HasPrefix(strings.TrimLeft(header[fortranIdx+len("'fortran_order'"):], ": \t"), "True")

	shapeIdx := strings.Index(header, "'shape'")
	if shapeIdx < 0 {
		return "", false, nil, fmt.Errorf("npy header missing shape")
	}
	open := strings.Index(header[shapeIdx:], "(")
	closeIdx := strings.Index(header[shapeIdx:], ")")
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return "", false, nil, fmt.Errorf("malformed npy shape in header %q", header)
	}
	shapeStr := header[shapeIdx+open+1 : shapeIdx+closeIdx]
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", false, nil, fmt.Errorf("malformed npy dimension %q: %w", part, convErr)
		}
		shape = append(shape, dim)
	}
	if len(shape) == 0 {
		return "", false, nil, fmt.Errorf("scalar npy arrays are not supported")
	}

	return descr, fortran, shape, nil
}

// headerString extracts a quoted string value for the given quoted key
func headerString(header, key string) (string, error) {
	idx := strings.Index(header, key)
	if idx < 0 {
		return "", fmt.Errorf("npy header missing %s", key)
	}
	rest := header[idx+len(key):]
	start := strings.Index(rest, "'")
	if start < 0 {
		return "", fmt.Errorf("malformed npy header value for %s", key)
	}
	end := strings.Index(rest[start+1:], "'")
	if end < 0 {
		return "", fmt.Errorf("malformed npy header value for %s", key)
	}
	return rest[start+1 : start+1+end], nil
}

// ReadNPZ reads every array in an NPZ archive, keyed by entry name with
// the .npy suffix stripped
func ReadNPZ(path string) (map[string]*Array, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open npz %s: %w", path, err)
	}
	defer zr.Close()

	arrays := make(map[string]*Array, len(zr.File))
	for _, entry := range zr.File {
		name := strings.TrimSuffix(entry.Name, ".npy")

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open npz entry %s: %w", entry.Name, err)
		}
		arr, err := ReadNPY(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("npz entry %s: %w", entry.Name, err)
		}
		arrays[name] = arr
	}

	return arrays, nil
}

// ReadNPZKey reads a single named array from an NPZ archive
func ReadNPZKey(path, key string) (*Array, error) {
	arrays, err := ReadNPZ(path)
	if err != nil {
		return nil, err
	}
	arr, ok := arrays[key]
	if !ok {
		return nil, fmt.Errorf("npz %s has no array %q", path, key)
	}
	return arr, nil
}
