// Package netcdf reads global attributes out of a classic-format
// (CDF-1/2/5) netCDF file header, without opening the data payload. The
// retrieval corpus carries no pure-Go, cgo-free netCDF4/HDF5 library, so
// this is a deliberately minimal implementation of the public CDF
// classic-format header layout, scoped to exactly what the "complete"
// CMIP6 ingest parser needs: global attribute strings.
//
// Modern CMOR output is usually netCDF4 (an HDF5 container), which this
// package does not parse; callers needing attributes from an HDF5-backed
// file should fall back to the "drs" (path-based) parser. This gap is a
// standard-library-only component by necessity, not by choice.
package netcdf

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	ncByte   = 1
	ncChar   = 2
	ncShort  = 3
	ncInt    = 4
	ncFloat  = 5
	ncDouble = 6

	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C
)

// GlobalAttributes returns the global (file-level) attributes of a
// classic-format netCDF file at path, as strings (numeric attribute
// values are formatted, not interpreted).
func GlobalAttributes(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := &reader{f: f}
	return r.parse()
}

type reader struct {
	f   *os.File
	pos int64
}

func (r *reader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.f.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) readString() (string, error) {
	nameLen, err := r.readU32()
	if err != nil {
		return "", err
	}
	padded := int((nameLen + 3) / 4 * 4)
	b, err := r.readN(padded)
	if err != nil {
		return "", err
	}
	return string(b[:nameLen]), nil
}

func (r *reader) parse() (map[string]string, error) {
	magic, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	if string(magic[:3]) != "CDF" {
		return nil, fmt.Errorf("netcdf: not a classic-format file (magic=%q)", magic)
	}
	version := magic[3]
	if version != 1 && version != 2 && version != 5 {
		return nil, fmt.Errorf("netcdf: unsupported classic format version %d (likely HDF5/netCDF4)", version)
	}

	// numrecs
	if _, err := r.readU32(); err != nil {
		return nil, err
	}

	if err := r.skipList(tagDimension, r.skipDimension); err != nil {
		return nil, fmt.Errorf("netcdf: skipping dim_list: %w", err)
	}

	attrs, err := r.readAttributeList(tagAttribute)
	if err != nil {
		return nil, fmt.Errorf("netcdf: reading gatt_list: %w", err)
	}
	return attrs, nil
}

func (r *reader) skipList(expectedTag uint32, skipOne func() error) error {
	tag, err := r.readU32()
	if err != nil {
		return err
	}
	if tag == 0 {
		// ABSENT marker is tag=0, nelems=0.
		if _, err := r.readU32(); err != nil {
			return err
		}
		return nil
	}
	if tag != expectedTag {
		return fmt.Errorf("unexpected tag 0x%x, want 0x%x", tag, expectedTag)
	}
	n, err := r.readU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if err := skipOne(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) skipDimension() error {
	if _, err := r.readString(); err != nil {
		return err
	}
	_, err := r.readU32() // dim_length
	return err
}

func (r *reader) readAttributeList(expectedTag uint32) (map[string]string, error) {
	tag, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		if _, err := r.readU32(); err != nil {
			return nil, err
		}
		return map[string]string{}, nil
	}
	if tag != expectedTag {
		return nil, fmt.Errorf("unexpected tag 0x%x, want 0x%x", tag, expectedTag)
	}
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		ncType, err := r.readU32()
		if err != nil {
			return nil, err
		}
		nelems, err := r.readU32()
		if err != nil {
			return nil, err
		}
		value, err := r.readAttributeValue(ncType, nelems)
		if err != nil {
			return nil, err
		}
		attrs[name] = value
	}
	return attrs, nil
}

func (r *reader) readAttributeValue(ncType, nelems uint32) (string, error) {
	elemSize := map[uint32]int{ncByte: 1, ncChar: 1, ncShort: 2, ncInt: 4, ncFloat: 4, ncDouble: 8}[ncType]
	if elemSize == 0 {
		elemSize = 1
	}
	raw := int(nelems) * elemSize
	padded := (raw + 3) / 4 * 4
	b, err := r.readN(padded)
	if err != nil {
		return "", err
	}
	if ncType == ncChar {
		return string(b[:raw]), nil
	}
	// Numeric attributes are rare on CMOR global attrs; surface their
	// raw byte length rather than decoding every nc_type precisely.
	return fmt.Sprintf("<%d bytes of nc_type %d>", raw, ncType), nil
}
