// Package wkbhex decodes hex encoded Well-Known-Binary geometries, including the PostGIS
// extended flavour (EWKB) that carries an SRID in its header.
package wkbhex

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
)

const (
	bigEndian    byte = 0
	littleEndian byte = 1

	headerSize = 5
	sridSize   = 4

	// EWKB type word flags (PostGIS)
	ewkbZFlag    uint32 = 0x80000000
	ewkbMFlag    uint32 = 0x40000000
	ewkbSRIDFlag uint32 = 0x20000000
)

var (
	ErrEmpty          = errors.New("empty geometry")
	ErrTruncated      = errors.New("truncated header")
	ErrByteOrder      = errors.New("invalid byte order")
	ErrDimensionality = errors.New("z and m coordinates are not supported")
)

// DecodeError is returned for every value that cannot be turned into a geometry.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode WKB: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Geometry is a decoded geometry together with the SRID found in an EWKB header.
// SRID is 0 for plain WKB.
type Geometry struct {
	geom.Geometry
	SRID int
}

// Decode decodes a hex string into a geometry.
// A PostgreSQL bytea prefix (`\x`) and surrounding whitespace are ignored.
func Decode(s string) (Geometry, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), `\x`)
	b, err := hex.DecodeString(s)
	if err != nil {
		return Geometry{}, &DecodeError{Err: err}
	}
	return DecodeBytes(b)
}

// DecodeBytes decodes (E)WKB bytes into a geometry.
func DecodeBytes(b []byte) (Geometry, error) {
	plain, srid, err := stripSRID(b)
	if err != nil {
		return Geometry{}, &DecodeError{Err: err}
	}
	g, err := wkb.DecodeBytes(plain)
	if err != nil {
		return Geometry{}, &DecodeError{Err: err}
	}
	if g == nil {
		return Geometry{}, &DecodeError{Err: ErrEmpty}
	}
	return Geometry{Geometry: g, SRID: srid}, nil
}

// stripSRID rewrites an EWKB header into a plain WKB header.
// Only the outermost geometry carries the SRID, nested geometries are left alone.
func stripSRID(b []byte) ([]byte, int, error) {
	if len(b) == 0 {
		return nil, 0, ErrEmpty
	}
	if len(b) < headerSize {
		return nil, 0, ErrTruncated
	}

	var order binary.ByteOrder
	switch b[0] {
	case bigEndian:
		order = binary.BigEndian
	case littleEndian:
		order = binary.LittleEndian
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrByteOrder, b[0])
	}

	typ := order.Uint32(b[1:headerSize])
	if typ&(ewkbZFlag|ewkbMFlag) != 0 {
		return nil, 0, ErrDimensionality
	}
	if typ&ewkbSRIDFlag == 0 {
		return b, 0, nil
	}
	if len(b) < headerSize+sridSize {
		return nil, 0, ErrTruncated
	}

	srid := int(int32(order.Uint32(b[headerSize : headerSize+sridSize])))
	plain := make([]byte, len(b)-sridSize)
	plain[0] = b[0]
	order.PutUint32(plain[1:headerSize], typ&^ewkbSRIDFlag)
	copy(plain[headerSize:], b[headerSize+sridSize:])
	return plain, srid, nil
}
