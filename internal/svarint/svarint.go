// Package svarint encodes and decodes SQLite's variable-length integers:
// 1-9 bytes, most-significant-bit-first continuation for the first 8 bytes,
// all 8 bits of the 9th byte contributing to the result.
package svarint

import (
	"errors"
	"golang.org/x/exp/constraints"
	"math/bits"
)

// ErrTruncated is returned by Uvarint when buf ends before the varint does.
var ErrTruncated = errors.New("svarint: truncated varint")

// Uvarint decodes a varint from the start of buf, returning its value and
// the number of bytes consumed (1-9). It returns ErrTruncated if buf ends
// before a terminating byte (one without the continuation bit, or the 9th
// byte) is found.
func Uvarint(buf []byte) (uint64, int, error) {
	var x uint64
	n := len(buf)
	if n > 9 {
		n = 9
	}
	for i := 0; i < n; i++ {
		b := buf[i]
		if i == 8 {
			// The 9th byte contributes all 8 bits.
			return x<<8 | uint64(b), 9, nil
		}
		if b&0x80 == 0 {
			return x<<7 | uint64(b), i + 1, nil
		}
		x = x<<7 | uint64(b&0x7f)
	}
	return 0, 0, ErrTruncated
}

// Varint decodes a varint and reinterprets the 64-bit result as a two's
// complement signed integer, as SQLite does for the rowid of a table-leaf
// cell.
func Varint(buf []byte) (int64, int, error) {
	u, n, err := Uvarint(buf)
	return int64(u), n, err
}

func Append[T constraints.Integer](buf []byte, x T) []byte {
	xl := 64 - bits.LeadingZeros64(uint64(x))
	switch {
	case xl <= 7:
		return append(buf, byte(x))
	case xl <= 14:
		return append(buf, byte(x>>7)|0x80, byte(x)&^0x80)
	case xl <= 21:
		return append(buf, byte(x>>14)|0x80, byte(x>>7)|0x80, byte(x)&^0x80)
	case xl <= 28:
		return append(buf, byte(x>>21)|0x80, byte(x>>14)|0x80, byte(x>>7)|0x80, byte(x)&^0x80)
	case xl <= 35:
		return append(buf, byte(x>>28)|0x80, byte(x>>21)|0x80, byte(x>>14)|0x80, byte(x>>7)|0x80, byte(x)&^0x80)
	case xl <= 42:
		return append(buf, byte(x>>35)|0x80, byte(x>>28)|0x80, byte(x>>21)|0x80, byte(x>>14)|0x80, byte(x>>7)|0x80, byte(x)&^0x80)
	case xl <= 49:
		return append(buf, byte(x>>42)|0x80, byte(x>>35)|0x80, byte(x>>28)|0x80, byte(x>>21)|0x80, byte(x>>14)|0x80, byte(x>>7)|0x80, byte(x)&^0x80)
	case xl <= 56:
		return append(buf, byte(x>>49)|0x80, byte(x>>42)|0x80, byte(x>>35)|0x80, byte(x>>28)|0x80, byte(x>>21)|0x80, byte(x>>14)|0x80, byte(x>>7)|0x80, byte(x)&^0x80)
	default:
		return append(buf, byte(x>>57)|0x80, byte(x>>50)|0x80, byte(x>>43)|0x80, byte(x>>36)|0x80, byte(x>>29)|0x80, byte(x>>22)|0x80, byte(x>>15)|0x80, byte(x>>8)|0x80, byte(x))
	}
}

func Length[T constraints.Integer](x T) int {
	xl := 64 - bits.LeadingZeros64(uint64(x))
	switch {
	case xl <= 7:
		return 1
	case xl <= 14:
		return 2
	case xl <= 21:
		return 3
	case xl <= 28:
		return 4
	case xl <= 35:
		return 5
	case xl <= 42:
		return 6
	case xl <= 49:
		return 7
	case xl <= 56:
		return 8
	default:
		return 9
	}
}

func Put[T constraints.Integer](buf []byte, x T) {
	xl := 64 - bits.LeadingZeros64(uint64(x))
	switch {
	case xl <= 7:
		buf[0] = byte(x)
	case xl <= 14:
		buf[0] = byte(x>>7) | 0x80
		buf[1] = byte(x) &^ 0x80
	case xl <= 21:
		buf[0] = byte(x>>14) | 0x80
		buf[1] = byte(x>>7) | 0x80
		buf[2] = byte(x) &^ 0x80
	case xl <= 28:
		buf[0] = byte(x>>21) | 0x80
		buf[1] = byte(x>>14) | 0x80
		buf[2] = byte(x>>7) | 0x80
		buf[3] = byte(x) &^ 0x80
	case xl <= 35:
		buf[0] = byte(x>>28) | 0x80
		buf[1] = byte(x>>21) | 0x80
		buf[2] = byte(x>>14) | 0x80
		buf[3] = byte(x>>7) | 0x80
		buf[4] = byte(x) &^ 0x80
	case xl <= 42:
		buf[0] = byte(x>>35) | 0x80
		buf[1] = byte(x>>28) | 0x80
		buf[2] = byte(x>>21) | 0x80
		buf[3] = byte(x>>14) | 0x80
		buf[4] = byte(x>>7) | 0x80
		buf[5] = byte(x) &^ 0x80
	case xl <= 49:
		buf[0] = byte(x>>42) | 0x80
		buf[1] = byte(x>>35) | 0x80
		buf[2] = byte(x>>28) | 0x80
		buf[3] = byte(x>>21) | 0x80
		buf[4] = byte(x>>14) | 0x80
		buf[5] = byte(x>>7) | 0x80
		buf[6] = byte(x) &^ 0x80
	case xl <= 56:
		buf[0] = byte(x>>49) | 0x80
		buf[1] = byte(x>>42) | 0x80
		buf[2] = byte(x>>35) | 0x80
		buf[3] = byte(x>>28) | 0x80
		buf[4] = byte(x>>21) | 0x80
		buf[5] = byte(x>>14) | 0x80
		buf[6] = byte(x>>7) | 0x80
		buf[7] = byte(x) &^ 0x80
	default:
		buf[0] = byte(x>>57) | 0x80
		buf[1] = byte(x>>50) | 0x80
		buf[2] = byte(x>>43) | 0x80
		buf[3] = byte(x>>36) | 0x80
		buf[4] = byte(x>>29) | 0x80
		buf[5] = byte(x>>22) | 0x80
		buf[6] = byte(x>>15) | 0x80
		buf[7] = byte(x>>8) | 0x80
		buf[8] = byte(x)
	}
}

// BigEndianInt reads a big-endian, sign-extended integer of width bytes
// (1, 2, 3, 4, 6, or 8) from the start of buf, as used for SQLite record
// body values (serial types 1-6). Widths narrower than 8 bytes are
// sign-extended from their true width.
func BigEndianInt(buf []byte, width int) int64 {
	var u uint64
	for i := 0; i < width; i++ {
		u = u<<8 | uint64(buf[i])
	}
	shift := uint(64 - width*8)
	return int64(u<<shift) >> shift
}
