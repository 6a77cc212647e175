package io

import (
	"encoding/binary"
	"io"
)

// BinWriter writes binary data into an io.Writer. The first write error is
// kept in Err and turns every subsequent write into a no-op, so encoders
// check it once at the end.
type BinWriter struct {
	w   io.Writer
	Err error
	buf [9]byte
}

// NewBinWriterFromIO makes a BinWriter from io.Writer.
func NewBinWriterFromIO(iow io.Writer) *BinWriter {
	return &BinWriter{w: iow}
}

// WriteU64LE writes a little-endian uint64.
func (w *BinWriter) WriteU64LE(v uint64) {
	w.WriteBytes(binary.LittleEndian.AppendUint64(w.buf[:0], v))
}

// WriteU64BE writes a big-endian uint64.
func (w *BinWriter) WriteU64BE(v uint64) {
	w.WriteBytes(binary.BigEndian.AppendUint64(w.buf[:0], v))
}

// WriteU32LE writes a little-endian uint32.
func (w *BinWriter) WriteU32LE(v uint32) {
	w.WriteBytes(binary.LittleEndian.AppendUint32(w.buf[:0], v))
}

// WriteU32BE writes a big-endian uint32.
func (w *BinWriter) WriteU32BE(v uint32) {
	w.WriteBytes(binary.BigEndian.AppendUint32(w.buf[:0], v))
}

// WriteU16BE writes a big-endian uint16.
func (w *BinWriter) WriteU16BE(v uint16) {
	w.WriteBytes(binary.BigEndian.AppendUint16(w.buf[:0], v))
}

// WriteB writes a single byte.
func (w *BinWriter) WriteB(b byte) {
	w.buf[0] = b
	w.WriteBytes(w.buf[:1])
}

// WriteBool writes a boolean as a 0 or 1 byte.
func (w *BinWriter) WriteBool(b bool) {
	if b {
		w.WriteB(1)
	} else {
		w.WriteB(0)
	}
}

// WriteArray writes the length-prefixed slice of encodable elements.
func WriteArray[E any, PE interface {
	*E
	encodable
}](w *BinWriter, arr []E) {
	w.WriteVarUint(uint64(len(arr)))
	for i := range arr {
		PE(&arr[i]).EncodeBinary(w)
	}
}

// WriteVarUint writes an integer in the variable-length form: values below
// 0xfd take one byte, bigger ones are prefixed with 0xfd, 0xfe or 0xff
// followed by a little-endian uint16, uint32 or uint64.
func (w *BinWriter) WriteVarUint(val uint64) {
	b := w.buf[:0]
	switch {
	case val < 0xfd:
		b = append(b, byte(val))
	case val < 0xffff:
		b = binary.LittleEndian.AppendUint16(append(b, 0xfd), uint16(val))
	case val < 0xffffffff:
		b = binary.LittleEndian.AppendUint32(append(b, 0xfe), uint32(val))
	default:
		b = binary.LittleEndian.AppendUint64(append(b, 0xff), val)
	}
	w.WriteBytes(b)
}

// WriteBytes writes b as is, without length prefix.
func (w *BinWriter) WriteBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.w.Write(b)
}

// WriteVarBytes writes the length-prefixed byte slice.
func (w *BinWriter) WriteVarBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.WriteBytes(b)
}

// WriteString writes the length-prefixed string.
func (w *BinWriter) WriteString(s string) {
	w.WriteVarUint(uint64(len(s)))
	if w.Err != nil {
		return
	}
	_, w.Err = io.WriteString(w.w, s)
}
