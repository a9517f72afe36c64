package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxVarIntPayload is the maximum payload size a variable length integer may
// announce before the decoder rejects it.  It bounds allocations when reading
// untrusted transaction data.
const maxVarIntPayload = 1 << 25

// WriteVarInt serializes val to w using a variable number of bytes.
func WriteVarInt(w io.Writer, val uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], val)
	_, err := w.Write(buf[:n])
	return err
}

// ReadVarInt reads a variable length integer from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	return binary.ReadUvarint(br)
}

type byteReader struct {
	r io.Reader
}

func (b *byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would take to
// serialize val.
func VarIntSerializeSize(val uint64) int {
	size := 1
	for val >= 0x80 {
		size++
		val >>= 7
	}
	return size
}

// readElement reads exactly len(buf) bytes into buf.
func readElement(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// checkedCount validates a decoded collection count against the payload
// bound.
func checkedCount(count uint64, what string) (int, error) {
	if count > maxVarIntPayload {
		return 0, fmt.Errorf("%s count %d too large", what, count)
	}
	return int(count), nil
}
