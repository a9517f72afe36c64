// Package wire implements the note transaction wire format.
package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/notecrypto"
)

// TxVersion is the current transaction version.
const TxVersion = 1

// MaxExtraSize is the maximum number of bytes the extra field may carry.
const MaxExtraSize = 1024

// TxIn spends one output hidden inside a ring.  GlobalIndices lists the
// global output indices of every ring member in ascending order; KeyImage
// links double spends of the real member.
type TxIn struct {
	Amount        uint64
	GlobalIndices []uint32
	KeyImage      notecrypto.KeyImage
}

// TxOut is a one-time keyed output of a fixed denomination.
type TxOut struct {
	Amount    uint64
	TargetKey notecrypto.PublicKey
}

// MsgTx is a note transaction.  One ring signature group exists per input,
// with as many elements as the input's ring has members.
type MsgTx struct {
	Version     int32
	UnlockTime  uint64
	TxIns       []*TxIn
	TxOuts      []*TxOut
	Extra       []byte
	TxPublicKey notecrypto.PublicKey
	Signatures  [][]notecrypto.Signature
}

// NewMsgTx returns an empty transaction of the current version.
func NewMsgTx() *MsgTx {
	return &MsgTx{Version: TxVersion}
}

// AddTxIn appends txIn to the transaction inputs.
func (msg *MsgTx) AddTxIn(txIn *TxIn) {
	msg.TxIns = append(msg.TxIns, txIn)
}

// AddTxOut appends txOut to the transaction outputs.
func (msg *MsgTx) AddTxOut(txOut *TxOut) {
	msg.TxOuts = append(msg.TxOuts, txOut)
}

// serializePrefix writes every field the signatures commit to.
func (msg *MsgTx) serializePrefix(w io.Writer) error {
	if err := WriteVarInt(w, uint64(msg.Version)); err != nil {
		return err
	}
	if err := WriteVarInt(w, msg.UnlockTime); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIns))); err != nil {
		return err
	}
	for _, ti := range msg.TxIns {
		if err := WriteVarInt(w, ti.Amount); err != nil {
			return err
		}
		if err := WriteVarInt(w, uint64(len(ti.GlobalIndices))); err != nil {
			return err
		}
		for _, idx := range ti.GlobalIndices {
			if err := WriteVarInt(w, uint64(idx)); err != nil {
				return err
			}
		}
		if _, err := w.Write(ti.KeyImage[:]); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOuts))); err != nil {
		return err
	}
	for _, to := range msg.TxOuts {
		if err := WriteVarInt(w, to.Amount); err != nil {
			return err
		}
		if _, err := w.Write(to.TargetKey[:]); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.Extra))); err != nil {
		return err
	}
	if _, err := w.Write(msg.Extra); err != nil {
		return err
	}
	_, err := w.Write(msg.TxPublicKey[:])
	return err
}

// Serialize encodes the transaction to w.
func (msg *MsgTx) Serialize(w io.Writer) error {
	if err := msg.serializePrefix(w); err != nil {
		return err
	}

	for _, group := range msg.Signatures {
		for _, sig := range group {
			if _, err := w.Write(sig[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Deserialize decodes a transaction from r.  The signature section length is
// implied by the ring sizes of the decoded inputs.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	version, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if version != TxVersion {
		return fmt.Errorf("unsupported transaction version %d", version)
	}
	msg.Version = int32(version)

	if msg.UnlockTime, err = ReadVarInt(r); err != nil {
		return err
	}

	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	numIns, err := checkedCount(inCount, "input")
	if err != nil {
		return err
	}
	msg.TxIns = make([]*TxIn, 0, numIns)
	for i := 0; i < numIns; i++ {
		ti := &TxIn{}
		if ti.Amount, err = ReadVarInt(r); err != nil {
			return err
		}
		ringCount, err := ReadVarInt(r)
		if err != nil {
			return err
		}
		ringSize, err := checkedCount(ringCount, "ring member")
		if err != nil {
			return err
		}
		ti.GlobalIndices = make([]uint32, ringSize)
		for j := 0; j < ringSize; j++ {
			idx, err := ReadVarInt(r)
			if err != nil {
				return err
			}
			ti.GlobalIndices[j] = uint32(idx)
		}
		if err := readElement(r, ti.KeyImage[:]); err != nil {
			return err
		}
		msg.TxIns = append(msg.TxIns, ti)
	}

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	numOuts, err := checkedCount(outCount, "output")
	if err != nil {
		return err
	}
	msg.TxOuts = make([]*TxOut, 0, numOuts)
	for i := 0; i < numOuts; i++ {
		to := &TxOut{}
		if to.Amount, err = ReadVarInt(r); err != nil {
			return err
		}
		if err := readElement(r, to.TargetKey[:]); err != nil {
			return err
		}
		msg.TxOuts = append(msg.TxOuts, to)
	}

	extraLen, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if extraLen > MaxExtraSize {
		return fmt.Errorf("extra size %d exceeds limit %d", extraLen,
			MaxExtraSize)
	}
	msg.Extra = make([]byte, extraLen)
	if err := readElement(r, msg.Extra); err != nil {
		return err
	}
	if err := readElement(r, msg.TxPublicKey[:]); err != nil {
		return err
	}

	msg.Signatures = make([][]notecrypto.Signature, len(msg.TxIns))
	for i, ti := range msg.TxIns {
		msg.Signatures[i] = make([]notecrypto.Signature, len(ti.GlobalIndices))
		for j := range msg.Signatures[i] {
			if err := readElement(r, msg.Signatures[i][j][:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// SerializeSize returns the number of bytes Serialize would produce.
func (msg *MsgTx) SerializeSize() int {
	n := VarIntSerializeSize(uint64(msg.Version)) +
		VarIntSerializeSize(msg.UnlockTime) +
		VarIntSerializeSize(uint64(len(msg.TxIns))) +
		VarIntSerializeSize(uint64(len(msg.TxOuts))) +
		VarIntSerializeSize(uint64(len(msg.Extra))) +
		len(msg.Extra) + notecrypto.KeySize

	for _, ti := range msg.TxIns {
		n += VarIntSerializeSize(ti.Amount) +
			VarIntSerializeSize(uint64(len(ti.GlobalIndices))) +
			notecrypto.KeySize
		for _, idx := range ti.GlobalIndices {
			n += VarIntSerializeSize(uint64(idx))
		}
		n += len(ti.GlobalIndices) * notecrypto.SignatureSize
	}
	for _, to := range msg.TxOuts {
		n += VarIntSerializeSize(to.Amount) + notecrypto.KeySize
	}
	return n
}

// PrefixHash returns the digest the ring signatures commit to.
func (msg *MsgTx) PrefixHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.serializePrefix(&buf)
	return chainhash.HashH(buf.Bytes())
}

// TxHash returns the transaction hash over the full serialization.
func (msg *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.Serialize(&buf)
	return chainhash.HashH(buf.Bytes())
}
