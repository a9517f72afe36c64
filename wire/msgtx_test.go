package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notesuite/notewallet/notecrypto"
)

func sampleTx() *MsgTx {
	tx := NewMsgTx()
	tx.UnlockTime = 42
	tx.Extra = []byte("payment id")
	tx.TxPublicKey[0] = 0xaa

	in := &TxIn{
		Amount:        50000,
		GlobalIndices: []uint32{3, 17, 128, 4000},
	}
	in.KeyImage[0] = 0x01
	tx.AddTxIn(in)

	out := &TxOut{Amount: 40000}
	out.TargetKey[0] = 0x02
	tx.AddTxOut(out)
	tx.AddTxOut(&TxOut{Amount: 9000})

	tx.Signatures = [][]notecrypto.Signature{
		make([]notecrypto.Signature, len(in.GlobalIndices)),
	}
	tx.Signatures[0][0][0] = 0x7f
	return tx
}

func TestMsgTxSerializeRoundTrip(t *testing.T) {
	tx := sampleTx()

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	require.Equal(t, tx.SerializeSize(), buf.Len())

	var decoded MsgTx
	require.NoError(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
	require.Equal(t, tx, &decoded)
}

func TestMsgTxHashStability(t *testing.T) {
	tx := sampleTx()
	first := tx.TxHash()
	second := tx.TxHash()
	require.Equal(t, first, second)

	// The prefix hash must not cover the signatures.
	prefixBefore := tx.PrefixHash()
	tx.Signatures[0][1][0] ^= 0xff
	require.Equal(t, prefixBefore, tx.PrefixHash())
	require.NotEqual(t, first, tx.TxHash())
}

func TestMsgTxDeserializeRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, 99))

	var decoded MsgTx
	require.Error(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
}

func TestMsgTxDeserializeRejectsOversizedExtra(t *testing.T) {
	tx := sampleTx()
	tx.Extra = make([]byte, MaxExtraSize+1)

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	var decoded MsgTx
	require.Error(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, 1 << 32, 1<<64 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		require.Equal(t, VarIntSerializeSize(v), buf.Len())

		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
