// Package txauthor assembles and signs note transactions from prepared
// inputs and decomposed receiver amounts.
package txauthor

import (
	"errors"

	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/noteutil"
	"github.com/notesuite/notewallet/wire"
)

// ErrDerivedKeyMismatch is returned when the one-time secret key derived for
// a real input does not match the output key observed on chain.  It means
// the input does not belong to the signing identity.
var ErrDerivedKeyMismatch = errors.New("derived one-time key does not match output key")

// RingMember is one output of an input's ring, identified by its global
// output index.
type RingMember struct {
	GlobalIndex uint32
	TargetKey   notecrypto.PublicKey
}

// InputInfo carries everything needed to spend one real output hidden inside
// its ring: the ring ordered ascending by global index, the real member's
// position, the observed output data and the owning identity's spend secret.
type InputInfo struct {
	Amount uint64
	Ring   []RingMember

	// RealIndex is the position of the real member within Ring.  It is
	// stable across the ring because members are ordered by global
	// index.
	RealIndex int

	RealOutputKey            notecrypto.PublicKey
	RealTransactionPublicKey notecrypto.PublicKey
	RealOutputInTransaction  uint32

	SpendSecretKey notecrypto.SecretKey
}

// ReceiverAmounts pairs a parsed destination address with the decomposed
// denominations addressed to it.
type ReceiverAmounts struct {
	Receiver noteutil.Address
	Amounts  []uint64
}

// NewSignedTransaction builds a transaction paying the decomposed outputs,
// spending the prepared inputs, and signs every input in order with a ring
// signature over the transaction prefix.
func NewSignedTransaction(outputs []ReceiverAmounts, inputs []InputInfo,
	extra []byte, unlockTime uint64,
	viewSecretKey notecrypto.SecretKey) (*wire.MsgTx, error) {

	tx := wire.NewMsgTx()
	tx.UnlockTime = unlockTime
	tx.Extra = extra

	txPub, txSec, err := notecrypto.GenerateKeys()
	if err != nil {
		return nil, err
	}
	tx.TxPublicKey = txPub

	var outputIndex uint32
	for _, output := range outputs {
		derivation, err := notecrypto.GenerateKeyDerivation(
			output.Receiver.ViewPublicKey, txSec)
		if err != nil {
			return nil, err
		}
		for _, amount := range output.Amounts {
			target, err := notecrypto.DerivePublicKey(derivation,
				outputIndex, output.Receiver.SpendPublicKey)
			if err != nil {
				return nil, err
			}
			tx.AddTxOut(&wire.TxOut{Amount: amount, TargetKey: target})
			outputIndex++
		}
	}

	type preparedInput struct {
		ephemeralSecret notecrypto.SecretKey
		ephemeralPublic notecrypto.PublicKey
		keyImage        notecrypto.KeyImage
		ringKeys        []notecrypto.PublicKey
	}

	prepared := make([]preparedInput, 0, len(inputs))
	for _, input := range inputs {
		derivation, err := notecrypto.GenerateKeyDerivation(
			input.RealTransactionPublicKey, viewSecretKey)
		if err != nil {
			return nil, err
		}
		ephSec, err := notecrypto.DeriveSecretKey(derivation,
			input.RealOutputInTransaction, input.SpendSecretKey)
		if err != nil {
			return nil, err
		}
		ephPub, err := notecrypto.PublicFromSecret(ephSec)
		if err != nil {
			return nil, err
		}
		if ephPub != input.RealOutputKey {
			return nil, ErrDerivedKeyMismatch
		}

		keyImage, err := notecrypto.GenerateKeyImage(ephPub, ephSec)
		if err != nil {
			return nil, err
		}

		globalIndices := make([]uint32, len(input.Ring))
		ringKeys := make([]notecrypto.PublicKey, len(input.Ring))
		for i, member := range input.Ring {
			globalIndices[i] = member.GlobalIndex
			ringKeys[i] = member.TargetKey
		}

		tx.AddTxIn(&wire.TxIn{
			Amount:        input.Amount,
			GlobalIndices: globalIndices,
			KeyImage:      keyImage,
		})
		prepared = append(prepared, preparedInput{
			ephemeralSecret: ephSec,
			ephemeralPublic: ephPub,
			keyImage:        keyImage,
			ringKeys:        ringKeys,
		})
	}

	prefixHash := tx.PrefixHash()
	tx.Signatures = make([][]notecrypto.Signature, len(inputs))
	for i, input := range inputs {
		sigs, err := notecrypto.GenerateRingSignature(prefixHash,
			prepared[i].keyImage, prepared[i].ringKeys,
			prepared[i].ephemeralSecret, input.RealIndex)
		if err != nil {
			return nil, err
		}
		tx.Signatures[i] = sigs
	}

	return tx, nil
}
