package wallet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/internal/zero"
	"github.com/notesuite/notewallet/notecrypto"
	"github.com/notesuite/notewallet/snacl"
	"github.com/notesuite/notewallet/waddrmgr"
	"github.com/notesuite/notewallet/wtxmgr"
)

// The wallet snapshot format: a magic tag and version, the marshalled scrypt
// parameters, then a single secretbox holding the binary snapshot of every
// wallet field.  The detail flag controls whether transactions and transfers
// are included; the cache flag controls the derived state (balances, spent
// outputs, unlock jobs, change).
var snapshotMagic = [4]byte{'N', 'T', 'W', 'S'}

const snapshotVersion = 1

const (
	snapshotFlagDetails = 1 << 0
	snapshotFlagCache   = 1 << 1
)

// unsafeSave writes the encrypted snapshot.  The ready gate must be held and
// the synchronizer stopped.
func (w *Wallet) unsafeSave(destination io.Writer, saveDetails, saveCache bool) error {
	plaintext := w.encodeSnapshot(saveDetails, saveCache)
	defer zero.Bytes(plaintext)

	password := []byte(w.password)
	defer zero.Bytes(password)

	key, err := snacl.NewSecretKey(&password, snacl.DefaultN, snacl.DefaultR,
		snacl.DefaultP)
	if err != nil {
		return walletError(ErrInternalWallet, "cannot derive snapshot key", err)
	}
	defer key.Zero()

	encrypted, err := key.Encrypt(plaintext)
	if err != nil {
		return walletError(ErrInternalWallet, "cannot encrypt snapshot", err)
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	writeUint32(&buf, snapshotVersion)
	marshalledKey := key.Marshal()
	writeUint32(&buf, uint32(len(marshalledKey)))
	buf.Write(marshalledKey)
	writeUint32(&buf, uint32(len(encrypted)))
	buf.Write(encrypted)

	_, err = destination.Write(buf.Bytes())
	return err
}

// unsafeLoad restores the wallet from an encrypted snapshot, re-subscribing
// every identity with the synchronizer.  The ready gate must be held.
func (w *Wallet) unsafeLoad(source io.Reader, password string) error {
	header := make([]byte, 8)
	if _, err := io.ReadFull(source, header); err != nil {
		return walletError(ErrInternalWallet, "cannot read snapshot header", err)
	}
	if !bytes.Equal(header[:4], snapshotMagic[:]) {
		return walletError(ErrInternalWallet, "not a wallet snapshot", nil)
	}
	if version := binary.LittleEndian.Uint32(header[4:]); version != snapshotVersion {
		str := fmt.Sprintf("unsupported snapshot version %d", version)
		return walletError(ErrInternalWallet, str, nil)
	}

	marshalledKey, err := readLengthPrefixed(source)
	if err != nil {
		return walletError(ErrInternalWallet, "cannot read snapshot key", err)
	}
	encrypted, err := readLengthPrefixed(source)
	if err != nil {
		return walletError(ErrInternalWallet, "cannot read snapshot body", err)
	}

	var key snacl.SecretKey
	if err := key.Unmarshal(marshalledKey); err != nil {
		return walletError(ErrInternalWallet, "corrupt snapshot key", err)
	}
	defer key.Zero()

	passwordBytes := []byte(password)
	defer zero.Bytes(passwordBytes)
	if err := key.DeriveKey(&passwordBytes); err != nil {
		if err == snacl.ErrInvalidPassword {
			return walletError(ErrWrongPassword, "wrong wallet password", nil)
		}
		return walletError(ErrInternalWallet, "cannot derive snapshot key", err)
	}

	plaintext, err := key.Decrypt(encrypted)
	if err != nil {
		return walletError(ErrWrongPassword, "cannot decrypt snapshot", err)
	}
	defer zero.Bytes(plaintext)

	return w.decodeSnapshot(plaintext)
}

// encodeSnapshot serializes every field of the wallet state.
func (w *Wallet) encodeSnapshot(saveDetails, saveCache bool) []byte {
	var buf bytes.Buffer

	var flags byte
	if saveDetails {
		flags |= snapshotFlagDetails
	}
	if saveCache {
		flags |= snapshotFlagCache
	}
	buf.WriteByte(flags)

	viewPub := w.manager.ViewPublicKey()
	viewSec := w.manager.ViewSecretKey()
	buf.Write(viewPub[:])
	buf.Write(viewSec[:])

	records := w.manager.Records()
	walletIndex := make(map[*waddrmgr.WalletRecord]uint32, len(records))
	containerIndex := make(map[chain.TransfersContainer]uint32, len(records))
	writeUint32(&buf, uint32(len(records)))
	for i, rec := range records {
		walletIndex[rec] = uint32(i)
		containerIndex[rec.Container] = uint32(i)
		buf.Write(rec.SpendPublicKey[:])
		buf.Write(rec.SpendSecretKey[:])
		writeUint64(&buf, uint64(rec.CreationTime.Unix()))
		if saveCache {
			writeUint64(&buf, rec.ActualBalance)
			writeUint64(&buf, rec.PendingBalance)
		}
	}

	if saveCache {
		writeUint64(&buf, w.actualBalance)
		writeUint64(&buf, w.pendingBalance)
	}

	if saveDetails {
		txs := w.txStore.TxRecords()
		writeUint32(&buf, uint32(len(txs)))
		for _, tx := range txs {
			buf.WriteByte(byte(tx.State))
			writeUint64(&buf, tx.CreationTime)
			writeUint64(&buf, tx.Timestamp)
			writeUint32(&buf, tx.BlockHeight)
			writeUint64(&buf, tx.UnlockTime)
			writeUint64(&buf, uint64(tx.TotalAmount))
			writeUint64(&buf, tx.Fee)
			buf.Write(tx.Hash[:])
			writeUint32(&buf, uint32(len(tx.Extra)))
			buf.Write(tx.Extra)
		}

		entries := w.txStore.TransferEntries()
		writeUint32(&buf, uint32(len(entries)))
		for _, entry := range entries {
			writeUint32(&buf, uint32(entry.TxID))
			writeUint32(&buf, uint32(len(entry.Transfer.Address)))
			buf.WriteString(entry.Transfer.Address)
			writeUint64(&buf, uint64(entry.Transfer.Amount))
		}
	}

	if saveCache {
		spent := w.txStore.SpentOutputs()
		writeUint32(&buf, uint32(len(spent)))
		for _, entry := range spent {
			writeUint64(&buf, entry.Amount)
			buf.Write(entry.OutPoint.Hash[:])
			writeUint32(&buf, entry.OutPoint.Index)
			writeUint32(&buf, walletIndex[entry.Wallet])
			buf.Write(entry.SpendingHash[:])
		}

		jobs := w.txStore.UnlockJobs()
		writeUint32(&buf, uint32(len(jobs)))
		for _, job := range jobs {
			writeUint32(&buf, job.Height)
			writeUint32(&buf, containerIndex[job.Container])
			buf.Write(job.Hash[:])
		}

		change := w.txStore.ChangeEntries()
		writeUint32(&buf, uint32(len(change)))
		for _, entry := range change {
			buf.Write(entry.SpendingHash[:])
			writeUint64(&buf, entry.Amount)
		}
	}

	return buf.Bytes()
}

// decodeSnapshot restores state serialized by encodeSnapshot.  On any error
// the partially restored subscriptions are dropped again.
func (w *Wallet) decodeSnapshot(plaintext []byte) error {
	r := &snapshotReader{buf: plaintext}

	flags := r.readByte()
	saveDetails := flags&snapshotFlagDetails != 0
	saveCache := flags&snapshotFlagCache != 0

	var viewPub notecrypto.PublicKey
	var viewSec notecrypto.SecretKey
	r.read(viewPub[:])
	r.read(viewSec[:])
	if r.err != nil {
		return walletError(ErrInternalWallet, "corrupt snapshot", r.err)
	}

	manager := waddrmgr.NewManager(w.chainParams, w.synchronizer, w.clock,
		viewPub, viewSec)
	txStore := wtxmgr.NewStore()

	fail := func(desc string, err error) error {
		manager.Clear()
		return walletError(ErrInternalWallet, desc, err)
	}

	walletCount := r.readUint32()
	records := make([]*waddrmgr.WalletRecord, 0, walletCount)
	var aggActual, aggPending uint64
	for i := uint32(0); i < walletCount; i++ {
		var spendPub notecrypto.PublicKey
		var spendSec notecrypto.SecretKey
		r.read(spendPub[:])
		r.read(spendSec[:])
		creation := time.Unix(int64(r.readUint64()), 0)
		var actual, pending uint64
		if saveCache {
			actual = r.readUint64()
			pending = r.readUint64()
		}
		if r.err != nil {
			return fail("corrupt wallet record", r.err)
		}

		rec, err := manager.AddWithCreationTime(spendPub, spendSec, creation)
		if err != nil {
			return fail("cannot restore subscription", err)
		}
		rec.ActualBalance = actual
		rec.PendingBalance = pending
		records = append(records, rec)
	}

	if saveCache {
		aggActual = r.readUint64()
		aggPending = r.readUint64()
	}

	if saveDetails {
		txCount := r.readUint32()
		for i := uint32(0); i < txCount; i++ {
			var tx wtxmgr.TxRecord
			tx.State = wtxmgr.TxState(r.readByte())
			tx.CreationTime = r.readUint64()
			tx.Timestamp = r.readUint64()
			tx.BlockHeight = r.readUint32()
			tx.UnlockTime = r.readUint64()
			tx.TotalAmount = int64(r.readUint64())
			tx.Fee = r.readUint64()
			r.read(tx.Hash[:])
			tx.Extra = r.readBytes(int(r.readUint32()))
			if r.err != nil {
				return fail("corrupt transaction record", r.err)
			}
			txStore.AppendTx(tx)
		}

		entryCount := r.readUint32()
		for i := uint32(0); i < entryCount; i++ {
			txID := int(r.readUint32())
			address := string(r.readBytes(int(r.readUint32())))
			amount := int64(r.readUint64())
			if r.err != nil {
				return fail("corrupt transfer record", r.err)
			}
			txStore.AppendTransferEntry(wtxmgr.TransferEntry{
				TxID:     txID,
				Transfer: wtxmgr.Transfer{Address: address, Amount: amount},
			})
		}
	}

	if saveCache {
		spentCount := r.readUint32()
		for i := uint32(0); i < spentCount; i++ {
			var entry wtxmgr.SpentOutput
			entry.Amount = r.readUint64()
			r.read(entry.OutPoint.Hash[:])
			entry.OutPoint.Index = r.readUint32()
			owner := r.readUint32()
			r.read(entry.SpendingHash[:])
			if r.err != nil || owner >= uint32(len(records)) {
				return fail("corrupt spent-output record", r.err)
			}
			entry.Wallet = records[owner]
			if err := txStore.RestoreSpentOutput(entry); err != nil {
				return fail("cannot restore spent output", err)
			}
		}

		jobCount := r.readUint32()
		for i := uint32(0); i < jobCount; i++ {
			height := r.readUint32()
			owner := r.readUint32()
			var hash chainhash.Hash
			r.read(hash[:])
			if r.err != nil || owner >= uint32(len(records)) {
				return fail("corrupt unlock job", r.err)
			}
			txStore.EnqueueUnlockJob(hash, height, records[owner].Container)
		}

		changeCount := r.readUint32()
		for i := uint32(0); i < changeCount; i++ {
			var hash chainhash.Hash
			r.read(hash[:])
			amount := r.readUint64()
			if r.err != nil {
				return fail("corrupt change record", r.err)
			}
			txStore.SetChange(hash, amount)
		}
	}

	w.manager = manager
	w.txStore = txStore
	w.actualBalance = aggActual
	w.pendingBalance = aggPending
	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBytes[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// snapshotReader is a sticky-error cursor over a decoded snapshot.
type snapshotReader struct {
	buf []byte
	err error
}

func (r *snapshotReader) read(dst []byte) {
	if r.err != nil {
		return
	}
	if len(r.buf) < len(dst) {
		r.err = io.ErrUnexpectedEOF
		return
	}
	copy(dst, r.buf[:len(dst)])
	r.buf = r.buf[len(dst):]
}

func (r *snapshotReader) readByte() byte {
	var b [1]byte
	r.read(b[:])
	return b[0]
}

func (r *snapshotReader) readUint32() uint32 {
	var b [4]byte
	r.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *snapshotReader) readUint64() uint64 {
	var b [8]byte
	r.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (r *snapshotReader) readBytes(n int) []byte {
	if r.err != nil || n == 0 {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, n)
	r.read(b)
	return b
}
