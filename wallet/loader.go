package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// walletDbName is the file name of the wallet database inside the network
// directory.
const walletDbName = "wallet.db"

var (
	// ErrWalletExists describes the error condition of attempting to
	// create a new wallet when one exists already.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrWalletNotFound describes the error condition of attempting to
	// open a wallet when one does not exist.
	ErrWalletNotFound = errors.New("wallet file does not exist")

	snapshotBucketKey = []byte("walletsnapshot")
	snapshotDataKey   = []byte("snapshot")
)

// Loader stores encrypted wallet snapshots in a single-file database inside
// a network directory.  Save produces the snapshot stream and the loader
// persists it; opening a wallet reads the stream back for Load.
type Loader struct {
	dbDirPath string
}

// NewLoader constructs a Loader for the given network directory.
func NewLoader(dbDirPath string) *Loader {
	return &Loader{dbDirPath: dbDirPath}
}

// DbPath returns the path of the wallet database file.
func (l *Loader) DbPath() string {
	return filepath.Join(l.dbDirPath, walletDbName)
}

// WalletExists reports whether a wallet database exists in the loader's
// directory.
func (l *Loader) WalletExists() (bool, error) {
	_, err := os.Stat(l.DbPath())
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WriteSnapshot persists an encrypted snapshot stream, creating the database
// on first use.
func (l *Loader) WriteSnapshot(snapshot []byte) error {
	if err := os.MkdirAll(l.dbDirPath, 0700); err != nil {
		return err
	}

	db, err := bolt.Open(l.DbPath(), 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(snapshotBucketKey)
		if err != nil {
			return err
		}
		return bucket.Put(snapshotDataKey, snapshot)
	})
}

// ReadSnapshot reads the stored snapshot stream back.
func (l *Loader) ReadSnapshot() ([]byte, error) {
	exists, err := l.WalletExists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrWalletNotFound
	}

	db, err := bolt.Open(l.DbPath(), 0600, &bolt.Options{
		Timeout:  5 * time.Second,
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var snapshot []byte
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snapshotBucketKey)
		if bucket == nil {
			return ErrWalletNotFound
		}
		data := bucket.Get(snapshotDataKey)
		if data == nil {
			return ErrWalletNotFound
		}
		snapshot = make([]byte, len(data))
		copy(snapshot, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
