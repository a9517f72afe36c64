package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/notesuite/notewallet/chaincfg"
	"github.com/notesuite/notewallet/internal/prompt"
	"github.com/notesuite/notewallet/wallet"
)

// networkDir returns the directory name of a network directory to hold wallet
// files.
func networkDir(dataDir string, chainParams *chaincfg.Params) string {
	return filepath.Join(dataDir, chainParams.Name)
}

// createWallet prompts the user for a private passphrase, initializes a new
// wallet with a fresh view key pair and one spending address, and persists
// the first snapshot.
func createWallet(loader *wallet.Loader, w *wallet.Wallet) error {
	reader := bufio.NewReader(os.Stdin)
	privPass, err := prompt.PrivatePass(reader)
	if err != nil {
		return err
	}

	if err := w.Initialize(string(privPass)); err != nil {
		return err
	}
	address, err := w.CreateAddress()
	if err != nil {
		return err
	}
	fmt.Println("Your first receiving address is", address)

	if err := persistWallet(loader, w); err != nil {
		return err
	}

	log.Info("The wallet has been created successfully.")
	return nil
}

// openWallet prompts for the wallet passphrase and restores the stored
// snapshot.
func openWallet(loader *wallet.Loader, w *wallet.Wallet) error {
	snapshot, err := loader.ReadSnapshot()
	if err != nil {
		return err
	}

	privPass, err := prompt.ProvidePrivPassphrase()
	if err != nil {
		return err
	}

	return w.Load(bytes.NewReader(snapshot), string(privPass))
}

// persistWallet serializes the wallet with full details and cache and stores
// the snapshot through the loader.
func persistWallet(loader *wallet.Loader, w *wallet.Wallet) error {
	var buf bytes.Buffer
	if err := w.Save(&buf, true, true); err != nil {
		return err
	}
	return loader.WriteSnapshot(buf.Bytes())
}
