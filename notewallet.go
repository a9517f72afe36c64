package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/wallet"
)

var cfg *config

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit.
	if err := walletMain(); err != nil {
		os.Exit(1)
	}
}

// walletMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the
// program can be exited with an error exit status.
func walletMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Show version at startup.
	log.Infof("Version %s", version())

	// Dial the node daemon.  The RPC client doubles as the wallet's relay
	// node and its remote blockchain synchronizer.
	rpcClient := chain.NewRPCClient(&chain.ConnConfig{
		Host:      cfg.RPCConnect,
		Endpoint:  "ws",
		User:      cfg.NodeUser,
		Pass:      cfg.NodePass,
		Proxy:     cfg.Proxy,
		ProxyUser: cfg.ProxyUser,
		ProxyPass: cfg.ProxyPass,
	}, activeNet)
	if err := rpcClient.Connect(); err != nil {
		log.Errorf("Unable to connect to node at %s: %v", cfg.RPCConnect, err)
		return err
	}

	w := wallet.NewWallet(activeNet, rpcClient, rpcClient, clock.NewDefaultClock())
	loader := wallet.NewLoader(networkDir(cfg.AppDataDir, activeNet))

	exists, err := loader.WalletExists()
	if err != nil {
		log.Errorf("Unable to check wallet file: %v", err)
		return err
	}
	switch {
	case !exists && !cfg.Create:
		err := fmt.Errorf("the wallet does not exist, run with --create to make one")
		fmt.Fprintln(os.Stderr, err)
		return err
	case !exists:
		if err := createWallet(loader, w); err != nil {
			log.Errorf("Unable to create wallet: %v", err)
			return err
		}
	case cfg.Create:
		err := fmt.Errorf("the wallet already exists at %v", loader.DbPath())
		fmt.Fprintln(os.Stderr, err)
		return err
	default:
		if err := openWallet(loader, w); err != nil {
			log.Errorf("Unable to open wallet: %v", err)
			return err
		}
	}

	count, err := w.AddressCount()
	if err != nil {
		return err
	}
	log.Infof("Wallet opened with %d addresses", count)

	addInterruptHandler(func() {
		if err := persistWallet(loader, w); err != nil {
			log.Errorf("Unable to save wallet: %v", err)
		}
		w.Stop()
		if err := w.Shutdown(); err != nil {
			log.Errorf("Wallet shutdown failed: %v", err)
		}
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	})

	// Drain wallet events into the log until shutdown.
	go func() {
		for {
			event, err := w.GetEvent()
			if err != nil {
				return
			}
			switch event.Type {
			case wallet.EventBalanceUnlocked:
				log.Debugf("Balance unlocked")
			default:
				log.Infof("Wallet event: %v (transaction %d)",
					event.Type, event.TransactionIndex)
			}
		}
	}()

	<-interruptHandlersDone
	log.Info("Shutdown complete")
	return nil
}
