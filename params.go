package main

import "github.com/notesuite/notewallet/chaincfg"

// activeNet is the network the wallet daemon runs against.  It is set from
// the config during loadConfig and defaults to mainnet.
var activeNet = &chaincfg.MainNetParams
