// Package chain defines the interfaces the wallet consumes from the network
// daemon and the blockchain synchronizer, along with an RPC-backed driver for
// both over a websocket JSON-RPC session.
package chain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/go-socks/socks"
	"github.com/gorilla/websocket"

	"github.com/notesuite/notewallet/chaincfg"
	"github.com/notesuite/notewallet/chainhash"
	"github.com/notesuite/notewallet/noteutil"
	"github.com/notesuite/notewallet/wire"
)

var (
	// ErrClientShutdown is returned when a call is issued against a
	// client that has been shut down.
	ErrClientShutdown = errors.New("rpc client is shut down")

	// ErrNotSubscribed is returned when a notification names an address
	// the client holds no subscription for.
	ErrNotSubscribed = errors.New("address is not subscribed")
)

// ntfnChanSize is the buffer depth of the notification channel handed to the
// wallet.
const ntfnChanSize = 64

// ConnConfig describes the connection configuration parameters for the
// client.
type ConnConfig struct {
	// Host is the IP address and port of the node daemon's websocket RPC
	// listener.
	Host string

	// Endpoint is the websocket endpoint on the RPC server.
	Endpoint string

	// User and Pass are the credentials to authenticate with.
	User string
	Pass string

	// Proxy specifies an optional SOCKS proxy to connect through.
	Proxy     string
	ProxyUser string
	ProxyPass string
}

type rawRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rawResponse struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Params json.RawMessage `json:"params"`
}

// RPCClient is a websocket JSON-RPC session with the node daemon.  It
// implements both consumed interfaces of the wallet core: Node for relay and
// decoy queries, and Synchronizer for remote account scanning.
type RPCClient struct {
	cfg         *ConnConfig
	chainParams *chaincfg.Params

	wsConn *websocket.Conn

	requestLock sync.Mutex
	requestID   uint64
	requests    map[uint64]chan *rawResponse

	sendChan chan []byte
	ntfns    chan interface{}

	subLock sync.Mutex
	subs    map[string]*remoteSubscription

	shutdown int32
	quit     chan struct{}
	wg       sync.WaitGroup
}

var _ Node = (*RPCClient)(nil)
var _ Synchronizer = (*RPCClient)(nil)

// NewRPCClient creates a client for the given connection config.  Connect
// must be called before any other method.
func NewRPCClient(cfg *ConnConfig, chainParams *chaincfg.Params) *RPCClient {
	return &RPCClient{
		cfg:         cfg,
		chainParams: chainParams,
		requests:    make(map[uint64]chan *rawResponse),
		sendChan:    make(chan []byte, 16),
		ntfns:       make(chan interface{}, ntfnChanSize),
		subs:        make(map[string]*remoteSubscription),
		quit:        make(chan struct{}),
	}
}

// Connect dials the configured daemon and starts the connection handlers.
func (c *RPCClient) Connect() error {
	dialer := websocket.Dialer{}
	if c.cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     c.cfg.Proxy,
			Username: c.cfg.ProxyUser,
			Password: c.cfg.ProxyPass,
		}
		dialer.NetDial = func(network, addr string) (net.Conn, error) {
			return proxy.Dial(network, addr)
		}
	}

	url := fmt.Sprintf("ws://%s/%s", c.cfg.Host, c.cfg.Endpoint)
	wsConn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	c.wsConn = wsConn

	c.wg.Add(2)
	go c.inHandler()
	go c.outHandler()

	log.Infof("Established connection to node %s", c.cfg.Host)
	return nil
}

// Shutdown closes the connection and releases every pending call.
func (c *RPCClient) Shutdown() {
	if !atomic.CompareAndSwapInt32(&c.shutdown, 0, 1) {
		return
	}
	close(c.quit)
	if c.wsConn != nil {
		c.wsConn.Close()
	}

	c.requestLock.Lock()
	for id, ch := range c.requests {
		delete(c.requests, id)
		close(ch)
	}
	c.requestLock.Unlock()
}

// WaitForShutdown blocks until the connection handlers have exited.
func (c *RPCClient) WaitForShutdown() {
	c.wg.Wait()
}

// inHandler routes responses to their waiting calls and converts push
// notifications into typed values on the notification channel.
func (c *RPCClient) inHandler() {
	defer c.wg.Done()

	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			select {
			case <-c.quit:
			default:
				log.Errorf("Websocket receive failed: %v", err)
			}
			close(c.ntfns)
			return
		}

		var resp rawResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Warnf("Unparsable message from node: %v", err)
			continue
		}

		if resp.ID != nil {
			c.requestLock.Lock()
			ch, ok := c.requests[*resp.ID]
			if ok {
				delete(c.requests, *resp.ID)
			}
			c.requestLock.Unlock()
			if ok {
				ch <- &resp
			}
			continue
		}

		if err := c.handleNotification(resp.Method, resp.Params); err != nil {
			log.Warnf("Dropping %q notification: %v", resp.Method, err)
		}
	}
}

// outHandler owns the write side of the websocket.
func (c *RPCClient) outHandler() {
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChan:
			err := c.wsConn.WriteMessage(websocket.TextMessage, msg)
			if err != nil {
				log.Errorf("Websocket send failed: %v", err)
			}
		case <-c.quit:
			return
		}
	}
}

// call issues a request and blocks until the daemon answers or the client
// shuts down.
func (c *RPCClient) call(method string, params interface{}, result interface{}) error {
	var rawParams json.RawMessage
	if params != nil {
		marshalled, err := json.Marshal(params)
		if err != nil {
			return err
		}
		rawParams = marshalled
	}

	c.requestLock.Lock()
	c.requestID++
	id := c.requestID
	respChan := make(chan *rawResponse, 1)
	c.requests[id] = respChan
	c.requestLock.Unlock()

	msg, err := json.Marshal(&rawRequest{ID: id, Method: method, Params: rawParams})
	if err != nil {
		return err
	}

	select {
	case c.sendChan <- msg:
	case <-c.quit:
		return ErrClientShutdown
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return ErrClientShutdown
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-c.quit:
		return ErrClientShutdown
	}
}

// notify issues a request whose result is irrelevant.
func (c *RPCClient) notify(method string, params interface{}) {
	go func() {
		if err := c.call(method, params, nil); err != nil &&
			err != ErrClientShutdown {

			log.Warnf("%s request failed: %v", method, err)
		}
	}()
}

// RelayTransaction submits the signed transaction and reports the daemon's
// verdict through the callback.
//
// This method is part of the Node interface.
func (c *RPCClient) RelayTransaction(tx *wire.MsgTx, callback func(error)) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		go callback(err)
		return
	}

	params := struct {
		Hex string `json:"hex"`
	}{Hex: hex.EncodeToString(buf.Bytes())}

	go func() {
		callback(c.call("relaytransaction", params, nil))
	}()
}

// GetRandomOutsByAmounts requests count decoy outputs per amount.
//
// This method is part of the Node interface.
func (c *RPCClient) GetRandomOutsByAmounts(amounts []uint64, count uint64,
	callback func([]RandomOuts, error)) {

	params := struct {
		Amounts []uint64 `json:"amounts"`
		Count   uint64   `json:"count"`
	}{Amounts: amounts, Count: count}

	go func() {
		var result struct {
			Outs []struct {
				Amount  uint64 `json:"amount"`
				Entries []struct {
					Index uint32 `json:"index"`
					Key   string `json:"key"`
				} `json:"entries"`
			} `json:"outs"`
		}
		if err := c.call("getrandomouts", params, &result); err != nil {
			callback(nil, err)
			return
		}

		outs := make([]RandomOuts, 0, len(result.Outs))
		for _, group := range result.Outs {
			ro := RandomOuts{Amount: group.Amount}
			for _, entry := range group.Entries {
				keyBytes, err := hex.DecodeString(entry.Key)
				if err != nil {
					callback(nil, err)
					return
				}
				e := RandomOutEntry{GlobalIndex: entry.Index}
				copy(e.OutKey[:], keyBytes)
				ro.Outs = append(ro.Outs, e)
			}
			outs = append(outs, ro)
		}
		callback(outs, nil)
	}()
}

// Start asks the daemon to resume scanning for the subscribed accounts.
//
// This method is part of the Synchronizer interface.
func (c *RPCClient) Start() {
	c.notify("startsync", nil)
}

// Stop asks the daemon to pause scanning.
//
// This method is part of the Synchronizer interface.
func (c *RPCClient) Stop() {
	c.notify("stopsync", nil)
}

// AddSubscription registers an account for remote scanning.  Only the view
// half of the key material leaves the wallet.
//
// This method is part of the Synchronizer interface.
func (c *RPCClient) AddSubscription(sub AccountSubscription) (Subscription, error) {
	addr := noteutil.EncodeAddress(c.chainParams.AddressPrefix, sub.Keys.Address)

	params := struct {
		Address       string `json:"address"`
		ViewSecretKey string `json:"viewsecretkey"`
		SpendableAge  uint32 `json:"spendableage"`
		SyncHeight    uint32 `json:"syncheight"`
		SyncTimestamp uint64 `json:"synctimestamp"`
	}{
		Address:       addr,
		ViewSecretKey: hex.EncodeToString(sub.Keys.ViewSecretKey[:]),
		SpendableAge:  sub.TransactionSpendableAge,
		SyncHeight:    sub.SyncStart.Height,
		SyncTimestamp: sub.SyncStart.Timestamp,
	}
	if err := c.call("subscribe", params, nil); err != nil {
		return nil, err
	}

	rs := &remoteSubscription{
		client:  c,
		address: sub.Keys.Address,
		encoded: addr,
	}

	c.subLock.Lock()
	c.subs[addr] = rs
	c.subLock.Unlock()

	return rs, nil
}

// RemoveSubscription drops the account's remote subscription.
//
// This method is part of the Synchronizer interface.
func (c *RPCClient) RemoveSubscription(addr noteutil.Address) {
	encoded := noteutil.EncodeAddress(c.chainParams.AddressPrefix, addr)

	c.subLock.Lock()
	delete(c.subs, encoded)
	c.subLock.Unlock()

	c.notify("unsubscribe", struct {
		Address string `json:"address"`
	}{Address: encoded})
}

// Subscriptions lists the currently subscribed addresses.
//
// This method is part of the Synchronizer interface.
func (c *RPCClient) Subscriptions() []noteutil.Address {
	c.subLock.Lock()
	defer c.subLock.Unlock()

	addrs := make([]noteutil.Address, 0, len(c.subs))
	for _, sub := range c.subs {
		addrs = append(addrs, sub.address)
	}
	return addrs
}

// Notifications returns the typed notification channel.
//
// This method is part of the Synchronizer interface.
func (c *RPCClient) Notifications() <-chan interface{} {
	return c.ntfns
}

// handleNotification converts a raw push message into its typed form.
func (c *RPCClient) handleNotification(method string, params json.RawMessage) error {
	switch method {
	case "syncprogress":
		var p struct {
			Height uint32 `json:"height"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		c.deliver(SyncProgress{Height: p.Height})
		return nil

	case "transactionupdated", "transactiondeleted":
		var p struct {
			Address string `json:"address"`
			Hash    string `json:"hash"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		hash, err := chainhash.NewHashFromStr(p.Hash)
		if err != nil {
			return err
		}

		c.subLock.Lock()
		sub, ok := c.subs[p.Address]
		c.subLock.Unlock()
		if !ok {
			return ErrNotSubscribed
		}

		if method == "transactionupdated" {
			c.deliver(TransactionUpdated{Container: sub.container(), Hash: *hash})
		} else {
			c.deliver(TransactionDeleted{Container: sub.container(), Hash: *hash})
		}
		return nil

	default:
		return fmt.Errorf("unknown notification method %q", method)
	}
}

func (c *RPCClient) deliver(n interface{}) {
	select {
	case c.ntfns <- n:
	case <-c.quit:
	}
}

// remoteSubscription is a Subscription whose container queries the daemon on
// demand.
type remoteSubscription struct {
	client  *RPCClient
	address noteutil.Address
	encoded string
}

var _ Subscription = (*remoteSubscription)(nil)
var _ TransfersContainer = (*remoteSubscription)(nil)

// Container returns the transfers container tracking the account.
func (s *remoteSubscription) Container() TransfersContainer {
	return s
}

func (s *remoteSubscription) container() TransfersContainer {
	return s
}

// GetOutputs fetches the account's outputs matching the filter.
func (s *remoteSubscription) GetOutputs(filter BalanceFilter) []OutputInfo {
	params := struct {
		Address string `json:"address"`
		Filter  uint8  `json:"filter"`
	}{Address: s.encoded, Filter: uint8(filter)}

	var result struct {
		Outputs []struct {
			Amount    uint64 `json:"amount"`
			TxHash    string `json:"txhash"`
			Index     uint32 `json:"index"`
			Global    uint32 `json:"global"`
			OutKey    string `json:"outkey"`
			TxPubView string `json:"txpubkey"`
		} `json:"outputs"`
	}
	if err := s.client.call("getoutputs", params, &result); err != nil {
		log.Warnf("getoutputs for %s failed: %v", s.encoded, err)
		return nil
	}

	outs := make([]OutputInfo, 0, len(result.Outputs))
	for _, o := range result.Outputs {
		hash, err := chainhash.NewHashFromStr(o.TxHash)
		if err != nil {
			continue
		}
		info := OutputInfo{
			Amount:              o.Amount,
			TransactionHash:     *hash,
			OutputInTransaction: o.Index,
			GlobalOutputIndex:   o.Global,
		}
		outKey, err := hex.DecodeString(o.OutKey)
		if err != nil {
			continue
		}
		copy(info.OutputKey[:], outKey)
		txPub, err := hex.DecodeString(o.TxPubView)
		if err != nil {
			continue
		}
		copy(info.TransactionPublicKey[:], txPub)
		outs = append(outs, info)
	}
	return outs
}

// Balance sums the amounts of the account's outputs matching the filter.
func (s *remoteSubscription) Balance(filter BalanceFilter) uint64 {
	params := struct {
		Address string `json:"address"`
		Filter  uint8  `json:"filter"`
	}{Address: s.encoded, Filter: uint8(filter)}

	var result struct {
		Balance uint64 `json:"balance"`
	}
	if err := s.client.call("getbalance", params, &result); err != nil {
		log.Warnf("getbalance for %s failed: %v", s.encoded, err)
		return 0
	}
	return result.Balance
}

// GetTransactionInformation looks up an observed transaction.
func (s *remoteSubscription) GetTransactionInformation(hash chainhash.Hash) (
	TransactionInformation, int64, bool) {

	params := struct {
		Address string `json:"address"`
		Hash    string `json:"hash"`
	}{Address: s.encoded, Hash: hash.String()}

	var result struct {
		BlockHeight uint32 `json:"blockheight"`
		Timestamp   uint64 `json:"timestamp"`
		UnlockTime  uint64 `json:"unlocktime"`
		AmountIn    uint64 `json:"amountin"`
		AmountOut   uint64 `json:"amountout"`
		Extra       string `json:"extra"`
		Balance     int64  `json:"balance"`
	}
	if err := s.client.call("gettransaction", params, &result); err != nil {
		return TransactionInformation{}, 0, false
	}

	extra, err := hex.DecodeString(result.Extra)
	if err != nil {
		return TransactionInformation{}, 0, false
	}
	info := TransactionInformation{
		TransactionHash: hash,
		BlockHeight:     result.BlockHeight,
		Timestamp:       result.Timestamp,
		UnlockTime:      result.UnlockTime,
		TotalAmountIn:   result.AmountIn,
		TotalAmountOut:  result.AmountOut,
		Extra:           extra,
	}
	return info, result.Balance, true
}
