package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestParseABI(t *testing.T) {
	parsed, err := parseABI()
	if err != nil {
		t.Fatalf("parseABI: %v", err)
	}
	if _, ok := parsed.Methods["logMfa"]; !ok {
		t.Error("logMfa method missing")
	}
	ev, ok := parsed.Events["MfaLogged"]
	if !ok {
		t.Fatal("MfaLogged event missing")
	}
	if ev.Sig != "MfaLogged(bytes32,address,uint256)" {
		t.Errorf("event signature = %s", ev.Sig)
	}
}

func TestDecodeLog(t *testing.T) {
	parsed, err := parseABI()
	if err != nil {
		t.Fatal(err)
	}
	hash := common.HexToHash("0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8")
	merchant := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data := common.LeftPadBytes(big.NewInt(1767323045).Bytes(), 32)
	l := types.Log{
		Topics:      []common.Hash{parsed.Events["MfaLogged"].ID, hash, common.BytesToHash(merchant.Bytes())},
		Data:        data,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xbeef"),
	}
	e, err := decodeLog(parsed, l)
	if err != nil {
		t.Fatalf("decodeLog: %v", err)
	}
	if e.ApprovalHash != hash.Hex() {
		t.Errorf("ApprovalHash = %s", e.ApprovalHash)
	}
	if e.MerchantAddress != merchant.Hex() {
		t.Errorf("MerchantAddress = %s", e.MerchantAddress)
	}
	if e.BlockHeight != 42 {
		t.Errorf("BlockHeight = %d", e.BlockHeight)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !e.AnchoredAt.Equal(want) {
		t.Errorf("AnchoredAt = %s, want %s", e.AnchoredAt, want)
	}
	if e.LedgerRef != l.TxHash.Hex() {
		t.Errorf("LedgerRef = %s", e.LedgerRef)
	}
}

func TestDecodeLog_WrongTopics(t *testing.T) {
	parsed, _ := parseABI()
	if _, err := decodeLog(parsed, types.Log{Topics: []common.Hash{{}}}); err == nil {
		t.Fatal("expected error for missing topics")
	}
}

// nonceTransactor hands out sequential nonces and records overlapping calls.
type nonceTransactor struct {
	mu       sync.Mutex
	nonce    uint64
	inFlight atomic.Int32
	overlap  atomic.Bool
	err      error
}

func (n *nonceTransactor) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	if n.inFlight.Add(1) > 1 {
		n.overlap.Store(true)
	}
	defer n.inFlight.Add(-1)
	if opts.Context == nil || method != "logMfa" || len(params) != 1 {
		return nil, errors.New("unexpected call")
	}
	time.Sleep(time.Millisecond)
	if n.err != nil {
		return nil, n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	tx := types.NewTx(&types.LegacyTx{Nonce: n.nonce, GasPrice: big.NewInt(1), Gas: 21000})
	n.nonce++
	return tx, nil
}

func TestSend_SerializesBroadcasts(t *testing.T) {
	tr := &nonceTransactor{}
	b := &Backend{contract: tr, auth: &bind.TransactOpts{}}

	var wg sync.WaitGroup
	nonces := make(chan uint64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := b.send(context.Background(), [32]byte{byte(i)})
			if err != nil {
				t.Errorf("send: %v", err)
				return
			}
			nonces <- tx.Nonce()
		}(i)
	}
	wg.Wait()
	close(nonces)

	if tr.overlap.Load() {
		t.Error("Transact calls overlapped")
	}
	seen := map[uint64]bool{}
	for n := range nonces {
		if seen[n] {
			t.Errorf("nonce %d used twice", n)
		}
		seen[n] = true
	}
	if len(seen) != 10 {
		t.Errorf("distinct nonces = %d, want 10", len(seen))
	}
}

func TestSend_WrapsTransactError(t *testing.T) {
	tr := &nonceTransactor{err: errors.New("insufficient funds")}
	b := &Backend{contract: tr, auth: &bind.TransactOpts{}}
	if _, err := b.send(context.Background(), [32]byte{}); err == nil || !errors.Is(err, tr.err) {
		t.Fatalf("send err = %v, want wrapped transact error", err)
	}
}
