// Package evm is the ledger backend for an EVM chain: it calls logMfa(bytes32) on the audit contract
// and reads MfaLogged events back from the most recent blocks.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"payshield/backend/internal/ledger"
	"payshield/backend/internal/platform/retry"
)

// DefaultQueryBlocks is the number of most recent blocks scanned for anchors; free-tier RPC providers
// reject wider log ranges.
const DefaultQueryBlocks = 9

const contractABI = `[
	{"type":"function","name":"logMfa","stateMutability":"nonpayable","inputs":[{"name":"approvalHash","type":"bytes32"}],"outputs":[]},
	{"type":"event","name":"MfaLogged","anonymous":false,"inputs":[
		{"name":"approvalHash","type":"bytes32","indexed":true},
		{"name":"merchant","type":"address","indexed":true},
		{"name":"timestamp","type":"uint256","indexed":false}
	]}
]`

// ErrReverted is returned when the anchoring transaction was mined but failed.
var ErrReverted = errors.New("evm: transaction reverted")

// Config configures the backend.
type Config struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	QueryBlocks     uint64
}

type transactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// Backend implements ledger.Backend against a deployed audit contract.
type Backend struct {
	client   *ethclient.Client
	contract transactor
	abi      abi.ABI
	address  common.Address
	auth     *bind.TransactOpts
	blocks   uint64

	// sendMu serializes nonce selection and broadcast; receipts are awaited concurrently.
	sendMu sync.Mutex
}

var _ ledger.Backend = (*Backend)(nil)

// Dial connects to the RPC endpoint, resolves the chain ID, and binds the contract.
func Dial(ctx context.Context, cfg Config) (*Backend, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("evm: invalid contract address %q", cfg.ContractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm: parse private key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}
	b, err := newBackend(client, key, chainID, common.HexToAddress(cfg.ContractAddress), cfg.QueryBlocks)
	if err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(client *ethclient.Client, key *ecdsa.PrivateKey, chainID *big.Int, address common.Address, blocks uint64) (*Backend, error) {
	parsed, err := parseABI()
	if err != nil {
		return nil, err
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("evm: transactor: %w", err)
	}
	if blocks == 0 {
		blocks = DefaultQueryBlocks
	}
	return &Backend{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		abi:      parsed,
		address:  address,
		auth:     auth,
		blocks:   blocks,
	}, nil
}

func parseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("evm: parse abi: %w", err)
	}
	return parsed, nil
}

// Submit sends logMfa(digest) and waits for the receipt. A reverted transaction is not retried.
func (b *Backend) Submit(ctx context.Context, digest [32]byte) (string, error) {
	tx, err := b.send(ctx, digest)
	if err != nil {
		return "", err
	}
	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return "", fmt.Errorf("evm: wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", retry.Permanent(fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex()))
	}
	return tx.Hash().Hex(), nil
}

// send broadcasts logMfa(digest). Concurrent anchors would otherwise read the same pending nonce.
func (b *Backend) send(ctx context.Context, digest [32]byte) (*types.Transaction, error) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	opts := *b.auth
	opts.Context = ctx
	tx, err := b.contract.Transact(&opts, "logMfa", digest)
	if err != nil {
		return nil, fmt.Errorf("evm: send logMfa: %w", err)
	}
	return tx, nil
}

// QueryRecent returns MfaLogged events from the last QueryBlocks blocks, newest first.
func (b *Backend) QueryRecent(ctx context.Context) ([]ledger.Entry, error) {
	latest, err := b.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: block number: %w", err)
	}
	from := uint64(0)
	if latest+1 > b.blocks {
		from = latest + 1 - b.blocks
	}
	logs, err := b.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{b.address},
		Topics:    [][]common.Hash{{b.abi.Events["MfaLogged"].ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("evm: filter logs %d-%d: %w", from, latest, err)
	}
	out := make([]ledger.Entry, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].Removed {
			continue
		}
		e, err := decodeLog(b.abi, logs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the RPC connection.
func (b *Backend) Close() {
	b.client.Close()
}

func decodeLog(parsed abi.ABI, l types.Log) (ledger.Entry, error) {
	if len(l.Topics) != 3 {
		return ledger.Entry{}, fmt.Errorf("evm: MfaLogged log has %d topics, want 3", len(l.Topics))
	}
	vals, err := parsed.Unpack("MfaLogged", l.Data)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("evm: unpack MfaLogged: %w", err)
	}
	if len(vals) != 1 {
		return ledger.Entry{}, fmt.Errorf("evm: MfaLogged has %d data fields, want 1", len(vals))
	}
	ts, ok := vals[0].(*big.Int)
	if !ok {
		return ledger.Entry{}, fmt.Errorf("evm: MfaLogged timestamp has type %T", vals[0])
	}
	return ledger.Entry{
		LedgerRef:       l.TxHash.Hex(),
		BlockHeight:     l.BlockNumber,
		ApprovalHash:    l.Topics[1].Hex(),
		MerchantAddress: common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
		AnchoredAt:      time.Unix(ts.Int64(), 0).UTC(),
	}, nil
}
