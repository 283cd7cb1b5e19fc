// Package ledger anchors approval hashes on an external append-only ledger and serves recent anchors
// from a TTL cache.
package ledger

import (
	"context"
	"strings"
	"time"
)

// DefaultCacheTTL is how long a recent-entries snapshot is served without re-querying the ledger.
const DefaultCacheTTL = 5 * time.Minute

// DefaultExplorerBase is the block explorer used for viewer URLs when none is configured.
const DefaultExplorerBase = "https://amoy.polygonscan.com"

// Ref locates an anchored proof on the ledger.
type Ref struct {
	TxHash    string `json:"hash"`
	ViewerURL string `json:"explorerUrl"`
}

// Entry is one anchored approval hash read back from the ledger.
type Entry struct {
	LedgerRef       string    `json:"ledgerRef"`
	BlockHeight     uint64    `json:"blockHeight"`
	ApprovalHash    string    `json:"approvalHash"`
	MerchantAddress string    `json:"merchantAddress"`
	AnchoredAt      time.Time `json:"anchoredAt"`
	ViewerURL       string    `json:"viewerUrl"`
}

// Backend is the ledger connection. Submit writes one digest and returns the transaction reference
// once the write is confirmed. QueryRecent returns anchors from the backend's bounded recent window;
// ViewerURL is filled in by the Client.
type Backend interface {
	Submit(ctx context.Context, digest [32]byte) (txHash string, err error)
	QueryRecent(ctx context.Context) ([]Entry, error)
}

// AnchorResult is the soft outcome of Anchor. Exactly one of Ref, Skipped, or Err describes it.
// Pending is set when the caller stopped waiting while the write continues in the background.
type AnchorResult struct {
	Ref     *Ref
	Skipped bool
	Pending bool
	Err     error
}

// Anchored reports whether the hash is known to be on the ledger.
func (r AnchorResult) Anchored() bool {
	return r.Ref != nil
}

// ViewerURL templates the human-viewable URL for a transaction.
func ViewerURL(explorerBase, txHash string) string {
	if explorerBase == "" {
		explorerBase = DefaultExplorerBase
	}
	return strings.TrimRight(explorerBase, "/") + "/tx/" + txHash
}
