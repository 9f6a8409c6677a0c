package client

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/plebbit/plebbit-tipping-v1/core"
	"github.com/plebbit/plebbit-tipping-v1/core/genesis"
	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/rpc"
	"github.com/plebbit/plebbit-tipping-v1/rpc/modules"
	"github.com/plebbit/plebbit-tipping-v1/storage"
)

const testSecret = "client-test-secret"

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	tipper   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	author   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	feeSink  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

func milliEth(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000_000_000_000))
}

func token(t *testing.T, subject common.Address) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject.Hex(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type countingHandler struct {
	next  http.Handler
	calls atomic.Int64
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	h.next.ServeHTTP(w, r)
}

func startNode(t *testing.T) (string, *countingHandler) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, &genesis.Genesis{
		Deployer:         deployer,
		MinimumTipAmount: milliEth(1),
		FeePercent:       5,
		Alloc:            []genesis.Allocation{{Address: tipper, Amount: milliEth(1000)}},
	})
	require.NoError(t, err)
	server := rpc.NewServer(node, rpc.ServerConfig{Auth: rpc.AuthConfig{HMACSecret: testSecret}})
	counter := &countingHandler{next: server.Handler()}
	ts := httptest.NewServer(counter)
	t.Cleanup(ts.Close)
	return ts.URL + "/rpc", counter
}

func TestCommentCID(t *testing.T) {
	digest := sha256.Sum256([]byte("hello plebbit"))
	mh, err := multihash.Encode(digest[:], multihash.SHA2_256)
	require.NoError(t, err)
	v0 := cid.NewCidV0(mh)
	v1 := cid.NewCidV1(cid.DagProtobuf, mh)

	want := crypto.Keccak256Hash(digest[:])
	got, err := CommentCID(v0.String())
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Both CID versions address the same content.
	got, err = CommentCID(v1.String())
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = CommentCID("  ")
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, got)

	_, err = CommentCID("not-a-cid")
	require.Error(t, err)
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(" ")
	require.Error(t, err)
}

func TestRecordTipAndQueries(t *testing.T) {
	endpoint, _ := startNode(t)
	c, err := New(endpoint, WithToken(token(t, tipper)))
	require.NoError(t, err)
	ctx := context.Background()
	cidA := common.HexToHash("0xa1")

	receipt, err := c.RecordTip(ctx, Tip{
		Recipient:           author,
		Amount:              milliEth(10),
		FeeRecipient:        feeSink,
		RecipientCommentCID: cidA,
	})
	require.NoError(t, err)
	require.Equal(t, tipper, receipt.Sender)
	require.Equal(t, milliEth(10), receipt.Amount)
	require.Equal(t, "500000000000000", receipt.Fee.String())
	require.Equal(t, tipping.DeriveRecipientKey(cidA, feeSink), receipt.RecipientKey)

	total, err := c.RecipientTotal(ctx, cidA, []common.Address{feeSink})
	require.NoError(t, err)
	require.Equal(t, milliEth(10), total)

	totals, err := c.RecipientTotalsUniform(ctx, []common.Hash{cidA, common.HexToHash("0xa2")}, []common.Address{feeSink})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	require.Equal(t, milliEth(10), totals[0])
	require.Zero(t, totals[1].Sign())

	senderTotal, err := c.SenderTotal(ctx, common.Hash{}, tipper, cidA, []common.Address{feeSink})
	require.NoError(t, err)
	require.Equal(t, milliEth(10), senderTotal)

	tips, err := c.Tips(ctx, cidA, []common.Address{feeSink}, 0, 10)
	require.NoError(t, err)
	require.Len(t, tips, 1)
	require.Equal(t, tipper, tips[0].Sender)

	amounts, err := c.TipsAmounts(ctx, cidA, []common.Address{feeSink}, 1, 10)
	require.NoError(t, err)
	require.Empty(t, amounts)

	count, err := c.TipsCount(ctx, cidA, []common.Address{feeSink})
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	recipientKey, senderKey, err := c.DeriveKeys(ctx, cidA, feeSink, common.Hash{}, &tipper)
	require.NoError(t, err)
	require.Equal(t, receipt.RecipientKey, recipientKey)
	require.Equal(t, receipt.SenderKey, senderKey)

	bal, err := c.Balance(ctx, author)
	require.NoError(t, err)
	require.Equal(t, "9500000000000000", bal.Balance.String())
}

func TestLedgerErrorsUnwrapToSentinels(t *testing.T) {
	endpoint, _ := startNode(t)
	c, err := New(endpoint, WithToken(token(t, tipper)))
	require.NoError(t, err)

	_, err = c.RecordTip(context.Background(), Tip{
		Recipient:           author,
		Amount:              big.NewInt(1),
		FeeRecipient:        feeSink,
		RecipientCommentCID: common.HexToHash("0xa1"),
	})
	require.ErrorIs(t, err, tipping.ErrAmountTooLow)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, "AmountTooLow", rpcErr.Reason)

	_, err = c.SetFeePercent(context.Background(), 10)
	require.ErrorIs(t, err, tipping.ErrUnauthorized)
}

func TestModeratorOperations(t *testing.T) {
	endpoint, _ := startNode(t)
	admin, err := New(endpoint, WithToken(token(t, deployer)))
	require.NoError(t, err)
	ctx := context.Background()

	params, err := admin.SetFeePercent(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(12), params.FeePercent)

	params, err = admin.SetMinimumTipAmount(ctx, big.NewInt(0))
	require.NoError(t, err)
	require.Zero(t, params.MinimumTipAmount.Sign())

	require.NoError(t, admin.GrantModerator(ctx, author))
	ok, err := admin.HasRole(ctx, tipping.RoleModerator, author)
	require.NoError(t, err)
	require.True(t, ok)

	members, err := admin.RoleMembers(ctx, "moderator")
	require.NoError(t, err)
	require.Equal(t, []common.Address{author, deployer}, members)

	require.NoError(t, admin.RevokeModerator(ctx, author))
	ok, err = admin.HasRole(ctx, "moderator", author)
	require.NoError(t, err)
	require.False(t, ok)

	current, err := admin.Params(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(12), current.FeePercent)
}

func TestTotalsCachedUntilRecordTip(t *testing.T) {
	endpoint, counter := startNode(t)
	c, err := New(endpoint, WithToken(token(t, tipper)))
	require.NoError(t, err)
	ctx := context.Background()
	cidA := common.HexToHash("0xa1")
	fees := []common.Address{feeSink}

	_, err = c.RecipientTotal(ctx, cidA, fees)
	require.NoError(t, err)
	before := counter.calls.Load()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total, err := c.RecipientTotal(ctx, cidA, fees)
			if err != nil || total.Sign() != 0 {
				t.Errorf("unexpected cached total %v (%v)", total, err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, before, counter.calls.Load(), "cached totals must not hit the node")

	_, err = c.RecordTip(ctx, Tip{Recipient: author, Amount: milliEth(2), FeeRecipient: feeSink, RecipientCommentCID: cidA})
	require.NoError(t, err)

	total, err := c.RecipientTotal(ctx, cidA, fees)
	require.NoError(t, err)
	require.Equal(t, milliEth(2), total)
}

func TestActivityDisabled(t *testing.T) {
	endpoint, _ := startNode(t)
	c, err := New(endpoint)
	require.NoError(t, err)

	_, err = c.Activity(context.Background(), ActivityFilter{Limit: 3})
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, http.StatusServiceUnavailable, rpcErr.Status)
}

// slowNode answers total lookups with the total it held when the request
// arrived. The first lookup blocks until release is called.
type slowNode struct {
	mu          sync.Mutex
	total       string
	totalCalls  atomic.Int64
	held        chan struct{}
	hold        chan struct{}
	releaseOnce sync.Once
}

func (n *slowNode) release() {
	n.releaseOnce.Do(func() { close(n.hold) })
}

func (n *slowNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var result interface{}
	switch req.Method {
	case "tip_getRecipientTotal":
		n.mu.Lock()
		total := n.total
		n.mu.Unlock()
		if n.totalCalls.Add(1) == 1 {
			close(n.held)
			<-n.hold
		}
		result = modules.TotalResult{Total: total}
	case "tip_record":
		n.mu.Lock()
		n.total = "100"
		n.mu.Unlock()
		result = modules.ReceiptResult{
			Sender:       tipper.Hex(),
			Recipient:    author.Hex(),
			Amount:       "100",
			Fee:          "5",
			NetPayment:   "95",
			FeeRecipient: feeSink.Hex(),
		}
	default:
		http.Error(w, "unexpected method "+req.Method, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func startSlowNode(t *testing.T) (*slowNode, *Client) {
	t.Helper()
	node := &slowNode{total: "0", held: make(chan struct{}), hold: make(chan struct{})}
	ts := httptest.NewServer(node)
	t.Cleanup(func() {
		node.release()
		ts.Close()
	})
	c, err := New(ts.URL)
	require.NoError(t, err)
	return node, c
}

func TestLookupStartedBeforeRecordTipIsNotCached(t *testing.T) {
	node, c := startSlowNode(t)
	ctx := context.Background()
	cidA := common.HexToHash("0xa1")
	fees := []common.Address{feeSink}

	early := make(chan *big.Int, 1)
	go func() {
		total, err := c.RecipientTotal(ctx, cidA, fees)
		if err != nil {
			t.Errorf("early lookup: %v", err)
		}
		early <- total
	}()
	<-node.held

	_, err := c.RecordTip(ctx, Tip{Recipient: author, Amount: big.NewInt(100), FeeRecipient: feeSink, RecipientCommentCID: cidA})
	require.NoError(t, err)

	// Issued while the early lookup is still pending, so it must not join it.
	total, err := c.RecipientTotal(ctx, cidA, fees)
	require.NoError(t, err)
	require.Equal(t, "100", total.String())

	node.release()
	stale := <-early
	require.NotNil(t, stale)
	require.Equal(t, "0", stale.String())

	total, err = c.RecipientTotal(ctx, cidA, fees)
	require.NoError(t, err)
	require.Equal(t, "100", total.String())
	require.Equal(t, int64(2), node.totalCalls.Load())
}

func TestSharedLookupSurvivesCallerCancel(t *testing.T) {
	node, c := startSlowNode(t)
	cidA := common.HexToHash("0xa1")
	fees := []common.Address{feeSink}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := c.RecipientTotal(ctxA, cidA, fees)
		errA <- err
	}()
	<-node.held

	type outcome struct {
		total *big.Int
		err   error
	}
	resB := make(chan outcome, 1)
	go func() {
		total, err := c.RecipientTotal(context.Background(), cidA, fees)
		resB <- outcome{total, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	node.release()
	b := <-resB
	require.NoError(t, b.err)
	require.Equal(t, "0", b.total.String())
	require.Equal(t, int64(1), node.totalCalls.Load())
}
