package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/plebbit/plebbit-tipping-v1/core"
	"github.com/plebbit/plebbit-tipping-v1/core/genesis"
	"github.com/plebbit/plebbit-tipping-v1/storage"
)

const (
	testJWTSecret   = "rpc-test-secret"
	testJWTIssuer   = "rpc-tests"
	testJWTAudience = "tipd"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	tipper   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	author   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	feeSink  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000e0")

	commentCID = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000c1")
)

func milliEth(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000_000_000_000))
}

func newTestNode(t testing.TB) *core.Node {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, &genesis.Genesis{
		Deployer:         deployer,
		MinimumTipAmount: milliEth(1),
		FeePercent:       5,
		Alloc:            []genesis.Allocation{{Address: tipper, Amount: milliEth(1000)}},
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Auth: AuthConfig{
			HMACSecret: testJWTSecret,
			Issuer:     testJWTIssuer,
			Audience:   testJWTAudience,
			ClockSkew:  time.Minute,
		},
	}
}

func newTestServer(t testing.TB, cfg ServerConfig) (*Server, *core.Node) {
	t.Helper()
	node := newTestNode(t)
	return NewServer(node, cfg), node
}

func signToken(t testing.TB, subject common.Address, mutate func(jwt.MapClaims)) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject.Hex(),
		"iss": testJWTIssuer,
		"aud": testJWTAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type testResponse struct {
	status int
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (r *testResponse) reason() string {
	if r.Error == nil {
		return ""
	}
	data, ok := r.Error.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	reason, _ := data["reason"].(string)
	return reason
}

func callRPC(t testing.TB, handler http.Handler, token, method string, params interface{}) *testResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	resp := &testResponse{status: rec.Code}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func decodeResult(t testing.TB, resp *testResponse, dst interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Result, dst); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}
