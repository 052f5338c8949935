package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"eventpool/native/rewards"
	"eventpool/state"
	"eventpool/storage"
	"eventpool/transfer"
)

type stubOracle struct {
	creator      [20]byte
	participants [][20]byte
}

func (o *stubOracle) EventExists([32]byte) (bool, error) {
	return !(o.creator == [20]byte{}), nil
}

func (o *stubOracle) EventCreator([32]byte) ([20]byte, error) {
	return o.creator, nil
}

func (o *stubOracle) EventParticipants([32]byte) ([][20]byte, error) {
	return o.participants, nil
}

type serverFixture struct {
	server *httptest.Server
	bank   *transfer.Bank
	now    int64
}

const testToken = "test-token"

var (
	testEventID = [32]byte{0xEE, 0x01}
	funderAddr  = [20]byte{0xF1}
	aliceAddr   = [20]byte{0xA1}
)

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	bank := transfer.NewBank(manager)
	oracle := &stubOracle{creator: funderAddr, participants: [][20]byte{aliceAddr}}

	fixture := &serverFixture{bank: bank, now: 1_700_000_000}
	engine := rewards.NewEngine()
	engine.SetState(manager)
	engine.SetEventSource(oracle)
	engine.SetTransferPort(bank)
	engine.SetNowFunc(func() int64 { return fixture.now })

	srv := NewServer(engine, nil, Config{AuthToken: testToken})
	fixture.server = httptest.NewServer(srv.Router())
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *serverFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &payload)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func addrHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func eventHex(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

func (f *serverFixture) createFundedPool(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.bank.Deposit(funderAddr, rewards.KindUSDC, big.NewInt(amount)))
	resp := f.request(t, http.MethodPost, "/v1/pools", testToken, createPoolParams{
		EventID: eventHex(testEventID),
		Funder:  addrHex(funderAddr),
		Kind:    "usdc",
		Asset:   addrHex([20]byte{0xAA}),
		Amount:  fmt.Sprintf("%d", amount),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateAndGetPool(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.createFundedPool(t, 1000)

	resp := fixture.request(t, http.MethodGet, "/v1/pools/"+eventHex(testEventID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pool poolJSON
	decodeInto(t, resp, &pool)
	require.Equal(t, "1000", pool.PoolAmount)
	require.Equal(t, "usdc", pool.Kind)
	require.False(t, pool.Cancelled)
}

func TestMutatingEndpointsRequireToken(t *testing.T) {
	fixture := newServerFixture(t)

	resp := fixture.request(t, http.MethodPost, "/v1/pools", "", createPoolParams{})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fixture.request(t, http.MethodPost, "/v1/pools", "wrong-token", createPoolParams{})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAllocateAndClaimFlow(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.createFundedPool(t, 1000)

	resp := fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/allocations", testToken, allocateParams{
		Caller:    addrHex(funderAddr),
		Recipient: addrHex(aliceAddr),
		Amount:    "400",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var alloc allocationJSON
	decodeInto(t, resp, &alloc)
	require.Equal(t, "400", alloc.Amount)

	resp = fixture.request(t, http.MethodGet, "/v1/pools/"+eventHex(testEventID)+"/allocations/"+addrHex(aliceAddr), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &alloc)
	require.Equal(t, "400", alloc.Amount)

	resp = fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/claims", "", claimParams{
		Participant: addrHex(aliceAddr),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claimed claimResult
	decodeInto(t, resp, &claimed)
	require.Equal(t, "400", claimed.Amount)

	balance, err := fixture.bank.CustodyBalance(testEventID, rewards.KindUSDC)
	require.NoError(t, err)
	require.Equal(t, "600", balance.String())
}

func TestBatchAllocation(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.createFundedPool(t, 1000)

	resp := fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/allocations/batch", testToken, allocateBatchParams{
		Caller:     addrHex(funderAddr),
		Recipients: []string{addrHex(aliceAddr), addrHex([20]byte{0xB2})},
		Amounts:    []string{"100", "200"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pool poolJSON
	decodeInto(t, resp, &pool)
	require.Equal(t, "700", pool.PoolAmount)
	require.Equal(t, "300", pool.AllocatedTotal)

	resp = fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/allocations/query", "", allocationQueryParams{
		Participants: []string{addrHex(aliceAddr), addrHex([20]byte{0xB2})},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var allocations []allocationJSON
	decodeInto(t, resp, &allocations)
	require.Len(t, allocations, 2)
	require.Equal(t, "100", allocations[0].Amount)
	require.Equal(t, "200", allocations[1].Amount)
}

func TestReclaimAfterTimeout(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.createFundedPool(t, 1000)

	resp := fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/reclaim", testToken, reclaimParams{
		Caller: addrHex(funderAddr),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	fixture.now += int64(rewards.DefaultReclaimWindow.Seconds())
	resp = fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/reclaim", testToken, reclaimParams{
		Caller: addrHex(funderAddr),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result reclaimResult
	decodeInto(t, resp, &result)
	require.Equal(t, "1000", result.Remainder)
	require.True(t, result.Cancelled)
}

func TestErrorStatusMapping(t *testing.T) {
	fixture := newServerFixture(t)

	resp := fixture.request(t, http.MethodGet, "/v1/pools/"+eventHex([32]byte{0xDE, 0xAD}), "", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fixture.request(t, http.MethodGet, "/v1/pools/not-hex", "", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	fixture.createFundedPool(t, 100)

	resp = fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/allocations", testToken, allocateParams{
		Caller:    addrHex([20]byte{0x99}),
		Recipient: addrHex(aliceAddr),
		Amount:    "10",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/allocations", testToken, allocateParams{
		Caller:    addrHex(funderAddr),
		Recipient: addrHex(aliceAddr),
		Amount:    "500",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = fixture.request(t, http.MethodPost, "/v1/pools/"+eventHex(testEventID)+"/claims", "", claimParams{
		Participant: addrHex([20]byte{0x77}),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	fixture := newServerFixture(t)
	resp := fixture.request(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
