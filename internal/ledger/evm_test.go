package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu         sync.Mutex
	head       uint64
	logs       []types.Log
	calls      map[common.Address][]byte // eth_call results keyed by target
	blockTimes map[uint64]uint64
	queries    []ethereum.FilterQuery
	timeCalls  int
	filterErr  error
}

func (f *fakeSource) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeSource) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.filterErr != nil {
		return nil, f.filterErr
	}

	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber < q.FromBlock.Uint64() || l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && l.Address != q.Addresses[0] {
			continue
		}
		if len(q.Topics) > 0 && len(l.Topics) > 0 && l.Topics[0] != q.Topics[0][0] {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeSource) BlockTime(ctx context.Context, number uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeCalls++
	ts, ok := f.blockTimes[number]
	if !ok {
		return 0, errors.New("block not found")
	}
	return ts, nil
}

func (f *fakeSource) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, ok := f.calls[to]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func newTestEVM(t *testing.T, src *fakeSource, span uint64) *EVM {
	t.Helper()
	e, err := NewEVM(EVMConfig{Source: src, MaxLogSpan: span})
	require.NoError(t, err)
	return e
}

func wei(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func tokenCreatedLog(t *testing.T, e *EVM, block uint64, tokenID int64, token, creator common.Address) types.Log {
	t.Helper()
	params := tokenParameters{
		CurveScaler:          big.NewInt(41_000_000_000),
		A:                    677,
		B:                    0,
		SalePercentage:       73,
		LpPercentage:         20,
		CreatorAddress:       creator,
		TokenContractAddress: token,
	}
	ev := e.managerABI.Events["TokenCreated"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(tokenID), params, wei(10_000_000_000))
	require.NoError(t, err)
	return types.Log{
		Address:     e.tokenManager,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: block,
	}
}

func buyLog(t *testing.T, e *EVM, block uint64, tokenID int64, cost *big.Int) types.Log {
	t.Helper()
	ev := e.managerABI.Events["Buy"]
	data, err := ev.Inputs.NonIndexed().Pack(
		common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		big.NewInt(tokenID), wei(1000), cost, wei(5000),
		common.Address{}, big.NewInt(0), big.NewInt(0), big.NewInt(0),
	)
	require.NoError(t, err)
	return types.Log{
		Address:     e.tokenManager,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: block,
	}
}

func pairCreatedLog(t *testing.T, e *EVM, block uint64, token0, token1, pair common.Address) types.Log {
	t.Helper()
	ev := e.factoryABI.Events["PairCreated"]
	data, err := ev.Inputs.NonIndexed().Pack(pair, big.NewInt(1))
	require.NoError(t, err)
	return types.Log{
		Address:     e.pairFactory,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(token0.Bytes()), common.BytesToHash(token1.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func transferLog(e *EVM, token common.Address, block uint64, from, to common.Address) types.Log {
	return types.Log{
		Address:     token,
		Topics:      []common.Hash{e.erc20ABI.Events["Transfer"].ID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.LeftPadBytes(big.NewInt(1).Bytes(), 32),
		BlockNumber: block,
	}
}

func TestNewEVM_Validation(t *testing.T) {
	_, err := NewEVM(EVMConfig{})
	assert.Error(t, err)

	_, err = NewEVM(EVMConfig{Source: &fakeSource{}, TokenManager: "not-an-address"})
	assert.Error(t, err)

	e, err := NewEVM(EVMConfig{Source: &fakeSource{}})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(constants.TokenManagerAddress), e.tokenManager)
	assert.Equal(t, uint64(constants.DefaultMaxLogRange), e.maxSpan)
}

func TestTokenCreatedEvents_Decode(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 2048)

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	creator := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	src.logs = []types.Log{tokenCreatedLog(t, e, 100, 7, token, creator)}

	events, err := e.TokenCreatedEvents(context.Background(), 0, 200)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, int64(7), ev.TokenID.Int64())
	assert.Equal(t, token.Hex(), ev.TokenContractAddress)
	assert.Equal(t, creator.Hex(), ev.CreatorAddress)
	assert.Equal(t, uint8(73), ev.SalePercentage)
	assert.Equal(t, uint16(677), ev.CurveA)
	assert.Equal(t, 0, ev.TotalSupply.Cmp(wei(10_000_000_000)))
	assert.Equal(t, uint64(100), ev.BlockNumber)
}

func TestPurchaseEvents_Decode(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 2048)

	cost := new(big.Int).Div(wei(3), big.NewInt(2)) // 1.5 AVAX
	src.logs = []types.Log{buyLog(t, e, 150, 7, cost)}

	events, err := e.PurchaseEvents(context.Background(), 0, 200)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].TokenID.Int64())
	assert.Equal(t, 0, events[0].Cost.Cmp(cost))
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000b1").Hex(), events[0].Buyer)
}

func TestPairCreatedEvents_Decode(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 2048)

	token0 := common.HexToAddress(constants.WAVAXAddress)
	token1 := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	pair := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	src.logs = []types.Log{pairCreatedLog(t, e, 120, token0, token1, pair)}

	events, err := e.PairCreatedEvents(context.Background(), 0, 200)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, token0.Hex(), events[0].Token0)
	assert.Equal(t, token1.Hex(), events[0].Token1)
	assert.Equal(t, pair.Hex(), events[0].PairAddress)
}

func TestPairCreatedEvents_MalformedTopics(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 2048)

	l := pairCreatedLog(t, e, 120, common.Address{1}, common.Address{2}, common.Address{3})
	l.Topics = l.Topics[:1]
	src.logs = []types.Log{l}

	_, err := e.PairCreatedEvents(context.Background(), 0, 200)
	assert.Error(t, err)
}

func TestFilter_ChunksLongRanges(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 100)

	_, err := e.TokenCreatedEvents(context.Background(), 1000, 1250)
	require.NoError(t, err)

	require.Len(t, src.queries, 3)
	assert.Equal(t, uint64(1000), src.queries[0].FromBlock.Uint64())
	assert.Equal(t, uint64(1099), src.queries[0].ToBlock.Uint64())
	assert.Equal(t, uint64(1100), src.queries[1].FromBlock.Uint64())
	assert.Equal(t, uint64(1199), src.queries[1].ToBlock.Uint64())
	assert.Equal(t, uint64(1200), src.queries[2].FromBlock.Uint64())
	assert.Equal(t, uint64(1250), src.queries[2].ToBlock.Uint64())
}

func TestFilter_EmptyAndErrorRanges(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 100)

	logs, err := e.TokenCreatedEvents(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, src.queries)

	src.filterErr = errors.New("query returned more than 10000 results")
	_, err = e.PurchaseEvents(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch Buy logs")
}

func TestHolderCount_DistinctNonZeroRecipients(t *testing.T) {
	src := &fakeSource{}
	e := newTestEVM(t, src, 2048)

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	src.logs = []types.Log{
		transferLog(e, token, 10, common.Address{}, alice), // mint
		transferLog(e, token, 11, alice, bob),
		transferLog(e, token, 12, bob, alice),
		transferLog(e, token, 13, alice, common.Address{}), // burn
		transferLog(e, common.HexToAddress("0x00000000000000000000000000000000000000ff"), 14, alice, common.Address{9}),
	}

	n, err := e.HolderCount(context.Background(), token.Hex(), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBlockTime_Memoized(t *testing.T) {
	src := &fakeSource{blockTimes: map[uint64]uint64{42: 1_700_000_000}}
	e := newTestEVM(t, src, 2048)

	for i := 0; i < 3; i++ {
		ts, err := e.BlockTime(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), ts)
	}
	assert.Equal(t, 1, src.timeCalls)

	_, err := e.BlockTime(context.Background(), 43)
	assert.Error(t, err)
}

func TestTokenMetadata(t *testing.T) {
	src := &fakeSource{calls: map[common.Address][]byte{}}
	e := newTestEVM(t, src, 2048)

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	name, err := e.erc20ABI.Methods["name"].Outputs.Pack("Arena Cat")
	require.NoError(t, err)
	src.calls[token] = name

	// name and symbol share the canned response in this fake
	md, err := e.TokenMetadata(context.Background(), token.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Arena Cat", md.Name)
	assert.Equal(t, "Arena Cat", md.Symbol)

	_, err = e.TokenMetadata(context.Background(), "0x00000000000000000000000000000000000000bb")
	assert.Error(t, err)

	_, err = e.TokenMetadata(context.Background(), "garbage")
	assert.Error(t, err)
}
