package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// LogSource is the subset of the RPC client the EVM ledger calls.
// *rpc.Client satisfies it.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockTime(ctx context.Context, number uint64) (uint64, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// EVMConfig holds configuration for the EVM ledger
type EVMConfig struct {
	Source       LogSource
	TokenManager string
	PairFactory  string
	MaxLogSpan   uint64 // largest [from, to] span per eth_getLogs call
	Logger       *logrus.Logger
}

// EVM implements Ledger over an EVM JSON-RPC endpoint.
type EVM struct {
	src          LogSource
	tokenManager common.Address
	pairFactory  common.Address
	maxSpan      uint64
	logger       *logrus.Logger

	managerABI abi.ABI
	factoryABI abi.ABI
	erc20ABI   abi.ABI

	mu         sync.Mutex
	blockTimes map[uint64]uint64
}

var _ Ledger = (*EVM)(nil)

// NewEVM parses the event ABIs and returns a ready ledger
func NewEVM(cfg EVMConfig) (*EVM, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.TokenManager == "" {
		cfg.TokenManager = constants.TokenManagerAddress
	}
	if cfg.PairFactory == "" {
		cfg.PairFactory = constants.PairFactoryAddress
	}
	if cfg.MaxLogSpan == 0 {
		cfg.MaxLogSpan = constants.DefaultMaxLogRange
	}
	for _, a := range []string{cfg.TokenManager, cfg.PairFactory} {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid contract address %q", a)
		}
	}

	managerABI, err := abi.JSON(strings.NewReader(constants.TokenManagerABI))
	if err != nil {
		return nil, fmt.Errorf("parse token manager abi: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(constants.PairFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair factory abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(constants.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &EVM{
		src:          cfg.Source,
		tokenManager: common.HexToAddress(cfg.TokenManager),
		pairFactory:  common.HexToAddress(cfg.PairFactory),
		maxSpan:      cfg.MaxLogSpan,
		logger:       cfg.Logger,
		managerABI:   managerABI,
		factoryABI:   factoryABI,
		erc20ABI:     erc20ABI,
		blockTimes:   make(map[uint64]uint64),
	}, nil
}

func (e *EVM) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return e.src.BlockNumber(ctx)
}

func (e *EVM) TokenCreatedEvents(ctx context.Context, from, to uint64) ([]models.TokenCreated, error) {
	logs, err := e.filter(ctx, e.tokenManager, e.managerABI.Events["TokenCreated"].ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch TokenCreated logs: %w", err)
	}

	out := make([]models.TokenCreated, 0, len(logs))
	for _, l := range logs {
		ev, err := e.decodeTokenCreated(l)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (e *EVM) PairCreatedEvents(ctx context.Context, from, to uint64) ([]models.PairCreated, error) {
	logs, err := e.filter(ctx, e.pairFactory, e.factoryABI.Events["PairCreated"].ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch PairCreated logs: %w", err)
	}

	out := make([]models.PairCreated, 0, len(logs))
	for _, l := range logs {
		ev, err := e.decodePairCreated(l)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (e *EVM) PurchaseEvents(ctx context.Context, from, to uint64) ([]models.Purchase, error) {
	logs, err := e.filter(ctx, e.tokenManager, e.managerABI.Events["Buy"].ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch Buy logs: %w", err)
	}

	out := make([]models.Purchase, 0, len(logs))
	for _, l := range logs {
		ev, err := e.decodePurchase(l)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// BlockTime memoizes timestamps; a block's time never changes.
func (e *EVM) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	e.mu.Lock()
	ts, ok := e.blockTimes[number]
	e.mu.Unlock()
	if ok {
		return time.Unix(int64(ts), 0).UTC(), nil
	}

	ts, err := e.src.BlockTime(ctx, number)
	if err != nil {
		return time.Time{}, fmt.Errorf("block %d time: %w", number, err)
	}

	e.mu.Lock()
	e.blockTimes[number] = ts
	e.mu.Unlock()

	return time.Unix(int64(ts), 0).UTC(), nil
}

func (e *EVM) TokenMetadata(ctx context.Context, token string) (models.TokenMetadata, error) {
	if !common.IsHexAddress(token) {
		return models.TokenMetadata{}, fmt.Errorf("invalid token address %q", token)
	}
	addr := common.HexToAddress(token)

	name, err := e.callString(ctx, addr, "name")
	if err != nil {
		return models.TokenMetadata{}, err
	}
	symbol, err := e.callString(ctx, addr, "symbol")
	if err != nil {
		return models.TokenMetadata{}, err
	}
	return models.TokenMetadata{Name: name, Symbol: symbol}, nil
}

func (e *EVM) HolderCount(ctx context.Context, token string, from, to uint64) (int, error) {
	if !common.IsHexAddress(token) {
		return 0, fmt.Errorf("invalid token address %q", token)
	}

	logs, err := e.filter(ctx, common.HexToAddress(token), e.erc20ABI.Events["Transfer"].ID, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetch Transfer logs: %w", err)
	}

	zero := common.Address{}
	holders := make(map[common.Address]struct{})
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		recipient := common.BytesToAddress(l.Topics[2].Bytes())
		if recipient == zero {
			continue
		}
		holders[recipient] = struct{}{}
	}
	return len(holders), nil
}

// filter splits [from, to] into spans the node accepts and concatenates the results
func (e *EVM) filter(ctx context.Context, address common.Address, topic common.Hash, from, to uint64) ([]types.Log, error) {
	if from > to {
		return nil, nil
	}

	var out []types.Log
	for start := from; start <= to; start += e.maxSpan {
		end := start + e.maxSpan - 1
		if end > to {
			end = to
		}

		logs, err := e.src.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{address},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return nil, fmt.Errorf("blocks %d-%d: %w", start, end, err)
		}

		e.logger.WithFields(logrus.Fields{
			"address": address.Hex(),
			"from":    start,
			"to":      end,
			"count":   len(logs),
		}).Debug("fetched logs")

		for _, l := range logs {
			if l.Removed {
				continue
			}
			out = append(out, l)
		}

		if end == to {
			break
		}
	}
	return out, nil
}

func (e *EVM) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	data, err := e.erc20ABI.Pack(method)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := e.src.CallContract(ctx, addr, data)
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", method, addr.Hex(), err)
	}

	vals, err := e.erc20ABI.Unpack(method, raw)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) != 1 {
		return "", fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(vals))
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("unpack %s: unexpected type %T", method, vals[0])
	}
	return s, nil
}
