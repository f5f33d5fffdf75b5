package ledger

import (
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// tokenParameters mirrors TokenManager.TokenParameters.
type tokenParameters struct {
	CurveScaler           *big.Int
	A                     uint16
	B                     uint8
	LpDeployed            bool
	LpPercentage          uint8
	SalePercentage        uint8
	CreatorFeeBasisPoints uint8
	CreatorAddress        common.Address
	PairAddress           common.Address
	TokenContractAddress  common.Address
}

type tokenCreatedData struct {
	TokenId     *big.Int
	Params      tokenParameters
	TokenSupply *big.Int
}

type buyData struct {
	User            common.Address
	TokenId         *big.Int
	TokenAmount     *big.Int
	Cost            *big.Int
	TokenSupply     *big.Int
	ReferrerAddress common.Address
	ReferralFee     *big.Int
	CreatorFee      *big.Int
	ProtocolFee     *big.Int
}

func (e *EVM) decodeTokenCreated(l types.Log) (models.TokenCreated, error) {
	var d tokenCreatedData
	if err := e.managerABI.UnpackIntoInterface(&d, "TokenCreated", l.Data); err != nil {
		return models.TokenCreated{}, fmt.Errorf("decode TokenCreated in tx %s: %w", l.TxHash.Hex(), err)
	}

	return models.TokenCreated{
		TokenID:              d.TokenId,
		CreatorAddress:       d.Params.CreatorAddress.Hex(),
		PairAddress:          d.Params.PairAddress.Hex(),
		TokenContractAddress: d.Params.TokenContractAddress.Hex(),
		TotalSupply:          d.TokenSupply,
		SalePercentage:       d.Params.SalePercentage,
		LPDeployed:           d.Params.LpDeployed,
		CurveScaler:          d.Params.CurveScaler,
		CurveA:               d.Params.A,
		CurveB:               d.Params.B,
		BlockNumber:          l.BlockNumber,
		TxHash:               l.TxHash.Hex(),
	}, nil
}

func (e *EVM) decodePurchase(l types.Log) (models.Purchase, error) {
	var d buyData
	if err := e.managerABI.UnpackIntoInterface(&d, "Buy", l.Data); err != nil {
		return models.Purchase{}, fmt.Errorf("decode Buy in tx %s: %w", l.TxHash.Hex(), err)
	}

	return models.Purchase{
		TokenID:     d.TokenId,
		Buyer:       d.User.Hex(),
		Cost:        d.Cost,
		TokenAmount: d.TokenAmount,
		BlockNumber: l.BlockNumber,
	}, nil
}

func (e *EVM) decodePairCreated(l types.Log) (models.PairCreated, error) {
	if len(l.Topics) < 3 {
		return models.PairCreated{}, fmt.Errorf("decode PairCreated in tx %s: expected 3 topics, got %d", l.TxHash.Hex(), len(l.Topics))
	}

	vals, err := e.factoryABI.Unpack("PairCreated", l.Data)
	if err != nil {
		return models.PairCreated{}, fmt.Errorf("decode PairCreated in tx %s: %w", l.TxHash.Hex(), err)
	}
	pair, ok := vals[0].(common.Address)
	if !ok {
		return models.PairCreated{}, fmt.Errorf("decode PairCreated in tx %s: unexpected pair type %T", l.TxHash.Hex(), vals[0])
	}

	return models.PairCreated{
		Token0:      common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		Token1:      common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
		PairAddress: pair.Hex(),
		BlockNumber: l.BlockNumber,
	}, nil
}
