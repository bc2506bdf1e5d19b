package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
)

// gasLimitMultiplier pads every gas estimate.
const gasLimitMultiplier = 1.2

type EthConfig struct {
	RPCURL         string
	PrivateKey     string
	ChainID        int64
	TokenAddress   string
	BettingAddress string
}

// EthGateway talks to the deployed contracts over JSON-RPC. Transactions are
// signed by the keyed transactor built from the configured private key.
type EthGateway struct {
	log       slog.Logger
	client    *ethclient.Client
	auth      *bind.TransactOpts
	connected atomic.Bool

	bettingAddr common.Address
	bettingABI  abi.ABI
	betting     *bind.BoundContract
	token       *bind.BoundContract
}

// betTuple matches the getBet output layout field for field.
type betTuple struct {
	Id         *big.Int
	Creator    common.Address
	Acceptor   common.Address
	Amount     *big.Int
	TimeLimit  *big.Int
	BoostLimit *big.Int
	GameType   string
	Status     uint8
	CreatedAt  *big.Int
	AcceptedAt *big.Int
}

func DialEthGateway(ctx context.Context, cfg EthConfig, log slog.Logger) (*EthGateway, error) {
	if !common.IsHexAddress(cfg.BettingAddress) {
		return nil, fmt.Errorf("invalid betting contract address %q", cfg.BettingAddress)
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("invalid token address %q", cfg.TokenAddress)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("connected to chain %s, expected %d", chainID, cfg.ChainID)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	bettingABI, err := abi.JSON(strings.NewReader(BettingABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse betting ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	bettingAddr := common.HexToAddress(cfg.BettingAddress)
	tokenAddr := common.HexToAddress(cfg.TokenAddress)

	g := &EthGateway{
		log:         log,
		client:      client,
		auth:        auth,
		bettingAddr: bettingAddr,
		bettingABI:  bettingABI,
		betting:     bind.NewBoundContract(bettingAddr, bettingABI, client, client, client),
		token:       bind.NewBoundContract(tokenAddr, tokenABI, client, client, client),
	}

	var out []interface{}
	if err := g.token.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read token decimals: %w", err)
	}
	if decimals := *abi.ConvertType(out[0], new(uint8)).(*uint8); decimals != 18 {
		client.Close()
		return nil, fmt.Errorf("token has %d decimals, expected 18", decimals)
	}

	g.connected.Store(true)
	log.Infof("chain: connected to chain %s as %s (betting=%s token=%s)",
		chainID, auth.From.Hex(), bettingAddr.Hex(), tokenAddr.Hex())

	return g, nil
}

func (g *EthGateway) Close() {
	g.connected.Store(false)
	g.client.Close()
}

func (g *EthGateway) Connected() bool {
	return g.connected.Load()
}

func (g *EthGateway) Address() common.Address {
	return g.auth.From
}

func (g *EthGateway) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := g.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (g *EthGateway) GetBet(ctx context.Context, id *big.Int) (*BetRecord, error) {
	var out []interface{}
	if err := g.betting.Call(&bind.CallOpts{Context: ctx}, &out, "getBet", id); err != nil {
		return nil, err
	}
	t := *abi.ConvertType(out[0], new(betTuple)).(*betTuple)

	// Unknown ids come back as the zero tuple.
	if t.Creator == (common.Address{}) {
		return nil, ErrBetNotFound
	}

	return &BetRecord{
		ID:         t.Id,
		Creator:    t.Creator,
		Acceptor:   t.Acceptor,
		Amount:     t.Amount,
		TimeLimit:  t.TimeLimit,
		BoostLimit: t.BoostLimit,
		GameType:   t.GameType,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
		AcceptedAt: t.AcceptedAt,
	}, nil
}

func (g *EthGateway) GetActiveBets(ctx context.Context) ([]*big.Int, error) {
	return g.callIDs(ctx, "getActiveBets")
}

func (g *EthGateway) GetUserBets(ctx context.Context, user common.Address) ([]*big.Int, error) {
	return g.callIDs(ctx, "getUserBets", user)
}

func (g *EthGateway) callIDs(ctx context.Context, method string, params ...interface{}) ([]*big.Int, error) {
	var out []interface{}
	if err := g.betting.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

func (g *EthGateway) GetBoostCost(ctx context.Context, id *big.Int) (*big.Int, error) {
	var out []interface{}
	if err := g.betting.Call(&bind.CallOpts{Context: ctx}, &out, "getBoostCost", id); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (g *EthGateway) CreateBet(ctx context.Context, amount, timeLimit, boostLimit *big.Int, gameType string) (PendingTx, error) {
	return g.transact(ctx, "createBet", amount, timeLimit, boostLimit, gameType)
}

func (g *EthGateway) AcceptBet(ctx context.Context, id *big.Int) (PendingTx, error) {
	return g.transact(ctx, "acceptBet", id)
}

func (g *EthGateway) CancelBet(ctx context.Context, id *big.Int) (PendingTx, error) {
	return g.transact(ctx, "cancelBet", id)
}

func (g *EthGateway) ActivateBoost(ctx context.Context, id *big.Int) (PendingTx, error) {
	return g.transact(ctx, "activateBoost", id)
}

func (g *EthGateway) transact(ctx context.Context, method string, params ...interface{}) (PendingTx, error) {
	input, err := g.bettingABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	gas, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From: g.auth.From,
		To:   &g.bettingAddr,
		Data: input,
	})
	if err != nil {
		return nil, err
	}

	opts := *g.auth
	opts.Context = ctx
	opts.GasLimit = uint64(float64(gas) * gasLimitMultiplier)

	tx, err := g.betting.Transact(&opts, method, params...)
	if err != nil {
		return nil, err
	}
	g.log.Infof("chain: %s submitted tx=%s gas=%d", method, tx.Hash().Hex(), opts.GasLimit)

	return &ethPendingTx{gateway: g, tx: tx}, nil
}

type ethPendingTx struct {
	gateway *EthGateway
	tx      *types.Transaction
}

func (p *ethPendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *ethPendingTx) Wait(ctx context.Context) (*Receipt, error) {
	r, err := bind.WaitMined(ctx, p.gateway.client, p.tx)
	if err != nil {
		return nil, err
	}
	if r.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("tx %s: execution reverted", r.TxHash.Hex())
	}

	receipt := &Receipt{
		TxHash:      r.TxHash,
		BlockNumber: r.BlockNumber.Uint64(),
	}

	createdID := p.gateway.bettingABI.Events[string(EventBetCreated)].ID
	for _, l := range r.Logs {
		if l.Address != p.gateway.bettingAddr || len(l.Topics) < 2 || l.Topics[0] != createdID {
			continue
		}
		receipt.BetID = new(big.Int).SetBytes(l.Topics[1].Bytes())
	}

	return receipt, nil
}

// WatchEvents needs a websocket RPC endpoint.
func (g *EthGateway) WatchEvents(ctx context.Context, sink chan<- Event) (event.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.bettingAddr},
	}

	logs := make(chan types.Log, 64)
	sub, err := g.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to logs: %w", err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case vLog := <-logs:
				if vLog.Removed {
					continue
				}
				ev, err := g.decodeLog(vLog)
				if err != nil {
					g.log.Warnf("chain: failed to unpack log %s: %v", vLog.TxHash.Hex(), err)
					continue
				}
				if ev == nil {
					continue
				}
				select {
				case sink <- *ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (g *EthGateway) decodeLog(vLog types.Log) (*Event, error) {
	if len(vLog.Topics) == 0 {
		return nil, nil
	}

	var kind EventKind
	for _, k := range []EventKind{EventBetCreated, EventBetAccepted, EventBetCompleted, EventBetCancelled, EventBoostActivated} {
		if g.bettingABI.Events[string(k)].ID == vLog.Topics[0] {
			kind = k
			break
		}
	}

	ev := &Event{Kind: kind, TxHash: vLog.TxHash}

	switch kind {
	case EventBetCreated:
		var out struct {
			BetId    *big.Int
			Creator  common.Address
			Amount   *big.Int
			GameType string
		}
		if err := g.betting.UnpackLog(&out, string(kind), vLog); err != nil {
			return nil, err
		}
		ev.BetID, ev.Party, ev.Amount, ev.GameType = out.BetId, out.Creator, out.Amount, out.GameType
	case EventBetAccepted:
		var out struct {
			BetId    *big.Int
			Acceptor common.Address
		}
		if err := g.betting.UnpackLog(&out, string(kind), vLog); err != nil {
			return nil, err
		}
		ev.BetID, ev.Party = out.BetId, out.Acceptor
	case EventBetCompleted:
		var out struct {
			BetId  *big.Int
			Winner common.Address
			Amount *big.Int
		}
		if err := g.betting.UnpackLog(&out, string(kind), vLog); err != nil {
			return nil, err
		}
		ev.BetID, ev.Party, ev.Amount = out.BetId, out.Winner, out.Amount
	case EventBetCancelled:
		var out struct {
			BetId *big.Int
		}
		if err := g.betting.UnpackLog(&out, string(kind), vLog); err != nil {
			return nil, err
		}
		ev.BetID = out.BetId
	case EventBoostActivated:
		var out struct {
			BetId  *big.Int
			Player common.Address
		}
		if err := g.betting.UnpackLog(&out, string(kind), vLog); err != nil {
			return nil, err
		}
		ev.BetID, ev.Party = out.BetId, out.Player
	default:
		return nil, nil
	}

	return ev, nil
}
