package dex

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"stableScope/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// CoinCounts lists the pool sizes whose liquidity events are recognized.
	// Defaults to 2, 3 and 4.
	CoinCounts []int
	// Topic0Map adds topic0 -> event name aliases for forks that renamed an
	// event but kept its layout. The coin count comes from pool metadata.
	Topic0Map map[string]string
}

type eventRef struct {
	name string
	// n is 0 when the layout does not depend on the coin count.
	n int
}

// CurvePoolDecoder decodes StableSwap pool events.
type CurvePoolDecoder struct {
	topicToEvent map[string]eventRef
}

// NewCurvePoolDecoder builds a pool decoder.
func NewCurvePoolDecoder(cfg DecoderConfig) (*CurvePoolDecoder, error) {
	counts := cfg.CoinCounts
	if len(counts) == 0 {
		counts = []int{2, 3, 4}
	}

	topicToEvent := make(map[string]eventRef)
	for _, n := range counts {
		poolABI, err := CurvePoolABI(n)
		if err != nil {
			return nil, err
		}
		for name, ev := range poolABI.Events {
			ref := eventRef{name: name, n: n}
			if !dependsOnCoins(ev) {
				ref.n = 0
			}
			topicToEvent[strings.ToLower(ev.ID.Hex())] = ref
		}
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToEvent[strings.ToLower(topic0)] = eventRef{name: name}
	}

	return &CurvePoolDecoder{topicToEvent: topicToEvent}, nil
}

// CurveEventTopics returns every pool event topic0 for the given coin counts,
// sorted for stable filters.
func CurveEventTopics(coinCounts []int) ([]common.Hash, error) {
	seen := make(map[common.Hash]struct{})
	for _, n := range coinCounts {
		poolABI, err := CurvePoolABI(n)
		if err != nil {
			return nil, err
		}
		for _, ev := range poolABI.Events {
			seen[ev.ID] = struct{}{}
		}
	}
	out := make([]common.Hash, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}

func dependsOnCoins(ev abi.Event) bool {
	for _, in := range ev.Inputs {
		if in.Type.T == abi.ArrayTy {
			return true
		}
	}
	return false
}

// CanDecode checks if the topic0 is supported.
func (d *CurvePoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToEvent[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *CurvePoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	ref, ok := d.topicToEvent[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	poolMeta, err := getPoolMeta(ctx, pool, log.BlockNumber)
	if err != nil {
		return nil, err
	}

	n := ref.n
	if n == 0 {
		n = poolMeta.N()
	}
	if ref.n != 0 && poolMeta.N() != 0 && poolMeta.N() != ref.n {
		return nil, fmt.Errorf("%s for %d coins on a %d coin pool", ref.name, ref.n, poolMeta.N())
	}
	poolABI, err := CurvePoolABI(n)
	if err != nil {
		return nil, err
	}
	event := poolABI.Events[ref.name]

	provider, err := decodeIndexedAddress(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch ref.name {
	case model.EventTokenExchange:
		decoded, err = decodeTokenExchange(provider, values)
	case model.EventAddLiquidity:
		decoded, err = decodeAddLiquidity(provider, values)
	case model.EventRemoveLiquidity:
		decoded, err = decodeRemoveLiquidity(provider, values)
	case model.EventRemoveLiquidityImbalance:
		decoded, err = decodeRemoveLiquidityImbalance(provider, values)
	case model.EventRemoveLiquidityOne:
		decoded, err = decodeRemoveLiquidityOne(provider, values)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", ref.name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref.name, err)
	}
	return buildTypedEvent(log, ref.name, decoded, poolMeta), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tokenexchange", "exchange":
		return model.EventTokenExchange
	case "addliquidity":
		return model.EventAddLiquidity
	case "removeliquidity":
		return model.EventRemoveLiquidity
	case "removeliquidityimbalance":
		return model.EventRemoveLiquidityImbalance
	case "removeliquidityone":
		return model.EventRemoveLiquidityOne
	default:
		return ""
	}
}

func getPoolMeta(ctx DecodeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if ok && !ctx.IncludeLiveParams {
		return meta, nil
	}
	if ctx.Chain == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Chain, pool, ctx.TokenMetaCache, ctx.Logger)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}

	if ctx.IncludeLiveParams {
		amp, fee, err := FetchPoolParams(callCtx, ctx.Chain, pool, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return model.PoolMeta{}, fmt.Errorf("live params: %w", err)
		}
		meta.A = amp
		meta.Fee = fee
	}
	return meta, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         raw,
	}
}

func decodeTokenExchange(buyer common.Address, values []interface{}) (model.TokenExchangeData, error) {
	if len(values) != 4 {
		return model.TokenExchangeData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	ints, err := asBigInts(values)
	if err != nil {
		return model.TokenExchangeData{}, err
	}
	for _, id := range []*big.Int{ints[0], ints[2]} {
		if !id.IsInt64() || id.Sign() < 0 || id.Int64() >= MaxCoins {
			return model.TokenExchangeData{}, fmt.Errorf("coin index out of range: %s", id)
		}
	}
	return model.TokenExchangeData{
		Buyer:        buyer.Hex(),
		SoldID:       ints[0].Int64(),
		TokensSold:   ints[1].String(),
		BoughtID:     ints[2].Int64(),
		TokensBought: ints[3].String(),
	}, nil
}

func decodeAddLiquidity(provider common.Address, values []interface{}) (model.AddLiquidityData, error) {
	if len(values) != 4 {
		return model.AddLiquidityData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	amounts, fees, err := decodeAmountsAndFees(values)
	if err != nil {
		return model.AddLiquidityData{}, err
	}
	tail, err := asBigInts(values[2:])
	if err != nil {
		return model.AddLiquidityData{}, err
	}
	return model.AddLiquidityData{
		Provider:     provider.Hex(),
		TokenAmounts: amounts,
		Fees:         fees,
		Invariant:    tail[0].String(),
		TokenSupply:  tail[1].String(),
	}, nil
}

func decodeRemoveLiquidity(provider common.Address, values []interface{}) (model.RemoveLiquidityData, error) {
	if len(values) != 3 {
		return model.RemoveLiquidityData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	amounts, fees, err := decodeAmountsAndFees(values)
	if err != nil {
		return model.RemoveLiquidityData{}, err
	}
	supply, err := asBigInt(values[2])
	if err != nil {
		return model.RemoveLiquidityData{}, err
	}
	return model.RemoveLiquidityData{
		Provider:     provider.Hex(),
		TokenAmounts: amounts,
		Fees:         fees,
		TokenSupply:  supply.String(),
	}, nil
}

func decodeRemoveLiquidityImbalance(provider common.Address, values []interface{}) (model.RemoveLiquidityImbalanceData, error) {
	if len(values) != 4 {
		return model.RemoveLiquidityImbalanceData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	amounts, fees, err := decodeAmountsAndFees(values)
	if err != nil {
		return model.RemoveLiquidityImbalanceData{}, err
	}
	tail, err := asBigInts(values[2:])
	if err != nil {
		return model.RemoveLiquidityImbalanceData{}, err
	}
	return model.RemoveLiquidityImbalanceData{
		Provider:     provider.Hex(),
		TokenAmounts: amounts,
		Fees:         fees,
		Invariant:    tail[0].String(),
		TokenSupply:  tail[1].String(),
	}, nil
}

func decodeRemoveLiquidityOne(provider common.Address, values []interface{}) (model.RemoveLiquidityOneData, error) {
	if len(values) != 2 {
		return model.RemoveLiquidityOneData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	ints, err := asBigInts(values)
	if err != nil {
		return model.RemoveLiquidityOneData{}, err
	}
	return model.RemoveLiquidityOneData{
		Provider:    provider.Hex(),
		TokenAmount: ints[0].String(),
		CoinAmount:  ints[1].String(),
	}, nil
}

func decodeAmountsAndFees(values []interface{}) ([]string, []string, error) {
	amounts, err := asBigIntArray(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("token_amounts: %w", err)
	}
	fees, err := asBigIntArray(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("fees: %w", err)
	}
	return bigStrings(amounts), bigStrings(fees), nil
}

func decodeIndexedAddress(event abi.Event, topics []string) (common.Address, error) {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return common.Address{}, err
	}
	if len(indexedTopics) != 1 {
		return common.Address{}, fmt.Errorf("expected one indexed address, got %d", len(indexedTopics))
	}
	return common.BytesToAddress(indexedTopics[0].Bytes()), nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

// asBigIntArray converts an unpacked uint256[N], which go-ethereum returns as
// a Go array of the matching length.
func asBigIntArray(value interface{}) ([]*big.Int, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unsupported array type %T", value)
	}
	out := make([]*big.Int, rv.Len())
	for i := range out {
		v, err := asBigInt(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func asBigInts(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		b, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func bigStrings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
