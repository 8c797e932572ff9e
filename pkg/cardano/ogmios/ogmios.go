// Package ogmios talks JSON-RPC to an Ogmios v6 server for protocol
// parameters, script evaluation and submission.
package ogmios

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/metrics"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
)

const (
	provider       = "ogmios"
	paramsKey      = "protocolParameters"
	defaultTimeout = 30 * time.Second
)

// RPCError is an error object returned by Ogmios.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("ogmios error %d: %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("ogmios error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      uint64      `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     uint64          `json:"id"`
}

// Client keeps one websocket open and serializes requests over it.
type Client struct {
	url    string
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64

	params *ttlcache.Cache[string, *txbuilder.ProtocolParams]
}

func New(url string, paramsTTL time.Duration) *Client {
	if paramsTTL <= 0 {
		paramsTTL = 10 * time.Minute
	}
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		params: ttlcache.New[string, *txbuilder.ProtocolParams](
			ttlcache.WithTTL[string, *txbuilder.ProtocolParams](paramsTTL),
			ttlcache.WithDisableTouchOnHit[string, *txbuilder.ProtocolParams](),
		),
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) (err error) {
	defer func() { metrics.ProviderRequest(provider, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return errors.Wrapf(err, "dial ogmios %s", c.url)
		}
		c.conn = conn
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	c.nextID++
	id := c.nextID
	if err := c.conn.WriteJSON(request{JSONRPC: "2.0", Method: method, Params: params, ID: id}); err != nil {
		c.reset()
		return errors.Wrapf(err, "send %s", method)
	}
	var resp response
	if err := c.conn.ReadJSON(&resp); err != nil {
		c.reset()
		return errors.Wrapf(err, "read %s response", method)
	}
	if resp.ID != id {
		c.reset()
		return errors.Errorf("%s: response id %d does not match request %d", method, resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(resp.Result, result), "decode %s result", method)
}

// reset drops a connection whose stream can no longer be trusted.
func (c *Client) reset() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

type lovelace struct {
	Ada struct {
		Lovelace uint64 `json:"lovelace"`
	} `json:"ada"`
}

type exUnits struct {
	Memory uint64 `json:"memory"`
	CPU    uint64 `json:"cpu"`
}

type protocolParameters struct {
	MinFeeCoefficient      uint64   `json:"minFeeCoefficient"`
	MinFeeConstant         lovelace `json:"minFeeConstant"`
	MinFeeReferenceScripts *struct {
		Range      uint64      `json:"range"`
		Base       json.Number `json:"base"`
		Multiplier json.Number `json:"multiplier"`
	} `json:"minFeeReferenceScripts"`
	MaxTransactionSize struct {
		Bytes uint64 `json:"bytes"`
	} `json:"maxTransactionSize"`
	StakeCredentialDeposit    lovelace           `json:"stakeCredentialDeposit"`
	MinUtxoDepositCoefficient uint64             `json:"minUtxoDepositCoefficient"`
	PlutusCostModels          map[string][]int64 `json:"plutusCostModels"`
	ScriptExecutionPrices     struct {
		Memory string `json:"memory"`
		CPU    string `json:"cpu"`
	} `json:"scriptExecutionPrices"`
	MaxExecutionUnitsPerTransaction exUnits `json:"maxExecutionUnitsPerTransaction"`
	CollateralPercentage            uint64  `json:"collateralPercentage"`
}

func parseRat(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, errors.Errorf("invalid ratio %q", s)
	}
	return r, nil
}

func (p protocolParameters) toParams() (*txbuilder.ProtocolParams, error) {
	out := &txbuilder.ProtocolParams{
		MinFeeA:           p.MinFeeCoefficient,
		MinFeeB:           p.MinFeeConstant.Ada.Lovelace,
		CoinsPerUtxoByte:  p.MinUtxoDepositCoefficient,
		StakeKeyDeposit:   p.StakeCredentialDeposit.Ada.Lovelace,
		MaxTxSize:         p.MaxTransactionSize.Bytes,
		MaxTxExUnits:      txbuilder.ExUnits{Mem: p.MaxExecutionUnitsPerTransaction.Memory, Steps: p.MaxExecutionUnitsPerTransaction.CPU},
		CollateralPercent: p.CollateralPercentage,
		CostModelV3:       p.PlutusCostModels["plutus:v3"],
	}
	var err error
	if out.PriceMem, err = parseRat(p.ScriptExecutionPrices.Memory); err != nil {
		return nil, err
	}
	if out.PriceSteps, err = parseRat(p.ScriptExecutionPrices.CPU); err != nil {
		return nil, err
	}
	if r := p.MinFeeReferenceScripts; r != nil {
		out.RefScriptRange = r.Range
		if out.RefScriptBase, err = parseRat(r.Base.String()); err != nil {
			return nil, err
		}
		if out.RefScriptMultiplier, err = parseRat(r.Multiplier.String()); err != nil {
			return nil, err
		}
	}
	if len(out.CostModelV3) == 0 {
		return nil, errors.New("ledger has no plutus:v3 cost model")
	}
	return out, nil
}

// ProtocolParams returns the current protocol parameters, cached for the
// configured TTL.
func (c *Client) ProtocolParams(ctx context.Context) (*txbuilder.ProtocolParams, error) {
	if item := c.params.Get(paramsKey); item != nil {
		return item.Value(), nil
	}
	var raw protocolParameters
	if err := c.call(ctx, "queryLedgerState/protocolParameters", nil, &raw); err != nil {
		return nil, err
	}
	p, err := raw.toParams()
	if err != nil {
		return nil, err
	}
	c.params.Set(paramsKey, p, ttlcache.DefaultTTL)
	log.Debugw("Fetched protocol parameters", "min_fee_a", p.MinFeeA, "min_fee_b", p.MinFeeB)
	return p, nil
}

type txParams struct {
	Transaction struct {
		CBOR string `json:"cbor"`
	} `json:"transaction"`
}

func newTxParams(tx []byte) txParams {
	var p txParams
	p.Transaction.CBOR = hex.EncodeToString(tx)
	return p
}

var purposes = map[string]txbuilder.RedeemerTag{
	"spend":    txbuilder.TagSpend,
	"mint":     txbuilder.TagMint,
	"publish":  txbuilder.TagCert,
	"withdraw": txbuilder.TagReward,
}

// EvaluateTx runs every script of tx and reports the budgets.
func (c *Client) EvaluateTx(ctx context.Context, tx []byte) ([]txbuilder.Evaluation, error) {
	var result []struct {
		Validator struct {
			Index   uint32 `json:"index"`
			Purpose string `json:"purpose"`
		} `json:"validator"`
		Budget exUnits `json:"budget"`
	}
	if err := c.call(ctx, "evaluateTransaction", newTxParams(tx), &result); err != nil {
		return nil, err
	}
	evals := make([]txbuilder.Evaluation, 0, len(result))
	for _, r := range result {
		tag, ok := purposes[r.Validator.Purpose]
		if !ok {
			return nil, errors.Errorf("unexpected validator purpose %q", r.Validator.Purpose)
		}
		evals = append(evals, txbuilder.Evaluation{
			Tag:    tag,
			Index:  r.Validator.Index,
			Budget: txbuilder.ExUnits{Mem: r.Budget.Memory, Steps: r.Budget.CPU},
		})
	}
	return evals, nil
}

// SubmitTx submits a signed transaction and returns its id.
func (c *Client) SubmitTx(ctx context.Context, tx []byte) (types.Hash, error) {
	var result struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	err := c.call(ctx, "submitTransaction", newTxParams(tx), &result)
	metrics.Submitted(err)
	if err != nil {
		return nil, err
	}
	return types.HashFromHex(result.Transaction.ID)
}
