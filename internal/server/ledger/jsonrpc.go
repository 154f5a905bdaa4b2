package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/normalize"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// Contract method signatures of the fraud registry.
const (
	sigReportWebsite = "reportWebsite(bytes32,string,string,bytes32)"
	sigCheckWebsite  = "checkWebsite(bytes32)"
	sigGetReports    = "getReports(bytes32)"
	sigVerifyReport  = "verifyReport(bytes32,bool)"
	sigGetReputation = "getReporterReputation(address)"
)

// JSONRPCClient talks to an EVM-style node over JSON-RPC. State-changing
// calls use eth_sendTransaction from a node-managed operator account; reads
// use eth_call.
type JSONRPCClient struct {
	endpoint string
	contract string
	from     string
	http     *http.Client
	nextID   atomic.Uint64
}

func NewJSONRPCClient(endpoint, contract, from string) *JSONRPCClient {
	return &JSONRPCClient{
		endpoint: endpoint,
		contract: contract,
		from:     from,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: node returned %s", common.ErrLedgerUnavailable, resp.Status)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("%w: bad node response: %v", common.ErrLedgerUnavailable, err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("ledger rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}

	return rr.Result, nil
}

func (c *JSONRPCClient) sendTransaction(ctx context.Context, data string) (string, error) {
	result, err := c.call(ctx, "eth_sendTransaction", map[string]string{
		"from": c.from,
		"to":   c.contract,
		"data": data,
	})
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", fmt.Errorf("%w: bad tx hash: %v", common.ErrLedgerUnavailable, err)
	}
	return txHash, nil
}

func (c *JSONRPCClient) ethCall(ctx context.Context, data string) (string, error) {
	result, err := c.call(ctx, "eth_call", map[string]string{
		"to":   c.contract,
		"data": data,
	}, "latest")
	if err != nil {
		return "", err
	}

	var out string
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("%w: bad call result: %v", common.ErrLedgerUnavailable, err)
	}
	return out, nil
}

func (c *JSONRPCClient) ReportWebsite(ctx context.Context, targetHash, category, description, evidenceHash string) (string, error) {
	target, err := hexWord(targetHash)
	if err != nil {
		return "", err
	}
	evidence, err := hexWord(evidenceHash)
	if err != nil {
		return "", err
	}

	data := encodeCall(sigReportWebsite,
		staticArg(target), dynamicArg(category), dynamicArg(description), staticArg(evidence))

	return c.sendTransaction(ctx, data)
}

func (c *JSONRPCClient) CheckWebsite(ctx context.Context, targetHash string) (WebsiteState, error) {
	target, err := hexWord(targetHash)
	if err != nil {
		return WebsiteStateUnknown, err
	}

	out, err := c.ethCall(ctx, encodeCall(sigCheckWebsite, staticArg(target)))
	if err != nil {
		return WebsiteStateUnknown, err
	}

	words, err := decodeWords(out)
	if err != nil || len(words) == 0 {
		return WebsiteStateUnknown, fmt.Errorf("%w: bad checkWebsite result", common.ErrLedgerUnavailable)
	}

	return WebsiteState(wordUint(words[0])), nil
}

func (c *JSONRPCClient) GetReports(ctx context.Context, targetHash string) ([]string, error) {
	target, err := hexWord(targetHash)
	if err != nil {
		return nil, err
	}

	out, err := c.ethCall(ctx, encodeCall(sigGetReports, staticArg(target)))
	if err != nil {
		return nil, err
	}

	return decodeBytes32Array(out)
}

func (c *JSONRPCClient) VerifyReport(ctx context.Context, reportID string, isValid bool) (string, error) {
	// Off-chain report ids are UUIDs; the contract keys reports by their
	// keccak256 digest.
	id, err := hexWord(normalize.Keccak256Hex([]byte(reportID)))
	if err != nil {
		return "", err
	}

	return c.sendTransaction(ctx, encodeCall(sigVerifyReport, staticArg(id), staticArg(boolWord(isValid))))
}

func (c *JSONRPCClient) GetReporterReputation(ctx context.Context, address string) (int64, error) {
	addr, err := hexWord(address)
	if err != nil {
		return 0, err
	}

	out, err := c.ethCall(ctx, encodeCall(sigGetReputation, staticArg(addr)))
	if err != nil {
		return 0, err
	}

	words, err := decodeWords(out)
	if err != nil || len(words) == 0 {
		return 0, fmt.Errorf("%w: bad reputation result", common.ErrLedgerUnavailable)
	}

	return int64(wordUint(words[0])), nil
}

type txReceiptResult struct {
	Status            string `json:"status"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
}

func (c *JSONRPCClient) TransactionStatus(ctx context.Context, txHash string) (TxReceipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", txHash)
	if err != nil {
		return TxReceipt{}, err
	}

	// A null receipt means the node has not mined the transaction yet.
	if len(result) == 0 || string(result) == "null" {
		return TxReceipt{Status: models.TxPending}, nil
	}

	var receipt txReceiptResult
	if err := json.Unmarshal(result, &receipt); err != nil {
		return TxReceipt{}, fmt.Errorf("%w: bad receipt: %v", common.ErrLedgerUnavailable, err)
	}

	status := models.TxFailed
	if receipt.Status == "0x1" {
		status = models.TxConfirmed
	}

	return TxReceipt{Status: status, GasFee: gasFee(receipt.GasUsed, receipt.EffectiveGasPrice)}, nil
}

// gasFee multiplies hex quantities gasUsed * effectiveGasPrice and renders
// the wei total as a decimal string.
func gasFee(gasUsed, gasPrice string) string {
	used, ok1 := new(big.Int).SetString(strings.TrimPrefix(gasUsed, "0x"), 16)
	price, ok2 := new(big.Int).SetString(strings.TrimPrefix(gasPrice, "0x"), 16)
	if !ok1 || !ok2 {
		return ""
	}
	return new(big.Int).Mul(used, price).String()
}
