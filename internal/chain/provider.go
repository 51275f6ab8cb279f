package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthProvider implements the ledger provider contract on top of a JSON-RPC
// endpoint via ethclient.
type EthProvider struct {
	client  *ethclient.Client
	chainID *big.Int
}

// Dial connects to the given RPC endpoint and verifies the remote chain ID
// matches the configured one.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*EthProvider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: query chain id: %w", err)
	}
	if remote.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain: chain id mismatch: node reports %d, configured %d", remote.Int64(), chainID)
	}

	return &EthProvider{client: client, chainID: remote}, nil
}

// ChainID returns the connected chain's identifier.
func (p *EthProvider) ChainID() *big.Int {
	return new(big.Int).Set(p.chainID)
}

// Close releases the underlying RPC connection.
func (p *EthProvider) Close() {
	p.client.Close()
}

// EstimateCall asks the node for a raw cost estimate for the prepared call.
// The returned estimate carries no safety buffer; the execution manager
// applies its own multiplier.
func (p *EthProvider) EstimateCall(ctx context.Context, from common.Address, call CallRequest) (FeeEstimate, error) {
	data, err := PackCall(call)
	if err != nil {
		return FeeEstimate{}, err
	}

	to := common.HexToAddress(call.Target)
	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: call.Value,
		Data:  data,
	}

	gasLimit, err := p.client.EstimateGas(ctx, msg)
	if err != nil {
		return FeeEstimate{}, &EstimationError{Err: fmt.Errorf("estimate gas: %w", err)}
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return FeeEstimate{}, &EstimationError{Err: fmt.Errorf("suggest gas price: %w", err)}
	}

	est := FeeEstimate{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	}

	// EIP-1559 caps when the chain reports a tip; legacy pricing otherwise.
	tip, err := p.client.SuggestGasTipCap(ctx)
	if err == nil {
		est.GasTipCap = tip
		est.GasFeeCap = new(big.Int).Add(gasPrice, tip)
	}

	return est, nil
}

// SubmitSignedCall broadcasts a signed transaction and returns its hash.
func (p *EthProvider) SubmitSignedCall(ctx context.Context, tx *types.Transaction) (string, error) {
	if err := p.client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("chain: send transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// TransactionStatus reports the execution state of a submitted call. A hash
// the node has not seen yet is reported as pending, not as an error.
func (p *EthProvider) TransactionStatus(ctx context.Context, txHash string) (CallStatus, error) {
	receipt, err := p.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return CallStatus{State: CallPending}, nil
		}
		return CallStatus{}, fmt.Errorf("chain: transaction receipt %s: %w", txHash, err)
	}

	status := CallStatus{
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		status.State = CallSucceeded
	} else {
		status.State = CallReverted
	}
	return status, nil
}

// PendingNonce returns the next nonce for the account, including pending
// transactions.
func (p *EthProvider) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := p.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("chain: pending nonce %s: %w", account.Hex(), err)
	}
	return nonce, nil
}

// Balance returns the native-token balance of the account in wei.
func (p *EthProvider) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := p.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balance %s: %w", account.Hex(), err)
	}
	return bal, nil
}
