package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the service's key material and produces sendable signed
// transactions for prepared calls. It is created once at startup.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	signer     types.Signer
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	id := big.NewInt(chainID)
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    id,
		signer:     types.LatestSignerForChainID(id),
	}, nil
}

// Address returns the account address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignCall encodes the call, builds a transaction priced by the estimate,
// and signs it. EIP-1559 dynamic-fee transactions are produced when the
// estimate carries fee caps; legacy transactions otherwise.
func (s *Signer) SignCall(call CallRequest, fee FeeEstimate, nonce uint64) (*types.Transaction, error) {
	data, err := PackCall(call)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(call.Target)
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	var tx *types.Transaction
	if fee.GasFeeCap != nil {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.chainID,
			Nonce:     nonce,
			GasTipCap: fee.GasTipCap,
			GasFeeCap: fee.GasFeeCap,
			Gas:       fee.GasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: fee.GasPrice,
			Gas:      fee.GasLimit,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}

	signed, err := types.SignTx(tx, s.signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("chain: sign transaction: %w", err)
	}
	return signed, nil
}
