package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWeiFromWei(t *testing.T) {
	assert.Equal(t, "1000000000000000000", ToWei(1).String())
	assert.Equal(t, "1500000000000000000", ToWei(1.5).String())
	assert.Equal(t, "0", ToWei(0).String())

	assert.InDelta(t, 2.5, FromWei(ToWei(2.5)), 1e-9)
	assert.Zero(t, FromWei(nil))
}

func TestOverallFee(t *testing.T) {
	legacy := FeeEstimate{GasLimit: 21_000, GasPrice: big.NewInt(100)}
	assert.Equal(t, "2100000", legacy.OverallFee().String())

	// EIP-1559 fee cap takes precedence over the legacy price.
	eip := FeeEstimate{GasLimit: 21_000, GasPrice: big.NewInt(100), GasFeeCap: big.NewInt(200)}
	assert.Equal(t, "4200000", eip.OverallFee().String())

	assert.Equal(t, "0", FeeEstimate{GasLimit: 21_000}.OverallFee().String())
}

func TestPackCall(t *testing.T) {
	data, err := PackCall(CallRequest{
		Method: "addCollateral",
		Args:   []any{common.HexToAddress("0xaa"), big.NewInt(100)},
	})
	require.NoError(t, err)

	// 4-byte selector plus two 32-byte words.
	assert.Len(t, data, 4+64)

	// Identical input packs identically.
	again, err := PackCall(CallRequest{
		Method: "addCollateral",
		Args:   []any{common.HexToAddress("0xaa"), big.NewInt(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestPackCallUnknownMethod(t *testing.T) {
	_, err := PackCall(CallRequest{Method: "selfDestruct", Args: []any{}})
	assert.Error(t, err)
}

func TestPackCallWrongArgType(t *testing.T) {
	_, err := PackCall(CallRequest{Method: "repay", Args: []any{"not-an-address", big.NewInt(1)}})
	assert.Error(t, err)
}
