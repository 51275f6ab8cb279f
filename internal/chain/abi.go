package chain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// lendingPoolABI covers the state-changing surface of the lending contract
// the service calls into. Top-up remediation uses addCollateral; the loan
// service uses the remaining methods.
const lendingPoolABI = `[
	{"type":"function","name":"addCollateral","stateMutability":"nonpayable","inputs":[{"name":"onBehalfOf","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"supply","stateMutability":"nonpayable","inputs":[{"name":"onBehalfOf","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"borrow","stateMutability":"nonpayable","inputs":[{"name":"onBehalfOf","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"repay","stateMutability":"nonpayable","inputs":[{"name":"onBehalfOf","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"onBehalfOf","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error
)

// PackCall ABI-encodes the method and arguments of a call request into
// transaction calldata.
func PackCall(call CallRequest) ([]byte, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(lendingPoolABI))
	})
	if poolABIErr != nil {
		return nil, fmt.Errorf("chain: parse lending pool abi: %w", poolABIErr)
	}

	data, err := poolABI.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", call.Method, err)
	}
	return data, nil
}
