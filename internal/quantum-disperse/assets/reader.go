package assets

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/contracts/bindings/go/erc20"
)

// Backend is the subset of an RPC client the EVM reader uses.
type Backend interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// EVMReader implements Reader over an ERC-20 binding.
type EVMReader struct {
	backend Backend
}

func NewEVMReader(backend Backend) *EVMReader {
	return &EVMReader{backend: backend}
}

func (r *EVMReader) NativeBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	if holder == (common.Address{}) {
		return big.NewInt(0), nil
	}
	wei, err := r.backend.BalanceAt(ctx, holder, nil)
	if err != nil {
		return nil, fmt.Errorf("assets: native balance: %w", err)
	}
	return wei, nil
}

func (r *EVMReader) HasCode(ctx context.Context, token common.Address) (bool, error) {
	code, err := r.backend.CodeAt(ctx, token, nil)
	if err != nil {
		return false, fmt.Errorf("assets: code at %s: %w", token.Hex(), err)
	}
	return len(code) > 0, nil
}

func (r *EVMReader) Symbol(ctx context.Context, token common.Address) (string, error) {
	c, err := erc20.NewERC20Caller(token, r.backend)
	if err != nil {
		return "", fmt.Errorf("assets: bind erc20: %w", err)
	}
	return c.Symbol(&bind.CallOpts{Context: ctx})
}

func (r *EVMReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	c, err := erc20.NewERC20Caller(token, r.backend)
	if err != nil {
		return 0, fmt.Errorf("assets: bind erc20: %w", err)
	}
	return c.Decimals(&bind.CallOpts{Context: ctx})
}

func (r *EVMReader) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	if holder == (common.Address{}) {
		return big.NewInt(0), nil
	}
	c, err := erc20.NewERC20Caller(token, r.backend)
	if err != nil {
		return nil, fmt.Errorf("assets: bind erc20: %w", err)
	}
	return c.BalanceOf(&bind.CallOpts{Context: ctx}, holder)
}
