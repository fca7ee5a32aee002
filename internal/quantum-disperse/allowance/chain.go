package allowance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/contracts/bindings/go/erc20"
)

// Transactor signs, broadcasts and waits for one transaction built by fn.
type Transactor interface {
	Send(ctx context.Context, label string, fn func(opts *bind.TransactOpts) (*types.Transaction, error)) (common.Hash, error)
}

// EVMChain implements Chain with the ERC-20 binding.
type EVMChain struct {
	backend bind.ContractBackend
	tx      Transactor
}

func NewEVMChain(backend bind.ContractBackend, tx Transactor) *EVMChain {
	return &EVMChain{backend: backend, tx: tx}
}

func (c *EVMChain) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	erc, err := erc20.NewERC20Caller(token, c.backend)
	if err != nil {
		return nil, fmt.Errorf("allowance: bind erc20: %w", err)
	}
	return erc.Allowance(&bind.CallOpts{Context: ctx}, owner, spender)
}

func (c *EVMChain) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	erc, err := erc20.NewERC20(token, c.backend)
	if err != nil {
		return common.Hash{}, fmt.Errorf("allowance: bind erc20: %w", err)
	}

	label := fmt.Sprintf("approve %s to spend %s of token %s", spender.Hex(), amount.String(), token.Hex())
	if amount.Sign() == 0 {
		label = fmt.Sprintf("revoke %s allowance on token %s", spender.Hex(), token.Hex())
	}
	return c.tx.Send(ctx, label, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return erc.Approve(opts, spender, amount)
	})
}
