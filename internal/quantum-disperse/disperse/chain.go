package disperse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/contracts/bindings/go/disperse"
)

// EVMChain implements Chain against a deployed disperse contract.
type EVMChain struct {
	contract *disperse.Disperse
	address  common.Address
	tx       allowance.Transactor
}

func NewEVMChain(address common.Address, backend bind.ContractBackend, tx allowance.Transactor) (*EVMChain, error) {
	c, err := disperse.NewDisperse(address, backend)
	if err != nil {
		return nil, fmt.Errorf("disperse: bind contract: %w", err)
	}
	return &EVMChain{contract: c, address: address, tx: tx}, nil
}

func (c *EVMChain) DisperseNative(ctx context.Context, method string, recipients []common.Address, amounts []*big.Int, total *big.Int) (common.Hash, error) {
	label := fmt.Sprintf("%s %s wei to %d recipients via %s", method, total.String(), len(recipients), c.address.Hex())
	return c.tx.Send(ctx, label, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.Value = new(big.Int).Set(total)
		switch method {
		case "disperseEther":
			return c.contract.DisperseEther(opts, recipients, amounts)
		case "disperseBNB":
			return c.contract.DisperseBNB(opts, recipients, amounts)
		default:
			return c.contract.Transact(opts, method, recipients, amounts)
		}
	})
}

func (c *EVMChain) DisperseToken(ctx context.Context, token common.Address, recipients []common.Address, amounts []*big.Int) (common.Hash, error) {
	label := fmt.Sprintf("disperseToken %s to %d recipients via %s", token.Hex(), len(recipients), c.address.Hex())
	return c.tx.Send(ctx, label, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.contract.DisperseToken(opts, token, recipients, amounts)
	})
}
