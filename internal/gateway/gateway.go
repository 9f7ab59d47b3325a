// Package gateway binds roster contract wrappers to the fixed on-chain
// contract address.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/student-roster/internal/connection"
	"github.com/nspcc-dev/student-roster/internal/roster"
	rosterrpc "github.com/nspcc-dev/student-roster/rpc/roster"
)

// ContractAddress is the address of the Student Roster contract in
// big-endian hex form.
const ContractAddress = "f24601c059d3583b43341131d368091cb8dec2e6"

var contractHash = func() util.Uint160 {
	h, err := util.Uint160DecodeStringBE(ContractAddress)
	if err != nil {
		panic(fmt.Sprintf("invalid roster contract address: %v", err))
	}
	return h
}()

// ErrUnauthorized is returned by BindForWrite when the handle carries no
// transaction sender.
var ErrUnauthorized = errors.New("handle is not authorized")

// Ambient is the wallet-independent read access to the chain.
type Ambient interface {
	// Reader returns invoker for test invocations. Reader fails when the chain
	// is not reachable.
	Reader(ctx context.Context) (*invoker.Invoker, error)
}

// WriteContract submits roster mutations and awaits their acceptance.
type WriteContract interface {
	// RegisterStudent signs and sends registerStudent transaction. It returns
	// the transaction hash and its ValidUntilBlock.
	RegisterStudent(id uint64, name string) (util.Uint256, uint32, error)

	// RemoveStudent signs and sends removeStudent transaction. It returns the
	// transaction hash and its ValidUntilBlock.
	RemoveStudent(id uint64) (util.Uint256, uint32, error)

	// Confirm blocks until the transaction is persisted, becomes invalid at
	// ValidUntilBlock or the context is done. Execution faults are returned
	// as errors along with the execution result.
	Confirm(ctx context.Context, tx util.Uint256, vub uint32) (*state.AppExecResult, error)
}

// ReadContract reads the roster from the chain.
type ReadContract interface {
	GetStudents() ([]roster.Student, error)
}

// Gateway binds contract wrappers to the roster contract. It keeps no state
// between binds.
type Gateway struct {
	ambient Ambient
	hash    util.Uint160
}

// New returns Gateway reading through the given Ambient.
func New(a Ambient) *Gateway {
	return &Gateway{ambient: a, hash: contractHash}
}

// Address returns the roster contract address.
func (g *Gateway) Address() util.Uint160 {
	return g.hash
}

// BindForWrite binds the contract to the transaction sender of the
// authorized handle.
func (g *Gateway) BindForWrite(h *connection.Handle) (WriteContract, error) {
	act := h.Actor()
	if act == nil {
		return nil, ErrUnauthorized
	}

	return newWriter(act, g.hash), nil
}

// BindForRead binds the contract to a read-only invoker. No wallet access is
// required.
func (g *Gateway) BindForRead(ctx context.Context) (ReadContract, error) {
	if g.ambient == nil {
		return nil, errors.New("no chain access configured")
	}

	inv, err := g.ambient.Reader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open read-only connection: %w", err)
	}

	return &reader{rosterrpc.NewReader(inv, g.hash)}, nil
}

type reader struct {
	c *rosterrpc.ContractReader
}

func (r *reader) GetStudents() ([]roster.Student, error) {
	res, err := r.c.GetStudents()
	if err != nil {
		return nil, fmt.Errorf("call getStudents: %w", err)
	}

	students := make([]roster.Student, len(res))
	for i := range res {
		if res[i].ID == nil || res[i].ID.Sign() < 0 || !res[i].ID.IsUint64() {
			return nil, fmt.Errorf("student #%d: ID %v out of range", i, res[i].ID)
		}

		students[i] = roster.Student{ID: res[i].ID.Uint64(), Name: res[i].Name}
	}

	return students, nil
}

// Waiter awaits transaction acceptance.
type Waiter interface {
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
}

// Signer is a transaction sender able to await its transactions.
type Signer interface {
	rosterrpc.Actor
	Waiter
}

type writer struct {
	c      *rosterrpc.Contract
	waiter Waiter
}

func newWriter(s Signer, hash util.Uint160) *writer {
	return &writer{c: rosterrpc.New(s, hash), waiter: s}
}

func (w *writer) RegisterStudent(id uint64, name string) (util.Uint256, uint32, error) {
	h, vub, err := w.c.RegisterStudent(new(big.Int).SetUint64(id), name)
	if err != nil {
		return h, vub, fmt.Errorf("send registerStudent transaction: %w", err)
	}
	return h, vub, nil
}

func (w *writer) RemoveStudent(id uint64) (util.Uint256, uint32, error) {
	h, vub, err := w.c.RemoveStudent(new(big.Int).SetUint64(id))
	if err != nil {
		return h, vub, fmt.Errorf("send removeStudent transaction: %w", err)
	}
	return h, vub, nil
}

func (w *writer) Confirm(ctx context.Context, tx util.Uint256, vub uint32) (*state.AppExecResult, error) {
	res, err := w.waiter.WaitAny(ctx, vub, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for transaction %s: %w", tx.StringLE(), err)
	}

	if res.VMState != vmstate.Halt {
		return res, fmt.Errorf("transaction %s failed: %s", tx.StringLE(), res.FaultException)
	}

	return res, nil
}
