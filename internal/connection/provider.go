// Package connection provides access to the operator's wallet account and to
// the Neo RPC node serving the roster contract.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"go.uber.org/zap"
)

var (
	// ErrWalletUnavailable is returned when the wallet file can't be read or
	// does not contain the requested account.
	ErrWalletUnavailable = errors.New("wallet is unavailable")

	// ErrAccountLocked is returned when the account can't be decrypted with the
	// provided password.
	ErrAccountLocked = errors.New("wallet account is locked")

	// ErrDeclined is returned when the operator refuses to provide the wallet
	// password.
	ErrDeclined = errors.New("wallet access declined")

	// ErrUnreachable is returned when the RPC node does not respond.
	ErrUnreachable = errors.New("RPC node is unreachable")
)

// RPC groups services of the Neo RPC node required to compose, send and await
// transactions as well as to perform test invocations.
type RPC interface {
	actor.RPCActor
}

// PasswordFunc asks the operator for the password of the wallet account with
// the given address. Returning an error means the access is declined.
type PasswordFunc func(ctx context.Context, address string) (string, error)

// Prm groups parameters of the Provider.
type Prm struct {
	// Writes authorization progress into the log. Optional.
	Logger *zap.Logger

	// Neo RPC node connection.
	RPC RPC

	// Path to the NEP-6 wallet file.
	WalletPath string

	// Address of the account to sign transactions with. Wallet's default
	// account is used when empty.
	Address string

	// Source of the account password.
	Password PasswordFunc
}

// Provider authorizes the operator's account for signing. It does not retain
// any unlocked account between calls.
type Provider struct {
	log        *zap.Logger
	rpc        RPC
	walletPath string
	address    string
	password   PasswordFunc
}

// New constructs Provider from the given parameters.
func New(prm Prm) *Provider {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	return &Provider{
		log:        prm.Logger,
		rpc:        prm.RPC,
		walletPath: prm.WalletPath,
		address:    prm.Address,
		password:   prm.Password,
	}
}

// Authorize unlocks the configured wallet account and returns Handle able to
// sign and send transactions on its behalf. Each call re-reads the wallet and
// asks for the password again.
func (p *Provider) Authorize(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc, err := p.unlock(ctx)
	if err != nil {
		return nil, err
	}

	if p.rpc == nil {
		acc.Close()
		return nil, fmt.Errorf("%w: no RPC connection", ErrUnreachable)
	}

	// NewSimple requests network parameters from the node.
	act, err := actor.NewSimple(p.rpc, acc)
	if err != nil {
		acc.Close()
		return nil, fmt.Errorf("%w: init transaction sender: %w", ErrUnreachable, err)
	}

	p.log.Debug("wallet account authorized", zap.String("account", acc.Address))

	return &Handle{account: acc, actor: act}, nil
}

func (p *Provider) unlock(ctx context.Context) (*wallet.Account, error) {
	if p.walletPath == "" {
		return nil, fmt.Errorf("%w: wallet path is not set", ErrWalletUnavailable)
	}

	w, err := wallet.NewWalletFromFile(p.walletPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open wallet: %w", ErrWalletUnavailable, err)
	}

	var accHash util.Uint160
	if p.address != "" {
		accHash, err = address.StringToUint160(p.address)
		if err != nil {
			return nil, fmt.Errorf("%w: decode account address: %w", ErrWalletUnavailable, err)
		}
	} else {
		accHash = w.GetChangeAddress()
	}

	acc := w.GetAccount(accHash)
	if acc == nil {
		return nil, fmt.Errorf("%w: account %s not found", ErrWalletUnavailable, address.Uint160ToString(accHash))
	}

	if p.password == nil {
		return nil, fmt.Errorf("%w: no password source", ErrDeclined)
	}

	pass, err := p.password(ctx, acc.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	err = acc.Decrypt(pass, w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccountLocked, err)
	}

	return acc, nil
}

// Reader returns invoker for read-only contract calls. It does not unlock the
// wallet. The RPC node is probed first, so an unreachable node is reported
// here rather than on the first call.
func (p *Provider) Reader(ctx context.Context) (*invoker.Invoker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.rpc == nil {
		return nil, fmt.Errorf("%w: no RPC connection", ErrUnreachable)
	}

	_, err := p.rpc.GetVersion()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	return invoker.New(p.rpc, nil), nil
}

// Handle is an authorized signing context. It must be closed after use so
// that the decrypted key is wiped.
type Handle struct {
	account *wallet.Account
	actor   *actor.Actor
}

// Actor returns transaction sender bound to the authorized account. Nil for
// the zero Handle.
func (h *Handle) Actor() *actor.Actor {
	if h == nil {
		return nil
	}
	return h.actor
}

// Account returns script hash of the authorized account.
func (h *Handle) Account() util.Uint160 {
	if h == nil || h.account == nil {
		return util.Uint160{}
	}
	return h.account.ScriptHash()
}

// Close wipes the private key of the authorized account.
func (h *Handle) Close() {
	if h == nil || h.account == nil {
		return
	}
	h.account.Close()
}
