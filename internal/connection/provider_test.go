package connection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPassword = "one"

type testRPC struct {
	RPC // not implemented methods panic

	versionErr error
	calls      int
}

func (x *testRPC) GetVersion() (*result.Version, error) {
	x.calls++
	if x.versionErr != nil {
		return nil, x.versionErr
	}
	return new(result.Version), nil
}

func newTestWallet(t *testing.T) (string, *wallet.Account) {
	path := filepath.Join(t.TempDir(), "wallet.json")

	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	require.NoError(t, acc.Encrypt(testPassword, keys.NEP2ScryptParams()))

	w, err := wallet.NewWallet(path)
	require.NoError(t, err)
	w.AddAccount(acc)
	require.NoError(t, w.Save())

	return path, acc
}

func staticPassword(pass string) PasswordFunc {
	return func(context.Context, string) (string, error) { return pass, nil }
}

func TestProvider_Unlock(t *testing.T) {
	walletPath, acc := newTestWallet(t)
	ctx := context.Background()

	t.Run("no wallet path", func(t *testing.T) {
		_, err := New(Prm{Password: staticPassword(testPassword)}).Authorize(ctx)
		require.ErrorIs(t, err, ErrWalletUnavailable)
	})

	t.Run("missing wallet", func(t *testing.T) {
		p := New(Prm{
			WalletPath: filepath.Join(t.TempDir(), "nowhere.json"),
			Password:   staticPassword(testPassword),
		})
		_, err := p.Authorize(ctx)
		require.ErrorIs(t, err, ErrWalletUnavailable)
	})

	t.Run("invalid address", func(t *testing.T) {
		p := New(Prm{WalletPath: walletPath, Address: "not an address", Password: staticPassword(testPassword)})
		_, err := p.Authorize(ctx)
		require.ErrorIs(t, err, ErrWalletUnavailable)
	})

	t.Run("unknown account", func(t *testing.T) {
		other, err := wallet.NewAccount()
		require.NoError(t, err)

		p := New(Prm{WalletPath: walletPath, Address: other.Address, Password: staticPassword(testPassword)})
		_, err = p.Authorize(ctx)
		require.ErrorIs(t, err, ErrWalletUnavailable)
	})

	t.Run("no password source", func(t *testing.T) {
		_, err := New(Prm{WalletPath: walletPath}).Authorize(ctx)
		require.ErrorIs(t, err, ErrDeclined)
	})

	t.Run("declined", func(t *testing.T) {
		refusal := errors.New("user rejected the request")
		p := New(Prm{
			WalletPath: walletPath,
			Password: func(_ context.Context, addr string) (string, error) {
				require.Equal(t, acc.Address, addr)
				return "", refusal
			},
		})
		_, err := p.Authorize(ctx)
		require.ErrorIs(t, err, ErrDeclined)
		require.ErrorIs(t, err, refusal)
	})

	t.Run("wrong password", func(t *testing.T) {
		p := New(Prm{WalletPath: walletPath, Password: staticPassword("two")})
		_, err := p.Authorize(ctx)
		require.ErrorIs(t, err, ErrAccountLocked)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := New(Prm{WalletPath: walletPath, Password: staticPassword(testPassword)}).Authorize(cctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("default account", func(t *testing.T) {
		p := New(Prm{Logger: zaptest.NewLogger(t), WalletPath: walletPath, Password: staticPassword(testPassword)})

		unlocked, err := p.unlock(ctx)
		require.NoError(t, err)
		require.Equal(t, acc.ScriptHash(), unlocked.ScriptHash())
		require.True(t, unlocked.CanSign())

		// unlocked account is not cached
		again, err := p.unlock(ctx)
		require.NoError(t, err)
		require.NotSame(t, unlocked, again)
	})

	t.Run("explicit account", func(t *testing.T) {
		p := New(Prm{WalletPath: walletPath, Address: acc.Address, Password: staticPassword(testPassword)})

		unlocked, err := p.unlock(ctx)
		require.NoError(t, err)
		require.Equal(t, acc.ScriptHash(), unlocked.ScriptHash())
	})

	t.Run("no RPC", func(t *testing.T) {
		p := New(Prm{WalletPath: walletPath, Password: staticPassword(testPassword)})
		_, err := p.Authorize(ctx)
		require.ErrorIs(t, err, ErrUnreachable)
	})

	t.Run("node down", func(t *testing.T) {
		down := errors.New("connection refused")
		rpc := &testRPC{versionErr: down}
		p := New(Prm{RPC: rpc, WalletPath: walletPath, Password: staticPassword(testPassword)})

		_, err := p.Authorize(ctx)
		require.ErrorIs(t, err, ErrUnreachable)
		require.ErrorIs(t, err, down)
		require.NotErrorIs(t, err, ErrAccountLocked)
		require.Equal(t, 1, rpc.calls)
	})
}

func TestProvider_Reader(t *testing.T) {
	ctx := context.Background()

	_, err := New(Prm{}).Reader(ctx)
	require.ErrorIs(t, err, ErrUnreachable)

	rpc := &testRPC{versionErr: errors.New("connection refused")}
	p := New(Prm{RPC: rpc})

	_, err = p.Reader(ctx)
	require.ErrorIs(t, err, ErrUnreachable)
	require.Equal(t, 1, rpc.calls)

	rpc.versionErr = nil
	inv, err := p.Reader(ctx)
	require.NoError(t, err)
	require.NotNil(t, inv)
	require.Equal(t, 2, rpc.calls)
}

func TestHandle_Zero(t *testing.T) {
	var h *Handle
	require.Nil(t, h.Actor())
	require.Equal(t, util.Uint160{}, h.Account())
	h.Close()

	h = new(Handle)
	require.Nil(t, h.Actor())
	h.Close()
}
