package roster_test

import (
	"encoding/json"
	"path"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/student-roster/common"
	rosterrpc "github.com/nspcc-dev/student-roster/rpc/roster"
	"github.com/stretchr/testify/require"
)

const contractPath = "."

func newRosterInvoker(t *testing.T) *neotest.ContractInvoker {
	bc, acc := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, acc, acc)
	c := neotest.CompileFile(t, e.CommitteeHash, contractPath, path.Join(contractPath, "config.yml"))
	e.DeployContract(t, c, nil)
	return e.CommitteeInvoker(c.Hash)
}

func getStudents(t *testing.T, c *neotest.ContractInvoker) []*rosterrpc.RosterStudent {
	s, err := c.TestInvoke(t, "getStudents")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	arr, ok := s.Pop().Item().Value().([]stackitem.Item)
	require.True(t, ok)

	res := make([]*rosterrpc.RosterStudent, len(arr))
	for i := range arr {
		res[i] = new(rosterrpc.RosterStudent)
		require.NoError(t, res[i].FromStackItem(arr[i]))
	}
	return res
}

func applicationLog(t *testing.T, c *neotest.ContractInvoker, h util.Uint256) *result.ApplicationLog {
	aer := c.GetTxExecResult(t, h)
	return &result.ApplicationLog{
		Container:     aer.Container,
		IsTransaction: true,
		Executions:    []state.Execution{aer.Execution},
	}
}

func TestRoster_Version(t *testing.T) {
	c := newRosterInvoker(t)
	c.Invoke(t, common.Version, "version")
}

func TestRoster_RegisterStudent(t *testing.T) {
	c := newRosterInvoker(t)

	require.Empty(t, getStudents(t, c))

	h := c.Invoke(t, stackitem.Null{}, "registerStudent", 1, "Ada")

	evs, err := rosterrpc.StudentRegisteredEventsFromApplicationLog(applicationLog(t, c, h))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.EqualValues(t, 1, evs[0].ID.Int64())
	require.Equal(t, "Ada", evs[0].Name)

	students := getStudents(t, c)
	require.Len(t, students, 1)
	require.EqualValues(t, 1, students[0].ID.Int64())
	require.Equal(t, "Ada", students[0].Name)

	t.Run("duplicate", func(t *testing.T) {
		c.InvokeFail(t, "student already registered", "registerStudent", 1, "Grace")
	})

	t.Run("negative id", func(t *testing.T) {
		c.InvokeFail(t, "invalid student ID", "registerStudent", -1, "Grace")
	})

	t.Run("empty name", func(t *testing.T) {
		c.InvokeFail(t, "empty student name", "registerStudent", 2, "")
	})

	t.Run("any signer", func(t *testing.T) {
		acc := c.NewAccount(t)
		c.WithSigners(acc).Invoke(t, stackitem.Null{}, "registerStudent", 2, "Grace")

		students := getStudents(t, c)
		require.Len(t, students, 2)
		require.EqualValues(t, 2, students[1].ID.Int64())
		require.Equal(t, "Grace", students[1].Name)
	})
}

func TestRoster_RemoveStudent(t *testing.T) {
	c := newRosterInvoker(t)

	c.InvokeFail(t, "student not found", "removeStudent", 1)

	c.Invoke(t, stackitem.Null{}, "registerStudent", 0, "Zero")
	c.Invoke(t, stackitem.Null{}, "registerStudent", 1, "Ada")

	h := c.Invoke(t, stackitem.Null{}, "removeStudent", 1)

	evs, err := rosterrpc.StudentRemovedEventsFromApplicationLog(applicationLog(t, c, h))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.EqualValues(t, 1, evs[0].ID.Int64())

	students := getStudents(t, c)
	require.Len(t, students, 1)
	require.EqualValues(t, 0, students[0].ID.Int64())
	require.Equal(t, "Zero", students[0].Name)

	c.InvokeFail(t, "student not found", "removeStudent", 1)
	c.InvokeFail(t, "invalid student ID", "removeStudent", -5)

	// ID can be reused after removal.
	c.Invoke(t, stackitem.Null{}, "registerStudent", 1, "Ada Lovelace")
	require.Len(t, getStudents(t, c), 2)
}

func TestRoster_Update(t *testing.T) {
	c := newRosterInvoker(t)

	acc := c.NewAccount(t)
	c.WithSigners(acc).InvokeFail(t, common.ErrUpdateAccess, "update", []byte{}, []byte{}, nil)
}

func TestRoster_UpdateVersion(t *testing.T) {
	bc, acc := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, acc, acc)
	ctr := neotest.CompileFile(t, e.CommitteeHash, contractPath, path.Join(contractPath, "config.yml"))
	e.DeployContract(t, ctr, nil)
	c := e.CommitteeInvoker(ctr.Hash)

	rawNEF, err := ctr.NEF.Bytes()
	require.NoError(t, err)
	rawManifest, err := json.Marshal(ctr.Manifest)
	require.NoError(t, err)

	c.InvokeFail(t, common.ErrAlreadyUpdated, "update", rawNEF, rawManifest, nil)
}
