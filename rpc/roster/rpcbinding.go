// Package roster contains RPC wrappers for Student Roster contract.
package roster

import (
	"errors"
	"fmt"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"math/big"
	"unicode/utf8"
)

// RosterStudent is a contract-specific roster.Student type used by its methods.
type RosterStudent struct {
	ID *big.Int
	Name string
}

// StudentRegisteredEvent represents "StudentRegistered" event emitted by the contract.
type StudentRegisteredEvent struct {
	ID *big.Int
	Name string
}

// StudentRemovedEvent represents "StudentRemoved" event emitted by the contract.
type StudentRemovedEvent struct {
	ID *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// GetStudents invokes `getStudents` method of contract.
func (c *ContractReader) GetStudents() ([]*RosterStudent, error) {
	return func (item stackitem.Item, err error) ([]*RosterStudent, error) {
		if err != nil {
			return nil, err
		}
		return func (item stackitem.Item) ([]*RosterStudent, error) {
			arr, ok := item.Value().([]stackitem.Item)
			if !ok {
				return nil, errors.New("not an array")
			}
			res := make([]*RosterStudent, len(arr))
			for i := range res {
				res[i], err = itemToRosterStudent(arr[i], nil)
				if err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
			}
			return res, nil
		} (item)
	} (unwrap.Item(c.invoker.Call(c.hash, "getStudents")))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// RegisterStudent creates a transaction invoking `registerStudent` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) RegisterStudent(id *big.Int, name string) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "registerStudent", id, name)
}

// RegisterStudentTransaction creates a transaction invoking `registerStudent` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) RegisterStudentTransaction(id *big.Int, name string) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "registerStudent", id, name)
}

// RegisterStudentUnsigned creates a transaction invoking `registerStudent` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) RegisterStudentUnsigned(id *big.Int, name string) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "registerStudent", nil, id, name)
}

// RemoveStudent creates a transaction invoking `removeStudent` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) RemoveStudent(id *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "removeStudent", id)
}

// RemoveStudentTransaction creates a transaction invoking `removeStudent` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) RemoveStudentTransaction(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "removeStudent", id)
}

// RemoveStudentUnsigned creates a transaction invoking `removeStudent` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) RemoveStudentUnsigned(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "removeStudent", nil, id)
}

// Update creates a transaction invoking `update` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Update(script []byte, manifest []byte, data any) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "update", script, manifest, data)
}

// UpdateTransaction creates a transaction invoking `update` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdateTransaction(script []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "update", script, manifest, data)
}

// UpdateUnsigned creates a transaction invoking `update` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) UpdateUnsigned(script []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "update", nil, script, manifest, data)
}

// itemToRosterStudent converts stack item into *RosterStudent.
func itemToRosterStudent(item stackitem.Item, err error) (*RosterStudent, error) {
	if err != nil {
		return nil, err
	}
	var res = new(RosterStudent)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of RosterStudent from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *RosterStudent) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	res.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	res.Name, err = func (item stackitem.Item) (string, error) {
		b, err := item.TryBytes()
		if err != nil {
			return "", err
		}
		if !utf8.Valid(b) {
			return "", errors.New("not a UTF-8 string")
		}
		return string(b), nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Name: %w", err)
	}

	return nil
}

// StudentRegisteredEventsFromApplicationLog retrieves a set of all emitted events
// with "StudentRegistered" name from the provided [result.ApplicationLog].
func StudentRegisteredEventsFromApplicationLog(log *result.ApplicationLog) ([]*StudentRegisteredEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StudentRegisteredEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StudentRegistered" {
				continue
			}
			event := new(StudentRegisteredEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StudentRegisteredEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StudentRegisteredEvent or
// returns an error if it's not possible to do to so.
func (e *StudentRegisteredEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Name, err = func (item stackitem.Item) (string, error) {
		b, err := item.TryBytes()
		if err != nil {
			return "", err
		}
		if !utf8.Valid(b) {
			return "", errors.New("not a UTF-8 string")
		}
		return string(b), nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Name: %w", err)
	}

	return nil
}

// StudentRemovedEventsFromApplicationLog retrieves a set of all emitted events
// with "StudentRemoved" name from the provided [result.ApplicationLog].
func StudentRemovedEventsFromApplicationLog(log *result.ApplicationLog) ([]*StudentRemovedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StudentRemovedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StudentRemoved" {
				continue
			}
			event := new(StudentRemovedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StudentRemovedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StudentRemovedEvent or
// returns an error if it's not possible to do to so.
func (e *StudentRemovedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 1 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	return nil
}
