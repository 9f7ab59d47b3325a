// Package controller drives roster operations through wallet authorization,
// contract calls, transaction confirmation and roster refresh. It owns the
// roster cache and the operation status observed by views.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/student-roster/internal/connection"
	"github.com/nspcc-dev/student-roster/internal/gateway"
	"github.com/nspcc-dev/student-roster/internal/roster"
	rosterrpc "github.com/nspcc-dev/student-roster/rpc/roster"
	"go.uber.org/zap"
)

// Authorizer provides signing handles of the operator's account.
type Authorizer interface {
	Authorize(ctx context.Context) (*connection.Handle, error)
}

// Binder binds the roster contract for writing and reading.
type Binder interface {
	BindForWrite(h *connection.Handle) (gateway.WriteContract, error)
	BindForRead(ctx context.Context) (gateway.ReadContract, error)
}

// Metrics records operation statistics.
type Metrics interface {
	OperationStarted(op string)
	OperationFinished(op string, kind string, d time.Duration)
	SetBusy(busy bool)
	SetRosterSize(n int)
}

// Prm groups parameters of the Controller.
type Prm struct {
	// Writes operation progress into the log. Optional.
	Logger *zap.Logger

	// Source of signing handles for register and remove.
	Authorizer Authorizer

	// Contract binder.
	Binder Binder

	// Operation statistics. Optional.
	Metrics Metrics

	// Makes refresh authorize the account before reading the roster even
	// though reading requires no signature.
	AuthorizeReads bool
}

// Controller executes register, remove and refresh operations. At most one
// operation is in flight at a time: concurrent calls fail with KindBusy error
// and leave the state intact.
type Controller struct {
	log            *zap.Logger
	auth           Authorizer
	binder         Binder
	metrics        Metrics
	authorizeReads bool

	cache *roster.Cache
	state atomic.Pointer[State]

	mu      sync.Mutex // serializes state updates, guards subs
	subs    map[uint64]chan State
	nextSub uint64
}

// New constructs Controller with an empty roster in idle status.
func New(prm Prm) *Controller {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Metrics == nil {
		prm.Metrics = noopMetrics{}
	}

	c := &Controller{
		log:            prm.Logger,
		auth:           prm.Authorizer,
		binder:         prm.Binder,
		metrics:        prm.Metrics,
		authorizeReads: prm.AuthorizeReads,
		cache:          roster.NewCache(),
		subs:           make(map[uint64]chan State),
	}

	c.state.Store(&State{Roster: c.cache.Snapshot()})

	return c
}

// State returns the current state. It never blocks.
func (c *Controller) State() State {
	return *c.state.Load()
}

// Subscribe returns channel receiving the controller state on every change.
// The channel holds the latest state only: a slow reader skips intermediate
// states but always observes the last one. The current state is delivered
// immediately. Call cancel to release the subscription; the channel is
// closed then.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- *c.state.Load()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

// Register registers the student with the given ID and name in the ledger,
// waits for the transaction to be accepted and refreshes the roster. ID must
// be a non-negative decimal integer, name must not be blank.
func (c *Controller) Register(ctx context.Context, id, name string) error {
	setPending := func(p *PendingInput) {
		p.RegisterID, p.RegisterName = id, name
	}

	studentID, ok := parseID(id)
	studentName := strings.TrimSpace(name)
	if !ok || studentName == "" {
		return c.reject(OpRegister, msgInvalidRegister, setPending)
	}

	log, err := c.begin(OpRegister, setPending)
	if err != nil {
		return err
	}

	start := time.Now()
	log.Info("registering student", zap.Uint64("id", studentID), zap.String("name", studentName))

	err = c.mutate(ctx, log, OpRegister, func(w gateway.WriteContract) (txRef, error) {
		h, vub, err := w.RegisterStudent(studentID, studentName)
		return txRef{h, vub}, err
	})
	if err == nil {
		c.update(func(s *State) {
			s.Pending.RegisterID, s.Pending.RegisterName = "", ""
		})
		err = c.refresh(ctx, log)
	}

	return c.finish(log, OpRegister, start, err)
}

// Remove removes the student with the given ID from the ledger, waits for the
// transaction to be accepted and refreshes the roster. ID must be a
// non-negative decimal integer.
func (c *Controller) Remove(ctx context.Context, id string) error {
	setPending := func(p *PendingInput) {
		p.RemoveID = id
	}

	studentID, ok := parseID(id)
	if !ok {
		return c.reject(OpRemove, msgInvalidRemove, setPending)
	}

	log, err := c.begin(OpRemove, setPending)
	if err != nil {
		return err
	}

	start := time.Now()
	log.Info("removing student", zap.Uint64("id", studentID))

	err = c.mutate(ctx, log, OpRemove, func(w gateway.WriteContract) (txRef, error) {
		h, vub, err := w.RemoveStudent(studentID)
		return txRef{h, vub}, err
	})
	if err == nil {
		c.update(func(s *State) {
			s.Pending.RemoveID = ""
		})
		err = c.refresh(ctx, log)
	}

	return c.finish(log, OpRemove, start, err)
}

// Refresh reads the roster from the ledger and replaces the cached one.
func (c *Controller) Refresh(ctx context.Context) error {
	log, err := c.begin(OpRefresh, nil)
	if err != nil {
		return err
	}

	start := time.Now()

	err = c.refresh(ctx, log)

	return c.finish(log, OpRefresh, start, err)
}

func parseID(s string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return id, err == nil
}

// reject records locally rejected input. Status is not changed. While
// another operation is in flight the state belongs to it and is left intact.
func (c *Controller) reject(op Op, msg string, setPending func(*PendingInput)) error {
	e := newError(KindValidation, op, errors.New(msg))

	c.mu.Lock()
	if cur := c.state.Load(); cur.Status != StatusBusy {
		s := *cur
		s.LastError, s.LastErrorKind = e.Error(), e.Kind
		setPending(&s.Pending)
		c.publish(&s)
	}
	c.mu.Unlock()

	c.metrics.OperationFinished(string(op), KindValidation.String(), 0)
	c.log.Info("operation input rejected", zap.String("operation", string(op)), zap.String("reason", msg))

	return e
}

// begin takes the in-flight slot, marks the controller busy and clears the
// last error. It fails with KindBusy error if another operation is in flight.
func (c *Controller) begin(op Op, setPending func(*PendingInput)) (*zap.Logger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Load()
	if cur.Status == StatusBusy {
		c.metrics.OperationFinished(string(op), KindBusy.String(), 0)
		return nil, newError(KindBusy, op, ErrBusy)
	}

	s := *cur
	s.Status = StatusBusy
	s.LastError, s.LastErrorKind = "", KindNone
	if setPending != nil {
		setPending(&s.Pending)
	}
	c.publish(&s)

	c.metrics.SetBusy(true)
	c.metrics.OperationStarted(string(op))

	return c.log.With(zap.Stringer("op_id", uuid.New()), zap.String("operation", string(op))), nil
}

// finish records the outcome of the operation, returns the controller to idle
// status and frees the in-flight slot.
func (c *Controller) finish(log *zap.Logger, op Op, start time.Time, err error) error {
	kind := KindOf(err)

	c.update(func(s *State) {
		s.Status = StatusIdle
		s.Roster = c.cache.Snapshot()
		if err != nil {
			s.LastError, s.LastErrorKind = err.Error(), kind
		}
		c.metrics.SetBusy(false)
	})

	c.metrics.OperationFinished(string(op), kind.String(), time.Since(start))

	if err != nil {
		log.Error("operation failed", zap.Stringer("kind", kind), zap.Error(err))
		return err
	}

	log.Info("operation completed", zap.Duration("took", time.Since(start)))
	return nil
}

type txRef struct {
	hash util.Uint256
	vub  uint32
}

// mutate authorizes the account, binds the contract for writing, sends the
// transaction built by send and waits for it to be accepted.
func (c *Controller) mutate(ctx context.Context, log *zap.Logger, op Op, send func(gateway.WriteContract) (txRef, error)) error {
	h, err := c.auth.Authorize(ctx)
	if err != nil {
		return authorizationError(op, err)
	}
	defer h.Close()

	w, err := c.binder.BindForWrite(h)
	if err != nil {
		return newError(KindBinding, op, fmt.Errorf("bind roster contract: %w", err))
	}

	tx, err := send(w)
	if err != nil {
		return newError(KindLedgerCall, op, err)
	}

	log.Info("transaction sent, waiting for acceptance",
		zap.Stringer("tx", tx.hash), zap.Uint32("vub", tx.vub))

	res, err := w.Confirm(ctx, tx.hash, tx.vub)
	if err != nil {
		return newError(KindLedgerCall, op, err)
	}

	log.Info("transaction accepted", zap.Stringer("tx", tx.hash))
	logEvents(log, res)

	return nil
}

// authorizationError classifies Authorize failure. Unreachable node is a
// binding failure, the rest is about the wallet.
func authorizationError(op Op, err error) *Error {
	if errors.Is(err, connection.ErrUnreachable) {
		return newError(KindBinding, op, fmt.Errorf("connect transaction sender: %w", err))
	}
	return newError(KindAuthorization, op, fmt.Errorf("authorize wallet account: %w", err))
}

// refresh reads the roster and replaces the cache.
func (c *Controller) refresh(ctx context.Context, log *zap.Logger) error {
	if c.authorizeReads {
		h, err := c.auth.Authorize(ctx)
		if err != nil {
			return authorizationError(OpRefresh, err)
		}
		h.Close()
	}

	r, err := c.binder.BindForRead(ctx)
	if err != nil {
		return newError(KindBinding, OpRefresh, fmt.Errorf("bind roster contract: %w", err))
	}

	students, err := r.GetStudents()
	if err != nil {
		return newError(KindLedgerCall, OpRefresh, err)
	}

	snap := c.cache.Replace(students)
	c.metrics.SetRosterSize(snap.Len())

	log.Info("roster refreshed", zap.Int("students", snap.Len()))

	return nil
}

func logEvents(log *zap.Logger, res *state.AppExecResult) {
	if res == nil {
		return
	}

	appLog := &result.ApplicationLog{
		Container:     res.Container,
		IsTransaction: true,
		Executions:    []state.Execution{res.Execution},
	}

	registered, err := rosterrpc.StudentRegisteredEventsFromApplicationLog(appLog)
	if err != nil {
		log.Warn("failed to decode StudentRegistered notifications", zap.Error(err))
	}
	for _, ev := range registered {
		log.Info("student registered", zap.Stringer("id", ev.ID), zap.String("name", ev.Name))
	}

	removed, err := rosterrpc.StudentRemovedEventsFromApplicationLog(appLog)
	if err != nil {
		log.Warn("failed to decode StudentRemoved notifications", zap.Error(err))
	}
	for _, ev := range removed {
		log.Info("student removed", zap.Stringer("id", ev.ID))
	}
}

func (c *Controller) update(f func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := *c.state.Load()
	f(&s)
	c.publish(&s)
}

// publish stores the new state and hands it to subscribers. Must be called
// with mu held.
func (c *Controller) publish(s *State) {
	c.state.Store(s)

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- *s
	}
}

type noopMetrics struct{}

func (noopMetrics) OperationStarted(string)                        {}
func (noopMetrics) OperationFinished(string, string, time.Duration) {}
func (noopMetrics) SetBusy(bool)                                   {}
func (noopMetrics) SetRosterSize(int)                              {}
