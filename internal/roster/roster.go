// Package roster holds the client-side view of the student roster.
package roster

import (
	"slices"
	"sync/atomic"
)

// Student is a single roster record as returned by the ledger.
type Student struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Roster is an immutable snapshot of the student list in ledger order.
// The zero value is an empty roster.
type Roster struct {
	students []Student
}

// New returns Roster holding a private copy of the given students.
func New(students []Student) *Roster {
	return &Roster{students: slices.Clone(students)}
}

// Len returns the number of students in the roster.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.students)
}

// Students returns a copy of the roster contents.
func (r *Roster) Students() []Student {
	if r == nil {
		return []Student{}
	}
	res := slices.Clone(r.students)
	if res == nil {
		res = []Student{}
	}
	return res
}

// Find looks up student by ID.
func (r *Roster) Find(id uint64) (Student, bool) {
	if r == nil {
		return Student{}, false
	}
	i := slices.IndexFunc(r.students, func(s Student) bool { return s.ID == id })
	if i < 0 {
		return Student{}, false
	}
	return r.students[i], true
}

// Cache stores the last successfully fetched Roster. Replace swaps the whole
// snapshot with a single pointer store, so concurrent Snapshot calls observe
// either the old or the new roster. Cache must not be copied after first use.
type Cache struct {
	cur atomic.Pointer[Roster]
}

// NewCache returns Cache holding an empty roster.
func NewCache() *Cache {
	c := new(Cache)
	c.cur.Store(new(Roster))
	return c
}

// Replace installs a new snapshot built from the given students. Prior
// contents are dropped, nothing is merged.
func (c *Cache) Replace(students []Student) *Roster {
	r := New(students)
	c.cur.Store(r)
	return r
}

// Snapshot returns the current roster snapshot.
func (c *Cache) Snapshot() *Roster {
	if r := c.cur.Load(); r != nil {
		return r
	}
	return new(Roster)
}
