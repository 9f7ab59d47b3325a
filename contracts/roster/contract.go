package roster

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/convert"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/student-roster/common"
)

// Student is a single roster record.
type Student struct {
	ID   int
	Name string
}

const (
	studentPrefix = 's'

	// ErrInvalidID is thrown when a negative student ID is passed.
	ErrInvalidID = "invalid student ID"
	// ErrEmptyName is thrown when a student is registered without a name.
	ErrEmptyName = "empty student name"
	// ErrAlreadyRegistered is thrown when the ID is already taken.
	ErrAlreadyRegistered = "student already registered"
	// ErrNotFound is thrown when removing an unknown student.
	ErrNotFound = "student not found"
)

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		args := data.([]any)
		common.EnsureMigratable(args[len(args)-1].(int))
		return
	}

	runtime.Log("roster contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(script []byte, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic(common.ErrUpdateAccess)
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, script, manifest, common.UpdateArgs(data))
	runtime.Log("roster contract updated")
}

// RegisterStudent adds a student with the given ID and name to the roster.
// IDs are assigned by the caller and must be unique.
func RegisterStudent(id int, name string) {
	if id < 0 {
		panic(ErrInvalidID)
	}
	if len(name) == 0 {
		panic(ErrEmptyName)
	}

	ctx := storage.GetContext()
	key := studentKey(id)

	if storage.Get(ctx, key) != nil {
		panic(ErrAlreadyRegistered)
	}

	storage.Put(ctx, key, std.Serialize(Student{ID: id, Name: name}))

	runtime.Notify("StudentRegistered", id, name)
}

// RemoveStudent deletes the student with the given ID from the roster.
func RemoveStudent(id int) {
	if id < 0 {
		panic(ErrInvalidID)
	}

	ctx := storage.GetContext()
	key := studentKey(id)

	if storage.Get(ctx, key) == nil {
		panic(ErrNotFound)
	}

	storage.Delete(ctx, key)

	runtime.Notify("StudentRemoved", id)
}

// GetStudents returns all registered students in storage order.
func GetStudents() []Student {
	ctx := storage.GetReadOnlyContext()

	students := []Student{}

	it := storage.Find(ctx, []byte{studentPrefix}, storage.ValuesOnly|storage.DeserializeValues)
	for iterator.Next(it) {
		students = append(students, iterator.Value(it).(Student))
	}

	return students
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func studentKey(id int) []byte {
	return append([]byte{studentPrefix}, convert.ToBytes(id)...)
}
