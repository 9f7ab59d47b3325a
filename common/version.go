package common

import "github.com/nspcc-dev/neo-go/pkg/interop/native/std"

// Roster contract version, encoded as major*1_000_000 + minor*1_000 + patch.
const (
	versionMajor = 0
	versionMinor = 1
	versionPatch = 0

	Version = versionMajor*1_000_000 + versionMinor*1_000 + versionPatch

	// OldestMigratable is the earliest deployed version whose student records
	// are readable by the current code.
	OldestMigratable = 0

	// ErrIncompatibleStorage is thrown by EnsureMigratable when the deployed
	// contract keeps students in a layout the new code can not read.
	ErrIncompatibleStorage = "roster storage layout is not migratable"

	// ErrAlreadyUpdated is thrown by EnsureMigratable when the update carries
	// the version that is already deployed.
	ErrAlreadyUpdated = "roster contract is already at this version"
)

// EnsureMigratable aborts an update that would leave stored students
// unreadable or reinstall the deployed version. deployed is the version of
// the code being replaced.
func EnsureMigratable(deployed int) {
	if deployed < OldestMigratable {
		panic(ErrIncompatibleStorage + ": deployed " + std.Itoa(deployed, 10) +
			", oldest supported " + std.Itoa(OldestMigratable, 10))
	}
	if deployed == Version {
		panic(ErrAlreadyUpdated + ": " + std.Itoa(Version, 10))
	}
}

// UpdateArgs appends the running contract version to the update data, so the
// new code can check it in _deploy.
func UpdateArgs(data any) []any {
	if data == nil {
		return []any{Version}
	}
	return append(data.([]any), Version)
}
