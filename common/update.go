// Package common contains functionality shared by the roster contract
// methods: versioning and update access.
package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/neo"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// ErrUpdateAccess is thrown when the contract update is not witnessed by the
// committee.
const ErrUpdateAccess = "only committee can update contract"

// HasUpdateAccess returns true if contract can be updated.
func HasUpdateAccess() bool {
	return runtime.CheckWitness(CommitteeAddress())
}

// CommitteeAddress returns `M = N/2+1` multisignature address of the
// committee.
func CommitteeAddress() []byte {
	committee := neo.GetCommittee()
	return contract.CreateMultisigAccount(len(committee)/2+1, committee)
}
