// internal/programs/stake/instruction.go
package stake

import (
	"github.com/gagliardetto/solana-go"
	stakeprog "github.com/gagliardetto/solana-go/programs/stake"

	binutil "github.com/rovshanmuradov/metapool/internal/utils/binary"
)

// Tags the upstream stake decoder does not cover.
const (
	instructionAuthorize uint32 = 1
	instructionMerge     uint32 = 7
)

// NewAuthorizeInstruction replaces the staker or withdrawer of stakeAccount.
// Accounts: [stake(w), clock, authority(s)].
func NewAuthorizeInstruction(stakeAccount, authority, newAuthority solana.PublicKey, role Authorize) solana.Instruction {
	data := make([]byte, 4+solana.PublicKeyLength+4)
	binutil.WriteUint32LittleEndian(instructionAuthorize, data, 0)
	binutil.WritePubKey(newAuthority, data, 4)
	binutil.WriteUint32LittleEndian(uint32(role), data, 36)

	return solana.NewInstruction(stakeprog.ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(stakeAccount, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(authority, false, true),
	}, data)
}

// NewMergeInstruction folds source into destination.
// Accounts: [destination(w), source(w), clock, stake history, authority(s)].
func NewMergeInstruction(destination, source, authority solana.PublicKey) solana.Instruction {
	data := make([]byte, 4)
	binutil.WriteUint32LittleEndian(instructionMerge, data, 0)

	return solana.NewInstruction(stakeprog.ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.SysVarStakeHistoryPubkey, false, false),
		solana.NewAccountMeta(authority, false, true),
	}, data)
}

// NewDelegateStakeInstruction wraps the upstream builder, which marks the
// stake account as a signer. Pool stake accounts live at derived addresses
// and cannot sign, and only the staker is checked.
func NewDelegateStakeInstruction(vote, authority, stakeAccount solana.PublicKey) solana.Instruction {
	inst := stakeprog.NewDelegateStakeInstruction(vote, authority, stakeAccount)
	inst.AccountMetaSlice[0].IsSigner = false
	return inst.Build()
}
