// =============================
// File: internal/stakepool/authority.go
// =============================
package stakepool

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/metapool/internal/ledger"
)

// Role tags appended to the pool id when deriving authorities.
const (
	RoleDeposit   = "deposit"
	RoleWithdraw  = "withdraw"
	RoleLiquidity = "liquidity"
)

func authoritySeeds(pool solana.PublicKey, role string) [][]byte {
	return [][]byte{pool[:], []byte(role)}
}

// DeriveAuthority finds the derived address and bump for role on pool.
func DeriveAuthority(programID, pool solana.PublicKey, role string) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(authoritySeeds(pool, role), programID)
}

// AuthorityAddress recomputes the authority from a stored bump.
func AuthorityAddress(programID, pool solana.PublicKey, role string, bump uint8) (solana.PublicKey, error) {
	seeds := append(authoritySeeds(pool, role), []byte{bump})
	addr, err := solana.CreateProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, ErrInvalidProgramAddress
	}
	return addr, nil
}

// CheckAuthority fails with ErrInvalidProgramAddress unless candidate is the
// authority for role on pool with the given bump.
func CheckAuthority(candidate, programID, pool solana.PublicKey, role string, bump uint8) error {
	addr, err := AuthorityAddress(programID, pool, role, bump)
	if err != nil {
		return err
	}
	if addr != candidate {
		return ErrInvalidProgramAddress
	}
	return nil
}

// authorityProof is handed to collaborator programs when the processor acts
// as the role's derived authority.
func authorityProof(programID, pool solana.PublicKey, role string, bump uint8) *ledger.AuthorityProof {
	return &ledger.AuthorityProof{
		ProgramID: programID,
		Seeds:     authoritySeeds(pool, role),
		Bump:      bump,
	}
}

func validatorStakeSeeds(validator, pool solana.PublicKey) [][]byte {
	return [][]byte{validator[:], pool[:]}
}

// ValidatorStakeAddress derives the pool's stake account for validator.
func ValidatorStakeAddress(programID, validator, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(validatorStakeSeeds(validator, pool), programID)
}
