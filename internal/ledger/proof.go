// internal/ledger/proof.go
package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// AuthorityProof is the capability a program presents when it acts through
// one of its derived addresses. It is built per call and never stored.
type AuthorityProof struct {
	ProgramID solana.PublicKey
	Seeds     [][]byte
	Bump      uint8
}

// Address recomputes the derived address the proof stands for.
func (p *AuthorityProof) Address() (solana.PublicKey, error) {
	seeds := make([][]byte, 0, len(p.Seeds)+1)
	seeds = append(seeds, p.Seeds...)
	seeds = append(seeds, []byte{p.Bump})
	return solana.CreateProgramAddress(seeds, p.ProgramID)
}

// Authorizes reports whether the proof re-derives to key.
func (p *AuthorityProof) Authorizes(key solana.PublicKey) bool {
	if p == nil {
		return false
	}
	addr, err := p.Address()
	return err == nil && addr == key
}

// HasAuthority accepts a handle that signed the transaction, or a derived
// address backed by a matching proof. A proof only counts for the program
// that is executing the handle.
func HasAuthority(authority *AccountInfo, proof *AuthorityProof) bool {
	if authority.IsSigner {
		return true
	}
	if proof == nil || proof.ProgramID != authority.Invoker {
		return false
	}
	return proof.Authorizes(authority.Key)
}
