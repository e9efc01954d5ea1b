package models

// Sequence is a named counter used to mint business identifiers
// (claim IDs, wallet transaction IDs). Advanced only by a single atomic
// increment-and-read; never read-then-write.
type Sequence struct {
	Name  string `gorm:"primarykey"`
	Value int64  `gorm:"not null;default:0"`
}

// Sequence names.
const (
	SequenceClaim             = "claim"
	SequenceWalletTransaction = "wallet_transaction"
	SequenceMember            = "member"
)
