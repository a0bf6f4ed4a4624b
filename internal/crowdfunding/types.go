package crowdfunding

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Project is a fundraising campaign as stored by the contract. Amounts are in wei and
// Deadline is a unix timestamp in seconds.
type Project struct {
	ID             *big.Int       `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	FundingGoal    *big.Int       `json:"fundingGoal"`
	CurrentFunding *big.Int       `json:"currentFunding"`
	Deadline       uint64         `json:"deadline"`
	ImageURL       string         `json:"imageUrl"`
	Category       string         `json:"category"`
	Creator        common.Address `json:"creator"`
	IsFunded       bool           `json:"isFunded"`
	IsExpired      bool           `json:"isExpired"`

	// Decode tells which fields came from the contract and which were defaulted.
	Decode FieldReport `json:"-"`
}

func (p *Project) DeadlineTime() time.Time {
	return time.Unix(int64(p.Deadline), 0)
}

// Remaining is how much is still missing to reach the goal, never negative.
func (p *Project) Remaining() *big.Int {
	left := new(big.Int).Sub(p.FundingGoal, p.CurrentFunding)
	if left.Sign() < 0 {
		return new(big.Int)
	}
	return left
}

// Backer is one contribution to a project.
type Backer struct {
	Address   common.Address `json:"address"`
	Amount    *big.Int       `json:"amount"`
	Timestamp uint64         `json:"timestamp"`

	Decode FieldReport `json:"-"`
}

// BackerInfo is one account's aggregate contribution to a project.
type BackerInfo struct {
	Amount    *big.Int `json:"amount"`
	HasBacked bool     `json:"hasBacked"`

	Decode FieldReport `json:"-"`
}

// NewProject is the input of CreateProject.
type NewProject struct {
	Title       string
	Description string
	FundingGoal *big.Int
	Deadline    time.Time
	ImageURL    string
	Category    string
}

// FieldReport lists, by contract field name, the fields read from a response and the
// fields that were missing or mistyped and therefore defaulted.
type FieldReport struct {
	Present   []string
	Defaulted []string
}

// Complete reports whether every expected field was present.
func (r FieldReport) Complete() bool {
	return len(r.Defaulted) == 0
}

func (r FieldReport) IsDefaulted(field string) bool {
	for _, f := range r.Defaulted {
		if f == field {
			return true
		}
	}
	return false
}
