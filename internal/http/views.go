package http

import (
	"math/big"

	"crowdfund.io/crowdfund-dapp/internal/crowdfunding"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
)

// Amounts are ether decimal strings; ids are decimal strings since they are uint256.
// Deadlines and timestamps are unix seconds exactly as stored on chain, so values
// outside the RFC 3339 year range still render.

type sessionView struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	ChainID   string `json:"chainId"`
	ChainName string `json:"chainName"`
}

type projectView struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	FundingGoal    string   `json:"fundingGoal"`
	CurrentFunding string   `json:"currentFunding"`
	Remaining      string   `json:"remaining"`
	Deadline       uint64   `json:"deadline"`
	ImageURL       string   `json:"imageUrl"`
	Category       string   `json:"category"`
	Creator        string   `json:"creator"`
	IsFunded       bool     `json:"isFunded"`
	IsExpired      bool     `json:"isExpired"`
	Defaulted      []string `json:"defaulted,omitempty"`
}

type backerView struct {
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
}

type backerInfoView struct {
	Amount    string `json:"amount"`
	HasBacked bool   `json:"hasBacked"`
}

type rolesView struct {
	IsCreator bool `json:"isCreator"`
	IsBacker  bool `json:"isBacker"`
}

type txView struct {
	TxHash    string `json:"txHash,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	Success   bool   `json:"success"`
}

func newSessionView(m *wallet.Manager, s wallet.Session) sessionView {
	v := sessionView{
		Connected: s.Connected,
		ChainID:   m.Chain().IDHex(),
		ChainName: m.Chain().Name,
	}
	if s.Address != nil {
		v.Address = s.Address.Hex()
	}
	return v
}

func idString(id *big.Int) string {
	if id == nil {
		return "0"
	}
	return id.String()
}

func newProjectView(p *crowdfunding.Project) projectView {
	return projectView{
		ID:             idString(p.ID),
		Title:          p.Title,
		Description:    p.Description,
		FundingGoal:    wallet.FormatEther(p.FundingGoal),
		CurrentFunding: wallet.FormatEther(p.CurrentFunding),
		Remaining:      wallet.FormatEther(p.Remaining()),
		Deadline:       p.Deadline,
		ImageURL:       p.ImageURL,
		Category:       p.Category,
		Creator:        p.Creator.Hex(),
		IsFunded:       p.IsFunded,
		IsExpired:      p.IsExpired,
		Defaulted:      p.Decode.Defaulted,
	}
}

func newProjectViews(projects []*crowdfunding.Project) []projectView {
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, newProjectView(p))
	}
	return views
}

func newBackerViews(backers []*crowdfunding.Backer) []backerView {
	views := make([]backerView, 0, len(backers))
	for _, b := range backers {
		views = append(views, backerView{
			Address:   b.Address.Hex(),
			Amount:    wallet.FormatEther(b.Amount),
			Timestamp: b.Timestamp,
		})
	}
	return views
}
