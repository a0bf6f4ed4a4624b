package chaintest

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"crowdfund.io/crowdfund-dapp/internal/crowdfunding"
)

var contractABI = crowdfunding.ABI()

// Revert reasons returned by the simulated contract.
const (
	ReasonNotFound       = "Project does not exist"
	ReasonEmptyTitle     = "Title cannot be empty"
	ReasonZeroGoal       = "Funding goal must be greater than 0"
	ReasonPastDeadline   = "Deadline must be in the future"
	ReasonExpired        = "Project has expired"
	ReasonZeroFunding    = "Must send ETH to fund"
	ReasonOnlyCreator    = "Only creator can perform this action"
	ReasonGoalNotReached = "Funding goal not reached"
	ReasonWithdrawn      = "Funds already withdrawn"
	ReasonHasBackers     = "Cannot delete a project with backers"
)

// RevertError is what a node returns for a reverted call or gas estimate.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

func (e *RevertError) ErrorCode() int { return 3 }

func (e *RevertError) ErrorData() interface{} {
	data, err := reasonArguments.Pack(e.Reason)
	if err != nil {
		return nil
	}
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, data...))
}

var reasonArguments = func() abi.Arguments {
	t, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

func revert(reason string) error { return &RevertError{Reason: reason} }

type project struct {
	id          *big.Int
	title       string
	description string
	goal        *big.Int
	funding     *big.Int
	deadline    *big.Int
	imageURL    string
	category    string
	creator     common.Address
	funded      bool
	withdrawn   bool
}

type backing struct {
	backer    common.Address
	amount    *big.Int
	timestamp *big.Int
}

type contractState struct {
	nextID   int64
	projects map[string]*project
	order    []string
	backings map[string][]backing
}

func newContractState() *contractState {
	return &contractState{
		nextID:   1,
		projects: make(map[string]*project),
		backings: make(map[string][]backing),
	}
}

type projectTuple struct {
	ID             *big.Int       `abi:"id"`
	Title          string         `abi:"title"`
	Description    string         `abi:"description"`
	FundingGoal    *big.Int       `abi:"fundingGoal"`
	CurrentFunding *big.Int       `abi:"currentFunding"`
	Deadline       *big.Int       `abi:"deadline"`
	ImageURL       string         `abi:"imageUrl"`
	Category       string         `abi:"category"`
	Creator        common.Address `abi:"creator"`
	IsFunded       bool           `abi:"isFunded"`
	IsExpired      bool           `abi:"isExpired"`
}

type backerTuple struct {
	Backer    common.Address `abi:"backer"`
	Amount    *big.Int       `abi:"amount"`
	Timestamp *big.Int       `abi:"timestamp"`
}

type backerInfoTuple struct {
	Amount    *big.Int `abi:"amount"`
	HasBacked bool     `abi:"hasBacked"`
}

// call is one contract invocation.
type call struct {
	chain  *Chain
	state  *contractState
	from   common.Address
	value  *big.Int
	args   []interface{}
	commit bool
	now    *big.Int
	logs   []*types.Log
}

// execute runs calldata against the contract. State and balances change only when
// commit is set.
func (c *Chain) execute(from common.Address, value *big.Int, data []byte, commit bool) ([]byte, []*types.Log, error) {
	if value == nil {
		value = new(big.Int)
	}
	if len(data) < 4 {
		return nil, nil, revert("function selector was not recognized")
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert("function selector was not recognized")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid calldata for %s: %v", method.Name, err)
	}
	if value.Sign() > 0 && !method.IsPayable() {
		return nil, nil, revert("function is not payable")
	}
	x := &call{
		chain:  c,
		state:  c.state,
		from:   from,
		value:  value,
		args:   args,
		commit: commit,
		now:    big.NewInt(c.now.Unix()),
	}
	var results []interface{}
	switch method.Name {
	case crowdfunding.MethodCreateProject:
		results, err = x.createProject()
	case crowdfunding.MethodGetProjects:
		results, err = x.getProjects()
	case crowdfunding.MethodGetProject:
		results, err = x.getProject()
	case crowdfunding.MethodFundProject:
		err = x.fundProject()
	case crowdfunding.MethodWithdrawFunds:
		err = x.withdrawFunds()
	case crowdfunding.MethodDeleteProject:
		err = x.deleteProject()
	case crowdfunding.MethodGetBackers:
		results, err = x.getBackers()
	case crowdfunding.MethodIsProjectCreator:
		results, err = x.isProjectCreator()
	case crowdfunding.MethodIsProjectBacker:
		results, err = x.isProjectBacker()
	case crowdfunding.MethodGetUserProjects:
		results, err = x.getUserProjects()
	case crowdfunding.MethodGetBackerInfo:
		results, err = x.getBackerInfo()
	default:
		err = revert("function selector was not recognized")
	}
	if err != nil {
		return nil, nil, err
	}
	ret, err := method.Outputs.Pack(results...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s result: %v", method.Name, err)
	}
	return ret, x.logs, nil
}

func (x *call) project(arg int) (*project, error) {
	id := x.args[arg].(*big.Int)
	p, ok := x.state.projects[id.String()]
	if !ok {
		return nil, revert(ReasonNotFound)
	}
	return p, nil
}

func (x *call) expired(p *project) bool {
	return x.now.Cmp(p.deadline) >= 0
}

func (x *call) tuple(p *project) projectTuple {
	return projectTuple{
		ID:             new(big.Int).Set(p.id),
		Title:          p.title,
		Description:    p.description,
		FundingGoal:    new(big.Int).Set(p.goal),
		CurrentFunding: new(big.Int).Set(p.funding),
		Deadline:       new(big.Int).Set(p.deadline),
		ImageURL:       p.imageURL,
		Category:       p.category,
		Creator:        p.creator,
		IsFunded:       p.funded,
		IsExpired:      x.expired(p),
	}
}

func (x *call) emit(name string, indexed []common.Hash, data ...interface{}) {
	ev := contractABI.Events[name]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(fmt.Sprintf("chaintest: pack %s: %v", name, err))
	}
	x.logs = append(x.logs, &types.Log{
		Address: x.chain.contract,
		Topics:  append([]common.Hash{ev.ID}, indexed...),
		Data:    packed,
	})
}

func (x *call) createProject() ([]interface{}, error) {
	title := x.args[0].(string)
	description := x.args[1].(string)
	goal := x.args[2].(*big.Int)
	deadline := x.args[3].(*big.Int)
	imageURL := x.args[4].(string)
	category := x.args[5].(string)
	switch {
	case strings.TrimSpace(title) == "":
		return nil, revert(ReasonEmptyTitle)
	case goal.Sign() <= 0:
		return nil, revert(ReasonZeroGoal)
	case deadline.Cmp(x.now) <= 0:
		return nil, revert(ReasonPastDeadline)
	}
	id := big.NewInt(x.state.nextID)
	if x.commit {
		x.state.nextID++
		p := &project{
			id:          id,
			title:       title,
			description: description,
			goal:        new(big.Int).Set(goal),
			funding:     new(big.Int),
			deadline:    new(big.Int).Set(deadline),
			imageURL:    imageURL,
			category:    category,
			creator:     x.from,
		}
		x.state.projects[id.String()] = p
		x.state.order = append(x.state.order, id.String())
		x.emit(crowdfunding.EventProjectCreated,
			[]common.Hash{common.BigToHash(id), common.BytesToHash(x.from.Bytes())},
			title, goal, deadline)
	}
	return []interface{}{id}, nil
}

func (x *call) getProjects() ([]interface{}, error) {
	out := make([]projectTuple, 0, len(x.state.order))
	for _, key := range x.state.order {
		out = append(out, x.tuple(x.state.projects[key]))
	}
	return []interface{}{out}, nil
}

func (x *call) getProject() ([]interface{}, error) {
	p, err := x.project(0)
	if err != nil {
		return nil, err
	}
	return []interface{}{x.tuple(p)}, nil
}

func (x *call) fundProject() error {
	p, err := x.project(0)
	if err != nil {
		return err
	}
	switch {
	case x.expired(p):
		return revert(ReasonExpired)
	case x.value.Sign() <= 0:
		return revert(ReasonZeroFunding)
	}
	if !x.commit {
		return nil
	}
	x.chain.transfer(x.from, x.chain.contract, x.value)
	p.funding.Add(p.funding, x.value)
	if p.funding.Cmp(p.goal) >= 0 {
		p.funded = true
	}
	key := p.id.String()
	x.state.backings[key] = append(x.state.backings[key], backing{
		backer:    x.from,
		amount:    new(big.Int).Set(x.value),
		timestamp: new(big.Int).Set(x.now),
	})
	x.emit(crowdfunding.EventProjectFunded,
		[]common.Hash{common.BigToHash(p.id), common.BytesToHash(x.from.Bytes())},
		x.value)
	return nil
}

func (x *call) withdrawFunds() error {
	p, err := x.project(0)
	if err != nil {
		return err
	}
	switch {
	case p.creator != x.from:
		return revert(ReasonOnlyCreator)
	case !p.funded:
		return revert(ReasonGoalNotReached)
	case p.withdrawn:
		return revert(ReasonWithdrawn)
	}
	if !x.commit {
		return nil
	}
	p.withdrawn = true
	x.chain.transfer(x.chain.contract, p.creator, p.funding)
	x.emit(crowdfunding.EventFundsWithdrawn,
		[]common.Hash{common.BigToHash(p.id), common.BytesToHash(p.creator.Bytes())},
		new(big.Int).Set(p.funding))
	return nil
}

func (x *call) deleteProject() error {
	p, err := x.project(0)
	if err != nil {
		return err
	}
	key := p.id.String()
	switch {
	case p.creator != x.from:
		return revert(ReasonOnlyCreator)
	case len(x.state.backings[key]) > 0:
		return revert(ReasonHasBackers)
	}
	if !x.commit {
		return nil
	}
	delete(x.state.projects, key)
	for i, k := range x.state.order {
		if k == key {
			x.state.order = append(x.state.order[:i], x.state.order[i+1:]...)
			break
		}
	}
	x.emit(crowdfunding.EventProjectDeleted, []common.Hash{common.BigToHash(p.id)})
	return nil
}

func (x *call) getBackers() ([]interface{}, error) {
	p, err := x.project(0)
	if err != nil {
		return nil, err
	}
	list := x.state.backings[p.id.String()]
	out := make([]backerTuple, 0, len(list))
	for _, b := range list {
		out = append(out, backerTuple{Backer: b.backer, Amount: b.amount, Timestamp: b.timestamp})
	}
	return []interface{}{out}, nil
}

func (x *call) isProjectCreator() ([]interface{}, error) {
	p, err := x.project(0)
	if err != nil {
		return nil, err
	}
	return []interface{}{p.creator == x.from}, nil
}

func (x *call) isProjectBacker() ([]interface{}, error) {
	p, err := x.project(0)
	if err != nil {
		return nil, err
	}
	return []interface{}{x.backed(p, x.from).Sign() > 0}, nil
}

func (x *call) getUserProjects() ([]interface{}, error) {
	user := x.args[0].(common.Address)
	ids := []*big.Int{}
	for _, key := range x.state.order {
		if p := x.state.projects[key]; p.creator == user {
			ids = append(ids, new(big.Int).Set(p.id))
		}
	}
	return []interface{}{ids}, nil
}

func (x *call) getBackerInfo() ([]interface{}, error) {
	backer := x.args[0].(common.Address)
	p, err := x.project(1)
	if err != nil {
		return nil, err
	}
	amount := x.backed(p, backer)
	return []interface{}{backerInfoTuple{Amount: amount, HasBacked: amount.Sign() > 0}}, nil
}

func (x *call) backed(p *project, who common.Address) *big.Int {
	total := new(big.Int)
	for _, b := range x.state.backings[p.id.String()] {
		if b.backer == who {
			total.Add(total, b.amount)
		}
	}
	return total
}
