// Package crowdfunding is the typed client of the deployed crowdfunding contract.
// Reads go straight to the signer's backend; writes are signed by the connected
// wallet.
package crowdfunding

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// Client talks to one contract deployment on behalf of one signer. It holds no
// cached chain state.
type Client struct {
	address  common.Address
	signer   *wallet.Signer
	backend  wallet.Backend
	contract *bind.BoundContract
}

// NewClient binds to the contract at address. An empty or malformed address fails
// here instead of on first use.
func NewClient(signer *wallet.Signer, address string) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrContractAddressMissing
	}
	if !common.IsHexAddress(address) {
		return nil, errors.Mark(errors.Errorf("%q", address), ErrInvalidContractAddress)
	}
	if signer == nil {
		return nil, wallet.ErrNotConnected
	}
	addr := common.HexToAddress(address)
	backend := signer.Backend()
	return &Client{
		address:  addr,
		signer:   signer,
		backend:  backend,
		contract: bind.NewBoundContract(addr, parsedABI, backend, backend, backend),
	}, nil
}

func (c *Client) Address() common.Address { return c.address }

func (c *Client) Signer() *wallet.Signer { return c.signer }

// CreateProject submits a new project. The returned Tx has not been mined yet.
func (c *Client) CreateProject(ctx context.Context, in NewProject) (*Tx, error) {
	const op = "create project"
	if in.FundingGoal == nil || in.FundingGoal.Sign() <= 0 {
		return nil, opError(op, errors.Mark(errors.New("funding goal must be positive"), ErrInvalidInput))
	}
	if in.Deadline.IsZero() || in.Deadline.Unix() <= 0 {
		return nil, opError(op, errors.Mark(errors.New("deadline is required"), ErrInvalidInput))
	}
	deadline := big.NewInt(in.Deadline.Unix())
	category := NormalizeCategory(in.Category)
	log.Infof("creating project %q (goal %s ETH, category %q)", in.Title, wallet.FormatEther(in.FundingGoal), category)
	return c.transact(ctx, op, nil, MethodCreateProject,
		in.Title, in.Description, in.FundingGoal, deadline, in.ImageURL, category)
}

// GetProjects lists every project. It first makes sure there is contract code at the
// configured address, so a wrong address or chain fails with ErrNoContractCode
// instead of an undecodable empty response.
func (c *Client) GetProjects(ctx context.Context) ([]*Project, error) {
	const op = "get projects"
	code, err := c.backend.CodeAt(ctx, c.address, nil)
	if err != nil {
		return nil, opError(op, errors.Mark(errors.Wrap(err, "read contract code"), wallet.ErrNetwork))
	}
	if len(code) == 0 {
		log.Errorf("no contract code at %s", c.address.Hex())
		return nil, opError(op, errors.Mark(errors.Errorf("address %s", c.address.Hex()), ErrNoContractCode))
	}
	out, err := c.call(ctx, MethodGetProjects)
	if err != nil {
		return nil, opError(op, err)
	}
	projects, err := decodeProjects(out[0])
	if err != nil {
		return nil, opError(op, err)
	}
	c.reportPartial(op, projects)
	return projects, nil
}

func (c *Client) GetProject(ctx context.Context, id *big.Int) (*Project, error) {
	const op = "get project"
	out, err := c.call(ctx, MethodGetProject, id)
	if err != nil {
		return nil, opError(op, err)
	}
	p, err := DecodeProject(out[0])
	if err != nil {
		return nil, opError(op, err)
	}
	c.reportPartial(op, []*Project{p})
	return p, nil
}

// FundProject sends amount wei to the project and waits for the transaction.
func (c *Client) FundProject(ctx context.Context, id, amount *big.Int) error {
	const op = "fund project"
	if amount == nil || amount.Sign() <= 0 {
		return opError(op, errors.Mark(errors.New("amount must be positive"), ErrInvalidInput))
	}
	log.Infof("funding project %v with %s ETH", id, wallet.FormatEther(amount))
	return c.transactAndWait(ctx, op, amount, MethodFundProject, id)
}

// WithdrawFunds moves the raised funds to the creator and waits for the transaction.
func (c *Client) WithdrawFunds(ctx context.Context, id *big.Int) error {
	return c.transactAndWait(ctx, "withdraw funds", nil, MethodWithdrawFunds, id)
}

func (c *Client) DeleteProject(ctx context.Context, id *big.Int) error {
	return c.transactAndWait(ctx, "delete project", nil, MethodDeleteProject, id)
}

func (c *Client) GetBackers(ctx context.Context, id *big.Int) ([]*Backer, error) {
	const op = "get backers"
	out, err := c.call(ctx, MethodGetBackers, id)
	if err != nil {
		return nil, opError(op, err)
	}
	backers, err := decodeBackers(out[0])
	if err != nil {
		return nil, opError(op, err)
	}
	return backers, nil
}

// IsProjectCreator reports whether the signer created the project.
func (c *Client) IsProjectCreator(ctx context.Context, id *big.Int) (bool, error) {
	return c.callBool(ctx, "is project creator", MethodIsProjectCreator, id)
}

// IsProjectBacker reports whether the signer has funded the project.
func (c *Client) IsProjectBacker(ctx context.Context, id *big.Int) (bool, error) {
	return c.callBool(ctx, "is project backer", MethodIsProjectBacker, id)
}

// GetUserProjects lists the ids of the projects created by user.
func (c *Client) GetUserProjects(ctx context.Context, user common.Address) ([]*big.Int, error) {
	const op = "get user projects"
	out, err := c.call(ctx, MethodGetUserProjects, user)
	if err != nil {
		return nil, opError(op, err)
	}
	ids, err := decodeIDs(out[0])
	if err != nil {
		return nil, opError(op, err)
	}
	return ids, nil
}

func (c *Client) GetBackerInfo(ctx context.Context, backer common.Address, id *big.Int) (*BackerInfo, error) {
	const op = "get backer info"
	out, err := c.call(ctx, MethodGetBackerInfo, backer, id)
	if err != nil {
		return nil, opError(op, err)
	}
	r, err := newRecord(out[0])
	if err != nil {
		return nil, opError(op, err)
	}
	return r.backerInfo(), nil
}

// NormalizeCategory collapses whitespace and title-cases a category name.
func NormalizeCategory(category string) string {
	category = strings.Join(strings.Fields(category), " ")
	return cases.Title(language.English).String(strings.ToLower(category))
}

// call packs, executes and unpacks a read. Encoding problems come back marked
// ErrDecode so they are not confused with node or revert failures.
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "pack %s", method), ErrInvalidInput)
	}
	opts := c.signer.CallOpts(ctx)
	msg := ethereum.CallMsg{From: opts.From, To: &c.address, Data: input}
	output, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	if len(output) == 0 {
		code, err := c.backend.CodeAt(ctx, c.address, nil)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "read contract code"), wallet.ErrNetwork)
		}
		if len(code) == 0 {
			return nil, errors.Mark(errors.Errorf("address %s", c.address.Hex()), ErrNoContractCode)
		}
	}
	out, err := parsedABI.Unpack(method, output)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "unpack %s", method), ErrDecode)
	}
	if len(out) == 0 {
		return nil, errors.Mark(errors.Errorf("%s returned nothing", method), ErrDecode)
	}
	return out, nil
}

func (c *Client) callBool(ctx context.Context, op, method string, args ...interface{}) (bool, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return false, opError(op, err)
	}
	b, ok := out[0].(bool)
	if !ok {
		return false, opError(op, errors.Mark(errors.Errorf("%s returned %T", method, out[0]), ErrDecode))
	}
	return b, nil
}

func (c *Client) transact(ctx context.Context, op string, value *big.Int, method string, args ...interface{}) (*Tx, error) {
	opts := c.signer.TransactOpts(ctx)
	opts.Value = value
	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		if errors.Is(err, bind.ErrNoCode) {
			err = errors.Mark(err, ErrNoContractCode)
		}
		log.Warnf("%s failed: %v", op, err)
		return nil, opError(op, err)
	}
	log.Infof("%s submitted: %s", op, tx.Hash().Hex())
	return &Tx{
		op:       op,
		tx:       tx,
		address:  c.address,
		backend:  c.backend,
		contract: c.contract,
	}, nil
}

func (c *Client) transactAndWait(ctx context.Context, op string, value *big.Int, method string, args ...interface{}) error {
	tx, err := c.transact(ctx, op, value, method, args...)
	if err != nil {
		return err
	}
	_, err = tx.Wait(ctx)
	return err
}

func (c *Client) reportPartial(op string, projects []*Project) {
	for _, p := range projects {
		if !p.Decode.Complete() {
			log.Warnf("%s: project %v decoded with defaults for %v", op, p.ID, p.Decode.Defaulted)
		}
	}
}
