package crowdfunding_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/internal/chaintest"
	"crowdfund.io/crowdfund-dapp/internal/crowdfunding"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

type account struct {
	provider *wallet.KeyProvider
	client   *crowdfunding.Client
}

func (a *account) address() common.Address { return a.provider.Address() }

func newAccount(t *testing.T, chain *chaintest.Chain) *account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	provider := wallet.NewKeyProvider(key, wallet.WithActiveChain(chains.Ganache), wallet.WithAuthorized())
	chain.Fund(provider.Address(), ether(t, "100"))

	chainID := chains.Ganache.ChainID()
	signer := wallet.NewSigner(provider.Address(), chainID, wallet.ProviderSignFunc(provider, chainID), chain)
	client, err := crowdfunding.NewClient(signer, chain.Contract().Hex())
	require.NoError(t, err)
	return &account{provider: provider, client: client}
}

func ether(t *testing.T, v string) *big.Int {
	t.Helper()
	wei, err := wallet.ParseEther(v)
	require.NoError(t, err)
	return wei
}

func createProject(t *testing.T, chain *chaintest.Chain, a *account, goal string) *big.Int {
	t.Helper()
	ctx := context.Background()
	tx, err := a.client.CreateProject(ctx, crowdfunding.NewProject{
		Title:       "Solar Kiosk",
		Description: "Off-grid charging for the market square",
		FundingGoal: ether(t, goal),
		Deadline:    chain.Now().Add(30 * 24 * time.Hour),
		ImageURL:    "https://example.com/kiosk.jpg",
		Category:    "  green   energy ",
	})
	require.NoError(t, err)
	receipt, err := tx.Wait(ctx)
	require.NoError(t, err)
	id, err := tx.ProjectID(receipt)
	require.NoError(t, err)
	return id
}

func TestNewClientAddress(t *testing.T) {
	chain := chaintest.New(chains.Ganache.ID)
	signer := wallet.NewSigner(common.Address{1}, chains.Ganache.ChainID(), nil, chain)

	_, err := crowdfunding.NewClient(signer, "")
	assert.True(t, errors.Is(err, crowdfunding.ErrContractAddressMissing))

	_, err = crowdfunding.NewClient(signer, "0x1234")
	assert.True(t, errors.Is(err, crowdfunding.ErrInvalidContractAddress))

	c, err := crowdfunding.NewClient(signer, " "+chain.Contract().Hex()+" ")
	require.NoError(t, err)
	assert.Equal(t, chain.Contract(), c.Address())
}

func TestCreateThenGetProject(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	creator := newAccount(t, chain)

	id := createProject(t, chain, creator, "1")

	p, err := creator.client.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "Solar Kiosk", p.Title)
	assert.Equal(t, "Green Energy", p.Category)
	assert.Equal(t, 0, p.CurrentFunding.Sign())
	assert.Equal(t, ether(t, "1"), p.FundingGoal)
	assert.Equal(t, creator.address(), p.Creator)
	assert.False(t, p.IsFunded)
	assert.False(t, p.IsExpired)
	assert.True(t, p.Decode.Complete())

	projects, err := creator.client.GetProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, id, projects[0].ID)

	isCreator, err := creator.client.IsProjectCreator(ctx, id)
	require.NoError(t, err)
	assert.True(t, isCreator)

	ids, err := creator.client.GetUserProjects(ctx, creator.address())
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{id}, ids)
}

func TestGetProjectsEmpty(t *testing.T) {
	chain := chaintest.New(chains.Ganache.ID)
	a := newAccount(t, chain)

	projects, err := a.client.GetProjects(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestGetProjectsWithoutContractCode(t *testing.T) {
	chain := chaintest.New(chains.Ganache.ID)
	a := newAccount(t, chain)
	chain.Undeploy()

	_, err := a.client.GetProjects(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, crowdfunding.ErrNoContractCode))
	assert.Equal(t, wallet.KindContract, wallet.Classify(err))
	assert.Zero(t, chain.Calls("CallContract"))
}

func TestFundToGoal(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	creator := newAccount(t, chain)
	backer := newAccount(t, chain)
	id := createProject(t, chain, creator, "1")

	require.NoError(t, backer.client.FundProject(ctx, id, ether(t, "0.4")))
	p, err := backer.client.GetProject(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.IsFunded)
	assert.Equal(t, ether(t, "0.6"), p.Remaining())

	require.NoError(t, backer.client.FundProject(ctx, id, ether(t, "0.6")))
	p, err = backer.client.GetProject(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.IsFunded)
	assert.Equal(t, "1.0", wallet.FormatEther(p.CurrentFunding))

	isBacker, err := backer.client.IsProjectBacker(ctx, id)
	require.NoError(t, err)
	assert.True(t, isBacker)
	isBacker, err = creator.client.IsProjectBacker(ctx, id)
	require.NoError(t, err)
	assert.False(t, isBacker)

	backers, err := creator.client.GetBackers(ctx, id)
	require.NoError(t, err)
	require.Len(t, backers, 2)
	assert.Equal(t, backer.address(), backers[0].Address)
	assert.Equal(t, ether(t, "0.4"), backers[0].Amount)

	info, err := creator.client.GetBackerInfo(ctx, backer.address(), id)
	require.NoError(t, err)
	assert.True(t, info.HasBacked)
	assert.Equal(t, ether(t, "1"), info.Amount)
}

func TestFundRejectsNonPositiveAmount(t *testing.T) {
	chain := chaintest.New(chains.Ganache.ID)
	a := newAccount(t, chain)
	id := createProject(t, chain, a, "1")

	err := a.client.FundProject(context.Background(), id, big.NewInt(0))
	assert.True(t, errors.Is(err, crowdfunding.ErrInvalidInput))
	assert.Equal(t, 1, chain.Calls("SendTransaction"))
}

func TestWithdrawByNonCreator(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	creator := newAccount(t, chain)
	other := newAccount(t, chain)
	id := createProject(t, chain, creator, "1")
	require.NoError(t, other.client.FundProject(ctx, id, ether(t, "1")))

	err := other.client.WithdrawFunds(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, crowdfunding.ErrUnauthorized))
	assert.Equal(t, wallet.KindContract, wallet.Classify(err))

	p, err := creator.client.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ether(t, "1"), p.CurrentFunding)

	before := chain.Balance(creator.address())
	require.NoError(t, creator.client.WithdrawFunds(ctx, id))
	assert.Equal(t, new(big.Int).Add(before, ether(t, "1")), chain.Balance(creator.address()))
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	creator := newAccount(t, chain)
	other := newAccount(t, chain)
	id := createProject(t, chain, creator, "2")

	err := other.client.DeleteProject(ctx, id)
	assert.True(t, errors.Is(err, crowdfunding.ErrUnauthorized))

	require.NoError(t, creator.client.DeleteProject(ctx, id))

	_, err = creator.client.GetProject(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, crowdfunding.ErrProjectNotFound))
}

func TestFundExpiredProject(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	a := newAccount(t, chain)
	id := createProject(t, chain, a, "1")
	chain.Advance(31 * 24 * time.Hour)

	p, err := a.client.GetProject(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.IsExpired)

	err = a.client.FundProject(ctx, id, ether(t, "0.1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, crowdfunding.ErrTransactionReverted))
}

func TestMinedRevert(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	a := newAccount(t, chain)
	id := createProject(t, chain, a, "1")

	chain.FailNextTransaction()
	err := a.client.FundProject(ctx, id, ether(t, "0.1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, crowdfunding.ErrTransactionReverted))

	p, err := a.client.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentFunding.Sign())
}

func TestRejectedSignature(t *testing.T) {
	ctx := context.Background()
	chain := chaintest.New(chains.Ganache.ID)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	provider := wallet.NewKeyProvider(key,
		wallet.WithActiveChain(chains.Ganache),
		wallet.WithAuthorized(),
		wallet.WithApproval(func(method string, _ []interface{}) bool {
			return method != wallet.MethodSignTransaction
		}),
	)
	chainID := chains.Ganache.ChainID()
	signer := wallet.NewSigner(provider.Address(), chainID, wallet.ProviderSignFunc(provider, chainID), chain)
	client, err := crowdfunding.NewClient(signer, chain.Contract().Hex())
	require.NoError(t, err)

	_, err = client.CreateProject(ctx, crowdfunding.NewProject{
		Title:       "Library",
		FundingGoal: big.NewInt(1),
		Deadline:    chain.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, wallet.ErrUserRejected))
	assert.Equal(t, wallet.KindUserRejected, wallet.Classify(err))
	assert.Zero(t, chain.Calls("SendTransaction"))
}

func TestCreateProjectValidation(t *testing.T) {
	chain := chaintest.New(chains.Ganache.ID)
	a := newAccount(t, chain)
	ctx := context.Background()

	_, err := a.client.CreateProject(ctx, crowdfunding.NewProject{Title: "x", Deadline: chain.Now().Add(time.Hour)})
	assert.True(t, errors.Is(err, crowdfunding.ErrInvalidInput))

	_, err = a.client.CreateProject(ctx, crowdfunding.NewProject{
		Title:       "x",
		FundingGoal: big.NewInt(1),
		Deadline:    chain.Now().Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), chaintest.ReasonPastDeadline)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "Technology", crowdfunding.NormalizeCategory("technology"))
	assert.Equal(t, "Arts And Culture", crowdfunding.NormalizeCategory("  ARTS   and culture"))
	assert.Equal(t, "", crowdfunding.NormalizeCategory("   "))
}
