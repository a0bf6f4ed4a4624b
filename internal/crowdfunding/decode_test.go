package crowdfunding

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

type fullProject struct {
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

func TestDecodeUnpackedProject(t *testing.T) {
	creator := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	packed, err := parsedABI.Methods[MethodGetProject].Outputs.Pack(fullProject{
		ID:             big.NewInt(7),
		Title:          "Bike lanes",
		Description:    "Paint them",
		FundingGoal:    big.NewInt(5000),
		CurrentFunding: big.NewInt(1200),
		Deadline:       big.NewInt(1800000000),
		ImageURL:       "",
		Category:       "Community",
		Creator:        creator,
		IsFunded:       false,
		IsExpired:      true,
	})
	require.NoError(t, err)
	out, err := parsedABI.Unpack(MethodGetProject, packed)
	require.NoError(t, err)

	p, err := DecodeProject(out[0])
	require.NoError(t, err)
	assert.True(t, p.Decode.Complete())
	assert.Len(t, p.Decode.Present, 11)
	assert.Equal(t, int64(7), p.ID.Int64())
	assert.Equal(t, "Bike lanes", p.Title)
	assert.Equal(t, int64(1200), p.CurrentFunding.Int64())
	assert.Equal(t, uint64(1800000000), p.Deadline)
	assert.Equal(t, "", p.ImageURL)
	assert.Equal(t, creator, p.Creator)
	assert.True(t, p.IsExpired)
}

func TestDecodePartialProject(t *testing.T) {
	tuple := struct {
		Id          *big.Int
		Title       string
		FundingGoal *big.Int
		Deadline    string
		IsFunded    bool
	}{
		Id:          big.NewInt(3),
		Title:       "Well",
		FundingGoal: big.NewInt(10),
		Deadline:    "soon",
		IsFunded:    true,
	}

	p, err := DecodeProject(tuple)
	require.NoError(t, err)
	assert.False(t, p.Decode.Complete())
	assert.ElementsMatch(t, []string{"id", "title", "fundingGoal", "isFunded"}, p.Decode.Present)
	assert.ElementsMatch(t, []string{
		"description", "currentFunding", "deadline", "imageUrl", "category", "creator", "isExpired",
	}, p.Decode.Defaulted)
	assert.True(t, p.Decode.IsDefaulted("deadline"))
	assert.False(t, p.Decode.IsDefaulted("title"))

	assert.Equal(t, "Well", p.Title)
	assert.Equal(t, "", p.ImageURL)
	assert.Equal(t, "", p.Category)
	assert.Equal(t, 0, p.CurrentFunding.Sign())
	assert.Equal(t, uint64(0), p.Deadline)
	assert.Equal(t, common.Address{}, p.Creator)
	assert.True(t, p.IsFunded)
	assert.False(t, p.IsExpired)
}

func TestDecodeProjectFields(t *testing.T) {
	p := DecodeProjectFields(map[string]interface{}{
		"id":       big.NewInt(1),
		"title":    "Orchard",
		"creator":  "0x00000000000000000000000000000000000000bb",
		"imageUrl": "https://example.com/a.jpg",
	})
	assert.Equal(t, "Orchard", p.Title)
	assert.Equal(t, "https://example.com/a.jpg", p.ImageURL)
	assert.Equal(t, common.HexToAddress("0xbb"), p.Creator)
	assert.True(t, p.Decode.IsDefaulted("fundingGoal"))
}

func TestDecodeRejectsNonTuple(t *testing.T) {
	_, err := DecodeProject(42)
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = decodeProjects("not a list")
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = decodeBackers([]interface{}{"x"})
	assert.True(t, errors.Is(err, ErrDecode))

	projects, err := decodeProjects([]struct{ Title string }{})
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestOpErrorKinds(t *testing.T) {
	err := opError("get project", errors.Mark(errors.New("bad"), ErrDecode))
	var opErr *Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "decode", opErr.Kind().String())

	err = opError("withdraw funds", errors.New("execution reverted: Only creator can perform this action"))
	assert.True(t, errors.Is(err, ErrUnauthorized))

	err = opError("fund project", errors.New("execution reverted: Project has expired"))
	assert.True(t, errors.Is(err, ErrTransactionReverted))
	assert.False(t, errors.Is(err, ErrUnauthorized))
}
