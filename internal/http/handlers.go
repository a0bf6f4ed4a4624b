package http

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"crowdfund.io/crowdfund-dapp/internal/crowdfunding"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

type createProjectRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	FundingGoal string    `json:"fundingGoal" binding:"required"`
	Deadline    time.Time `json:"deadline" binding:"required"`
	ImageURL    string    `json:"imageUrl"`
	Category    string    `json:"category"`
}

type fundRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (s *Server) getSession(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, newSessionView(s.manager, s.manager.Session()))
}

func (s *Server) connect(ctx *gin.Context) {
	session, err := s.manager.Connect(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSessionView(s.manager, session))
}

func (s *Server) disconnect(ctx *gin.Context) {
	s.manager.Disconnect()
	ctx.JSON(http.StatusOK, newSessionView(s.manager, s.manager.Session()))
}

func (s *Server) notifications(ctx *gin.Context) {
	if s.feed == nil {
		ctx.JSON(http.StatusOK, []wallet.Notification{})
		return
	}
	if ctx.Query("peek") == "true" {
		ctx.JSON(http.StatusOK, s.feed.Recent())
		return
	}
	ctx.JSON(http.StatusOK, s.feed.Drain())
}

func (s *Server) listProjects(ctx *gin.Context) {
	c, err := s.client(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	projects, err := c.GetProjects(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newProjectViews(projects))
}

func (s *Server) createProject(ctx *gin.Context) {
	var req createProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	goal, err := wallet.ParseEther(req.FundingGoal)
	if err != nil {
		fail(ctx, errors.WithMessage(err, "funding goal"))
		return
	}
	c, err := s.client(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	rctx := ctx.Request.Context()
	tx, err := c.CreateProject(rctx, crowdfunding.NewProject{
		Title:       req.Title,
		Description: req.Description,
		FundingGoal: goal,
		Deadline:    req.Deadline,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
	})
	if err != nil {
		fail(ctx, err)
		return
	}
	receipt, err := tx.Wait(rctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	id, err := tx.ProjectID(receipt)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, txView{TxHash: tx.Hash().Hex(), ProjectID: id.String(), Success: true})
}

func (s *Server) getProject(ctx *gin.Context) {
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	p, err := c.GetProject(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newProjectView(p))
}

func (s *Server) deleteProject(ctx *gin.Context) {
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	if err := c.DeleteProject(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, txView{Success: true})
}

func (s *Server) fundProject(ctx *gin.Context) {
	var req fundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	amount, err := wallet.ParseEther(req.Amount)
	if err != nil {
		fail(ctx, errors.WithMessage(err, "amount"))
		return
	}
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	if err := c.FundProject(ctx.Request.Context(), id, amount); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, txView{Success: true})
}

func (s *Server) withdrawFunds(ctx *gin.Context) {
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	if err := c.WithdrawFunds(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, txView{Success: true})
}

func (s *Server) listBackers(ctx *gin.Context) {
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	backers, err := c.GetBackers(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newBackerViews(backers))
}

func (s *Server) getBackerInfo(ctx *gin.Context) {
	backer, ok := addressParam(ctx)
	if !ok {
		return
	}
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	info, err := c.GetBackerInfo(ctx.Request.Context(), backer, id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, backerInfoView{Amount: wallet.FormatEther(info.Amount), HasBacked: info.HasBacked})
}

func (s *Server) getRoles(ctx *gin.Context) {
	id, c, ok := s.projectRequest(ctx)
	if !ok {
		return
	}
	rctx := ctx.Request.Context()
	isCreator, err := c.IsProjectCreator(rctx, id)
	if err != nil {
		fail(ctx, err)
		return
	}
	isBacker, err := c.IsProjectBacker(rctx, id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rolesView{IsCreator: isCreator, IsBacker: isBacker})
}

func (s *Server) listUserProjects(ctx *gin.Context) {
	user, ok := addressParam(ctx)
	if !ok {
		return
	}
	c, err := s.client(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	ids, err := c.GetUserProjects(ctx.Request.Context(), user)
	if err != nil {
		fail(ctx, err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	ctx.JSON(http.StatusOK, out)
}

func (s *Server) uploadImage(ctx *gin.Context) {
	if s.images == nil {
		fail(ctx, errImagesDisabled)
		return
	}
	header, err := ctx.FormFile("image")
	if err != nil {
		fail(ctx, errors.Wrap(errBadRequest, "form file image is required"))
		return
	}
	if header.Size > s.maxImageBytes {
		fail(ctx, errors.Wrapf(errBadRequest, "image is larger than %d bytes", s.maxImageBytes))
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(ctx, errors.Wrap(err, "open uploaded image"))
		return
	}
	defer file.Close()
	url, err := s.images.Upload(ctx.Request.Context(), file)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"url": url})
}

// projectRequest parses :id and builds the contract client, answering the request
// itself when either fails.
func (s *Server) projectRequest(ctx *gin.Context) (*big.Int, *crowdfunding.Client, bool) {
	id, ok := new(big.Int).SetString(ctx.Param("id"), 10)
	if !ok || id.Sign() < 0 {
		fail(ctx, errors.Wrapf(errBadRequest, "invalid project id %q", ctx.Param("id")))
		return nil, nil, false
	}
	c, err := s.client(ctx)
	if err != nil {
		fail(ctx, err)
		return nil, nil, false
	}
	return id, c, true
}

func addressParam(ctx *gin.Context) (common.Address, bool) {
	raw := ctx.Param("address")
	if !common.IsHexAddress(raw) {
		fail(ctx, errors.Wrapf(errBadRequest, "invalid address %q", raw))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
