package rest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionHandler exposes the auction service over REST
type AuctionHandler struct {
	auctionService application.AuctionService
	validate       *validator.Validate
}

func NewAuctionHandler(auctionService application.AuctionService) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the auction routes. limit guards the mutating ones and may be nil.
func (h *AuctionHandler) RegisterRoutes(app fiber.Router, limit fiber.Handler) {
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	g := app.Group("/api/v1/auctions")
	g.Post("/", limit, h.createAuction)
	g.Get("/:id", h.getAuction)
	g.Post("/:id/bids", limit, h.placeBid)
	g.Get("/:id/bids", h.listBids)
	g.Post("/:id/buy-now", limit, h.buyNow)
	g.Post("/:id/cancel", limit, h.cancelAuction)
	g.Get("/:id/events", h.listEvents)
}

func (h *AuctionHandler) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	state, err := h.auctionService.CreateAuction(c.UserContext(), req.toDTO())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *AuctionHandler) getAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	state, err := h.auctionService.GetAuction(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(state)
}

func (h *AuctionHandler) placeBid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	var req placeBidRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.auctionService.PlaceBid(c.UserContext(), application.PlaceBidDTO{
		AuctionID:  id,
		BidderID:   uuid.MustParse(req.BidderID),
		Amount:     req.Amount,
		AutoBidMax: req.AutoBidMax,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *AuctionHandler) listBids(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	bids, err := h.auctionService.ListBids(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(bids)
}

func (h *AuctionHandler) buyNow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	var req buyNowRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	state, err := h.auctionService.BuyNow(c.UserContext(), application.BuyNowDTO{
		AuctionID: id,
		BuyerID:   uuid.MustParse(req.BuyerID),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(state)
}

func (h *AuctionHandler) cancelAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return badRequest(c, err.Error())
		}
	}
	state, err := h.auctionService.CancelAuction(c.UserContext(), application.CancelAuctionDTO{
		AuctionID: id,
		Reason:    req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(state)
}

func (h *AuctionHandler) listEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	events, err := h.auctionService.ListEvents(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(events)
}

// bind parses the json body into dst and validates it.
func (h *AuctionHandler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return fmt.Errorf("validation failed: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: errorBody{Code: "invalid", Message: msg}})
}

// StatusFor maps engine errors to http status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrBidTooLow):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidBid), errors.Is(err, domain.ErrInvalidAuction):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownBidder):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrTimeout):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Error("Auction request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		msg = "internal error"
	}
	return c.Status(status).JSON(errorResponse{Error: errorBody{
		Code:      application.Reason(err),
		Message:   msg,
		Retryable: domain.Retryable(err),
	}})
}
