package controller

import (
	"bufio"
	"context"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ai-docpilot-be/internal/dto"
	"ai-docpilot-be/internal/pkg/serverutils"
	"ai-docpilot-be/internal/service"
	"ai-docpilot-be/pkg/agent/stream"
)

type flushWriter interface {
	io.Writer
	Flush() error
}

// cancelOnWriteError ties the pipeline context to the connection.
// fasthttp surfaces a client disconnect as a write or flush error on
// the chunked body, so the first failed emit cancels the run and the
// pipeline stops at its next context check.
type cancelOnWriteError struct {
	w      flushWriter
	cancel context.CancelFunc
}

func (cw *cancelOnWriteError) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if err != nil {
		cw.cancel()
	}
	return n, err
}

func (cw *cancelOnWriteError) Flush() error {
	err := cw.w.Flush()
	if err != nil {
		cw.cancel()
	}
	return err
}

type IAssistController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ClearHistory(ctx *fiber.Ctx) error
}

type assistController struct {
	assistService service.IAssistService
}

func NewAssistController(assistService service.IAssistService) IAssistController {
	return &assistController{
		assistService: assistService,
	}
}

func (c *assistController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/assist/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("stream", c.Stream)
	h.Get("history/:projectId", c.GetHistory)
	h.Delete("history/:projectId", c.ClearHistory)
}

// Stream runs the pipeline and writes NDJSON events to a chunked
// response body. Locals are captured before the stream writer starts
// because the fiber context is not valid inside it.
func (c *assistController) Stream(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.AssistRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "application/x-ndjson")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")

	assistService := c.assistService
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		em := stream.NewNDJSONEmitter(&cancelOnWriteError{w: w, cancel: cancel})
		if err := assistService.Stream(runCtx, userId, &req, em); err != nil {
			log.Printf("[ERROR] Assist stream failed: %v", err)
		}
	})

	return nil
}

func (c *assistController) GetHistory(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	projectId, err := uuid.Parse(ctx.Params("projectId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid project id")
	}

	res, err := c.assistService.GetHistory(ctx.Context(), userId, projectId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get assist history", res))
}

func (c *assistController) ClearHistory(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	projectId, err := uuid.Parse(ctx.Params("projectId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid project id")
	}

	if err := c.assistService.ClearHistory(ctx.Context(), userId, projectId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success clear assist history", nil))
}
