package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

type PlatformHandler struct {
	ps service.PlatformService
}

func NewPlatformHandler(ps service.PlatformService) *PlatformHandler {
	return &PlatformHandler{ps: ps}
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.ps.List(c.Context(), userID)
	if err != nil {
		slog.Info(err.Error())
		return serviceError(c, err, "Failed to fetch social accounts")
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountId := c.QueryInt("id", 0)

	err := h.ps.Delete(c.Context(), userID, int64(accountId))
	if err != nil {
		return serviceError(c, err, "Unable to delete social account")
	}

	return c.SendStatus(fiber.StatusOK)
}

// TiktokUploadPlan returns the chunking the client must use when pushing a
// video of ?size= bytes to the TikTok inbox.
func (h *PlatformHandler) TiktokUploadPlan(c *fiber.Ctx) error {
	size, err := strconv.ParseInt(c.Query("size"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid size",
		})
	}

	plan, err := service.PlanTiktokUpload(size)
	if err != nil {
		return serviceError(c, err, "Unable to plan upload")
	}

	return c.Status(fiber.StatusOK).JSON(plan)
}
