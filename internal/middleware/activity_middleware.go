package middleware

import (
	"go-retail-pos/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ActivityRecorder interface {
	Record(userID uuid.UUID, action string) error
}

// LogAction records action for the authenticated user once the handler has
// answered successfully. Recording failures never change the response.
func LogAction(recorder ActivityRecorder, log logger.ZapLogger, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() >= fiber.StatusBadRequest {
			return nil
		}

		userID, ok := UserID(c)
		if !ok {
			return nil
		}
		if err := recorder.Record(userID, action); err != nil {
			log.Warn("failed to record activity",
				zap.String("user_id", userID.String()),
				zap.String("action", action),
				zap.Error(err),
			)
		}
		return nil
	}
}
