package middleware

import (
	"errors"
	"strconv"
	"time"

	"go-retail-pos/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// Metrics records request count and latency per matched route.
func Metrics(m *metrics.ServerMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		route := c.Route().Path
		method := c.Method()
		m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route, method).Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}
