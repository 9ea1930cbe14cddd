package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go-retail-pos/internal/model"
	"go-retail-pos/pkg/jwt"
	"go-retail-pos/pkg/logger"
	"go-retail-pos/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userMap map[uuid.UUID]*model.User

func (m userMap) FindByID(id uuid.UUID) (*model.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return u, nil
}

type checkerFunc func(uuid.UUID, string) (bool, error)

func (f checkerFunc) HasPermission(id uuid.UUID, code string) (bool, error) { return f(id, code) }

type recorder struct {
	actions []string
}

func (r *recorder) Record(_ uuid.UUID, action string) error {
	r.actions = append(r.actions, action)
	return nil
}

func TestRequireAuth(t *testing.T) {
	tokens := jwt.NewManager("middleware-secret", time.Hour)
	user := &model.User{FullName: "Rina", Email: "rina@example.com", IsActive: true, TokenVersion: "v1"}
	user.ID = uuid.New()
	users := userMap{user.ID: user}

	app := fiber.New()
	app.Get("/me", RequireAuth(tokens, users), func(c *fiber.Ctx) error {
		id, ok := UserID(c)
		require.True(t, ok)
		return c.SendString(id.String() + "|" + c.Locals("user_name").(string))
	})

	valid, err := tokens.GenerateToken(user.ID, user.Email, user.FullName, "", "v1")
	require.NoError(t, err)
	stale, err := tokens.GenerateToken(user.ID, user.Email, user.FullName, "", "v0")
	require.NoError(t, err)
	stranger, err := tokens.GenerateToken(uuid.New(), "x@example.com", "X", "", "v1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", fiber.StatusUnauthorized},
		{"replaced session", "Bearer " + stale, fiber.StatusUnauthorized},
		{"unknown user", "Bearer " + stranger, fiber.StatusUnauthorized},
		{"valid", "Bearer " + valid, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	user.IsActive = false
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func withUser(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id.String())
		return c.Next()
	}
}

func TestRequirePrivilege(t *testing.T) {
	allowed := uuid.New()
	broken := uuid.New()
	checker := checkerFunc(func(id uuid.UUID, code string) (bool, error) {
		if id == broken {
			return false, errors.New("db down")
		}
		return id == allowed && code == model.PrivMakeSales, nil
	})

	run := func(id uuid.UUID, code string) int {
		app := fiber.New()
		app.Get("/", withUser(id), RequirePrivilege(checker, code), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, run(allowed, model.PrivMakeSales))
	assert.Equal(t, fiber.StatusForbidden, run(allowed, model.PrivEditProducts))
	assert.Equal(t, fiber.StatusForbidden, run(uuid.New(), model.PrivMakeSales))
	assert.Equal(t, fiber.StatusInternalServerError, run(broken, model.PrivMakeSales))
}

func TestRequirePrivilegeWithoutAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequirePrivilege(checkerFunc(func(uuid.UUID, string) (bool, error) { return true, nil }), model.PrivMakeSales),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogActionOnlyOnSuccess(t *testing.T) {
	rec := &recorder{}
	app := fiber.New()
	userID := uuid.New()
	app.Post("/ok", withUser(userID), LogAction(rec, logger.NewNop(), model.ActionCreatedProduct), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created"})
	})
	app.Post("/bad", withUser(userID), LogAction(rec, logger.NewNop(), model.ActionUpdatedProduct), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	})

	for _, path := range []string{"/ok", "/bad"} {
		_, err := app.Test(httptest.NewRequest("POST", path, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{model.ActionCreatedProduct}, rec.actions)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewServerMetrics(prometheus.NewRegistry())
	app := fiber.New()
	app.Use(Metrics(m))
	app.Get("/products/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })

	_, err := app.Test(httptest.NewRequest("GET", "/products/abc", nil))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("/products/:id", "GET", "404")))
}
