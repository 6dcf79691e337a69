package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"photomarket/api/internal/models"
)

func performWithUser(t *testing.T, user *models.User, roles ...models.UserRole) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected",
		func(c *gin.Context) {
			if user != nil {
				c.Set("current_user", *user)
			}
		},
		RequireRoles(roles...),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRequireRoles(t *testing.T) {
	seller := models.User{ID: "u1", Role: models.UserRoleSeller}
	buyer := models.User{ID: "u2", Role: models.UserRoleBuyer}
	admin := models.User{ID: "u3", Role: models.UserRoleAdmin}

	w := performWithUser(t, &seller, models.UserRoleSeller)
	require.Equal(t, http.StatusOK, w.Code)

	w = performWithUser(t, &buyer, models.UserRoleSeller)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = performWithUser(t, &admin, models.UserRoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	w = performWithUser(t, &buyer, models.UserRoleSeller, models.UserRoleBuyer)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles_NoUser(t *testing.T) {
	w := performWithUser(t, nil, models.UserRoleSeller)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
