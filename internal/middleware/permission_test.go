package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/unipanel/unipanel-api/internal/models"
)

func permissionRouter(permission string, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/students/:studentId/transcript", RequirePermission(permission), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequirePermissionGrantsRole(t *testing.T) {
	router := permissionRouter(models.PermTranscriptsView, &models.JWTClaims{UserID: "u1", Role: models.RoleRegistrar})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/stu-1/transcript", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequirePermissionRejectsMissingClaims(t *testing.T) {
	router := permissionRouter(models.PermTranscriptsView, nil)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/stu-1/transcript", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequirePermissionRejectsForbiddenRole(t *testing.T) {
	router := permissionRouter(models.PermUsersManage, &models.JWTClaims{UserID: "u1", Role: models.RoleBursar})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/stu-1/transcript", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequirePermissionAllowsStudentSelf(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: "stu-1"}
	router := permissionRouter(models.PermStudentsView, claims)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/stu-1/transcript", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/students/stu-2/transcript", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
