package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
	err  error
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := stubValidator{claims: &models.JWTClaims{OperatorID: "op-1", Role: models.RoleAnalyst}}

	router := gin.New()
	router.Use(JWT(validator))
	router.GET("/alerts", func(c *gin.Context) {
		claims, ok := CurrentOperator(c)
		if !ok || claims.OperatorID != "op-1" {
			t.Fatalf("expected claims in context")
		}
		c.Status(http.StatusNoContent)
	})
	router.POST("/campaigns", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"missing header", http.MethodGet, "/alerts", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/alerts", "Basic abc", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/alerts", "Bearer nope", http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/alerts", "Bearer good", http.StatusNoContent},
		{"role denied", http.MethodPost, "/campaigns", "Bearer good", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := serve(router, tc.method, tc.path, tc.auth).Code; got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}

	validator.claims.Role = models.RoleAdmin
	if got := serve(router, http.MethodPost, "/campaigns", "Bearer good").Code; got != http.StatusCreated {
		t.Fatalf("admin should pass role check, got %d", got)
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	if got := serve(router, http.MethodGet, "/", "").Code; got != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", got)
	}
}

func TestCronSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/cron/alerts", CronSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	if got := serve(router, http.MethodPost, "/cron/alerts", "Bearer s3cret").Code; got != http.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := serve(router, http.MethodPost, "/cron/alerts", "Bearer wrong").Code; got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}

	disabled := gin.New()
	disabled.POST("/cron/alerts", CronSecret(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	if got := serve(disabled, http.MethodPost, "/cron/alerts", "Bearer ").Code; got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &recordingAudit{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextOperatorKey, &models.JWTClaims{OperatorID: "op-9"})
		c.Next()
	})
	router.POST("/alerts/:id/resolve", Audit(repo, nil, models.AuditActionAlertResolve, "alert"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/alerts/:id/acknowledge", Audit(repo, nil, models.AuditActionAlertAcknowledge, "alert"), func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	serve(router, http.MethodPost, "/alerts/al-1/resolve", "")
	serve(router, http.MethodPost, "/alerts/al-2/acknowledge", "")

	if len(repo.logs) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(repo.logs))
	}
	entry := repo.logs[0]
	if entry.Action != models.AuditActionAlertResolve || *entry.OperatorID != "op-9" || *entry.ResourceID != "al-1" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}

	repo.err = errors.New("db down")
	if got := serve(router, http.MethodPost, "/alerts/al-3/resolve", "").Code; got != http.StatusOK {
		t.Fatalf("audit failure must not change the response, got %d", got)
	}
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		if ExtractMeta(c)["cache_hit"] != true {
			t.Fatalf("expected cache hit flag")
		}
		c.Status(http.StatusOK)
	})
	serve(router, http.MethodGet, "/", "")
}
