package handlers_test

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedRoutes(t *testing.T) {
	ts := testutil.NewTestServer(t)

	patient, _ := testutil.NewUserBuilder().WithRole(domain.RolePatient).Build(t, ts.DB.DB)
	adminUser, _ := testutil.NewUserBuilder().WithRole(domain.RoleAdmin).Build(t, ts.DB.DB)

	expiredIssuer := auth.NewTokenIssuer(ts.Config.JWTSecret, time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	expired, _, err := expiredIssuer.Issue(adminUser.ID.String(), adminUser.Email, adminUser.Role)
	require.NoError(t, err)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "patient on an admin route is forbidden",
			token:          ts.TokenFor(t, patient),
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "insufficient role",
		},
		{
			name:           "missing token",
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "bearer token is required",
		},
		{
			name:           "garbage token",
			token:          "not-a-token",
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "invalid token",
		},
		{
			name:           "expired token",
			token:          expired,
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "token has expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/users"), tt.token, nil)
			testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedMsg)
		})
	}

	t.Run("admin lists users", func(t *testing.T) {
		resp := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/users?role=patient"), ts.TokenFor(t, adminUser), nil)
		var users []struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		}
		env := testutil.AssertSuccess(t, resp, http.StatusOK, &users)
		require.NotNil(t, env.Pagination)
		assert.EqualValues(t, 1, env.Pagination.Total)
		require.Len(t, users, 1)
		assert.Equal(t, patient.ID.String(), users[0].ID)
	})

	t.Run("deactivated provider account is refused", func(t *testing.T) {
		inactive, _ := testutil.NewUserBuilder().WithSubject("fb-inactive").Inactive().Build(t, ts.DB.DB)
		ts.Provider.AddIdentity("inactive-token", auth.ExternalIdentity{Subject: "fb-inactive", Email: inactive.Email})

		resp := testutil.DoJSON(t, http.MethodPost, ts.APIURL("/firebase/login"), "inactive-token", nil)
		testutil.AssertErrorResponse(t, resp, http.StatusForbidden, domain.ErrAccountDisabled.Error())
	})
}

func TestHealthAndMetrics(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.BaseURL() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	// An auth failure shows up in the Prometheus output
	failed := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/patients"), "", nil)
	testutil.AssertStatusCode(t, failed, http.StatusUnauthorized)

	metricsResp, err := http.Get(ts.BaseURL() + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	metricsBody, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), `nutrition_auth_failures_total{reason="missing_credential"} 1`)
}

func TestPerUserRateLimit(t *testing.T) {
	ts := testutil.NewTestServer(t, func(cfg *config.Config) {
		cfg.UserRateLimitMaxRequests = 2
	})

	first, _ := testutil.NewUserBuilder().WithRole(domain.RolePatient).Build(t, ts.DB.DB)
	second, _ := testutil.NewUserBuilder().WithRole(domain.RolePatient).Build(t, ts.DB.DB)
	firstToken := ts.TokenFor(t, first)

	for i := 0; i < 2; i++ {
		resp := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/auth/profile"), firstToken, nil)
		testutil.AssertSuccess(t, resp, http.StatusOK, nil)
	}

	limited := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/auth/profile"), firstToken, nil)
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))
	testutil.AssertErrorResponse(t, limited, http.StatusTooManyRequests, "too many requests, please try again later")

	// Same address, separate account
	resp := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/auth/profile"), ts.TokenFor(t, second), nil)
	testutil.AssertSuccess(t, resp, http.StatusOK, nil)

	// Public routes only see the address limit
	resp = testutil.DoJSON(t, http.MethodGet, ts.APIURL("/blog"), "", nil)
	testutil.AssertSuccess(t, resp, http.StatusOK, nil)
}
