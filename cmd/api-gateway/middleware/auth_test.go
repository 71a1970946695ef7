package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lgulliver/vaultmvn/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAuthService mocks the auth service for testing
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) ValidateToken(ctx context.Context, token string) (*types.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

// MockGrantService mocks the grant-checking service for testing
type MockGrantService struct {
	mock.Mock
}

func (m *MockGrantService) HasRepositoryGrant(ctx context.Context, storageID, repoID string, user *types.User, role string) (bool, error) {
	args := m.Called(ctx, storageID, repoID, user, role)
	return args.Bool(0), args.Error(1)
}

func TestAuthMiddlewareValidBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := new(MockAuthService)
	user := &types.User{ID: uuid.New(), Username: "testuser"}

	mockAuth.On("ValidateToken", mock.Anything, "valid-token").Return(user, nil)

	var capturedNext bool
	var capturedUser *types.User

	router := gin.New()
	router.Use(authMiddlewareWithInterface(mockAuth))
	router.GET("/test", func(c *gin.Context) {
		capturedNext = true
		if u, exists := c.Get("user"); exists {
			capturedUser = u.(*types.User)
		}
		c.JSON(200, gin.H{"status": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, capturedNext)
	assert.Equal(t, user, capturedUser)
	mockAuth.AssertExpectations(t)
}

func TestAuthMiddlewareInvalidBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := new(MockAuthService)
	mockAuth.On("ValidateToken", mock.Anything, "invalid-token").Return(nil, errors.New("invalid token"))

	router := gin.New()
	router.Use(authMiddlewareWithInterface(mockAuth))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockAuth.AssertExpectations(t)
}

func TestAuthMiddlewareNoAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := new(MockAuthService)

	router := gin.New()
	router.Use(authMiddlewareWithInterface(mockAuth))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthMiddlewareValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := new(MockAuthService)
	user := &types.User{ID: uuid.New(), Username: "testuser"}

	mockAuth.On("ValidateToken", mock.Anything, "valid-token").Return(user, nil)

	var capturedNext bool
	var capturedUser *types.User

	router := gin.New()
	router.Use(optionalAuthMiddlewareWithInterface(mockAuth))
	router.GET("/test", func(c *gin.Context) {
		capturedNext = true
		if u, exists := c.Get("user"); exists {
			capturedUser = u.(*types.User)
		}
		c.JSON(200, gin.H{"status": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, capturedNext)
	assert.Equal(t, user, capturedUser)
	mockAuth.AssertExpectations(t)
}

func TestOptionalAuthMiddlewareInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := new(MockAuthService)
	mockAuth.On("ValidateToken", mock.Anything, "invalid-token").Return(nil, errors.New("invalid token"))

	var capturedNext bool

	router := gin.New()
	router.Use(optionalAuthMiddlewareWithInterface(mockAuth))
	router.GET("/test", func(c *gin.Context) {
		capturedNext = true
		_, exists := c.Get("user")
		assert.False(t, exists)
		c.JSON(200, gin.H{"status": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, capturedNext)
	mockAuth.AssertExpectations(t)
}

func TestOptionalAuthMiddlewareNoAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := new(MockAuthService)

	var capturedNext bool

	router := gin.New()
	router.Use(optionalAuthMiddlewareWithInterface(mockAuth))
	router.GET("/test", func(c *gin.Context) {
		capturedNext = true
		c.JSON(200, gin.H{"status": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, capturedNext)
}

func TestRequireRepositoryGrantGranted(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockGrant := new(MockGrantService)
	user := &types.User{ID: uuid.New(), Username: "deployer"}
	mockGrant.On("HasRepositoryGrant", mock.Anything, "s0", "releases", user, "deployer").Return(true, nil)

	var capturedNext bool
	router := gin.New()
	router.PUT("/storages/:storage/:repo/*path", func(c *gin.Context) {
		c.Set("user", user)
		c.Next()
	}, requireRepositoryGrantWithInterface(mockGrant), func(c *gin.Context) {
		capturedNext = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("PUT", "/storages/s0/releases/foo.jar", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, capturedNext)
	mockGrant.AssertExpectations(t)
}

func TestRequireRepositoryGrantDenied(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockGrant := new(MockGrantService)
	user := &types.User{ID: uuid.New(), Username: "nobody"}
	mockGrant.On("HasRepositoryGrant", mock.Anything, "s0", "releases", user, "deployer").Return(false, nil)

	router := gin.New()
	router.PUT("/storages/:storage/:repo/*path", func(c *gin.Context) {
		c.Set("user", user)
		c.Next()
	}, requireRepositoryGrantWithInterface(mockGrant), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("PUT", "/storages/s0/releases/foo.jar", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockGrant.AssertExpectations(t)
}

func TestRequireRepositoryGrantNoUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockGrant := new(MockGrantService)

	router := gin.New()
	router.PUT("/storages/:storage/:repo/*path", requireRepositoryGrantWithInterface(mockGrant), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("PUT", "/storages/s0/releases/foo.jar", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockGrant.AssertExpectations(t)
}

func TestGetUserFromContextUserExists(t *testing.T) {
	gin.SetMode(gin.TestMode)

	user := &types.User{ID: uuid.New(), Username: "testuser"}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("user", user)

	contextUser, exists := GetUserFromContext(c)
	assert.True(t, exists)
	assert.Equal(t, user, contextUser)
}

func TestGetUserFromContextUserNotExists(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	contextUser, exists := GetUserFromContext(c)
	assert.False(t, exists)
	assert.Nil(t, contextUser)
}

func TestGetUserFromContextWrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("user", "not-a-user-struct")

	contextUser, exists := GetUserFromContext(c)
	assert.False(t, exists)
	assert.Nil(t, contextUser)
}
