package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "classportal"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "admin", want: RoleAdmin},
		{in: "faculty", want: RoleFaculty},
		{in: "student", want: RoleStudent},
		{in: "Student", wantErr: true},
		{in: "", wantErr: true},
		{in: "guest", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleStudent.RecordsAttendance())
	assert.False(t, RoleFaculty.RecordsAttendance())
	assert.False(t, RoleAdmin.RecordsAttendance())
	assert.False(t, Role("other").RecordsAttendance())

	assert.True(t, RoleFaculty.CanSchedule())
	assert.True(t, RoleAdmin.CanSchedule())
	assert.False(t, RoleStudent.CanSchedule())
}

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("u-1", RoleStudent, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u-1", Role: RoleStudent}, p)

	_, err = Parse(pair.AccessToken, "wrong-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Require(testKey, testIssuer), func(c *gin.Context) {
		p, _ := FromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "role": p.Role})
	})
	r.GET("/staff", Require(testKey, testIssuer), RequireRole(RoleFaculty, RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	student, err := Issue("s-1", RoleStudent, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	faculty, err := Issue("f-1", RoleFaculty, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	bogus, err := Issue("x-1", Role("janitor"), testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "no token", path: "/me", want: http.StatusUnauthorized},
		{name: "garbage token", path: "/me", token: "abc", want: http.StatusUnauthorized},
		{name: "unknown role", path: "/me", token: bogus.AccessToken, want: http.StatusUnauthorized},
		{name: "student me", path: "/me", token: student.AccessToken, want: http.StatusOK},
		{name: "student staff", path: "/staff", token: student.AccessToken, want: http.StatusForbidden},
		{name: "faculty staff", path: "/staff", token: faculty.AccessToken, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
