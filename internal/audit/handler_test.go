package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-registry/backend/internal/models"
)

func parseQuery(t *testing.T, rawQuery string) (QueryFilter, bool, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/audit-logs?"+rawQuery, nil)
	f, ok := parseQueryFilter(c)
	c.Writer.WriteHeaderNow()
	return f, ok, w
}

func TestParseQueryFilterDefaults(t *testing.T) {
	f, ok, _ := parseQuery(t, "")
	require.True(t, ok)
	assert.Nil(t, f.RegistrationID)
	assert.Nil(t, f.UserID)
	assert.Nil(t, f.Action)
	assert.Nil(t, f.From)
	assert.Nil(t, f.To)
	assert.Equal(t, defaultLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestParseQueryFilterFull(t *testing.T) {
	regID := uuid.New()
	userID := uuid.New()
	f, ok, _ := parseQuery(t,
		"registration_id="+regID.String()+
			"&user_id="+userID.String()+
			"&action=Approved"+
			"&from=2026-08-01T00:00:00Z"+
			"&to=2026-08-31T23:59:59Z"+
			"&limit=25&offset=50")
	require.True(t, ok)
	require.NotNil(t, f.RegistrationID)
	assert.Equal(t, regID, *f.RegistrationID)
	require.NotNil(t, f.UserID)
	assert.Equal(t, userID, *f.UserID)
	require.NotNil(t, f.Action)
	assert.Equal(t, models.AuditApproved, *f.Action)
	require.NotNil(t, f.From)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), f.From.UTC())
	require.NotNil(t, f.To)
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 50, f.Offset)
}

func TestParseQueryFilterLimitClamped(t *testing.T) {
	f, ok, _ := parseQuery(t, "limit=5000")
	require.True(t, ok)
	assert.Equal(t, maxLimit, f.Limit)
}

func TestParseQueryFilterBadParams(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{"bad registration_id", "registration_id=not-a-uuid"},
		{"bad user_id", "user_id=42"},
		{"unknown action", "action=Promoted"},
		{"lowercase action", "action=approved"},
		{"bad from", "from=yesterday"},
		{"bad to", "to=2026-08-31"},
		{"to before from", "from=2026-08-31T00:00:00Z&to=2026-08-01T00:00:00Z"},
		{"zero limit", "limit=0"},
		{"negative limit", "limit=-5"},
		{"non-numeric limit", "limit=ten"},
		{"negative offset", "offset=-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok, w := parseQuery(t, tc.query)
			assert.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
