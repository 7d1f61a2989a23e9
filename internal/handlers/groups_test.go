package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/engine"
	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/stream"
)

func setupGroupRouter(userID string) (*gin.Engine, *mocks.GroupRepositoryMock, *mocks.UserRepositoryMock) {
	gin.SetMode(gin.TestMode)

	groups := new(mocks.GroupRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	actions := engine.NewActions(new(mocks.ChatRepositoryMock), groups, users, stream.NewLocalNotifier())
	handler := NewGroupHandler(actions, groups, users, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	r.POST("/groups", handler.CreateGroup)
	r.GET("/groups/:group_id/mentions", handler.MentionSuggestions)
	return r, groups, users
}

func TestCreateGroupSuccess(t *testing.T) {
	router, groups, users := setupGroupRouter("a1")

	users.On("ListByIDs", mock.Anything, []string{"b1", "c1"}).Return([]models.User{{ID: "b1"}, {ID: "c1"}}, nil).Once()
	groups.On("CreateGroup", mock.Anything, "a1", "team", "", []string{"b1", "c1"}).
		Return(models.GroupConversation{ID: "g1", Name: "team", CreatedBy: "a1", Members: []string{"a1", "b1", "c1"}}, nil).Once()

	body := bytes.NewBufferString(`{"name":"team","member_ids":["b1","c1"]}`)
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		GroupID string   `json:"group_id"`
		Members []string `json:"members"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "g1", resp.GroupID)
	assert.Equal(t, []string{"a1", "b1", "c1"}, resp.Members)
	groups.AssertExpectations(t)
}

func TestCreateGroupRequiresNameAndMembers(t *testing.T) {
	router, _, _ := setupGroupRouter("a1")

	for _, body := range []string{
		`{"name":"","member_ids":["b1"]}`,
		`{"name":"team","member_ids":[]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestMentionSuggestions(t *testing.T) {
	router, groups, users := setupGroupRouter("a1")

	group := models.GroupConversation{ID: "g1", Name: "team", Members: []string{"a1", "b1", "c1"}}
	groups.On("GetGroup", mock.Anything, "g1").Return(group, nil).Once()
	users.On("ListByIDs", mock.Anything, []string{"a1", "b1", "c1"}).Return([]models.User{
		{ID: "a1", Username: "alice", FullName: "Alice Smith"},
		{ID: "b1", Username: "bob", FullName: "Albert Jones"},
		{ID: "c1", Username: "carol"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/g1/mentions?input=hey+%40al", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Active      bool     `json:"active"`
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Active)
	assert.Equal(t, []string{"Alice Smith", "Albert Jones"}, resp.Suggestions)
}

func TestMentionSuggestionsWithoutToken(t *testing.T) {
	router, groups, users := setupGroupRouter("a1")

	group := models.GroupConversation{ID: "g1", Members: []string{"a1"}}
	groups.On("GetGroup", mock.Anything, "g1").Return(group, nil).Once()
	users.On("ListByIDs", mock.Anything, []string{"a1"}).Return([]models.User{{ID: "a1", Username: "alice"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/g1/mentions?input=plain+text", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Active      bool     `json:"active"`
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Active)
	assert.Empty(t, resp.Suggestions)
}

func TestMentionSuggestionsRequiresMembership(t *testing.T) {
	router, groups, _ := setupGroupRouter("z9")

	group := models.GroupConversation{ID: "g1", Members: []string{"a1"}}
	groups.On("GetGroup", mock.Anything, "g1").Return(group, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/g1/mentions?input=%40a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
