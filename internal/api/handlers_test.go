package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tnapier/go-huddle/internal/config"
	"github.com/tnapier/go-huddle/internal/database"
	"github.com/tnapier/go-huddle/internal/server"
	"github.com/tnapier/go-huddle/internal/stats"
	"github.com/tnapier/go-huddle/internal/testutil"
	"github.com/tnapier/go-huddle/internal/types"
)

func newTestApp(t *testing.T, db database.HuddleRepository) *HuddleApp {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)

	logger := testutil.TestLogger(t)
	ss, err := server.NewSignalServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test SignalServer: %v", err)
	}

	cfg := &config.Config{
		ServerAddr:     ":0",
		DatabaseDSN:    "test",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	return NewHuddleApp(http.NewServeMux(), logger, ss, db, cfg)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestCreateAccount(t *testing.T) {
	t.Run("creates an account and sets the session cookie", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Name == "alice" && p.EmailAddress == "alice@example.com" && p.PasswordHash != "hunter2"
		})).Return(database.User{Id: 1, Name: "alice", EmailAddress: "alice@example.com"}, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			jsonBody(t, RegisterRequest{Email: "alice@example.com", Name: "alice", Password: "hunter2"}))
		rec := httptest.NewRecorder()
		app.createAccount(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code, "expected created")

		var user types.User
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
		assert.Equal(t, 1, user.Id, "expected the new user id")

		cookies := rec.Result().Cookies()
		assert.Len(t, cookies, 1, "expected the session cookie to be set")
		assert.Equal(t, tokenCookieKey, cookies[0].Name, "expected the token cookie")
	})

	t.Run("missing fields", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			jsonBody(t, RegisterRequest{Email: "alice@example.com"}))
		rec := httptest.NewRecorder()
		app.createAccount(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request")
	})

	t.Run("duplicate email", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateAccount", mock.Anything).Return(database.User{}, &pq.Error{Code: pqUniqueViolation})

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			jsonBody(t, RegisterRequest{Email: "alice@example.com", Name: "alice", Password: "hunter2"}))
		rec := httptest.NewRecorder()
		app.createAccount(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code, "expected conflict on duplicate email")
	})
}

func TestLogin(t *testing.T) {
	hash, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "alice@example.com").Return(database.User{
			Id: 1, Name: "alice", EmailAddress: "alice@example.com", PasswordHash: hash,
		}, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, LoginRequest{Email: "alice@example.com", Password: "hunter2"}))
		rec := httptest.NewRecorder()
		app.login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "expected ok")
		assert.Len(t, rec.Result().Cookies(), 1, "expected the session cookie to be set")
	})

	t.Run("wrong password", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "alice@example.com").Return(database.User{
			Id: 1, PasswordHash: hash,
		}, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, LoginRequest{Email: "alice@example.com", Password: "wrong"}))
		rec := httptest.NewRecorder()
		app.login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "expected unauthorized")
	})

	t.Run("unknown email", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "ghost@example.com").Return(database.User{}, sql.ErrNoRows)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			jsonBody(t, LoginRequest{Email: "ghost@example.com", Password: "hunter2"}))
		rec := httptest.NewRecorder()
		app.login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "expected unauthorized for an unknown email")
	})
}

func TestCreateRoom(t *testing.T) {
	t.Run("creates a room owned by the caller", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateRoom", database.CreateRoomParams{Id: "standup", Name: "Standup", OwnerId: 1}).
			Return(database.Room{Id: "standup", Name: "Standup", OwnerId: 1}, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms",
			jsonBody(t, CreateRoomRequest{Id: "standup", Name: "Standup"}))
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.createRoom(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code, "expected created")

		var room types.Room
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
		assert.Equal(t, "standup", room.Id, "expected the caller-supplied room id")
		assert.Equal(t, 1, room.OwnerId, "expected the caller to own the room")
	})

	t.Run("duplicate room id", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateRoom", mock.Anything).Return(database.Room{}, &pq.Error{Code: pqUniqueViolation})

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms",
			jsonBody(t, CreateRoomRequest{Id: "standup", Name: "Standup"}))
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.createRoom(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code, "expected conflict on duplicate id")
	})

	t.Run("missing id", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms",
			jsonBody(t, CreateRoomRequest{Name: "Standup"}))
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.createRoom(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request")
	})
}

func TestCreateInvites(t *testing.T) {
	t.Run("owner invites by email", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "standup").Return(database.Room{Id: "standup", OwnerId: 1}, nil)
		db.On("CreateInvite", "standup", "bob@example.com", 1).Return(nil)
		db.On("CreateInvite", "standup", "cora@example.com", 1).Return(nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms/standup/invites",
			jsonBody(t, CreateInvitesRequest{Emails: []string{"bob@example.com", "cora@example.com"}}))
		req.SetPathValue("id", "standup")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.createInvites(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code, "expected no content")
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "standup").Return(database.Room{Id: "standup", OwnerId: 99}, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms/standup/invites",
			jsonBody(t, CreateInvitesRequest{Emails: []string{"bob@example.com"}}))
		req.SetPathValue("id", "standup")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.createInvites(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, "expected forbidden")
	})

	t.Run("no emails", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodPost, "/api/rooms/standup/invites",
			jsonBody(t, CreateInvitesRequest{}))
		req.SetPathValue("id", "standup")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.createInvites(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request")
	})
}

func TestGetRoom(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "standup").Return(database.Room{Id: "standup", Name: "Standup", OwnerId: 1}, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/standup", nil)
		req.SetPathValue("id", "standup")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.getRoom(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "expected ok")
	})

	t.Run("invited user", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "standup").Return(database.Room{Id: "standup", OwnerId: 99}, nil)
		db.On("GetAccountById", 1).Return(database.User{Id: 1, EmailAddress: "bob@example.com"}, nil)
		db.On("IsInvited", "standup", "bob@example.com").Return(true, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/standup", nil)
		req.SetPathValue("id", "standup")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.getRoom(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "expected ok")
	})

	t.Run("uninvited user is forbidden", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "standup").Return(database.Room{Id: "standup", OwnerId: 99}, nil)
		db.On("GetAccountById", 1).Return(database.User{Id: 1, EmailAddress: "mallory@example.com"}, nil)
		db.On("IsInvited", "standup", "mallory@example.com").Return(false, nil)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/standup", nil)
		req.SetPathValue("id", "standup")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.getRoom(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, "expected forbidden")
	})

	t.Run("not found", func(t *testing.T) {
		db := &database.MockHuddleRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "nope").Return(database.Room{}, sql.ErrNoRows)

		app := newTestApp(t, db)
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/nope", nil)
		req.SetPathValue("id", "nope")
		req = req.WithContext(WithUserId(req.Context(), 1))
		rec := httptest.NewRecorder()
		app.getRoom(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "expected not found")
	})
}

func TestListPolls(t *testing.T) {
	db := &database.MockHuddleRepository{}
	defer db.AssertExpectations(t)
	db.On("GetRoomById", "standup").Return(database.Room{Id: "standup", OwnerId: 1}, nil)
	db.On("ListPolls", "standup").Return([]database.Poll{
		{Id: "poll_1", RoomId: "standup", Question: "Lunch?", Options: []string{"Pizza", "Sushi"}},
	}, nil)

	app := newTestApp(t, db)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/standup/polls", nil)
	req.SetPathValue("id", "standup")
	req = req.WithContext(WithUserId(req.Context(), 1))
	rec := httptest.NewRecorder()
	app.listPolls(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var polls []types.Poll
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&polls))
	assert.Len(t, polls, 1, "expected one poll")
	assert.Equal(t, []string{"Pizza", "Sushi"}, polls[0].Options, "expected the options in order")
}

func TestSession(t *testing.T) {
	db := &database.MockHuddleRepository{}
	defer db.AssertExpectations(t)
	db.On("GetAccountById", 1).Return(database.User{Id: 1, Name: "alice", EmailAddress: "alice@example.com"}, nil)

	app := newTestApp(t, db)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	rec := httptest.NewRecorder()
	app.session(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var user types.User
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "alice", user.Name, "expected the account name")
}
