package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/arcade/internal/auth"
	"github.com/jason-s-yu/arcade/internal/database"
	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/jason-s-yu/arcade/internal/scoring"
	"github.com/jason-s-yu/arcade/internal/ttt"
	"github.com/jason-s-yu/arcade/internal/users"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *APIServer
	handler http.Handler
	store   *database.SQLite
}

func newTestEnv(t *testing.T, opts scoring.Options) *testEnv {
	t.Helper()
	store, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sessions, err := auth.NewSessions("handler-test-secret", 0, false)
	require.NoError(t, err)

	hasher := auth.NewHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	if opts.WinPoints == 0 {
		opts.WinPoints = 10
	}
	scores := scoring.NewService(store, store, logger, opts)

	s := &APIServer{
		Logger:     logger,
		Users:      users.NewUserService(store, hasher),
		Scores:     scores,
		Sessions:   sessions,
		Matchmaker: ttt.NewMatchmaker(scores, logger),
		Origins:    []string{"http://localhost:5173"},
	}
	return &testEnv{server: s, handler: s.Routes(), store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.CookieName)
	return nil
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (e *testEnv) signup(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/signup", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "pw-" + username,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return sessionCookie(t, rr)
}

func TestSignupLogsIn(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})

	rr := env.do(t, http.MethodPost, "/api/signup", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "secret",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
	body := decode(t, rr)
	assert.Equal(t, "Signup successful", body["message"])

	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)

	rr = env.do(t, http.MethodGet, "/api/current_user", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	env.signup(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/signup", map[string]string{"email": "x@example.com", "username": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing fields", decode(t, rr)["error"])

	// Same username, different email.
	rr = env.do(t, http.MethodPost, "/api/signup", map[string]string{
		"email": "other@example.com", "username": "alice", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "User/email already exists", decode(t, rr)["error"])

	list, err := env.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rr = env.do(t, http.MethodPost, "/api/signup", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	env.signup(t, "alice")

	wrongPassword := env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "nope"})
	unknownUser := env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "nobody", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())

	rr := env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "pw-alice"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decode(t, rr)["username"])
	sessionCookie(t, rr)

	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})

	rr := env.do(t, http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Less(t, sessionCookie(t, rr).MaxAge, 0)

	rr = env.do(t, http.MethodGet, "/api/current_user", nil)
	assert.JSONEq(t, `{"user":null}`, rr.Body.String())
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	cookie := env.signup(t, "alice")
	env.signup(t, "bob")

	rr := env.do(t, http.MethodGet, "/api/users", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "argon2")
	body := decode(t, rr)
	assert.Len(t, body["users"], 2)
	assert.Equal(t, "alice", body["name"])

	rr = env.do(t, http.MethodGet, "/api/users", nil)
	assert.Nil(t, decode(t, rr)["name"])
}

func TestMaxScoreAndUpdate(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	cookie := env.signup(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{"username": "ghost"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"maxscore":0}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing username", decode(t, rr)["error"])

	rr = env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{"username": "alice", "game": "Pong"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Overwrite: 5 then 3 leaves 3.
	for _, score := range []int{5, 3} {
		rr = env.do(t, http.MethodPost, "/api/update_score", map[string]int{"score": score}, cookie)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{"username": "alice"})
	assert.JSONEq(t, `{"maxscore":3}`, rr.Body.String())

	// Explicit username without a session.
	rr = env.do(t, http.MethodPost, "/api/update_score", map[string]any{"username": "alice", "game": "Snake", "score": 12})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{"username": "alice", "game": "Snake"})
	assert.JSONEq(t, `{"maxscore":12}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/update_score", map[string]int{"score": 1})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Not logged in", decode(t, rr)["error"])

	rr = env.do(t, http.MethodPost, "/api/update_score", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing score", decode(t, rr)["error"])
}

func TestUpdateScoreMaxPolicy(t *testing.T) {
	env := newTestEnv(t, scoring.Options{UpdatePolicy: models.CombineMax})
	cookie := env.signup(t, "alice")

	for _, score := range []int{5, 3} {
		rr := env.do(t, http.MethodPost, "/api/update_score", map[string]int{"score": score}, cookie)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{"username": "alice"})
	assert.JSONEq(t, `{"maxscore":5}`, rr.Body.String())
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	for name, score := range map[string]int{"A": 5, "B": 2, "C": 9} {
		env.signup(t, name)
		rr := env.do(t, http.MethodPost, "/api/update_score", map[string]any{"username": name, "score": score})
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/leaderboards", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"users":[
		{"username":"B","total_score":2},
		{"username":"A","total_score":5},
		{"username":"C","total_score":9}]}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/leaderboards?order=desc", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Index(rr.Body.String(), `"C"`) < strings.Index(rr.Body.String(), `"B"`))

	rr = env.do(t, http.MethodGet, "/api/leaderboards?order=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLeaderboardEmpty(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})

	rr := env.do(t, http.MethodGet, "/api/leaderboards", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"users":[]}`, rr.Body.String())
}

func TestGuestScore(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})

	rr := env.do(t, http.MethodPost, "/api/guessnumber_score", map[string]any{"username": "guest", "score": 5})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodPost, "/api/guessnumber_score", map[string]any{"username": "guest", "score": 3})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Score saved","score":5}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/guessnumber_score", map[string]any{"username": "guest"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid data", decode(t, rr)["error"])
}

func TestGuessAttempts(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	env.signup(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/update_guessnumber_score", map[string]any{"username": "ghost", "attempts": 4})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	for _, attempts := range []int{6, 4, 9} {
		rr = env.do(t, http.MethodPost, "/api/update_guessnumber_score", map[string]any{"username": "alice", "attempts": attempts})
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/get_maxscore", map[string]string{"username": "alice", "game": "guessnum"})
	assert.JSONEq(t, `{"maxscore":4}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/update_guessnumber_score", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	rr := env.do(t, http.MethodGet, "/api/update_score", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func dialTTT(t *testing.T, ctx context.Context, srv *httptest.Server, cookie *http.Cookie) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.Name+"="+cookie.Value)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ttt/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{tttSubprotocol},
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func readEvent(t *testing.T, ctx context.Context, c *websocket.Conn) ttt.Event {
	t.Helper()
	var ev ttt.Event
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	return ev
}

func TestTTTMatchAwardsWinner(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	aliceCookie := env.signup(t, "alice")
	bobCookie := env.signup(t, "bob")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialTTT(t, ctx, srv, aliceCookie)
	require.NoError(t, wsjson.Write(ctx, alice, map[string]string{"type": "find_match", "name": "spoofed"}))
	assert.Equal(t, ttt.EventWaiting, readEvent(t, ctx, alice).Type)

	bob := dialTTT(t, ctx, srv, bobCookie)
	require.NoError(t, wsjson.Write(ctx, bob, map[string]string{"type": "find_match"}))

	matched := readEvent(t, ctx, bob)
	require.Equal(t, ttt.EventMatched, matched.Type)
	assert.Equal(t, ttt.X, matched.Mark)
	state := readEvent(t, ctx, bob)
	assert.Equal(t, "bob", state.Players[ttt.X])
	assert.Equal(t, "alice", state.Players[ttt.O], "session name wins over the client-sent one")

	assert.Equal(t, ttt.O, readEvent(t, ctx, alice).Mark)
	readEvent(t, ctx, alice)

	// Bob (X) takes the left column.
	moves := []struct {
		c   *websocket.Conn
		idx int
	}{{bob, 0}, {alice, 1}, {bob, 3}, {alice, 2}, {bob, 6}}
	for _, mv := range moves {
		require.NoError(t, wsjson.Write(ctx, mv.c, map[string]any{"type": "make_move", "room_id": matched.RoomID, "index": mv.idx}))
		state = readEvent(t, ctx, bob)
		readEvent(t, ctx, alice)
	}
	assert.Equal(t, "X", state.Winner)

	// Out-of-turn and finished-game moves come back as errors.
	require.NoError(t, wsjson.Write(ctx, alice, map[string]any{"type": "make_move", "room_id": matched.RoomID, "index": 8}))
	ev := readEvent(t, ctx, alice)
	assert.Equal(t, ttt.EventError, ev.Type)
	assert.Equal(t, ttt.ErrGameOver.Error(), ev.Message)

	require.Eventually(t, func() bool {
		score, err := env.store.GetScore(context.Background(), "bob", models.TTT)
		return err == nil && score == 10
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, wsjson.Write(ctx, bob, map[string]string{"type": "ping"}))
	assert.Equal(t, ttt.EventPong, readEvent(t, ctx, bob).Type)

	// Disconnect notifies the opponent.
	bob.Close(websocket.StatusNormalClosure, "")
	ev = readEvent(t, ctx, alice)
	assert.Equal(t, ttt.EventError, ev.Type)
	assert.Equal(t, "Opponent disconnected", ev.Message)
}

func TestTTTRejectsMissingSubprotocol(t *testing.T) {
	env := newTestEnv(t, scoring.Options{})
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ttt/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}
