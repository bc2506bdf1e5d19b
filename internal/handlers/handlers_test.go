package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade-wager-backend/internal/chain"
	"arcade-wager-backend/internal/config"
	"arcade-wager-backend/internal/handlers"
	"arcade-wager-backend/internal/middleware"
	"arcade-wager-backend/internal/models"
	"arcade-wager-backend/internal/services"
)

var player = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func init() {
	gin.SetMode(gin.TestMode)
}

func newBetRouter(t *testing.T, s *services.Synchronizer) *gin.Engine {
	t.Helper()
	bets := handlers.NewBetHandler(s, nil)
	games := handlers.NewGameHandler(s)

	r := gin.New()
	r.GET("/api/bets/active", bets.ListActive)
	r.POST("/api/bets/active/reload", bets.ReloadActive)
	r.GET("/api/bets/mine", bets.ListMine)
	r.GET("/api/bets/history", bets.History)
	r.GET("/api/bets/:id", bets.GetBet)
	r.POST("/api/bets", bets.CreateBet)
	r.POST("/api/bets/:id/accept", bets.AcceptBet)
	r.POST("/api/bets/:id/cancel", bets.CancelBet)
	r.POST("/api/bets/:id/boost", bets.ActivateBoost)
	r.GET("/api/games", games.ListGames)
	r.GET("/api/games/:type", games.GetGame)
	r.GET("/api/balance", games.GetBalance)
	return r
}

func offlineSynchronizer(t *testing.T) *services.Synchronizer {
	t.Helper()
	sim := chain.NewSimulatedChain()
	sim.SeedDemoBets()
	sim.Mint(player, new(big.Int).Mul(big.NewInt(1000), chain.TokenUnit))

	s := services.NewSynchronizer(sim.Session(player), slog.Disabled)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListActiveBets(t *testing.T) {
	r := newBetRouter(t, offlineSynchronizer(t))

	w := do(r, http.MethodGet, "/api/bets/active", "")
	require.Equal(t, http.StatusOK, w.Code)

	bets := decode(t, w)["bets"].([]interface{})
	require.Len(t, bets, 4)
	first := bets[0].(map[string]interface{})
	assert.Equal(t, "Pending", first["status_label"])
	assert.Equal(t, "memory-breach", first["game_type"], "newest demo bet first")
	assert.NotEmpty(t, first["time_remaining"])
	assert.NotNil(t, first["game"])
}

func TestCreateAndCancelBetOverHTTP(t *testing.T) {
	r := newBetRouter(t, offlineSynchronizer(t))

	w := do(r, http.MethodPost, "/api/bets", `{"amount":"50","time_limit":"5","boost_limit":"1","game_type":"pac-hack"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["bet_id"].(string)

	w = do(r, http.MethodGet, "/api/bets/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	bet := decode(t, w)["bet"].(map[string]interface{})
	assert.Equal(t, "50", bet["amount"])
	assert.Regexp(t, `^(5:00|4:5\d)$`, bet["time_remaining"])

	w = do(r, http.MethodPost, "/api/bets/"+id+"/accept", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot accept your own bet", decode(t, w)["details"])

	w = do(r, http.MethodPost, "/api/bets/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["tx_hash"])
}

func TestCreateBetValidationOverHTTP(t *testing.T) {
	r := newBetRouter(t, offlineSynchronizer(t))

	w := do(r, http.MethodPost, "/api/bets", `{"amount":"20000","time_limit":"5","boost_limit":"1","game_type":"pac-hack"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Failed to create bet", body["error"])
	assert.Equal(t, "amount must be at most 10000", body["details"])

	w = do(r, http.MethodPost, "/api/bets", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request", decode(t, w)["error"])
}

func TestAcceptAndBoostDemoBet(t *testing.T) {
	r := newBetRouter(t, offlineSynchronizer(t))

	w := do(r, http.MethodPost, "/api/bets/2/boost", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bet must be active to use boosts", decode(t, w)["details"])

	w = do(r, http.MethodPost, "/api/bets/2/accept", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/bets/2/boost", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "890", decode(t, w)["balance"])
}

func TestBetNotFound(t *testing.T) {
	r := newBetRouter(t, offlineSynchronizer(t))

	w := do(r, http.MethodGet, "/api/bets/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "bet 404 not found", decode(t, w)["details"])
}

func TestUninitializedSynchronizer(t *testing.T) {
	sim := chain.NewSimulatedChain()
	r := newBetRouter(t, services.NewSynchronizer(sim.Session(player), slog.Disabled))

	w := do(r, http.MethodPost, "/api/bets/active/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, http.MethodGet, "/api/bets/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGames(t *testing.T) {
	r := newBetRouter(t, offlineSynchronizer(t))

	w := do(r, http.MethodGet, "/api/games", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["games"], len(models.GameTypes()))
	assert.Equal(t, "10000", body["max_amount"])

	w = do(r, http.MethodGet, "/api/games/space-breaker", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/games/tetris", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// fakeHistory serves canned history without Redis.
type fakeHistory struct {
	err error
}

func (f *fakeHistory) GetCompletedBets(ctx context.Context, limit int64) ([]*models.Bet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*models.Bet{{ID: "3", Status: models.BetStatusCompleted, CreatedAt: time.Now()}}, nil
}

func (f *fakeHistory) RecentEvents(ctx context.Context, limit int64) ([]services.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []services.EventRecord{{Kind: "betCancelled", Data: json.RawMessage(`{"id":"3"}`)}}, nil
}

func TestHistoryRoutes(t *testing.T) {
	s := offlineSynchronizer(t)

	r := gin.New()
	h := handlers.NewBetHandler(s, &fakeHistory{})
	r.GET("/history", h.History)
	r.GET("/events", h.RecentEvents)

	w := do(r, http.MethodGet, "/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	bets := decode(t, w)["bets"].([]interface{})
	require.Len(t, bets, 1)
	assert.Equal(t, "Completed", bets[0].(map[string]interface{})["status_label"])

	w = do(r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["events"], 1)

	r = gin.New()
	h = handlers.NewBetHandler(s, &fakeHistory{err: errors.New("redis down")})
	r.GET("/events", h.RecentEvents)
	w = do(r, http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// memorySessions is an in-memory SessionStore.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func (m *memorySessions) StoreSession(ctx context.Context, session *models.Session, expiry time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionID] = session
	return nil
}

func (m *memorySessions) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.New("session not found")
	}
	return s, nil
}

func (m *memorySessions) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func TestSessionLifecycle(t *testing.T) {
	store := &memorySessions{sessions: map[string]*models.Session{}}
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "secret"})
	h := handlers.NewUserHandler(store, jwtService, "key-123", player.Hex())

	r := gin.New()
	r.POST("/auth/token", h.CreateSession)
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService, store))
	api.GET("/me", h.GetCurrentSession)
	api.POST("/logout", h.Logout)
	api.POST("/bets", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{"success": true}) })

	w := do(r, http.MethodPost, "/auth/token", `{"api_key":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/token", `{"api_key":"key-123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, player.Hex(), claims.Address)

	authorized := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, authorized(http.MethodGet, "/api/me"))
	assert.Equal(t, http.StatusCreated, authorized(http.MethodPost, "/api/bets"))
	assert.Equal(t, http.StatusOK, authorized(http.MethodPost, "/api/logout"))

	// the token is still signed and unexpired, but its session is gone
	assert.Equal(t, http.StatusUnauthorized, authorized(http.MethodGet, "/api/me"))
	assert.Equal(t, http.StatusUnauthorized, authorized(http.MethodPost, "/api/bets"))
}

func TestStaticHandler(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index-live.html"), []byte("<html>lobby</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "hud.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "assets"), 0o755))

	r := gin.New()
	r.NoRoute(handlers.NewStaticHandler(root).ServeFile)

	w := do(r, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Equal(t, "<html>lobby</html>", w.Body.String())

	w = do(r, http.MethodGet, "/hud.css", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css", w.Header().Get("Content-Type"))

	w = do(r, http.MethodGet, "/missing.js", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not found", w.Body.String())

	w = do(r, http.MethodGet, "/assets", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error", w.Body.String())

	w = do(r, http.MethodGet, "/../../etc/passwd", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
