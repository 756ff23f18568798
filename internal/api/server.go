package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"

	"faultsim/internal/chaos"
	"faultsim/internal/events"
	"faultsim/internal/logger"
	"faultsim/internal/metrics"
	"faultsim/internal/recovery"
	"faultsim/internal/scenario"
)

// broadcastTypes はWebSocketへ転送するイベント（メッセージ単位のイベントは量が多いので除く）
var broadcastTypes = []events.EventType{
	events.EventNodeCrashed,
	events.EventCrashSuppressed,
	events.EventNodeRecovered,
	events.EventScenarioComplete,
}

// Server はAPIサーバー
type Server struct {
	addr   string
	bus    *events.Bus
	router *gin.Engine

	mu         sync.RWMutex
	running    bool
	engine     *scenario.Engine
	config     scenario.Config
	cancel     context.CancelFunc
	lastResult *scenario.Result
	lastErr    error
	wsClients  map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string) *Server {
	s := &Server{
		addr:      addr,
		bus:       events.NewBus(),
		wsClients: make(map[*websocket.Conn]bool),
	}
	s.router = s.routes()
	return s
}

// routes はルーティングを構築する
func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/nodes", s.handleNodes)
	api.GET("/metrics", s.handleMetrics)
	api.GET("/presets", s.handlePresets)
	api.POST("/scenario/start", s.handleScenarioStart)
	api.POST("/scenario/stop", s.handleScenarioStop)
	api.GET("/scenario/result", s.handleScenarioResult)

	// Prometheus
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// WebSocket
	router.GET("/ws", gin.WrapH(websocket.Handler(s.handleWebSocket)))

	return router
}

// Handler はHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.router
}

// Bus はイベントバスを返す
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// Start はサーバーを開始する
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// バックグラウンドでイベント配信
	go s.broadcastLoop(ctx)

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		s.stopScenario()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running      bool   `json:"running"`
	ScenarioName string `json:"scenario_name,omitempty"`
	Round        int    `json:"round"`
	Rounds       int    `json:"rounds"`
	NodeCount    int    `json:"node_count"`
	LiveNodes    int    `json:"live_nodes"`
	FailedNodes  int    `json:"failed_nodes"`

	// クラッシュ・復旧が無効なシナリオでは nil
	Chaos    *chaos.Stats    `json:"chaos,omitempty"`
	Recovery *recovery.Stats `json:"recovery,omitempty"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Running:      s.running,
		ScenarioName: s.config.Name,
		Rounds:       s.config.Rounds,
	}

	if s.engine != nil {
		resp.Round = s.engine.Round()
		if c := s.engine.Cluster(); c != nil {
			resp.NodeCount = c.Size()
			resp.LiveNodes = c.LiveCount()
			resp.FailedNodes = c.FailedCount()
		}
		resp.Chaos = s.engine.ChaosStats()
		resp.Recovery = s.engine.RecoveryStats()
	}
	return resp
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status())
}

// NodeInfo はノード情報
type NodeInfo struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Received    uint64 `json:"received"`
	Duplicates  uint64 `json:"duplicates"`
	Crashes     int    `json:"crashes"`
	Recoveries  int    `json:"recoveries"`
	FailedSince int    `json:"failed_since,omitempty"`
}

func (s *Server) handleNodes(c *gin.Context) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	nodes := []NodeInfo{}
	if engine != nil && engine.Cluster() != nil {
		for _, n := range engine.Cluster().Nodes() {
			info := NodeInfo{
				ID:         n.ID(),
				Status:     n.Status().String(),
				Received:   n.Received(),
				Duplicates: n.Duplicates(),
				Crashes:    n.Crashes(),
				Recoveries: n.Recoveries(),
			}
			if info.Status == "failed" {
				info.FailedSince = n.FailedSince()
			}
			nodes = append(nodes, info)
		}
	}

	c.JSON(http.StatusOK, nodes)
}

func (s *Server) handleMetrics(c *gin.Context) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	if engine == nil || engine.Metrics() == nil {
		c.JSON(http.StatusOK, metrics.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, engine.Metrics())
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset  string  `json:"preset"`
	Rounds  int     `json:"rounds,omitempty" binding:"gte=0"`
	Nodes   int     `json:"nodes,omitempty" binding:"gte=0"`
	Workers int     `json:"workers,omitempty" binding:"gte=0"`
	Seed    *uint64 `json:"seed,omitempty"`
}

func (s *Server) handleScenarioStart(c *gin.Context) {
	var req ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	// プリセット取得
	config := scenario.QuickScenario()
	if req.Preset != "" {
		preset, ok := scenario.GetPreset(req.Preset)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown preset: " + req.Preset})
			return
		}
		config = preset
	}

	// オーバーライド
	if req.Rounds > 0 {
		config.Rounds = req.Rounds
	}
	if req.Nodes > 0 {
		config.NodeCount = req.Nodes
	}
	if req.Workers > 0 {
		config.Workers = req.Workers
	}
	if req.Seed != nil {
		config.Seed = *req.Seed
	}
	if err := config.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "scenario already running"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := scenario.New(config)
	engine.SetEventBus(s.bus)

	s.config = config
	s.engine = engine
	s.cancel = cancel
	s.running = true
	s.lastResult = nil
	s.lastErr = nil
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		defer cancel()
		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.running = false
		s.lastResult = result
		s.lastErr = err
		s.mu.Unlock()

		if err != nil {
			logger.Error("", "Scenario failed: %v", err)
		} else {
			logger.Info("", "Scenario completed: %d messages, %d crashes", result.Messages.Attempted, result.Crashes)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"status": "started", "scenario": config.Name, "seed": config.Seed})
}

// stopScenario は実行中のシナリオをキャンセルする
func (s *Server) stopScenario() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Server) handleScenarioStop(c *gin.Context) {
	if !s.stopScenario() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no scenario running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stop requested"})
}

// ResultResponse は直近の実行結果
type ResultResponse struct {
	Result *scenario.Result `json:"result"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) handleScenarioResult(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.running {
		c.JSON(http.StatusConflict, gin.H{"error": "scenario still running"})
		return
	}
	if s.lastResult == nil && s.lastErr == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scenario result"})
		return
	}

	resp := ResultResponse{Result: s.lastResult}
	if s.lastErr != nil {
		resp.Error = s.lastErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Nodes       int    `json:"nodes"`
	Rounds      int    `json:"rounds"`
}

func (s *Server) handlePresets(c *gin.Context) {
	presets := make([]PresetInfo, 0)
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Description: config.Description,
			Nodes:       config.NodeCount,
			Rounds:      config.Rounds,
		})
	}

	c.JSON(http.StatusOK, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// broadcastLoop はノードの状態変化イベントと定期的なステータスを配信する
func (s *Server) broadcastLoop(ctx context.Context) {
	ch := s.bus.Subscribe(broadcastTypes...)
	defer s.bus.Unsubscribe(ch)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": e,
			})
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}
			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}
