package main

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kokutaro/mahjong-point-manager-sub001/config"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/auth"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/game/manager"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/matchmaker"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/middleware"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/storage"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/utils"
	"github.com/kokutaro/mahjong-point-manager-sub001/internal/websocket"
)

func main() {
	config.Load()
	utils.Init()

	//-------------------------------------------------------
	// 1. Storage (redis for the pools, postgres for score tables)
	//-------------------------------------------------------
	if err := storage.InitRedis(
		config.C.Redis.Addr,
		config.C.Redis.Password,
		config.C.Redis.DB,
	); err != nil {
		utils.Error.Fatalf("Redis init failed: %v", err)
	}
	if err := storage.InitPostgres(config.C.Database.DSN); err != nil {
		utils.Error.Fatalf("Postgres init failed: %v", err)
	}
	matchStore := storage.NewPostgresStore(storage.DB)

	//-------------------------------------------------------
	// 2. Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 3. Hub (must run before anything can broadcast)
	//-------------------------------------------------------
	hub := websocket.NewHub()
	go hub.Run()

	//-------------------------------------------------------
	// 4. GameManager
	//-------------------------------------------------------
	gameMgr := manager.NewGameManager(hub, matchStore)
	gameMgr.SetBasePoints(config.C.Game.BasePoints)
	if err := gameMgr.SetUma(config.C.Game.Uma); err != nil {
		utils.Error.Fatalf("bad uma table in config: %v", err)
	}
	hub.OnIncoming = gameMgr.HandlePlayerMessage
	hub.OnPresence = gameMgr.HandlePresence

	//-------------------------------------------------------
	// 5. Matchmaker, wired to the manager on room-ready
	//-------------------------------------------------------
	repo := matchmaker.NewRedisRepo(storage.Rdb)
	svc := matchmaker.NewService(repo, config.C.Game.QueueTTL, hub)

	svc.OnRoomReady = func(room *matchmaker.Room) {
		utils.Info.Printf("Room ready: %s Players=%v", room.ID, room.Players)
		if err := gameMgr.StartRoom(context.Background(), room); err != nil {
			utils.Error.Printf("StartRoom error: %v", err)
		}
	}

	//-------------------------------------------------------
	// 6. Routes
	//-------------------------------------------------------
	authGroup := r.Group("/auth")
	{
		ah := auth.NewHandler()
		authGroup.POST("/login", ah.Login)
	}

	secret := []byte(config.C.JWT.Secret)
	authed := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		authed.GET("/ws", websocket.ServeWS(hub))

		mh := matchmaker.NewHandler(svc)
		authed.POST("/match/join", mh.Join)
		authed.POST("/match/cancel", mh.Cancel)

		gh := manager.NewHandler(gameMgr)
		authed.POST("/solo", gh.CreateSolo)
		authed.GET("/matches/:id/state", gh.GetState)
		authed.POST("/matches/:id/reach", gh.DeclareReach)
		authed.POST("/matches/:id/win", gh.Win)
		authed.POST("/matches/:id/ryukyoku", gh.Ryukyoku)
		authed.POST("/matches/:id/end", gh.ForceEnd)
		authed.GET("/score/preview", gh.PreviewScore)
	}

	//-------------------------------------------------------
	// 7. Serve
	//-------------------------------------------------------
	utils.Info.Printf("Server running on %s", config.C.Server.Port)
	if err := r.Run(config.C.Server.Port); err != nil {
		utils.Error.Fatalf("server stopped: %v", err)
	}
}
