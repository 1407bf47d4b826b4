package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"QTalk/data/mongo"
	"QTalk/global"
	"QTalk/logger"
	mid "QTalk/middleware"
	chatapi "QTalk/module/chat"
	"QTalk/module/chat/message"
	chatservice "QTalk/module/chat/service"
	groupapi "QTalk/module/group"
	groupservice "QTalk/module/group/service"
	groupstore "QTalk/module/group/store"
	userapi "QTalk/module/user"
	userservice "QTalk/module/user/service"
	"QTalk/service/chat"
	"QTalk/service/relay"
	"QTalk/service/storage"
	"QTalk/tools/ids"
	"QTalk/tools/security"
)

func main() {
	cfg := global.Load()
	ids.SetNodeID(cfg.NodeID)

	if err := storage.InitRedis(storage.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Fatalf("redis init: %v", err)
	}
	defer storage.CloseRedis()

	if err := mongo.Init(mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB}); err != nil {
		logger.Fatalf("mongo init: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongo.Close(ctx)
	}()

	presence := storage.NewDirectory(storage.GetRedis(), cfg.PresenceTTL)
	hub := chat.NewHub(cfg.GatewayID, presence)

	if cfg.NatsURL != "" {
		rl, err := relay.Connect(cfg.NatsURL, cfg.GatewayID, hub.RelayHandlers())
		if err != nil {
			logger.Fatalf("relay connect: %v", err)
		}
		defer rl.Close()
		hub.SetRelay(rl)
		logger.Infof("relay up gateway=%s nats=%s", cfg.GatewayID, cfg.NatsURL)
	} else {
		logger.Warn("NATS_URL not set, running single-gateway")
	}

	jwtOpts := security.DefaultOptions(cfg.JWTSecret)

	accounts := userservice.NewAccounts(mongo.DB(), jwtOpts)
	groups := groupservice.NewDirectory(groupstore.NewStore(mongo.DB()), hub)
	conv := chatservice.NewConversations(message.NewStore(mongo.DB()), presence, hub, groups, accounts)

	ws := chat.NewServer(hub, groups)
	users := userapi.NewHandler(accounts)
	messages := chatapi.NewHandler(conv)
	groupAPI := groupapi.NewHandler(groups)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "gateway": cfg.GatewayID})
	})
	r.GET("/ws", ws.HandleWS)

	x := mid.NewRouter(r, jwtOpts)

	x.POST("/api/auth/signup", users.Signup, mid.RouteOpt{IsAuth: false})
	x.POST("/api/auth/login", users.Login, mid.RouteOpt{IsAuth: false})
	x.GET("/api/auth/check", users.Check, mid.RouteOpt{IsAuth: true})
	x.PUT("/api/auth/update-profile", users.UpdateProfile, mid.RouteOpt{IsAuth: true})

	x.GET("/api/messages/users", messages.ListUsers, mid.RouteOpt{IsAuth: true})
	x.GET("/api/messages/:id", messages.Conversation, mid.RouteOpt{IsAuth: true})
	x.POST("/api/messages/send/:id", messages.SendDirect, mid.RouteOpt{IsAuth: true})
	x.PUT("/api/messages/mark/:id", messages.MarkRead, mid.RouteOpt{IsAuth: true})

	x.POST("/api/groups/create", groupAPI.Create, mid.RouteOpt{IsAuth: true})
	x.POST("/api/groups/invite", groupAPI.Invite, mid.RouteOpt{IsAuth: true})
	x.POST("/api/groups/accept", groupAPI.Accept, mid.RouteOpt{IsAuth: true})
	x.POST("/api/groups/reject", groupAPI.Reject, mid.RouteOpt{IsAuth: true})
	x.GET("/api/groups/my", groupAPI.List, mid.RouteOpt{IsAuth: true})
	x.GET("/api/groups/:groupId/messages", messages.GroupMessages, mid.RouteOpt{IsAuth: true})
	x.POST("/api/groups/:groupId/send", messages.SendGroup, mid.RouteOpt{IsAuth: true})

	logger.Infof("listening on %s gateway=%s", cfg.HTTPAddr, cfg.GatewayID)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatalf("http server: %v", err)
	}
}
