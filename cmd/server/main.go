// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/dkwon/codepair/internal/auth"
	"github.com/dkwon/codepair/internal/cache"
	"github.com/dkwon/codepair/internal/database"
	"github.com/dkwon/codepair/internal/executor"
	"github.com/dkwon/codepair/internal/handlers"
	"github.com/dkwon/codepair/internal/middleware"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	history := cache.PublishRoomEvent
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, room event history disabled: %v", err)
		history = nil
	}

	srv := handlers.NewServer(logger, database.RoomRepo{}, executor.FromEnv(), history)
	srv.LookupProblem = database.GetProblemByID
	srv.LookupUser = database.GetUserByID

	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()

	// user endpoints
	mux.Handle("POST /users", logged(http.HandlerFunc(srv.CreateUserHandler)))
	mux.Handle("POST /users/login", logged(http.HandlerFunc(srv.LoginHandler)))

	// problem catalog
	mux.Handle("GET /problems/{id}", logged(http.HandlerFunc(handlers.GetProblemHandler)))

	// room lifecycle
	mux.Handle("POST /rooms", logged(http.HandlerFunc(srv.CreateRoomHandler)))
	mux.Handle("POST /rooms/{id}/join", logged(http.HandlerFunc(srv.JoinRoomHandler)))
	mux.Handle("GET /rooms/{id}", logged(http.HandlerFunc(srv.GetRoomHandler)))
	mux.Handle("PUT /rooms/{id}/code", logged(http.HandlerFunc(srv.UpdateCodeHandler)))

	// submissions
	mux.Handle("POST /submissions", logged(http.HandlerFunc(srv.SubmitHandler)))
	mux.Handle("POST /submissions/test", logged(http.HandlerFunc(srv.RunTestsHandler)))
	mux.Handle("GET /submissions/history/{problemId}", logged(http.HandlerFunc(srv.SubmissionHistoryHandler)))

	// realtime room channel
	mux.Handle("/rooms/ws", logged(srv.RoomWSHandler()))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
