package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/avilanova/metermux2mqtt/internal/config"
	"github.com/avilanova/metermux2mqtt/internal/measure"
	"github.com/avilanova/metermux2mqtt/pkg/meterbus"

	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port    uint
	httpLog bool
	schema  *meterbus.Schema
	poller  *meterbus.Poller
	store   *measure.Store
}

func NewServer(cfg config.Config, schema *meterbus.Schema, poller *meterbus.Poller, store *measure.Store) *http.Server {
	NewServer := &Server{
		port:    cfg.Port,
		httpLog: cfg.HttpLog,
		schema:  schema,
		poller:  poller,
		store:   store,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
