package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/wadjakorntonsri/trimrr/pkg/app"
	"github.com/wadjakorntonsri/trimrr/pkg/config"
)

var (
	once    sync.Once
	router  http.Handler
	initErr error
)

// Note: On Vercel, a local sqlite file is ephemeral; point DATABASE_URL at
// Turso (libsql://) or Postgres.
func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}

	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		initErr = err
		return
	}
	router = a.Handler()
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}
