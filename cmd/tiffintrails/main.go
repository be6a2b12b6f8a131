package main

import (
	"log"

	"github.com/iurnickita/tiffintrails/internal/auth"
	"github.com/iurnickita/tiffintrails/internal/cache"
	"github.com/iurnickita/tiffintrails/internal/config"
	"github.com/iurnickita/tiffintrails/internal/events"
	"github.com/iurnickita/tiffintrails/internal/fixtures"
	"github.com/iurnickita/tiffintrails/internal/handler"
	"github.com/iurnickita/tiffintrails/internal/logger"
	"github.com/iurnickita/tiffintrails/internal/service"
	"github.com/iurnickita/tiffintrails/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	fx, err := fixtures.Load(cfg.Service.DataDir)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	// стартовый набор ресторанов с нулевыми баллами
	if err := store.SeedRestaurantPoints(fx.RestaurantNames()); err != nil {
		return err
	}

	cache, err := cache.NewCache(cfg.Cache, zaplog)
	if err != nil {
		return err
	}

	events, err := events.NewPublisher(cfg.Events, zaplog)
	if err != nil {
		return err
	}

	auth := auth.NewAuth(store, zaplog)
	service := service.NewService(cfg.Service, store, fx, cache, events, zaplog)

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
