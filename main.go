package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/roamfox/roamfox/app/repository"
	apiv1 "github.com/roamfox/roamfox/internal/api/v1"
	"github.com/roamfox/roamfox/internal/pkg/brackets"
	"github.com/roamfox/roamfox/internal/pkg/cache"
	"github.com/roamfox/roamfox/internal/pkg/catalogsync"
	"github.com/roamfox/roamfox/internal/pkg/comparison"
	"github.com/roamfox/roamfox/internal/pkg/database"
	"github.com/roamfox/roamfox/internal/pkg/env"
	"github.com/roamfox/roamfox/internal/pkg/failover"
	"github.com/roamfox/roamfox/internal/pkg/normalizer"
	"github.com/roamfox/roamfox/internal/pkg/pricing"
	"github.com/roamfox/roamfox/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()
	manager.Start()
	defer manager.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *catalogsync.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	// Provider API clients are registered here by the integration layer;
	// their wire formats live outside the catalog core.
	clients := catalogsync.NewClientRegistry()

	norm := normalizer.New(repos.Destination)
	fetcher := catalogsync.NewFetcher(clients)
	syncService := catalogsync.NewService(repos.Provider, repos.Package, norm, fetcher)
	comparisonEngine := comparison.NewEngine(repos.Package, repos.BestPrice)
	failoverSelector := failover.NewSelector(repos.Provider, repos.Package)
	bracketGenerator := brackets.NewGenerator(repos.Package, repos.Bracket)
	pricingService := pricing.NewService(repos.Provider, repos.Package)

	manager := catalogsync.InitManager(syncService, repos.Provider)

	app := fiber.New(fiber.Config{
		AppName: "RoamFox Catalog Core",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	server := apiv1.NewAPIServer(
		syncService,
		comparisonEngine,
		failoverSelector,
		bracketGenerator,
		pricingService,
	)
	router.InstallRouter(app, server)

	return app, manager
}
