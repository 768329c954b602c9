package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/claim"
	"github.com/holderrewards/dashboard/internal/config"
	"github.com/holderrewards/dashboard/internal/eligibility"
	"github.com/holderrewards/dashboard/internal/escrow"
	"github.com/holderrewards/dashboard/internal/fetcher"
	"github.com/holderrewards/dashboard/internal/http_api"
	"github.com/holderrewards/dashboard/internal/metadata"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/internal/notificator"
	"github.com/holderrewards/dashboard/internal/repository"
	"github.com/holderrewards/dashboard/internal/rewards"
	"github.com/holderrewards/dashboard/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "dashboard",
		Usage: "Backend of the NFT holder rewards dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.BoolFlag{Name: "in-memory", Usage: "Use the in-memory store instead of postgres"},
			&cli.IntFlag{Name: "api-port", Usage: "HTTP API port"},
			&cli.StringFlag{Name: "node-url", Aliases: []string{"n"}, Usage: "Aptos fullnode REST URL"},
			&cli.StringFlag{Name: "indexer-url", Aliases: []string{"i"}, Usage: "Aptos indexer GraphQL URL"},
			&cli.StringFlag{Name: "fetchers", Aliases: []string{"f"}, Usage: "Comma separated fetchers to run (indexer,node,sdk)"},
			&cli.StringFlag{Name: "collection-name", Usage: "Collection name filter"},
			&cli.StringFlag{Name: "claim-function", Usage: "Claim entry function <address>::<module>::<function>"},
			&cli.StringFlag{Name: "payout-per-token", Usage: "Default payout per eligible NFT"},
			&cli.BoolFlag{Name: "demo", Usage: "Serve demo NFTs when nothing is found"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("in-memory") {
		cfg.InMemoryStore = c.Bool("in-memory")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("node-url") {
		cfg.AptosNodeURL = c.String("node-url")
	}
	if c.IsSet("indexer-url") {
		cfg.AptosIndexerURL = c.String("indexer-url")
	}
	if c.IsSet("fetchers") {
		var names []string
		for _, name := range strings.Split(c.String("fetchers"), ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				names = append(names, name)
			}
		}
		cfg.Fetchers = names
	}
	if c.IsSet("collection-name") {
		cfg.CollectionName = c.String("collection-name")
	}
	if c.IsSet("claim-function") {
		cfg.ClaimFunction = c.String("claim-function")
	}
	if c.IsSet("payout-per-token") {
		if rate, err := decimal.NewFromString(c.String("payout-per-token")); err == nil {
			cfg.DefaultPayoutPerToken = rate
		}
	}
	if c.IsSet("demo") {
		cfg.DemoMode = c.Bool("demo")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	// Initialize database
	var db models.Repository
	if cfg.InMemoryStore {
		log.Warn("Using the in-memory store, data is lost on restart")
		db = repository.NewMemoryDB()
	} else {
		db, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
	}
	defer db.Close()

	// Initialize chain clients
	httpClient := blockchain.NewHTTPClient(blockchain.DefaultHTTPTimeout)
	node := blockchain.NewNodeClient(cfg.AptosNodeURL, httpClient, log.Named("node"))
	indexer := blockchain.NewIndexerClient(cfg.AptosIndexerURL, httpClient, log.Named("indexer"))
	client := blockchain.NewClient(node, indexer)

	fetchers := make([]fetcher.SourceFetcher, 0, len(cfg.Fetchers))
	for _, name := range cfg.Fetchers {
		switch name {
		case config.FetcherIndexer:
			fetchers = append(fetchers, fetcher.NewIndexerFetcher(indexer, log.Named("fetcher")))
		case config.FetcherNode:
			fetchers = append(fetchers, fetcher.NewNodeFetcher(node, log.Named("fetcher")))
		case config.FetcherSDK:
			fetchers = append(fetchers, fetcher.NewSDKFetcher(client, log.Named("fetcher")))
		}
	}
	filter := fetcher.CollectionFilter{
		Name:    cfg.CollectionName,
		ID:      cfg.CollectionID,
		Creator: cfg.CollectionCreator,
	}
	orchestrator := fetcher.NewOrchestrator(fetchers, filter, cfg.FetchTimeout, cfg.DemoMode, log.Named("orchestrator"))

	resolver := metadata.NewResolver(metadata.Options{
		BaseURL:              cfg.MetadataBaseURL,
		IPFSGateway:          cfg.IPFSGateway,
		PlaceholderImageBase: cfg.PlaceholderImageBase,
		Retries:              cfg.MetadataRetries,
	}, httpClient, log.Named("metadata"))
	reconciler := eligibility.NewReconciler(resolver, db, log.Named("eligibility"))

	submitter := claim.NewSubmitter(db, claim.Options{
		Function:              cfg.ClaimFunction,
		CoinType:              cfg.ClaimCoinType,
		DefaultTokenName:      cfg.DefaultTokenName,
		DefaultPayoutPerToken: cfg.DefaultPayoutPerToken,
		LockDuration:          cfg.LockDuration,
	}, log.Named("claim"))

	// Initialize notificator
	var alerts notificator.AlertSender
	if cfg.TelegramBotToken != "" {
		telegram, err := notificator.NewTelegramNotificator(log.Named("telegram"), cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			return err
		}
		defer telegram.Stop()
		alerts = telegram
	}
	var emails notificator.EmailSender
	if cfg.SMTPHost != "" {
		emails = notificator.NewEmailNotificator(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}
	notif := notificator.NewNotificator(log.Named("notificator"), alerts, emails)

	var escrowMonitor rewards.EscrowMonitor
	if cfg.EscrowAddress != "" {
		monitor := escrow.NewMonitor(node, notif, escrow.Options{
			Address:      cfg.EscrowAddress,
			CoinType:     cfg.ClaimCoinType,
			PollInterval: cfg.EscrowPollInterval,
			MinBalance:   cfg.EscrowMinBalance,
		}, log.Named("escrow"))
		monitor.Start()
		defer monitor.Stop()
		escrowMonitor = monitor
	}

	// Create Rewards instance
	app, err := rewards.NewRewards(db, orchestrator, reconciler, submitter, escrowMonitor, notif, log, cfg)
	if err != nil {
		return err
	}

	apiServer := http_api.NewHTTPServer(app, node, cfg.APIPort, log.Named("http"))
	go apiServer.Start()

	log.Info("Dashboard backend started",
		"fetchers", cfg.Fetchers,
		"collection", filter.Name,
		"demo", cfg.DemoMode,
		"escrow", cfg.EscrowAddress != "")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("Received shutdown signal", "signal", sig.String())

	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down HTTP server", "error", err)
	}
	return nil
}
