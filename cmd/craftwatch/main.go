// Command craftwatch connects to the game's SpacetimeDB instance, tracks
// passive crafting, inventory, claim, and traveler task state for one player
// in one claim, and emits consolidated update payloads as JSON lines on
// stdout. Logs go to stderr.
//
// SIGHUP re-reads the config file; when the claim id changed the engine
// drops all cached state, resets the countdown timer, and resubscribes with
// queries for the new claim.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"craftwatch/internal/config"
	"craftwatch/internal/engine"
	"craftwatch/internal/engine/cascade"
	"craftwatch/internal/engine/claims"
	"craftwatch/internal/engine/crafting"
	"craftwatch/internal/engine/inventory"
	"craftwatch/internal/engine/tasks"
	"craftwatch/internal/persistence/activitylog"
	"craftwatch/internal/protocol"
	"craftwatch/internal/refdata"
	"craftwatch/internal/transport/spacetime"
)

func main() {
	var (
		configPath = flag.String("config", "craftwatch.yaml", "config file path")
		claimFlag  = flag.Uint64("claim", 0, "claim id (overrides config)")
		playerFlag = flag.Uint64("player", 0, "player id (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[craftwatch] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *claimFlag != 0 {
		cfg.Player.ClaimID = *claimFlag
	}
	if *playerFlag != 0 {
		cfg.Player.PlayerID = *playerFlag
	}

	ref := openRefStore(cfg, logger)
	calculator := cascade.NewCalculator(ref.DependencyTrees(), logger)

	var journal *activitylog.Writer
	if cfg.Data.ActivityDir != "" {
		journal = activitylog.NewWriter(cfg.Data.ActivityDir, "activity")
		defer journal.Close()
	}

	validator, err := protocol.NewValidator(logger)
	if err != nil {
		logger.Fatalf("compile schemas: %v", err)
	}

	queue := engine.NewQueue(cfg.Engine.QueueSize, logger)

	craftCfg := crafting.Config{
		Logger:     logger,
		Queue:      queue,
		Ref:        ref,
		PlayerID:   cfg.Player.PlayerID,
		PlayerName: cfg.Player.PlayerName,
	}
	if journal != nil {
		craftCfg.Journal = journal
	}
	craft := crafting.New(craftCfg)
	inv := inventory.New(inventory.Config{Logger: logger, Queue: queue, Ref: ref, Calculator: calculator})
	clm := claims.New(claims.Config{Logger: logger, Queue: queue, ClaimID: cfg.Player.ClaimID})
	tsk := tasks.New(tasks.Config{Logger: logger, Queue: queue, PlayerID: cfg.Player.PlayerID})

	dispatcher := engine.NewDispatcher(logger, validator, craft, inv, clm, tsk)

	client := spacetime.NewClient(spacetime.Config{
		Host:   cfg.Server.Host,
		Module: cfg.Server.Module,
		Token:  cfg.Server.Token,
		Logger: logger,
	})

	ctx, cancel := signalContext()
	defer cancel()

	// Update consumer: every consolidated payload goes out as one JSON line.
	go func() {
		enc := json.NewEncoder(os.Stdout)
		for u := range queue.Updates() {
			if err := enc.Encode(u); err != nil {
				logger.Printf("emit update: %v", err)
			}
		}
	}()

	craft.Scheduler().Start()
	defer craft.Scheduler().Stop()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	claimID := cfg.Player.ClaimID
	for ctx.Err() == nil {
		listenCtx, stopListen := context.WithCancel(ctx)
		switched := make(chan uint64, 1)
		go func() {
			for {
				select {
				case <-listenCtx.Done():
					return
				case <-reload:
					next, err := config.Load(*configPath)
					if err != nil {
						logger.Printf("reload config: %v", err)
						continue
					}
					if next.Player.ClaimID == claimID {
						logger.Printf("reload: claim unchanged, ignoring")
						continue
					}
					switched <- next.Player.ClaimID
					stopListen()
					return
				}
			}
		}()

		queries := spacetime.SubscriptionQueries(cfg.Player.PlayerID, claimID)
		err := client.Listen(listenCtx, queries, dispatcher.Dispatch)
		stopListen()
		if ctx.Err() != nil {
			break
		}

		select {
		case next := <-switched:
			logger.Printf("switching claim %d -> %d", claimID, next)
			craft.Scheduler().Stop()
			dispatcher.ClearCaches()
			craft.Scheduler().Start()
			claimID = next
			clm.SetClaimID(next)
		default:
			logger.Printf("listen ended: %v", err)
		}
	}

	passed, failed := validator.Stats()
	logger.Printf("shutdown: schema checks passed=%d failed=%d, queue drops=%d", passed, failed, queue.Dropped())
}

func openRefStore(cfg config.Config, logger *log.Logger) *refdata.Store {
	if cfg.Data.ReferenceDB == "" {
		logger.Printf("no reference db configured; display names will be numeric")
		return refdata.NewStore(nil, nil, nil)
	}
	ref, err := refdata.Open(cfg.Data.ReferenceDB, logger)
	if err != nil {
		logger.Fatalf("open reference db: %v", err)
	}
	return ref
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
