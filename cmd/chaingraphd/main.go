// Command chaingraphd wires a flow store, a selectable execution store
// backend, and the execution engine together, and drives one demo flow
// through the Control API end-to-end. It stands in for the out-of-scope
// RPC/websocket transport (spec §1) with a minimal local driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kataras/golog"

	chainlog "github.com/chaingraph-labs/engine/log"

	"github.com/chaingraph-labs/engine/config"
	"github.com/chaingraph-labs/engine/exec"
	"github.com/chaingraph-labs/engine/flow"
	"github.com/chaingraph-labs/engine/store"
	"github.com/chaingraph-labs/engine/store/memory"
	"github.com/chaingraph-labs/engine/store/postgres"
	"github.com/chaingraph-labs/engine/store/redis"
	"github.com/chaingraph-labs/engine/store/sqlite"
)

func main() {
	backend := flag.String("store", "memory", "execution store backend: memory|sqlite|postgres|redis")
	sqlitePath := flag.String("sqlite-path", "chaingraph.db", "sqlite database file (when -store=sqlite)")
	postgresDSN := flag.String("postgres-dsn", "", "postgres connection string (when -store=postgres)")
	redisAddr := flag.String("redis-addr", "127.0.0.1:6379", "redis address (when -store=redis)")
	debug := flag.Bool("debug", false, "enable debug logging")
	logBackend := flag.String("log-backend", "default", "logger backend: default|golog")
	flag.Parse()

	cfg := config.Load()
	level := chainlog.LevelInfo
	if *debug {
		level = chainlog.LevelDebug
	}
	var logger chainlog.Logger
	switch *logBackend {
	case "golog":
		gl := chainlog.NewGologLogger(golog.New())
		gl.SetLevel(level)
		logger = gl
	default:
		logger = chainlog.NewDefaultLogger(level)
	}

	execStore, err := openStore(*backend, *sqlitePath, *postgresDSN, *redisAddr)
	if err != nil {
		logger.Error("open store: %v", err)
		os.Exit(1)
	}

	flowStore := flow.NewMemoryStore()
	flowStore.Put(buildDemoFlow("demo-flow"))

	engine := exec.NewEngine(exec.EngineConfig{
		FlowStore:            flowStore,
		ExecutionStore:       execStore,
		Logger:               logger,
		PersistBatchSize:     cfg.PersistBatchSize,
		PersistFlushInterval: cfg.PersistFlushInterval,
	})

	ctx := context.Background()
	e, err := engine.CreateExecution(ctx, "demo-flow", exec.Options{
		MaxConcurrency: cfg.DefaultConcurrency,
		NodeTimeout:    cfg.DefaultNodeTimeout,
		FlowTimeout:    cfg.DefaultFlowTimeout,
		Debug:          *debug,
	})
	if err != nil {
		logger.Error("create execution: %v", err)
		os.Exit(1)
	}

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	events, _, err := engine.SubscribeToEvents(subCtx, e.ID, nil, 0)
	if err != nil {
		logger.Error("subscribe: %v", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			fmt.Printf("[%d] %s\n", ev.Index, ev.Type)
			switch ev.Type {
			case exec.EventFlowCompleted, exec.EventFlowFailed, exec.EventFlowCancelled:
				return
			}
		}
	}()

	if err := e.Start(); err != nil {
		logger.Error("start: %v", err)
		os.Exit(1)
	}

	select {
	case <-done:
	case <-time.After(cfg.DefaultFlowTimeout + 5*time.Second):
		logger.Warn("timed out waiting for demo flow to finish")
	}

	st := e.GetState()
	fmt.Printf("final status: %s\n", st.Status)
}

func openStore(backend, sqlitePath, postgresDSN, redisAddr string) (store.Store, error) {
	switch backend {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(sqlite.Options{Path: sqlitePath})
	case "postgres":
		return postgres.New(context.Background(), postgres.Options{ConnString: postgresDSN})
	case "redis":
		return redis.New(redis.Options{Addr: redisAddr}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
