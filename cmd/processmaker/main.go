package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aTiKhan/processmaker-1/internal/config"
	"github.com/aTiKhan/processmaker-1/internal/rest"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/notifier"
	"github.com/aTiKhan/processmaker-1/pkg/storage/inmemory"
)

func main() {
	conf := config.InitConfig()
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "processmaker",
		Level:      hclog.LevelFromString(conf.Log.Level),
		JSONFormat: true,
	})

	store := inmemory.NewStorage()

	commentKeys, err := snowflake.NewNode(1)
	if err != nil {
		logger.Error("failed to initialize key generator", "err", err)
		os.Exit(1)
	}
	notifiers := notifier.NewMulti(
		notifier.NewLogNotifier(logger),
		notifier.NewMetricsNotifier(prometheus.DefaultRegisterer),
		notifier.NewCommentRecorder(store, func() int64 { return commentKeys.Generate().Int64() }),
	)

	options := []bpmn.EngineOption{
		bpmn.WithStorage(store),
		bpmn.WithNotifier(notifiers),
		bpmn.WithLogger(logger),
		bpmn.WithScriptWorkers(conf.Engine.ScriptWorkers),
		bpmn.WithScriptTimeout(time.Duration(conf.Engine.ScriptTimeoutSeconds) * time.Second),
	}
	if conf.Name != "" {
		options = append(options, bpmn.WithName(conf.Name))
	}
	engine, err := bpmn.NewEngine(options...)
	if err != nil {
		logger.Error("failed to start engine", "err", err)
		os.Exit(1)
	}

	if conf.Engine.DefinitionDir != "" {
		deployDefinitions(logger, engine, conf.Engine.DefinitionDir)
	}

	server := rest.NewServer(engine, store, conf, logger)
	if _, err := server.Start(); err != nil {
		logger.Error("failed to start REST server", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	server.Stop(context.Background())
	engine.Stop()
}

func deployDefinitions(logger hclog.Logger, engine *bpmn.Engine, dir string) {
	files, err := filepath.Glob(filepath.Join(dir, "*.bpmn"))
	if err != nil {
		logger.Error("failed to scan definition directory", "dir", dir, "err", err)
		return
	}
	for _, file := range files {
		definition, err := engine.LoadFromFile(context.Background(), file)
		if err != nil {
			logger.Error("failed to deploy definition", "file", file, "err", err)
			continue
		}
		logger.Info("deployed process definition",
			"processId", definition.BpmnProcessId, "version", definition.Version, "file", file)
	}
}
