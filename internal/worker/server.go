package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"taskstream/internal/config"
	"taskstream/internal/infra/redisq"
	"taskstream/internal/tasks"
	"taskstream/internal/usecase"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	ConsumerName string
	Concurrency  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func Run(cfg Config) error {
	appCfg := config.Load()
	cli := redisq.New(appCfg.Redis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Init(ctx); err != nil {
		return err
	}

	// Run retry scheduler
	sched := redisq.NewScheduler(cli, 1*time.Second)
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("retry scheduler stopped with error")
		}
	}()

	registry := tasks.DefaultRegistry(appCfg.Tasks)
	log.Ctx(ctx).Info().Strs("tasks", registry.Names()).Msg("task registry ready")

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		consumer := usecase.Consumer{
			Q:            cli,
			Results:      cli,
			Bus:          cli,
			Registry:     registry,
			ConsumerName: fmt.Sprintf("%s-%d", cfg.ConsumerName, i),
			BaseBackoff:  cfg.BaseBackoff,
			MaxBackoff:   cfg.MaxBackoff,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Ctx(ctx).Error().Err(err).Str("consumer", consumer.ConsumerName).Msg("consumer stopped with error")
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}
