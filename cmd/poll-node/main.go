package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reward-polls/lib/logger"
	"reward-polls/modules/aggregate"
	"reward-polls/modules/api"
	"reward-polls/modules/common"
	"reward-polls/modules/db"
	"reward-polls/modules/db/rewards"
	ledgerDb "reward-polls/modules/db/rewards/ledger"
	participationDb "reward-polls/modules/db/rewards/participation"
	pollsDb "reward-polls/modules/db/rewards/polls"
	"reward-polls/modules/ledger"
	"reward-polls/modules/participation"
	"reward-polls/modules/polls"
	"reward-polls/modules/pollsync"
	"reward-polls/modules/results"
	"reward-polls/modules/visibility"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	log := logger.New("poll-node")

	args, err := ParseArgs()
	if err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}

	dbConf := db.NewDbConfig(args.dataDir)
	pollsConf := common.NewPollsConfig(args.dataDir)
	apiConf := api.NewApiConfig(args.dataDir)
	syncConf := pollsync.NewSyncConfig(args.dataDir)

	// config files are read here so the env overrides below win
	for _, conf := range []aggregate.Plugin{dbConf, pollsConf, apiConf, syncConf} {
		if err := conf.Init(); err != nil {
			fmt.Println("error is", err)
			os.Exit(1)
		}
	}
	if err := dbConf.SetDbURI(os.Getenv("MONGO_URL")); err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}
	if args.dbSuffix != "" {
		if err := dbConf.SetDbName(dbConf.Get().DbName + "-" + args.dbSuffix); err != nil {
			fmt.Println("error is", err)
			os.Exit(1)
		}
	}

	mongo := db.New(dbConf)
	rewardsDb := rewards.New(mongo, dbConf)
	journal := ledgerDb.New(rewardsDb)
	pollStore := pollsDb.New(rewardsDb)
	participationStore := participationDb.New(rewardsDb)

	gw := ledger.New(journal, pollsConf)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	participationLedger := participation.New(participationStore)
	pollRegistry := polls.New(gw, pollStore, pollsConf)
	filter := visibility.New(pollStore, gw, pollsConf)
	aggregator := results.New(pollRegistry, participationLedger)

	plugins := []aggregate.Plugin{
		mongo,
		rewardsDb,
		journal,
		pollStore,
		participationStore,
		gw,
	}

	if len(args.funds) > 0 {
		a := aggregate.New(plugins)
		if err := a.Init(); err != nil {
			fmt.Println("error is", errJoin(err, a.Stop()))
			os.Exit(1)
		}
		for _, f := range args.funds {
			conf, err := gw.Credit(context.Background(), f.owner, f.amount)
			if err != nil {
				fmt.Println("error is", errJoin(err, a.Stop()))
				os.Exit(1)
			}
			log.Info("credited", "owner", f.owner, "amount", f.amount, "tx", conf.TxId)
		}
		if err := a.Stop(); err != nil {
			fmt.Println("error is", err)
			os.Exit(1)
		}
		return
	}

	plugins = append(plugins,
		pollsync.New(syncConf, pollStore, participationLedger, gw),
		api.New(apiConf, api.Services{
			Visible:       filter,
			Polls:         pollRegistry,
			Results:       aggregator,
			Participation: participationLedger,
			Metrics:       registry,
		}),
	)

	a := aggregate.New(plugins)
	if err := a.Init(); err != nil {
		fmt.Println("error is", errJoin(err, a.Stop()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		_, err := a.Start().Await(ctx)
		done <- err
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-done:
		if err != nil {
			log.Error("plugin failed", "err", err)
		}
	}

	if err := a.Stop(); err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}
}
