package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/modules/aggregate"
	"reward-polls/modules/common"
	"reward-polls/modules/db"
	"reward-polls/modules/db/rewards"
	ledgerDb "reward-polls/modules/db/rewards/ledger"
	participationDb "reward-polls/modules/db/rewards/participation"
	pollsDb "reward-polls/modules/db/rewards/polls"
	"reward-polls/modules/ledger"
	"reward-polls/modules/participation"
	"reward-polls/modules/polls"
	"reward-polls/modules/results"
	"reward-polls/modules/settlement"

	"github.com/prometheus/client_golang/prometheus"
)

type submission struct {
	Participant string           `json:"participant"`
	State       settlement.State `json:"state"`
	Error       string           `json:"error,omitempty"`
}

type summary struct {
	Poll        common.Poll        `json:"poll"`
	Submissions []submission       `json:"submissions"`
	Results     results.Statistics `json:"results"`
	VaultLeft   uint64             `json:"vaultLeft"`
}

func main() {
	log := logger.New("poll-devnet")

	args, err := ParseArgs()
	if err != nil {
		fmt.Println("Error parsing arguments:", err)
		os.Exit(1)
	}

	dbConf := db.NewDbConfig(args.dataDir)
	pollsConf := common.NewPollsConfig(args.dataDir)
	for _, conf := range []aggregate.Plugin{dbConf, pollsConf} {
		if err := conf.Init(); err != nil {
			fmt.Println("error is", err)
			os.Exit(1)
		}
	}
	if err := errors.Join(dbConf.SetDbURI(args.dbUrl), dbConf.SetDbName(args.dbName)); err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}

	mongo := db.New(dbConf)
	rewardsDb := rewards.New(mongo, dbConf)
	journal := ledgerDb.New(rewardsDb)
	pollStore := pollsDb.New(rewardsDb)
	participationStore := participationDb.New(rewardsDb)
	gw := ledger.New(journal, pollsConf)

	// the ledger replays the journal in Init, so a nuke has to happen first
	a := aggregate.New([]aggregate.Plugin{mongo, rewardsDb})
	if err := a.Init(); err != nil {
		fmt.Println("error is", errors.Join(err, a.Stop()))
		os.Exit(1)
	}
	if args.nuke {
		if err := rewardsDb.Nuke(); err != nil {
			fmt.Println("error is", errors.Join(err, a.Stop()))
			os.Exit(1)
		}
		log.Info("database emptied", "db", dbConf.Get().DbName)
	}
	rest := aggregate.New([]aggregate.Plugin{journal, pollStore, participationStore, gw})
	if err := rest.Init(); err != nil {
		fmt.Println("error is", errors.Join(err, rest.Stop(), a.Stop()))
		os.Exit(1)
	}

	out, err := seed(context.Background(), args, gw, pollStore, participationStore, pollsConf)
	stopErr := errors.Join(rest.Stop(), a.Stop())
	if err != nil {
		fmt.Println("error is", errors.Join(err, stopErr))
		os.Exit(1)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
	if stopErr != nil {
		fmt.Println("error is", stopErr)
		os.Exit(1)
	}
}

func seed(
	ctx context.Context,
	args args,
	gw *ledger.Ledger,
	pollStore pollsDb.Polls,
	participationStore participationDb.Participations,
	pollsConf common.PollsConfig,
) (summary, error) {
	creator, err := ledger.GenerateKeySigner()
	if err != nil {
		return summary{}, err
	}
	pool := args.reward * uint64(args.capacity)
	if _, err := gw.Credit(ctx, creator.Principal(), pool); err != nil {
		return summary{}, fmt.Errorf("funding creator: %w", err)
	}

	registry := polls.New(gw, pollStore, pollsConf)
	poll, err := registry.CreatePoll(ctx, polls.CreatePollRequest{
		Topic:                "Devnet poll " + time.Now().Format(time.DateTime),
		RewardPerParticipant: args.reward,
		TotalParticipants:    uint32(args.capacity),
		ActiveUntil:          time.Now().AddDate(0, 0, 7),
		Questions: []common.Question{
			{Type: common.QuestionSingle, Options: []string{"yes", "no"}},
			{Type: common.QuestionMultiple, Options: []string{"red", "green", "blue"}},
		},
	}, creator)
	if err != nil {
		return summary{}, fmt.Errorf("creating poll: %w", err)
	}

	metrics, err := settlement.NewMetrics("devnet", prometheus.NewRegistry())
	if err != nil {
		return summary{}, err
	}
	part := participation.New(participationStore)
	engine := settlement.New(gw, part, pollsConf, settlement.WithMetrics(metrics))

	out := summary{Poll: poll}
	choices := []string{"yes", "no"}
	for i := 0; i < args.participants; i++ {
		signer, err := ledger.GenerateKeySigner()
		if err != nil {
			return out, err
		}
		res, err := engine.SubmitAndClaim(ctx, settlement.SubmitRequest{
			PollId:      poll.Id,
			Participant: signer.Principal(),
			Answers: []common.Answer{
				common.SingleAnswer(choices[i%len(choices)]),
				common.MultipleAnswer("red", "blue"),
			},
		}, signer)
		sub := submission{Participant: signer.Principal(), State: res.State}
		if err != nil {
			sub.Error = err.Error()
		}
		out.Submissions = append(out.Submissions, sub)
	}

	out.Results, err = results.New(registry, part).PollResults(ctx, poll.Id)
	if err != nil {
		return out, err
	}
	out.VaultLeft, err = ledger.ReadBalance(ctx, gw, ledger.VaultAddress(poll.Id))
	return out, err
}
