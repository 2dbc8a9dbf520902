package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/vmanilo/paralimni/internal/adapter/chutes"
	"github.com/vmanilo/paralimni/internal/adapter/datura"
	"github.com/vmanilo/paralimni/internal/adapter/kafka"
	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/adapter/queue"
	"github.com/vmanilo/paralimni/internal/app"
	"github.com/vmanilo/paralimni/internal/domain"
)

type sentimentOptions struct {
	dividend dividendOptions
	actuate  bool
}

type sentimentResult struct {
	SubnetID  uint16              `json:"netuid"`
	Mean      float64             `json:"mean"`
	Scored    bool                `json:"scored"`
	Action    *domain.StakeAction `json:"action,omitempty"`
	Submitted bool                `json:"submitted"`
}

func newSentimentCmd(root *rootOptions) *cobra.Command {
	opts := &sentimentOptions{}

	cmd := &cobra.Command{
		Use:   "sentiment",
		Short: "Aggregate subnet sentiment once and show the stake action it implies",
		Long: `sentiment searches recent texts for the subnet, scores them and prints
the mean. With --actuate the implied stake action is submitted: to Kafka when
KAFKA_BROKERS is set, otherwise only logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, env, err := root.prepare(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			if err := env.cfg.ValidateSentiment(); err != nil {
				return err
			}
			query, err := opts.dividend.query(env.cfg)
			if err != nil {
				return err
			}

			res, err := runSentiment(ctx, env, query, opts.actuate)
			if err != nil {
				return err
			}
			return printResult(cmd, root.jsonOut, res, res.String())
		},
	}

	cmd.Flags().IntVar(&opts.dividend.netuid, "netuid", -1, "subnet id (default DEFAULT_NETUID)")
	cmd.Flags().StringVar(&opts.dividend.hotkey, "hotkey", "", "hotkey to stake on with --actuate (default DEFAULT_HOTKEY)")
	cmd.Flags().BoolVar(&opts.actuate, "actuate", false, "submit the implied stake action")
	return cmd
}

func runSentiment(ctx context.Context, env *cliEnv, query domain.DividendQuery, actuate bool) (*sentimentResult, error) {
	cfg := env.cfg
	clock := clockwork.NewRealClock()
	sentimentMetrics := metrics.NewSentimentMetrics(env.reg)

	searcher, err := datura.NewClient(datura.Options{
		APIKey:    cfg.DaturaAPIKey,
		BaseURL:   cfg.DaturaBaseURL,
		DaysRange: cfg.TweetDaysRange,
		Limit:     cfg.TweetLimit,
	}, clock, sentimentMetrics)
	if err != nil {
		return nil, err
	}

	scorer, err := chutes.NewScorer(chutes.Options{
		APIToken:      cfg.ChutesAPIToken,
		BaseURL:       cfg.ChutesBaseURL,
		Model:         cfg.ChutesModel,
		MaxConcurrent: cfg.ChutesMaxConcurrent,
		MaxTokens:     cfg.ChutesMaxTokens,
		Temperature:   cfg.ChutesTemperature,
		Timeout:       30 * time.Second,
	}, sentimentMetrics)
	if err != nil {
		return nil, err
	}

	mean, ok := app.NewAggregator(searcher, scorer, sentimentMetrics).Aggregate(ctx, query.SubnetID)
	res := &sentimentResult{SubnetID: query.SubnetID, Mean: mean, Scored: ok}
	if !ok {
		return res, nil
	}

	if action, found := app.StakeActionFor(query.SubnetID, query.Hotkey, mean, cfg.StakeUnitRao); found {
		res.Action = &action
	}
	if !actuate || res.Action == nil {
		return res, nil
	}

	var actuator domain.StakeActuator = queue.LogActuator{}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher := kafka.NewStakeActionPublisher(brokers, cfg.StakeActionsTopic)
		defer func() { _ = publisher.Close() }()
		actuator = publisher
	}

	runner := app.NewTradeRunner(nil, actuator, cfg.StakeUnitRao, clock, metrics.NewJobMetrics(env.reg))
	res.Submitted = runner.Actuate(ctx, query.SubnetID, query.Hotkey, mean)
	return res, nil
}

func (r *sentimentResult) String() string {
	if !r.Scored {
		return fmt.Sprintf("netuid %d: no sentiment (nothing scored)", r.SubnetID)
	}
	s := fmt.Sprintf("netuid %d: mean sentiment %.2f", r.SubnetID, r.Mean)
	if r.Action == nil {
		return s + ", neutral, no stake action"
	}
	s += fmt.Sprintf(", would %s %d rao on %s", r.Action.Direction, r.Action.AmountRao, r.Action.Hotkey)
	if r.Submitted {
		s += " (submitted)"
	}
	return s
}
