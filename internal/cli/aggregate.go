package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/healthstore/internal/aggregate"
)

// AggregateOptions holds flags for the aggregate command.
type AggregateOptions struct {
	*RootOptions
	timeFlags
	Types   []string
	Origins []string
	Every   time.Duration
	Days    int
	Months  int
	Offset  int32
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate records over a time window",
		Long: `Compute aggregations over the records the calling app may read.

Overlapping interval data from several apps is resolved by the category's
priority list. Without a grouping the whole window is one bucket.

Example:
  healthstore aggregate --package com.example.viewer --type STEPS_COUNT_TOTAL \
    --start 2024-03-01T00:00:00Z --end 2024-03-08T00:00:00Z --every 24h
  healthstore aggregate --package com.example.viewer --type BASAL_CALORIES_TOTAL \
    --local --start 2024-03-01 --end 2024-04-01 --days 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				return runAggregate(e, cmd, opts)
			})
		},
	}

	opts.timeFlags.register(cmd)
	cmd.Flags().StringSliceVarP(&opts.Types, "type", "t", nil, "aggregation types (required)")
	cmd.Flags().StringSliceVar(&opts.Origins, "origin", nil, "only records written by these packages")
	cmd.Flags().DurationVar(&opts.Every, "every", 0, "group by a fixed duration")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "group by calendar days (local windows only)")
	cmd.Flags().IntVar(&opts.Months, "months", 0, "group by calendar months (local windows only)")
	cmd.Flags().Int32Var(&opts.Offset, "zone-offset", 0, "offset in seconds reported for values derived without records")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runAggregate(e *env, cmd *cobra.Command, opts *AggregateOptions) error {
	caller, err := e.caller()
	if err != nil {
		return err
	}
	start, end, err := opts.window()
	if err != nil {
		return err
	}
	req := aggregate.Request{
		Start:      start,
		End:        end,
		Local:      opts.Local,
		Origins:    opts.Origins,
		ZoneOffset: opts.Offset,
	}
	for _, t := range opts.Types {
		req.Types = append(req.Types, aggregate.Type(t))
	}
	// Non-positive values are passed through so the engine rejects them.
	period := opts.Days != 0 || opts.Months != 0
	switch {
	case opts.Every != 0 && period:
		return NewExitError(ExitCommandError, "--every cannot be combined with --days or --months")
	case opts.Every != 0:
		req.GroupBy = &aggregate.Grouping{Duration: opts.Every}
	case period:
		req.GroupBy = &aggregate.Grouping{Period: aggregate.Period{Months: opts.Months, Days: opts.Days}}
	}

	buckets, err := e.store.Aggregate(ctx(cmd), caller, req)
	if err != nil {
		return e.out.StoreError("aggregate failed", err)
	}
	return e.out.Success(buckets)
}
