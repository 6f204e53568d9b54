package cli

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/store"
)

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upsert <records.yaml>",
		Short: "Insert or update records from a YAML file",
		Long: `Insert or update records on behalf of --package.

The file holds a YAML list; each entry has a "type" field naming the record
type plus that type's fields. Use "-" to read from stdin. All records commit
together or not at all.

Example:
  healthstore upsert --package com.example.tracker steps.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				return runUpsert(e, cmd, args[0])
			})
		},
	}
}

func runUpsert(e *env, cmd *cobra.Command, path string) error {
	caller, err := e.caller()
	if err != nil {
		return err
	}
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open records file", err)
		}
		defer f.Close()
		r = f
	}
	recs, err := LoadRecords(r)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load records", err)
	}
	e.out.VerboseLog("upserting %d record(s) as %s", len(recs), caller.PackageName)
	results, err := e.store.UpsertRecords(ctx(cmd), caller, recs)
	if err != nil {
		return e.out.StoreError("upsert failed", err)
	}
	return e.out.Success(results)
}

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	*RootOptions
	timeFlags
	IDs        []string
	Origins    []string
	PageSize   int
	PageToken  string
	Descending bool
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read <record-type>",
		Short: "Read records visible to the calling app",
		Long: `Read one page of records of a type, ordered by start time.

Example:
  healthstore read STEPS --package com.example.viewer --start 2024-03-01T00:00:00Z --end 2024-03-02T00:00:00Z
  healthstore read STEPS --package com.example.viewer --page-token <token>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				return runRead(e, cmd, opts, args[0])
			})
		},
	}

	opts.timeFlags.register(cmd)
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "record uuids to read (excludes other filters)")
	cmd.Flags().StringSliceVar(&opts.Origins, "origin", nil, "only records written by these packages")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "records per page (0 = store default)")
	cmd.Flags().StringVar(&opts.PageToken, "page-token", "", "token from a previous page")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "newest first")

	return cmd
}

func runRead(e *env, cmd *cobra.Command, opts *ReadOptions, typ string) error {
	caller, err := e.caller()
	if err != nil {
		return err
	}
	ids, err := parseUUIDs(opts.IDs)
	if err != nil {
		return err
	}
	rng, err := opts.timeRange()
	if err != nil {
		return err
	}
	res, err := e.store.ReadRecords(ctx(cmd), caller, store.ReadRecordsRequest{
		Type:       record.Type(typ),
		IDs:        ids,
		Range:      rng,
		Origins:    opts.Origins,
		PageSize:   opts.PageSize,
		PageToken:  opts.PageToken,
		Descending: opts.Descending,
	})
	if err != nil {
		return e.out.StoreError("read failed", err)
	}
	return e.out.Success(res)
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	timeFlags
	IDs []string
	All bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <record-type>...",
		Short: "Delete records owned by the calling app",
		Long: `Delete records owned by --package, either by uuid (one record type) or
by time window across one or more record types.

Example:
  healthstore delete STEPS --package com.example.tracker --id 5b0f...
  healthstore delete STEPS WEIGHT --package com.example.tracker --start 2024-01-01T00:00:00Z --end 2024-02-01T00:00:00Z
  healthstore delete STEPS --package com.example.tracker --all`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				return runDelete(e, cmd, opts, args)
			})
		},
	}

	opts.timeFlags.register(cmd)
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "record uuids to delete")
	cmd.Flags().BoolVar(&opts.All, "all", false, "delete every owned record of the types")

	return cmd
}

func runDelete(e *env, cmd *cobra.Command, opts *DeleteOptions, args []string) error {
	caller, err := e.caller()
	if err != nil {
		return err
	}
	types := make([]record.Type, len(args))
	for i, a := range args {
		types[i] = record.Type(a)
	}

	byID := len(opts.IDs) > 0
	switch {
	case byID && (opts.set() || opts.All):
		return NewExitError(ExitCommandError, "--id cannot be combined with a window or --all")
	case byID && len(types) != 1:
		return NewExitError(ExitCommandError, "--id takes exactly one record type")
	case !byID && !opts.set() && !opts.All:
		return NewExitError(ExitCommandError, "one of --id, --start/--end or --all is required")
	}

	if byID {
		ids, err := parseUUIDs(opts.IDs)
		if err != nil {
			return err
		}
		if err := e.store.DeleteRecords(ctx(cmd), caller, types[0], ids); err != nil {
			return e.out.StoreError("delete failed", err)
		}
		return e.out.Success(map[string]int{"deleted": len(ids)})
	}

	rng, err := opts.timeRange()
	if err != nil {
		return err
	}
	n, err := e.store.DeleteRecordsByFilter(ctx(cmd), caller, types, rng)
	if err != nil {
		return e.out.StoreError("delete failed", err)
	}
	return e.out.Success(map[string]int64{"deleted": n})
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid uuid "+s, err)
		}
		ids[i] = id
	}
	return ids, nil
}
