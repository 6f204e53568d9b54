package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/record"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Open the database, creating it if needed, and upgrade its schema to the
latest version. Opening any command does the same; this reports the versions.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				from, to, err := e.store.Migrate(ctx(cmd))
				if err != nil {
					return e.out.StoreError("migrate failed", err)
				}
				return e.out.Success(map[string]int{"from": from, "schema_version": to})
			})
		},
	}
}

// NewPriorityCommand creates the priority command group.
func NewPriorityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "priority",
		Short: "Show or replace per-category app priority lists",
		Long: `Priority lists decide which app wins where interval records overlap
during aggregation. When a category has a list, only listed apps contribute.

Lists in the config file are applied every time the store is opened.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "get <category>",
		Short:         "Show the priority list of a category",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				list, err := e.store.PriorityList(ctx(cmd), record.Category(args[0]))
				if err != nil {
					return e.out.StoreError("read priority list failed", err)
				}
				return e.out.Success(list)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set <category> [package]...",
		Short:         "Replace the priority list of a category; no packages clears it",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				if err := e.store.SetPriorityList(ctx(cmd), record.Category(args[0]), args[1:]); err != nil {
					return e.out.StoreError("set priority list failed", err)
				}
				return e.out.Success(args[1:])
			})
		},
	})
	return cmd
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete records and access logs older than the retention cutoff",
		Long: `Delete every record that ended before the cutoff, whoever owns it, and
every access log entry older than the cutoff. The cutoff is --before, or
auto_delete.after_days from the config counted back from now.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				cutoff, ok := e.cfg.AutoDeleteCutoff(time.Now())
				if before != "" {
					var err error
					if cutoff, err = parseTime(before); err != nil {
						return err
					}
					ok = true
				}
				if !ok {
					return NewExitError(ExitCommandError, "no cutoff: pass --before or set auto_delete.after_days")
				}
				res, err := e.store.DeleteOlderThan(ctx(cmd), cutoff)
				if err != nil {
					return e.out.StoreError("sweep failed", err)
				}
				return e.out.Success(res)
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "cutoff (RFC 3339 or epoch millis)")
	return cmd
}

// NewAccessLogCommand creates the access-logs command.
func NewAccessLogCommand(rootOpts *RootOptions) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:           "access-logs",
		Short:         "List access log entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				var from int64
				if since != "" {
					var err error
					if from, err = parseTime(since); err != nil {
						return err
					}
				}
				logs, err := e.store.AccessLogs(ctx(cmd), from)
				if err != nil {
					return e.out.StoreError("read access logs failed", err)
				}
				return e.out.Success(logs)
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only entries at or after this time")
	return cmd
}

// NewAppsCommand creates the apps command group.
func NewAppsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List or register client applications",
		Long: `Apps are registered on their first write. Registering one up front
sets its display name.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List registered applications",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				apps, err := e.store.Apps(ctx(cmd))
				if err != nil {
					return e.out.StoreError("list apps failed", err)
				}
				return e.out.Success(apps)
			})
		},
	})

	var name string
	register := &cobra.Command{
		Use:           "register <package>",
		Short:         "Register an application, optionally naming it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				id, err := e.store.EnsureApp(ctx(cmd), args[0], name)
				if err != nil {
					return e.out.StoreError("register app failed", err)
				}
				return e.out.Success(map[string]any{"id": id, "package_name": args[0]})
			})
		},
	}
	register.Flags().StringVar(&name, "name", "", "display name")
	cmd.AddCommand(register)

	cmd.AddCommand(&cobra.Command{
		Use:           "id <package>",
		Short:         "Print the row id of a registered application",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				id, ok, err := e.store.AppIDFor(ctx(cmd), args[0])
				if err != nil {
					return e.out.StoreError("lookup app failed", err)
				}
				if !ok {
					return e.out.StoreError("lookup app failed",
						errs.NotFound(map[string]string{"package": args[0]}, "app %s is not registered", args[0]))
				}
				return e.out.Success(map[string]any{"id": id, "package_name": args[0]})
			})
		},
	})
	return cmd
}
