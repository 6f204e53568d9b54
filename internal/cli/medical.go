package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/healthstore/internal/medical"
	"github.com/roach88/healthstore/internal/store"
)

// NewDataSourceCommand creates the datasource command group.
func NewDataSourceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasource",
		Aliases: []string{"ds"},
		Short:   "Manage medical data sources",
	}
	cmd.AddCommand(newDataSourceCreateCommand(rootOpts))
	cmd.AddCommand(newDataSourceListCommand(rootOpts))
	cmd.AddCommand(newDataSourceDeleteCommand(rootOpts))
	return cmd
}

func newDataSourceCreateCommand(rootOpts *RootOptions) *cobra.Command {
	req := store.CreateDataSourceRequest{}
	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create a data source owned by the calling app",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				ds, err := e.store.CreateDataSource(ctx(cmd), caller, req)
				if err != nil {
					return e.out.StoreError("create data source failed", err)
				}
				return e.out.Success(ds)
			})
		},
	}
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "display name, unique per app (required)")
	cmd.Flags().StringVar(&req.BaseURI, "base-uri", "", "FHIR base URI (required)")
	cmd.Flags().StringVar(&req.FHIRVersion, "fhir-version", "", "FHIR version of the source's resources")
	return cmd
}

func newDataSourceListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list [id]...",
		Short:         "List the data sources visible to the calling app",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				ids, err := parseUUIDs(args)
				if err != nil {
					return err
				}
				sources, err := e.store.GetDataSources(ctx(cmd), caller, ids)
				if err != nil {
					return e.out.StoreError("list data sources failed", err)
				}
				return e.out.Success(sources)
			})
		},
	}
}

func newDataSourceDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a data source and all of its resources",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				id, err := uuid.Parse(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid uuid "+args[0], err)
				}
				if err := e.store.DeleteDataSource(ctx(cmd), caller, id); err != nil {
					return e.out.StoreError("delete data source failed", err)
				}
				return e.out.Success("deleted " + id.String())
			})
		},
	}
}

// NewResourceCommand creates the resource command group.
func NewResourceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Manage medical resources",
	}
	cmd.AddCommand(newResourceUpsertCommand(rootOpts))
	cmd.AddCommand(newResourceReadCommand(rootOpts))
	cmd.AddCommand(newResourceGetCommand(rootOpts))
	cmd.AddCommand(newResourceDeleteCommand(rootOpts))
	return cmd
}

func newResourceUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	var dataSource, version string
	cmd := &cobra.Command{
		Use:   "upsert <resource.json>...",
		Short: "Write FHIR JSON resources into a data source",
		Long: `Write FHIR JSON resources into a data source owned by the calling app.
Writing a resource with the same type and id again replaces it.

Example:
  healthstore resource upsert --package com.example.clinic --data-source 3f2a... immunization.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				dsID, err := uuid.Parse(dataSource)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --data-source", err)
				}
				reqs := make([]store.UpsertResourceRequest, 0, len(args))
				for _, path := range args {
					payload, err := os.ReadFile(path)
					if err != nil {
						return WrapExitError(ExitCommandError, "failed to read resource", err)
					}
					reqs = append(reqs, store.UpsertResourceRequest{DataSourceID: dsID, FHIRVersion: version, Payload: string(payload)})
				}
				out, err := e.store.UpsertResources(ctx(cmd), caller, reqs)
				if err != nil {
					return e.out.StoreError("upsert resources failed", err)
				}
				return e.out.Success(out)
			})
		},
	}
	cmd.Flags().StringVar(&dataSource, "data-source", "", "data source id (required)")
	cmd.Flags().StringVar(&version, "fhir-version", "", "FHIR version (defaults to the data source's)")
	_ = cmd.MarkFlagRequired("data-source")
	return cmd
}

func newResourceReadCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		classification string
		dataSources    []string
		pageSize       int
		pageToken      string
	)
	cmd := &cobra.Command{
		Use:           "read",
		Short:         "List resources of one classification",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				c, err := medical.Parse(classification)
				if err != nil {
					return e.out.StoreError("read resources failed", err)
				}
				ids, err := parseUUIDs(dataSources)
				if err != nil {
					return err
				}
				res, err := e.store.ReadResources(ctx(cmd), caller, store.ReadResourcesRequest{
					Classification: c,
					DataSourceIDs:  ids,
					PageSize:       pageSize,
					PageToken:      pageToken,
				})
				if err != nil {
					return e.out.StoreError("read resources failed", err)
				}
				return e.out.Success(res)
			})
		},
	}
	cmd.Flags().StringVar(&classification, "classification", "", "e.g. VACCINES, CONDITIONS (required)")
	cmd.Flags().StringSliceVar(&dataSources, "data-source", nil, "only these data sources")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "resources per page (0 = store default)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "token from a previous page")
	_ = cmd.MarkFlagRequired("classification")
	return cmd
}

func newResourceGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>...",
		Short:         "Read resources by id",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				ids, err := parseUUIDs(args)
				if err != nil {
					return err
				}
				out, err := e.store.ReadResourcesByIDs(ctx(cmd), caller, ids)
				if err != nil {
					return e.out.StoreError("read resources failed", err)
				}
				return e.out.Success(out)
			})
		},
	}
}

func newResourceDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>...",
		Short:         "Delete resources owned by the calling app",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(e *env) error {
				caller, err := e.caller()
				if err != nil {
					return err
				}
				ids, err := parseUUIDs(args)
				if err != nil {
					return err
				}
				if err := e.store.DeleteResources(ctx(cmd), caller, ids); err != nil {
					return e.out.StoreError("delete resources failed", err)
				}
				return e.out.Success(map[string]int{"deleted": len(ids)})
			})
		},
	}
}
