package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-tangra/go-tangra-license-inventory/internal/client"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
)

var daemonAddr string

var (
	filter       model.InventoryFilter
	spec         model.InventorySpec
	detected     int
	ignored      int
	componentLic int64
)

func addClientCommands(root *cobra.Command) {
	root.PersistentFlags().StringVar(&daemonAddr, "addr", "", "daemon gRPC address for client commands (default: the listen address)")

	inventoryCmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage inventories on a running daemon",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List inventories matching the filter flags",
		RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
			return c.Inventories(ctx, filter)
		}),
	}
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get the single inventory matching the filter flags",
		RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
			return c.Inventory(ctx, filter)
		}),
	}
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the inventory matching the filter flags with all its file associations",
		RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
			deleted, err := c.Delete(ctx, filter)
			if err == nil && !deleted {
				return nil, fmt.Errorf("no inventory matched")
			}
			return deleted, err
		}),
	}
	for _, cmd := range []*cobra.Command{listCmd, getCmd, deleteCmd} {
		addFilterFlags(cmd)
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Declare a component and bind it to a license",
		RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
			return c.CreateInventory(ctx, spec)
		}),
	}
	createCmd.Flags().StringVar(&spec.Name, "name", "", "component name")
	createCmd.Flags().StringVar(&spec.Version, "version", "", "component version")
	createCmd.Flags().StringVar(&spec.Purl, "purl", "", "package URL, e.g. pkg:npm/left-pad@1.3.0")
	createCmd.Flags().StringVar(&spec.URL, "url", "", "component homepage")
	createCmd.Flags().Int64Var(&spec.LicenseID, "license-id", 0, "existing license id")
	createCmd.Flags().StringVar(&spec.LicenseName, "license", "", "license name, created when absent")

	attachCmd := &cobra.Command{
		Use:   "attach <inventory-id> <file>...",
		Short: "Attach files to an inventory",
		Args:  cobra.MinimumNArgs(2),
		RunE: withClient(func(ctx context.Context, c *client.Client, args []string) (any, error) {
			return mutateFiles(ctx, args, c.AttachFile)
		}),
	}
	detachCmd := &cobra.Command{
		Use:   "detach <inventory-id> <file>...",
		Short: "Detach files from an inventory",
		Args:  cobra.MinimumNArgs(2),
		RunE: withClient(func(ctx context.Context, c *client.Client, args []string) (any, error) {
			return mutateFiles(ctx, args, c.DetachFile)
		}),
	}

	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Report identification progress for a scan",
		RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
			return c.Progress(ctx, detected, ignored)
		}),
	}
	progressCmd.Flags().IntVar(&detected, "detected", 0, "number of files detected by the scan")
	progressCmd.Flags().IntVar(&ignored, "ignored", 0, "number of files explicitly ignored")

	inventoryCmd.AddCommand(listCmd, getCmd, createCmd, attachCmd, detachCmd, deleteCmd, progressCmd)

	licenseCmd := &cobra.Command{
		Use:   "license",
		Short: "Manage licenses on a running daemon",
	}
	licenseCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List licenses",
			RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
				return c.Licenses(ctx)
			}),
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Register a license name",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *client.Client, args []string) (any, error) {
				return c.CreateLicense(ctx, args[0])
			}),
		},
	)

	componentCmd := &cobra.Command{
		Use:   "component",
		Short: "Inspect components on a running daemon",
	}
	setLicenseCmd := &cobra.Command{
		Use:   "set-license <component-id>",
		Short: "Rebind a component that has no attached files to another license",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *client.Client, args []string) (any, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return c.SetComponentLicense(ctx, id, componentLic)
		}),
	}
	setLicenseCmd.Flags().Int64Var(&componentLic, "license-id", 0, "license id to bind")
	_ = setLicenseCmd.MarkFlagRequired("license-id")

	componentCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List components",
			RunE: withClient(func(ctx context.Context, c *client.Client, _ []string) (any, error) {
				return c.Components(ctx)
			}),
		},
		&cobra.Command{
			Use:   "get <component-id>",
			Short: "Get one component",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *client.Client, args []string) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return c.Component(ctx, id)
			}),
		},
		setLicenseCmd,
	)

	fileCmd := &cobra.Command{
		Use:   "file",
		Short: "Look up file associations on a running daemon",
	}
	fileCmd.AddCommand(&cobra.Command{
		Use:   "inventories <file>",
		Short: "List the ids of the inventories a file is attached to",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *client.Client, args []string) (any, error) {
			return c.InventoriesForFile(ctx, args[0])
		}),
	})

	root.AddCommand(inventoryCmd, licenseCmd, componentCmd, fileCmd)
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int64Var(&filter.ID, "id", 0, "inventory id")
	f.Int64Var(&filter.ComponentID, "component-id", 0, "component id")
	f.Int64Var(&filter.LicenseID, "license-id", 0, "license id")
	f.StringVar(&filter.Name, "name", "", "component name")
	f.StringVar(&filter.Version, "version", "", "component version")
	f.StringVar(&filter.Purl, "purl", "", "package URL")
	f.StringVar(&filter.URL, "url", "", "component homepage")
	f.StringVar(&filter.LicenseName, "license", "", "license name")
	f.StringVar(&filter.File, "file", "", "attached file id")
}

type clientFunc func(ctx context.Context, c *client.Client, args []string) (any, error)

// withClient dials the daemon, runs fn and prints its result as JSON.
func withClient(fn clientFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		addr := daemonAddr
		if addr == "" {
			addr = cfg.Listen
			if strings.HasPrefix(addr, ":") {
				addr = "localhost" + addr
			}
		}

		c, err := client.Dial(addr, cfg.ClientSecret)
		if err != nil {
			return err
		}
		defer c.Close()

		out, err := fn(cmd.Context(), c, args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

type fileMutation func(ctx context.Context, inventoryID int64, fileID string) (bool, error)

func mutateFiles(ctx context.Context, args []string, mutate fileMutation) (map[string]bool, error) {
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	changed := make(map[string]bool, len(args)-1)
	for _, file := range args[1:] {
		ok, err := mutate(ctx, id, file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		changed[file] = ok
	}
	return changed, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
