package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/casualchat/internal/config"
	"github.com/example/casualchat/internal/registry"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var subKeys = []string{registry.KeySlackChannel, registry.KeySlackWebhookURL, registry.KeyZoomToken}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage tenant parameters in the account registry",
		Long: "Manage tenant parameters in the account registry.\n\n" +
			"Keys: " + strings.Join(subKeys, ", ") + ".\n" +
			"The registry directory is locked while open; stop the server or run these between triggers.",
	}
	cmd.AddCommand(newAccountSetCmd())
	cmd.AddCommand(newAccountRmCmd())
	cmd.AddCommand(newAccountLsCmd())
	return cmd
}

func openRegistry() (config.Config, *registry.Store, error) {
	cfg, err := config.RegistryFromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	s, err := registry.Open(cfg.RegistryDir, cfg.RegistryKey)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, s, nil
}

func checkSubKey(k string) error {
	for _, s := range subKeys {
		if s == k {
			return nil
		}
	}
	return errors.Errorf("unknown key %q (want one of %s)", k, strings.Join(subKeys, ", "))
}

func newAccountSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set ACCOUNT KEY VALUE",
		Short: "Set one parameter for a tenant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSubKey(args[1]); err != nil {
				return err
			}
			cfg, s, err := openRegistry()
			if err != nil {
				return err
			}
			defer s.Close()

			name := registry.TenantKey(cfg.RegistryPrefix, args[0], args[1])
			if err := s.Put(cmd.Context(), name, args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set %s\n", name)
			return nil
		},
	}
}

func newAccountRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ACCOUNT [KEY]",
		Short: "Remove one parameter, or every parameter of a tenant",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := subKeys
			if len(args) == 2 {
				if err := checkSubKey(args[1]); err != nil {
					return err
				}
				keys = args[1:]
			}
			cfg, s, err := openRegistry()
			if err != nil {
				return err
			}
			defer s.Close()

			for _, k := range keys {
				name := registry.TenantKey(cfg.RegistryPrefix, args[0], k)
				if err := s.Delete(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
			}
			return nil
		},
	}
}

func newAccountLsCmd() *cobra.Command {
	var show bool

	c := &cobra.Command{
		Use:   "ls",
		Short: "List tenants and which parameters they have",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openRegistry()
			if err != nil {
				return err
			}
			defer s.Close()

			params, err := s.GetByPath(cmd.Context(), cfg.RegistryPrefix)
			if err != nil {
				return err
			}
			sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

			out := cmd.OutOrStdout()
			for _, p := range params {
				rest := strings.TrimPrefix(p.Name, cfg.RegistryPrefix)
				switch {
				case p.Err != nil:
					fmt.Fprintf(out, "%s\tERROR\t%v\n", rest, p.Err)
				case show:
					fmt.Fprintf(out, "%s\t%s\n", rest, p.Value)
				default:
					fmt.Fprintf(out, "%s\t(%d chars)\n", rest, len(p.Value))
				}
			}
			return nil
		},
	}

	c.Flags().BoolVar(&show, "show", false, "print values in clear text")
	return c
}
