package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Skryldev/sql-connector/models"
)

func addCommands(root *cobra.Command, a *app) {
	root.AddCommand(
		&cobra.Command{
			Use:   "properties",
			Short: "List the properties a user has",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				props, err := a.conn.GetAllProperties(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(props)
			},
		},
		&cobra.Command{
			Use:   "exists <login>",
			Short: "Report whether a user is registered",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ok, err := a.conn.IsUserExists(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]bool{"exists": ok})
			},
		},
		createUserCmd(a),
		&cobra.Command{
			Use:   "get-user <login>",
			Short: "Print the properties of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				props, err := a.conn.GetUserProperties(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(props)
			},
		},
		updateUserCmd(a),
		&cobra.Command{
			Use:   "permissions",
			Short: "List every IT role and request right",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				perms, err := a.conn.GetAllPermissions(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(perms)
			},
		},
		&cobra.Command{
			Use:     "grant <login> <id>...",
			Short:   "Grant permissions such as role:1 or request:2",
			Example: "  connector grant jdoe role:1 request:2",
			Args:    cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.conn.AddUserPermissions(cmd.Context(), args[0], args[1:])
			},
		},
		&cobra.Command{
			Use:   "revoke <login> <id>...",
			Short: "Revoke request rights",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.conn.RemoveUserPermissions(cmd.Context(), args[0], args[1:])
			},
		},
		&cobra.Command{
			Use:   "user-permissions <login>",
			Short: "List the request rights granted to a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				names, err := a.conn.GetUserPermissions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(names)
			},
		},
	)
}

func createUserCmd(a *app) *cobra.Command {
	var (
		password string
		props    []string
	)
	cmd := &cobra.Command{
		Use:     "create-user <login>",
		Short:   "Register a user with a pre-hashed password",
		Example: "  connector create-user jdoe --password <hash> --prop firstName=John --prop isLead=true",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseProps(props)
			if err != nil {
				return err
			}
			return a.conn.CreateUser(cmd.Context(), models.UserToCreate{
				Login:        args[0],
				HashPassword: password,
				Properties:   parsed,
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password hash to store")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "property as name=value, repeatable")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func updateUserCmd(a *app) *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "update-user <login>",
		Short: "Patch properties of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseProps(props)
			if err != nil {
				return err
			}
			return a.conn.UpdateUserProperties(cmd.Context(), parsed, args[0])
		},
	}
	cmd.Flags().StringArrayVar(&props, "prop", nil, "property as name=value, repeatable")
	return cmd
}

func parseProps(raw []string) ([]models.UserProperty, error) {
	out := make([]models.UserProperty, 0, len(raw))
	for _, r := range raw {
		name, value, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("property %q must look like name=value", r)
		}
		out = append(out, models.UserProperty{Name: name, Value: value})
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
