// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cap-identity/config"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage the client configs of a PostgreSQL store",
}

var clientsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a client config",
	Example: `  # Create a public client whose id is read from the IDME_CLIENT_ID environment variable
  cap-identity clients create idme \
    --database-url=postgres://localhost/identity \
    --authority=https://api.id.me/oidc \
    --client-id-secret-name=IDME-CLIENT-ID \
    --scheme=military`,
	Args: cobra.ExactArgs(1),
	RunE: clientsCreateCmdRun,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the client configs",
	Args:  cobra.NoArgs,
	RunE:  clientsListCmdRun,
}

type clientsFlags struct {
	timeout            time.Duration
	clientID           string
	clientIDSecretName string
	clientSecretName   string
	authority          string
	scheme             string
}

var clientsArgs = clientsFlags{
	timeout: 30 * time.Second,
}

func init() {
	addStoreFlags(clientsCmd.PersistentFlags())
	clientsCmd.PersistentFlags().DurationVar(&clientsArgs.timeout, "timeout", clientsArgs.timeout,
		"The length of time to wait before giving up on the current operation.")

	clientsCreateCmd.Flags().StringVar(&clientsArgs.clientID, "client-id", "",
		"The client id at the provider.")
	clientsCreateCmd.Flags().StringVar(&clientsArgs.clientIDSecretName, "client-id-secret-name", "",
		"The name of the secret holding the client id.")
	clientsCreateCmd.Flags().StringVar(&clientsArgs.clientSecretName, "client-secret-name", "",
		"The name of the secret holding the client secret. Leave empty for public clients.")
	clientsCreateCmd.Flags().StringVar(&clientsArgs.authority, "authority", "",
		"The provider's issuer URL.")
	clientsCreateCmd.Flags().StringVar(&clientsArgs.scheme, "scheme", "",
		"The default scheme requested from the provider.")

	clientsCmd.AddCommand(clientsCreateCmd)
	clientsCmd.AddCommand(clientsListCmd)
	rootCmd.AddCommand(clientsCmd)
}

func clientsRepository(ctx context.Context) (config.Repository, func(), error) {
	if storeArgs.databaseURL == "" {
		return nil, nil, errors.New("--database-url is required")
	}
	return openRepository(ctx)
}

func clientsCreateCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), clientsArgs.timeout)
	defer cancel()

	c := clientConfigJSON{
		ClientName:         args[0],
		ClientID:           clientsArgs.clientID,
		ClientIDSecretName: clientsArgs.clientIDSecretName,
		ClientSecretName:   clientsArgs.clientSecretName,
		Authority:          clientsArgs.authority,
		Scheme:             clientsArgs.scheme,
	}.config()
	if err := c.Validate(); err != nil {
		return err
	}

	repo, closeFn, err := clientsRepository(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	created, err := repo.Create(ctx, c)
	if err != nil {
		return err
	}
	cmd.Printf("✔ client %s created with id %d\n", created.ClientName, created.ID)
	return nil
}

func clientsListCmdRun(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), clientsArgs.timeout)
	defer cancel()

	repo, closeFn, err := clientsRepository(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return printClients(ctx, cmd, repo)
}

func printClients(ctx context.Context, cmd *cobra.Command, repo config.Repository) error {
	configs, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list clients: %w", err)
	}
	out := make([]clientConfigJSON, 0, len(configs))
	for _, c := range configs {
		out = append(out, toClientConfigJSON(c))
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
