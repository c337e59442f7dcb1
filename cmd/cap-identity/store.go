// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/secrets"
	"github.com/spf13/pflag"
)

type storeFlags struct {
	databaseURL string
	clientsFile string
	migrate     bool
}

var storeArgs storeFlags

func addStoreFlags(flags *pflag.FlagSet) {
	flags.StringVar(&storeArgs.databaseURL, "database-url", "",
		"PostgreSQL connection string of the client config store. Client configs are kept in memory when empty.")
	flags.StringVar(&storeArgs.clientsFile, "clients-file", "",
		"Path to a JSON array of client configs created in the store on start.")
	flags.BoolVar(&storeArgs.migrate, "migrate", true,
		"Create the client config table when it doesn't exist.")
}

// clientConfigJSON is the file and output form of a config.ClientConfig.
type clientConfigJSON struct {
	ID                 int64  `json:"id,omitempty"`
	ClientName         string `json:"client_name"`
	ClientID           string `json:"client_id,omitempty"`
	ClientIDSecretName string `json:"client_id_secret_name,omitempty"`
	ClientSecretName   string `json:"client_secret_name,omitempty"`
	Authority          string `json:"authority"`
	Scheme             string `json:"scheme"`
}

func (c clientConfigJSON) config() *config.ClientConfig {
	return &config.ClientConfig{
		ClientName:         c.ClientName,
		ClientID:           c.ClientID,
		ClientIDSecretName: secrets.Name(c.ClientIDSecretName),
		ClientSecretName:   secrets.Name(c.ClientSecretName),
		Authority:          c.Authority,
		Scheme:             c.Scheme,
	}
}

func toClientConfigJSON(c *config.ClientConfig) clientConfigJSON {
	return clientConfigJSON{
		ID:                 c.ID,
		ClientName:         c.ClientName,
		ClientID:           c.ClientID,
		ClientIDSecretName: string(c.ClientIDSecretName),
		ClientSecretName:   string(c.ClientSecretName),
		Authority:          c.Authority,
		Scheme:             c.Scheme,
	}
}

// openRepository opens the client config store selected by the store flags
// and creates the configs of the clients file in it. Configs whose name is
// already taken are left unchanged.
func openRepository(ctx context.Context) (config.Repository, func(), error) {
	var (
		repo    config.Repository
		closeFn = func() {}
	)
	if storeArgs.databaseURL == "" {
		repo = config.NewMemoryStore()
	} else {
		pg, err := config.OpenPostgresStore(ctx, storeArgs.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if storeArgs.migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, nil, err
			}
		}
		repo, closeFn = pg, func() { _ = pg.Close() }
	}

	if storeArgs.clientsFile != "" {
		f, err := os.Open(storeArgs.clientsFile)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("unable to open clients file: %w", err)
		}
		defer f.Close()
		if err := loadClients(ctx, repo, f); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return repo, closeFn, nil
}

func loadClients(ctx context.Context, repo config.Repository, r io.Reader) error {
	var clients []clientConfigJSON
	if err := json.NewDecoder(r).Decode(&clients); err != nil {
		return fmt.Errorf("unable to decode clients: %w", err)
	}
	for _, c := range clients {
		_, err := repo.LookupByName(ctx, c.ClientName)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, config.ErrNotFound):
			return fmt.Errorf("unable to look up client %q: %w", c.ClientName, err)
		}
		if _, err := repo.Create(ctx, c.config()); err != nil {
			return fmt.Errorf("unable to create client %q: %w", c.ClientName, err)
		}
	}
	return nil
}
