// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/cap-identity/claims"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [claim]...",
	Short: "Evaluate expected claims against a userinfo payload",
	Long: `The evaluate command reads a userinfo JSON object and prints the
claims it verifies and the error codes it reports for the expected claims.`,
	Example: `  # Evaluate two claims from a file
  cap-identity evaluate --userinfo=userinfo.json id_me_verified military

  # Evaluate claims read from stdin
  curl -s -H "Authorization: Bearer $TOKEN" $USERINFO_URL | cap-identity evaluate --eligibility=military`,
	RunE: evaluateCmdRun,
}

type evaluateFlags struct {
	userinfo    string
	eligibility string
	extraClaims string
}

var evaluateArgs evaluateFlags

func init() {
	evaluateCmd.Flags().StringVar(&evaluateArgs.userinfo, "userinfo", "",
		"Path to the userinfo JSON object. Reads stdin when empty or '-'.")
	evaluateCmd.Flags().StringVar(&evaluateArgs.eligibility, "eligibility", "",
		"The eligibility claim. It's reported as eligible when verified.")
	evaluateCmd.Flags().StringVar(&evaluateArgs.extraClaims, "extra-claims", "",
		"Space delimited extra claims to evaluate.")
	rootCmd.AddCommand(evaluateCmd)
}

type evaluateOutput struct {
	Eligible *bool          `json:"eligible,omitempty"`
	Verified map[string]any `json:"verified"`
	Errors   map[string]int `json:"errors"`
}

func evaluateCmdRun(cmd *cobra.Command, args []string) error {
	names := append([]string{evaluateArgs.eligibility}, args...)
	expected := claims.NewSpec(append(names, claims.ParseSpec(evaluateArgs.extraClaims)...)...)
	if len(expected) == 0 {
		return errors.New("no claims to evaluate")
	}

	in := cmd.InOrStdin()
	if evaluateArgs.userinfo != "" && evaluateArgs.userinfo != "-" {
		f, err := os.Open(evaluateArgs.userinfo)
		if err != nil {
			return fmt.Errorf("unable to open userinfo: %w", err)
		}
		defer f.Close()
		in = f
	}
	userinfo, err := decodeUserinfo(in)
	if err != nil {
		return err
	}

	result := claims.Evaluate(userinfo, expected, claims.WithLogger(newLogger(cmd)))
	out := evaluateOutput{
		Verified: result.Verified(),
		Errors:   result.Errors(),
	}
	if evaluateArgs.eligibility != "" {
		eligible := result.Contains(evaluateArgs.eligibility)
		out.Eligible = &eligible
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func decodeUserinfo(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var userinfo map[string]any
	if err := dec.Decode(&userinfo); err != nil {
		return nil, fmt.Errorf("unable to decode userinfo: %w", err)
	}
	return userinfo, nil
}
