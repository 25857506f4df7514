package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

func statusSubcommand(use, short, path string) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short, RunE: fetchAndPrint(path)}
	cmd.Flags().String("addr", "http://localhost:8080", "base URL of a running node's status API")
	return cmd
}

func neighborsCmd() *cobra.Command {
	return statusSubcommand("neighbors", "list a running node's live neighbors", "/neighbors")
}

func bufferedCmd() *cobra.Command {
	return statusSubcommand("buffered", "list a running node's buffered transactions", "/buffered")
}

func committeeCmd() *cobra.Command {
	return statusSubcommand("committee", "list the committee a running node currently sees", "/committee")
}

func statsCmd() *cobra.Command {
	return statusSubcommand("stats", "show a running node's performance counters", "/stats")
}

func fetchAndPrint(path string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = "http://localhost:8080"
		}
		resp, err := http.Get(addr + path)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var pretty any
		if err := json.Unmarshal(body, &pretty); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		}
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
}
