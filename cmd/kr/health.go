package main

import (
	"context"
	"fmt"
	"time"

	"github.com/groblegark/krecipes/internal/client"
	"github.com/groblegark/krecipes/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the recipes service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		result := map[string]string{}
		status, err := recipesClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		result["http"] = status

		grpcAddr, _ := cmd.Flags().GetString("grpc")
		if grpcAddr == "" {
			grpcAddr = activeRemoteGRPCAddr()
		}
		if grpcAddr != "" {
			hc, err := client.NewGRPCHealthClient(grpcAddr)
			if err != nil {
				return err
			}
			defer hc.Close()
			st, err := hc.Check(ctx, server.HealthService)
			if err != nil {
				return err
			}
			result["grpc"] = st
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "HTTP:  %s\n", result["http"])
			if st, ok := result["grpc"]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Store: %s\n", st)
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		if st, ok := result["grpc"]; ok && st != "SERVING" {
			return fmt.Errorf("store unreachable: %s", st)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "also query the gRPC health service at this address")
}
