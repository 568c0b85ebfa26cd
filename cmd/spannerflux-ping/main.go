package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JianLoong/spannerflux"
	"github.com/JianLoong/spannerflux/config"
	"github.com/JianLoong/spannerflux/lazy"
)

var (
	version = "0.1.0"
	commit  = "dev"

	profilesPath string
	profileName  string
	timeout      time.Duration
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			os.Exit(1)
		}
	}()
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func realMain() error {
	var rootCmd = &cobra.Command{
		Use:     "spannerflux-ping",
		Short:   "Open a spannerflux connection and run a health check",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	var pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Open the named connection profile and run HealthCheck",
		RunE:  runPing,
	}
	pingCmd.Flags().StringVar(&profilesPath, "profiles", "profiles.yaml", "path to a connection profiles YAML file")
	pingCmd.Flags().StringVar(&profileName, "profile", "default", "name of the profile to use")
	pingCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall timeout for opening and pinging the connection")

	rootCmd.AddCommand(pingCmd)
	return rootCmd.Execute()
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ctx = withGracefulShutdown(ctx)

	profiles, err := config.LoadProfiles(profilesPath)
	if err != nil {
		return err
	}
	cfg, ok := profiles[profileName]
	if !ok {
		return fmt.Errorf("no profile named %q in %s", profileName, profilesPath)
	}
	cfg = config.ApplyEnv(cfg)

	conn, err := spannerflux.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	// A signal only cancels ctx; the connection is closed here, by this
	// deferred call, on every return path. Close is idempotent, so a
	// further Close elsewhere would be a no-op.
	defer func() {
		_, _ = lazy.Run(context.Background(), conn.Pool(), conn.Close(context.Background()))
	}()

	ok2, err := lazy.Run(ctx, conn.Pool(), conn.HealthCheck(ctx))
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !ok2 {
		return fmt.Errorf("health check reported the connection as unhealthy")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok\n")
	return nil
}

// withGracefulShutdown returns a context that is cancelled on SIGINT
// or SIGTERM.
func withGracefulShutdown(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
