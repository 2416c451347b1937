package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"lms-test-service/internal/app"
	"lms-test-service/internal/config"
)

// NewStateCmd inspects and resets persisted test results.
func NewStateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset stored test results",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <testId>",
		Short: "Print the state of one test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStateStore(cmd.Context(), *configPath, func(ctx context.Context, states *app.TestStateStore) error {
				return printJSON(cmd.OutOrStdout(), states.Get(ctx, args[0]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every stored test state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStateStore(cmd.Context(), *configPath, func(ctx context.Context, states *app.TestStateStore) error {
				return printJSON(cmd.OutOrStdout(), states.List(ctx))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <testId>",
		Short: "Reset a test so it can be retaken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStateStore(cmd.Context(), *configPath, func(ctx context.Context, states *app.TestStateStore) error {
				states.Delete(ctx, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func withStateStore(ctx context.Context, configPath string, fn func(context.Context, *app.TestStateStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	states, err := b.stateStore(cfg, log.New(os.Stderr, "", log.LstdFlags))
	if err != nil {
		return err
	}
	return fn(ctx, states)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
