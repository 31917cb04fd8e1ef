package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/krisalay/ttl-cache/internal/observability"
	"github.com/krisalay/ttl-cache/llm"
)

func completeCmd() *cobra.Command {
	var (
		model  string
		system string
		repeat int
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send one prompt through the memoized LLM service",
		Long:  "Send a prompt through the memo cache. With --repeat N the same prompt is sent N times; only the first reaches the provider.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if repeat < 1 {
				repeat = 1
			}

			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Tracing.Enabled,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(ctx)

			stack, err := buildLLMStack(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer stack.Close()

			req := llm.Request{Model: model}
			if system != "" {
				req.Messages = append(req.Messages, llm.Message{Role: "system", Content: system})
			}
			req.Messages = append(req.Messages, llm.Message{Role: "user", Content: strings.Join(args, " ")})

			out := cmd.OutOrStdout()
			for i := 1; i <= repeat; i++ {
				start := time.Now()
				c, err := stack.Service.Complete(ctx, req)
				if err != nil {
					return fmt.Errorf("complete: %w", err)
				}
				if i == 1 {
					fmt.Fprintln(out, c.Content)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "call %d: model=%s took=%v cached=%d\n",
					i, c.Model, time.Since(start).Round(time.Microsecond), stack.Cache.Size())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model (defaults to llm.model from config)")
	cmd.Flags().StringVar(&system, "system", "", "Optional system message")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "Send the same prompt N times")
	return cmd
}
