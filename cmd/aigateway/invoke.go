package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"aigateway/internal/app"
	"aigateway/internal/core"
)

// backendFlags are shared by every one-shot command.
type backendFlags struct {
	provider string
	model    string
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "backend to use: local or cloud (default local)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model name override")
}

func newChatCmd() *cobra.Command {
	var flags backendFlags
	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send a chat message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := core.ParseProvider(flags.provider)
			if err != nil {
				return err
			}
			return invoke(cmd, func(ctx context.Context, gw gatewayRunner) (*core.ChatResponse, error) {
				return gw.Chat(ctx, core.ChatRequest{
					Message:   strings.Join(args, " "),
					Provider:  provider,
					ModelName: flags.model,
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newAnalyzeImageCmd() *cobra.Command {
	var flags backendFlags
	var prompt string
	cmd := &cobra.Command{
		Use:   "analyze-image FILE",
		Short: "Describe an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := imageRequest(args[0], flags)
			if err != nil {
				return err
			}
			req.CustomPrompt = prompt
			return invoke(cmd, func(ctx context.Context, gw gatewayRunner) (*core.ChatResponse, error) {
				return gw.AnalyzeImage(ctx, req)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&prompt, "prompt", "", "instruction replacing the default description prompt")
	return cmd
}

func newEstimateAgeCmd() *cobra.Command {
	var flags backendFlags
	cmd := &cobra.Command{
		Use:   "estimate-age FILE",
		Short: "Estimate the age of the person in an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := imageRequest(args[0], flags)
			if err != nil {
				return err
			}
			return invoke(cmd, func(ctx context.Context, gw gatewayRunner) (*core.ChatResponse, error) {
				return gw.EstimateAge(ctx, req)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

type gatewayRunner interface {
	Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error)
	AnalyzeImage(ctx context.Context, req core.ImageRequest) (*core.ChatResponse, error)
	EstimateAge(ctx context.Context, req core.ImageRequest) (*core.ChatResponse, error)
}

func invoke(cmd *cobra.Command, call func(context.Context, gatewayRunner) (*core.ChatResponse, error)) error {
	// stdout carries the JSON reply.
	cfg, err := loadConfig(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	resp, err := call(cmd.Context(), app.NewGateway(cfg))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

func imageRequest(path string, flags backendFlags) (core.ImageRequest, error) {
	provider, err := core.ParseProvider(flags.provider)
	if err != nil {
		return core.ImageRequest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ImageRequest{}, fmt.Errorf("read image: %w", err)
	}
	return core.ImageRequest{
		Image:     data,
		MIMEType:  detectMIME(data),
		Provider:  provider,
		ModelName: flags.model,
	}, nil
}

func detectMIME(data []byte) string {
	mt, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return mt
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
