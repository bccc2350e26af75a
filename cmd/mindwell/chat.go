package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/mindwell-dev/mindwell"
	"github.com/mindwell-dev/mindwell/pkg/config"
	"github.com/mindwell-dev/mindwell/pkg/observability"
)

func newChatCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Terminal sessions have no camera, so disable sampling.
			cfg.SampleInterval = 0
			return runChat(cfg, userID)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user ID for the session")
	return cmd
}

func runChat(cfg *config.Config, userID string) error {
	observability.InitMetrics()

	orch, err := mindwell.New(cfg, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sessionID, err := orch.StartSession(ctx, userID)
	if err != nil {
		return err
	}
	defer func() {
		if _, err := orch.EndSession(ctx, sessionID); err != nil {
			log.Printf("end session: %v", err)
		}
	}()

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), ".mindwell_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println("mindwell chat. Type 'exit' or press Ctrl-D to end the session.")
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		line.AppendHistory(input)

		result, err := orch.SubmitText(ctx, sessionID, input)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("\nmindwell> %s\n\n", result.Reply)
		fmt.Printf("  [emotion: %s (%.2f)  risk: %s (%.2f)]\n\n",
			result.Fused.Label, result.Fused.Confidence, result.Risk.Level, result.Risk.Score)
	}

	rep, err := orch.EndSession(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("\nSession report: risk %s (%.2f)\n%s\n", rep.RiskLevel, rep.RiskScore, rep.Summary)
	return nil
}
