package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/pkg/client"
	"github.com/fastygo/classtrack/pkg/client/optimistic"
)

var watchOpts struct {
	server   string
	token    string
	taskID   string
	poll     time.Duration
	tick     time.Duration
	debounce time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the statuses of a task and toggle them from stdin",
	Long: `Polls the statuses of one task, prints removal countdowns of completed items and
reads toggles from stdin: "task" toggles the task, "sub <id>" toggles a subtask.`,
	RunE: runWatch,
}

func init() {
	flags := watchCmd.Flags()
	flags.StringVar(&watchOpts.server, "server", "http://localhost:8080", "API base URL")
	flags.StringVar(&watchOpts.token, "token", os.Getenv("CLASSTRACK_TOKEN"), "bearer token")
	flags.StringVar(&watchOpts.taskID, "task", "", "task id to follow")
	flags.DurationVar(&watchOpts.poll, "poll", 5*time.Second, "status poll interval")
	flags.DurationVar(&watchOpts.tick, "tick", time.Minute, "countdown refresh interval")
	flags.DurationVar(&watchOpts.debounce, "debounce", optimistic.DefaultDebounce, "write debounce window")
	_ = watchCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(watchCmd)
}

// snapshot holds the last statuses fetched from the server.
type snapshot struct {
	mu      sync.RWMutex
	records []domain.CompletionRecord
}

func (s *snapshot) set(records []domain.CompletionRecord) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

func (s *snapshot) get() []domain.CompletionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	api := client.New(watchOpts.server, watchOpts.token)
	snap := &snapshot{}

	ctrl := optimistic.New(api, optimistic.Options{
		Debounce: watchOpts.debounce,
		Logger:   zapLogger,
		OnChange: func(v optimistic.View) {
			fmt.Fprintf(out, "%-24s %-5t (%s)\n", v.Key, v.Effective, v.State)
		},
		OnError: func(key domain.StatusKey, err error) {
			fmt.Fprintf(out, "could not save %s: %v\n", key, err)
		},
	})
	defer ctrl.Close()

	refresh := func() {
		records, err := api.GetStatuses(ctx, watchOpts.taskID)
		if err != nil {
			zapLogger.Warn("status poll failed", zap.Error(err))
			return
		}
		snap.set(records)
		ctrl.Sync(watchOpts.taskID, records)
	}
	refresh()

	go func() {
		ticker := time.NewTicker(watchOpts.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-ctx.Done():
				return
			}
		}
	}()

	countdown := client.NewCountdown(domain.NewTTL(cfg.Completion.TTL), watchOpts.tick, time.Now)
	labels := countdown.Run(ctx, snap.get)
	go func() {
		for batch := range labels {
			for _, l := range batch {
				fmt.Fprintf(out, "%-24s %s\n", l.Key, l.Text)
			}
		}
	}()

	return readToggles(cmd.InOrStdin(), watchOpts.taskID, ctrl)
}

// readToggles applies one toggle per input line until EOF.
func readToggles(in io.Reader, taskID string, ctrl *optimistic.Controller) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var key domain.StatusKey
		switch fields[0] {
		case "task":
			key = domain.TaskKey(taskID)
		case "sub":
			if len(fields) < 2 {
				continue
			}
			key = domain.SubtaskKey(taskID, fields[1])
		default:
			continue
		}
		ctrl.Toggle(key, !ctrl.Effective(key))
	}
	return scanner.Err()
}
