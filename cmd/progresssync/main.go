package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/yungbote/coursegate-backend/internal/clientsdk/api"
	"github.com/yungbote/coursegate-backend/internal/clientsdk/notify"
	"github.com/yungbote/coursegate-backend/internal/clientsdk/progresssync"
	"github.com/yungbote/coursegate-backend/internal/clientsdk/store"
	"github.com/yungbote/coursegate-backend/internal/platform/envutil"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

const usage = `usage: progresssync <command> [flags]

commands:
  status   <courseId>                      print the course ledger
  watch                                    keep ledgers in sync with the event stream
  mark-video   <courseId> <videoId> [-watch N]
  unmark-video <courseId> <videoId>
  mark-exam    <courseId> <examId> [-score N] [-passed]
  unmark-exam  <courseId> <examId>

environment:
  COURSEGATE_API_URL, COURSEGATE_TOKEN, COURSEGATE_TIMEOUT, PROGRESS_SWEEP_SCHEDULE`

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(api.Config{
		BaseURL: envutil.String("COURSEGATE_API_URL", "http://localhost:8080"),
		Token:   envutil.String("COURSEGATE_TOKEN", ""),
		Timeout: envutil.Duration("COURSEGATE_TIMEOUT", api.DefaultTimeout),
	})
	engine := progresssync.NewEngine(log, client, store.New(), progresssync.Config{Enrollments: client})

	if err := run(ctx, log, client, engine, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error("progresssync failed", "command", os.Args[1], "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, client *api.Client, engine *progresssync.Engine, cmd string, args []string) error {
	switch cmd {
	case "status":
		ids, err := parseIDs(args, 1)
		if err != nil {
			return err
		}
		l, err := engine.Load(ctx, ids[0])
		if err != nil {
			return err
		}
		printLedger(l)
		return nil

	case "watch":
		sub := notify.NewSubscriber(log, client, engine, notify.Config{
			SweepSchedule: envutil.String("PROGRESS_SWEEP_SCHEDULE", "@every 5m"),
			OnEvent: func(ev notify.Event) {
				log.Info("Event handled", "event", ev.Event)
			},
		})
		unsubscribe := engine.Store().Subscribe(func(st store.State) {
			for _, id := range st.CourseIDs() {
				l, _ := st.Ledger(id)
				if !l.Updating {
					log.Debug("Ledger", "course_id", id, "progress", l.ProgressPercentage, "version", l.Version)
				}
			}
		})
		defer unsubscribe()
		err := sub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case "mark-video", "unmark-video", "mark-exam", "unmark-exam":
		return mutate(ctx, engine, cmd, args)

	default:
		fmt.Fprintln(os.Stderr, usage)
		return flag.ErrHelp
	}
}

func mutate(ctx context.Context, engine *progresssync.Engine, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	watch := fs.Float64("watch", -1, "watch percentage reported with a video completion")
	score := fs.Float64("score", -1, "exam score")
	passed := fs.Bool("passed", false, "mark the exam as passed")
	ids, err := parseIDs(args, 2)
	if err != nil {
		return err
	}
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}
	courseID, itemID := ids[0], ids[1]

	var res *progresssync.MutationResult
	switch cmd {
	case "mark-video":
		res, err = engine.MarkVideoCompleted(ctx, courseID, itemID, optional(*watch))
	case "unmark-video":
		res, err = engine.UnmarkVideoCompleted(ctx, courseID, itemID)
	case "mark-exam":
		var p *bool
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "passed" {
				p = passed
			}
		})
		res, err = engine.MarkExamCompleted(ctx, courseID, itemID, optional(*score), p)
	case "unmark-exam":
		res, err = engine.UnmarkExamCompleted(ctx, courseID, itemID)
	}
	if err != nil {
		if api.IsTransient(err) {
			return fmt.Errorf("network problem, change rolled back: %w", err)
		}
		return err
	}
	printLedger(res.Ledger)
	fmt.Printf("progress %d%% -> %d%% (+%d)\n", res.PreviousPercentage, res.ProgressPercentage, res.GainedProgress)
	if res.Celebrate {
		fmt.Println("Nice work, that was a big step!")
	}
	return nil
}

func parseIDs(args []string, n int) ([]uuid.UUID, error) {
	if len(args) < n {
		return nil, fmt.Errorf("expected %d id argument(s), got %d", n, len(args))
	}
	out := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		id, err := uuid.Parse(args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = id
	}
	return out, nil
}

func optional(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

func printLedger(l store.Ledger) {
	fmt.Printf("course %s: %d%% (%d/%d items, version %d)\n",
		l.CourseID, l.ProgressPercentage, l.CompletedItems, l.TotalItems, l.Version)
	for id, done := range l.Videos {
		fmt.Printf("  video %s completed=%t\n", id, done)
	}
	for id, done := range l.Exams {
		fmt.Printf("  exam  %s completed=%t\n", id, done)
	}
}
