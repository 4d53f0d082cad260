package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/policydiff"
	"github.com/ppiankov/npipolicy/internal/store"
	"github.com/ppiankov/npipolicy/internal/watch"
)

var watchRecord string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchRecord, "record", "", "Store each accepted version under this name")
}

var watchCmd = &cobra.Command{
	Use:   "watch <policy.yaml>",
	Short: "Validate a policy file on every save and show what changed",
	Long: "Watches a fixed policy file. Each save is validated; valid versions\n" +
		"replace the previous one and the diff is printed, invalid ones are\n" +
		"rejected and the previous version stays in effect.",
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	var st *store.Store
	if watchRecord != "" {
		s, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
		if err != nil {
			return err
		}
		defer s.Close()
		st = s
	}

	w, err := watch.New(args[0],
		watch.WithLogger(logger),
		watch.WithDebounce(time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond),
		watch.OnReload(func(r watch.Reload) {
			fmt.Print(policydiff.FormatText(r.Diff))
			if st == nil {
				return
			}
			rec, err := st.PutPolicy(watchRecord, r.Policy)
			if err != nil {
				logger.Error("failed to store policy version", zap.Error(err))
				return
			}
			fmt.Printf("stored %s version %s\n", watchRecord, rec.VersionID)
		}))
	if err != nil {
		return err
	}

	p, hash := w.Policy()
	if st != nil {
		if _, err := st.PutPolicy(watchRecord, p); err != nil {
			return err
		}
	}
	fmt.Printf("Watching %s (%s, %d activities). Ctrl-C to stop.\n", args[0], hash, len(p.Activities()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}
