package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yosssi/gohtml"

	ui "github.com/atdiar/viewregistry"
	"github.com/atdiar/viewregistry/internal/scenario"
	"github.com/atdiar/viewregistry/internal/watch"
)

var watching, showDocument bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Replay a scenario and print its message trace",
	Long: `Run replays the steps of a scenario file and prints one line per message
published on the event channel, followed by the final state of every registry.
With --watch, the scenario is replayed each time it or its document changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().BoolVarP(&watching, "watch", "w", false, "replay the scenario when it changes")
	runCmd.Flags().String("prefix", "", "only trace the topics starting with prefix")
	runCmd.Flags().Bool("complex", false, "enable complex event compression")
	runCmd.Flags().BoolVarP(&showDocument, "document", "d", false, "print the final document")

	_ = viper.BindPFlag("trace.prefix", runCmd.Flags().Lookup("prefix"))
	_ = viper.BindPFlag("complex_compression", runCmd.Flags().Lookup("complex"))

	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()
	logger := log.New(cmd.ErrOrStderr(), "zvr: ", 0)
	ui.DebugMode = viper.GetBool("verbose")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := replay(ctx, path, out, logger)
	if !watching {
		return err
	}
	if err != nil {
		logger.Print(err)
	}

	files := []string{path}
	if s != nil && s.DocumentPath() != "" {
		files = append(files, s.DocumentPath())
	}
	changed := make(chan struct{}, 1)
	w, err := watch.Files(files, viper.GetDuration("watch.debounce"), func(fsnotify.Event) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			fmt.Fprintf(out, "--- %s changed\n", path)
			if _, err := replay(ctx, path, out, logger); err != nil {
				logger.Print(err)
			}
		}
	}
}

// replay loads and runs the scenario at path once. The scenario is returned
// whenever it could be loaded, even if the run failed.
func replay(ctx context.Context, path string, out io.Writer, logger *log.Logger) (*scenario.Scenario, error) {
	s, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := scenario.Run(ctx, s, scenario.Options{
		Trace:              out,
		Prefix:             viper.GetString("trace.prefix"),
		ComplexCompression: viper.GetBool("complex_compression"),
		Logger:             logger,
	})
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}

	names := make([]string, 0, len(res.States))
	for name := range res.States {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "---")
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, res.States[name])
	}
	if viper.GetBool("verbose") {
		fmt.Fprintf(out, "%d messages\n", res.Messages)
	}
	if showDocument {
		fmt.Fprintln(out, "---")
		fmt.Fprintln(out, gohtml.Format(res.Document))
	}
	return s, nil
}
