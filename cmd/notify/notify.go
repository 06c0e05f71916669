package notify

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/enrich"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/evidence"
	"github.com/vigil-cam/vigil/internal/httpclient"
	"github.com/vigil-cam/vigil/internal/notification"
)

// Command returns a cobra command that sends a test alert through the
// configured channels and reports the result of each.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		channels []string
		attach   []string
		source   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test alert through the enabled channels",
		Long: `Send a test alert through every enabled channel, or only the ones named
with --channel. Each channel is tried independently and its result printed.

Examples:
  # All enabled channels
  vigil notify

  # Only email, with a frame attached
  vigil notify --channel=email --attach=./evidence/sample.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hc := httpclient.New(nil)
			defer hc.Close()

			notifiers, err := notification.BuildNotifiers(settings, hc)
			if err != nil {
				return err
			}
			defer notification.CloseNotifiers(notifiers)

			notifiers = filterChannels(notifiers, channels)
			if len(notifiers) == 0 {
				return fmt.Errorf("no enabled alert channel matches %v", channels)
			}

			enricher := enrich.NewEnricher(enrich.Config{
				Enabled:  settings.Location.Enabled,
				Override: settings.Location.Override,
				Timeout:  settings.Location.Timeout,
			}, enrich.NewIPLocator(settings.Location.URL, hc))

			job := notification.AlertJob{
				Context: enricher.CurrentContext(cmd.Context()),
				Source:  source,
			}
			if len(attach) > 0 {
				job.Evidence = &evidence.EvidenceSet{EventID: "test", KeyFrames: attach}
			}
			alert := notification.Compose(job, settings.Main.Name)

			failed := 0
			for _, n := range notifiers {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				start := time.Now()
				err := n.Send(ctx, alert)
				cancel()
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%-6s failed after %s: %v\n", n.Name(), time.Since(start).Round(time.Millisecond), err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s sent in %s\n", n.Name(), time.Since(start).Round(time.Millisecond))
			}

			if failed > 0 {
				return errors.Newf("%d of %d channels failed", failed, len(notifiers)).
					Component("notify").
					Category(errors.CategoryChannelDelivery).
					Build()
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&channels, "channel", nil, "Channels to test: email|sms|push|mqtt (default all enabled)")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "Image files attached as key frames")
	cmd.Flags().StringVar(&source, "source", "test", "Source name shown in the alert")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout per channel")

	return cmd
}

func filterChannels(notifiers []notification.Notifier, names []string) []notification.Notifier {
	if len(names) == 0 {
		return notifiers
	}
	var out []notification.Notifier
	for _, n := range notifiers {
		if slices.Contains(names, n.Name()) {
			out = append(out, n)
		}
	}
	return out
}
