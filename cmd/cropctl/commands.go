package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cropadvisor/cropadvisor/internal/advisor"
	"github.com/cropadvisor/cropadvisor/internal/app"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
)

// ErrCommandFailed is returned when the advisor reports an unsuccessful result.
var ErrCommandFailed = errors.New("command failed")

// buildFunc opens the advisor for one command.
type buildFunc func(ctx context.Context, logger zerolog.Logger) (*app.App, error)

type cli struct {
	build   buildFunc
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

// newRootCmd builds the command tree. A nil build reads the wiring from the environment.
func newRootCmd(build buildFunc, out, errOut io.Writer) *cobra.Command {
	if build == nil {
		build = func(ctx context.Context, logger zerolog.Logger) (*app.App, error) {
			return app.Build(ctx, app.ConfigFromEnv(), app.Options{Logger: logger})
		}
	}
	c := &cli{build: build, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "cropctl",
		Short:         "Offline crop recommendations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		c.downloadCmd(),
		c.recommendCmd(),
		c.syncCmd(),
		c.statusCmd(),
		c.recordsCmd(),
		c.clearCmd(),
	)
	return root
}

func (c *cli) downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the crop catalog and model manifest for offline use",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App) error {
			res := a.Service.DownloadOfflineData(ctx)
			return c.emit(res, res.Success, res.Error)
		}),
	}
}

func (c *cli) recommendCmd() *cobra.Command {
	var (
		req  advisor.RecommendationRequest
		soil map[string]string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend crops for a location from cached data",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App) error {
			data, err := parseSoil(soil)
			if err != nil {
				return err
			}
			req.SoilData = data
			res := a.Service.GetOfflineRecommendation(ctx, req)
			return c.emit(res, res.Success, res.Error)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&req.Location.Name, "name", "", "location name")
	f.Float64Var(&req.Location.Lat, "lat", 0, "latitude")
	f.Float64Var(&req.Location.Lon, "lon", 0, "longitude")
	f.Float64Var(&req.FarmSize, "farm-size", 1, "farm size in hectares")
	f.StringVar(&req.IrrigationType, "irrigation", "", "irrigation type (drip, sprinkler, flood, rainfed)")
	f.StringVar(&req.Language, "lang", recommendation.LanguageEnglish, "message language")
	f.StringToStringVar(&soil, "soil", nil, "measured soil values, e.g. ph=6.5,nitrogen=40")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync cached recommendations",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App) error {
			res := a.Service.SyncCachedRecommendations(ctx)
			return c.emit(res, res.Success, res.Error)
		}),
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show offline cache status",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App) error {
			return c.emit(a.Service.GetCacheStatus(ctx), true, "")
		}),
	}
}

func (c *cli) recordsCmd() *cobra.Command {
	var unsyncedOnly bool
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List cached recommendations, oldest first",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App) error {
			records, err := a.Service.CachedRecommendations(ctx)
			if err != nil {
				return err
			}
			out := make([]recommendation.Record, 0, len(records))
			for _, r := range records {
				if unsyncedOnly && r.Synced {
					continue
				}
				out = append(out, r)
			}
			return c.emit(out, true, "")
		}),
	}
	cmd.Flags().BoolVar(&unsyncedOnly, "unsynced", false, "only list records not yet synced")
	return cmd
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached offline entry",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Service.ClearOfflineCache(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(c.out, "offline cache cleared")
			return err
		}),
	}
}

// withApp opens the advisor for one command and closes it however the command ends.
func (c *cli) withApp(fn func(ctx context.Context, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		level := zerolog.WarnLevel
		if c.verbose {
			level = zerolog.DebugLevel
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: c.errOut}).Level(level).With().Timestamp().Logger()

		a, err := c.build(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.Close())
		}()
		return fn(cmd.Context(), a)
	}
}

// emit writes v as indented JSON and turns an unsuccessful result into an error.
func (c *cli) emit(v any, ok bool, msg string) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandFailed, msg)
	}
	return nil
}

func parseSoil(raw map[string]string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("soil value %s=%q is not a number", k, v)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}
