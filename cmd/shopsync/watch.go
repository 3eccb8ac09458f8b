package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/app"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/client"
	"github.com/talkincode/shopsync/internal/coordinator"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/mirror"
	"github.com/talkincode/shopsync/pkg/common"
	"go.uber.org/zap"
)

const (
	reloadAttempts = 3
	reloadBackoff  = 2 * time.Second
	snapshotEvery  = 30 * time.Second
)

// session is a headless client: rest api, mirror and coordinator
type session struct {
	cfg   *config.AppConfig
	rest  *client.REST
	state *mirror.Mirror
	coord *coordinator.Coordinator
}

func openSession(cfg *config.AppConfig, view mirror.View) (*session, error) {
	clientID := common.ShortID()
	rest, err := client.NewREST(client.Options{
		ServerURL: cfg.Client.ServerURL,
		ClientID:  clientID,
		Timeout:   cfg.Client.Timeout,
		Debug:     cfg.System.Debug,
	})
	if err != nil {
		return nil, err
	}
	state := mirror.New(mirror.Options{Client: clientID, View: view})
	coord, err := coordinator.New(state, rest, coordinator.Options{
		Workers:    cfg.Client.Workers,
		Timeout:    cfg.Client.Timeout,
		MaxRetries: cfg.Client.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, rest: rest, state: state, coord: coord}, nil
}

func (s *session) load(ctx context.Context) mirror.LoadReport {
	report := s.state.LoadWithRetry(ctx, s.rest, reloadAttempts, reloadBackoff)
	for kind, err := range report.Failed {
		zap.L().Warn("watch: collection unavailable", zap.String("kind", string(kind)), zap.Error(err))
	}
	return report
}

func newWatchCommand(opts *RootOptions) *cobra.Command {
	var page string
	cmd := &cobra.Command{
		Use:          "watch",
		Short:        "Mirror the store and print every change",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := mirror.Pages[page]; !ok {
				return errors.Errorf("unknown page %q", page)
			}
			cfg, err := config.Load(opts.Config)
			if err != nil {
				return err
			}
			app.InitLogger(cfg.Logger)
			ctx, cancel := signalContext()
			defer cancel()
			return runWatch(ctx, cfg, page, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&page, "page", "admin", "page whose collections are printed on change")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.AppConfig, page string, out io.Writer) error {
	var s *session
	view := mirror.NewRouteView(page, func(page string, kind domain.EntityKind) {
		counts := s.state.Counts()
		fmt.Fprintf(out, "[%s] %s changed: %d products, %d tracking, %d orders\n",
			page, kind, counts[domain.KindProduct], counts[domain.KindTracking], counts[domain.KindOrder])
	})
	s, err := openSession(cfg, view)
	if err != nil {
		return err
	}
	defer s.coord.Close()

	if h, err := s.rest.Health(ctx); err != nil {
		zap.L().Warn("watch: server health check failed", zap.Error(err))
	} else {
		zap.L().Info("watch: server reachable", zap.Any("status", h["status"]), zap.Any("clients", h["clients"]))
	}

	var backup *mirror.SnapshotStore
	if cfg.Client.BackupFile != "" {
		if backup, err = mirror.OpenSnapshot(cfg.Client.BackupFile); err != nil {
			return err
		}
		defer backup.Close()
		if n, err := backup.Restore(s.state); err != nil {
			zap.L().Warn("watch: restore backup failed", zap.Error(err))
		} else {
			zap.L().Info("watch: restored backup", zap.Int("items", n))
		}
		defer func() {
			if err := backup.Save(s.state); err != nil {
				zap.L().Error("watch: save backup failed", zap.Error(err))
			}
		}()
		go func() {
			ticker := time.NewTicker(snapshotEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := backup.Save(s.state); err != nil {
						zap.L().Warn("watch: save backup failed", zap.Error(err))
					}
				}
			}
		}()
	}

	if cfg.Client.RetryInterval > 0 {
		if err := s.coord.StartRetry(cfg.Client.RetryInterval); err != nil {
			return err
		}
		defer s.coord.StopRetry()
	}

	rt, err := client.NewRealtime(cfg.Client.ServerURL, s.rest.ClientID(), client.DefaultBackoff())
	if err != nil {
		return err
	}
	rt.OnEvent = func(ev broadcast.Event) {
		changed, err := s.state.Apply(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "#%d %s origin=%q changed=%t\n", ev.Seq, ev.Type, ev.Origin, changed)
	}
	rt.OnConnect = func(ctx context.Context, _ int) {
		s.load(ctx)
	}

	err = rt.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// newAdvanceCommand moves a repair job to the next status on the ladder
func newAdvanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "advance <qrId>",
		Short:        "Move a repair job to its next status",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.Config)
			if err != nil {
				return err
			}
			app.InitLogger(cfg.Logger)
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(cfg, nil)
			if err != nil {
				return err
			}
			defer s.coord.Close()

			qrID := args[0]
			current, err := s.rest.GetTracking(ctx, qrID)
			if err != nil {
				return err
			}
			s.state.Tracking.Add(*current)
			next := domain.NextStatus(current.Status)
			if next == current.Status {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already %s\n", qrID, current.Status)
				return nil
			}
			if _, err := s.coord.UpdateTracking(qrID, map[string]interface{}{
				"status":      next,
				"lastUpdated": time.Now().Format(time.RFC3339),
			}); err != nil {
				return err
			}
			s.coord.Wait()
			if failures := s.coord.Failures(); len(failures) > 0 {
				return errors.New(failures[0].Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", qrID, current.Status, next)
			return nil
		},
	}
}
