/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package live

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/publish"
	"greenlab.dev/go-vbus/pkg/srv/api"
	"greenlab.dev/go-vbus/pkg/store"
	"greenlab.dev/go-vbus/pkg/transport"
)

func NewCollectCommand() *cobra.Command {
	var serve bool
	var maxAge time.Duration
	interval := 10 * time.Second
	timeout := DefaultReadTimeout
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Aggregate live data into the state database and publish it",
		Long: `Aggregate live data into a data set keeping the latest observation of
every entity. The data set is stored in the state database and published
to NATS and Redis when they are configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.SignalContext()
			defer cancel()

			if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
				return err
			}
			state, err := store.NewState(ctx, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer state.Close()

			pub, err := publish.FromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer pub.Close()

			if serve {
				apiServer, err := api.NewApiServer(ctx, cfg, state)
				if err != nil {
					return err
				}
				go func() {
					if err := apiServer.Run(); err != nil {
						log.Error("API server stopped: %s", err)
						cancel()
					}
				}()
			}

			link, err := transport.Open(cfg.Source)
			if err != nil {
				return err
			}
			defer link.Close()
			reader, err := newReader(link, cfg.Source.Channel, timeout)
			if err != nil {
				return err
			}

			ds := dataset.New()
			flush := func() error {
				if maxAge > 0 {
					ds.RemoveDataOlderThan(time.Now().Add(-maxAge))
				}
				if ds.Len() == 0 {
					return nil
				}
				snapshot := ds.Clone()
				snapshot.Sort()
				if err := state.PutDataSet(snapshot); err != nil {
					return err
				}
				if err := pub.Publish(ctx, snapshot); err != nil {
					log.Warning("Unable to publish data set: %s", err)
				}
				return nil
			}

			lastFlush := time.Now()
			for ctx.Err() == nil && !reader.EOF() {
				d, err := reader.ReadData()
				if err != nil {
					return err
				}
				if d != nil {
					ds.AddData(d)
				}
				if time.Since(lastFlush) >= interval {
					if err := flush(); err != nil {
						return err
					}
					lastFlush = time.Now()
				}
			}
			if err := flush(); err != nil {
				return err
			}
			log.Info("Collected %d entities", ds.Len())
			if serve {
				<-ctx.Done()
			}
			return nil
		},
	}
	flags.AddSourceFlags(cmd, cfg.Source)
	cmd.Flags().BoolVar(&serve, ServeOptionName, false, "Serve the REST API while collecting")
	cmd.Flags().DurationVar(&interval, IntervalOptionName, interval, "Interval between flushes to the database and publishers")
	cmd.Flags().DurationVar(&maxAge, MaxAgeOptionName, 0, "Drop entities not seen for this long, 0 keeps them")
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, timeout, "Read timeout of the source")
	return cmd
}
