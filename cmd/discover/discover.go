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

package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/discover"
	"greenlab.dev/go-vbus/pkg/store"
)

const (
	BroadcastOptionName = "broadcast"
	TimeoutOptionName   = "timeout"
	SaveOptionName      = "save"
)

func NewCommand() *cobra.Command {
	var broadcast string
	var save bool
	timeout := discover.DefaultTimeout
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find VBus-over-TCP adapters on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.SignalContext()
			defer cancel()
			d, err := discover.NewDiscoverer(ctx, broadcast)
			if err != nil {
				return err
			}
			d.Timeout = timeout
			devices, err := d.Discover()
			if err != nil {
				return err
			}
			for _, device := range devices {
				fmt.Fprint(cmd.OutOrStdout(), device.String())
			}
			if !save || len(devices) == 0 {
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
				return err
			}
			state, err := store.NewState(ctx, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer state.Close()
			for _, device := range devices {
				if err := state.PutDevice(device); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&broadcast, BroadcastOptionName, discover.DefaultBroadcastAddress, "Address the query is sent to")
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, timeout, "Time to wait for replies")
	cmd.Flags().BoolVar(&save, SaveOptionName, false, "Store the found adapters in the state database")
	cmd.AddCommand(NewListCommand())
	return cmd
}

func NewListCommand() *cobra.Command {
	offlineAfter := 24 * time.Hour
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.SignalContext()
			defer cancel()
			state, err := store.NewState(ctx, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer state.Close()
			devices, err := state.Devices()
			if err != nil {
				return err
			}
			now := time.Now().UnixMilli()
			for _, device := range devices {
				fmt.Fprint(cmd.OutOrStdout(), device.String())
				if now-device.Timestamp > offlineAfter.Milliseconds() {
					fmt.Fprintln(cmd.OutOrStdout(), "# not seen recently")
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&offlineAfter, "offline-after", offlineAfter, "Mark adapters not discovered for this long")
	return cmd
}
