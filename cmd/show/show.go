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

package show

import (
	"fmt"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/command"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/report"
)

const (
	ChannelsOptionName   = "channels"
	ApiAddressOptionName = "api-address"
	ApiPortOptionName    = "api-port"
)

func NewCommand() *cobra.Command {
	var format string
	var channels bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show the data collected by a running collector",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			apiClient := command.NewApiClient(cfg)
			if channels {
				list, err := apiClient.Channels()
				if err != nil {
					return err
				}
				for _, channel := range list {
					fmt.Fprintf(cmd.OutOrStdout(), "%02X\n", channel)
				}
				return nil
			}
			if len(args) == 1 {
				entry, err := apiClient.GetData(args[0])
				if err != nil {
					return err
				}
				return report.Write(cmd.OutOrStdout(), f, []report.Entry{entry})
			}
			entries, err := apiClient.GetDataSet()
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), f, entries)
		},
	}
	flags.AddFormatFlag(cmd, &format)
	cmd.Flags().BoolVar(&channels, ChannelsOptionName, false, "List the channels instead of the data")
	cmd.Flags().StringVar(&cfg.Api.Address, ApiAddressOptionName, cfg.Api.Address, "Address of the REST API")
	cmd.Flags().IntVar(&cfg.Api.Port, ApiPortOptionName, cfg.Api.Port, "Port of the REST API")
	return cmd
}
