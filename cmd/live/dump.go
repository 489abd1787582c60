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
	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/report"
	"greenlab.dev/go-vbus/pkg/transport"
)

func NewDumpCommand() *cobra.Command {
	var format string
	timeout := DefaultReadTimeout
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every entity received on the bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx, cancel := flags.SignalContext()
			defer cancel()

			link, err := transport.Open(cfg.Source)
			if err != nil {
				return err
			}
			defer link.Close()
			reader, err := newReader(link, cfg.Source.Channel, timeout)
			if err != nil {
				return err
			}

			for ctx.Err() == nil {
				d, err := reader.ReadData()
				if err != nil {
					return err
				}
				if d == nil {
					if reader.EOF() {
						return nil
					}
					continue
				}
				if err := report.Write(cmd.OutOrStdout(), f, []report.Entry{report.NewEntry(d)}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.AddSourceFlags(cmd, cfg.Source)
	flags.AddFormatFlag(cmd, &format)
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, timeout, "Read timeout of the source")
	return cmd
}
