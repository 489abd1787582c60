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
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/stream"
	"greenlab.dev/go-vbus/pkg/transport"
)

func NewRecordCommand() *cobra.Command {
	var output string
	timeout := DefaultReadTimeout
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture the raw byte stream into a recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.SignalContext()
			defer cancel()

			link, err := transport.Open(cfg.Source)
			if err != nil {
				return err
			}
			defer link.Close()
			if err := link.SetReadTimeout(timeout); err != nil {
				return err
			}

			out, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
			if err != nil {
				return err
			}
			defer out.Close()
			recorder := stream.NewLiveDataRecorder(out, cfg.Source.Channel)

			var total int
			buf := make([]byte, 4096)
			for ctx.Err() == nil {
				n, err := link.Read(buf)
				if n > 0 {
					if _, err := recorder.Write(buf[:n]); err != nil {
						return err
					}
					total += n
				}
				switch {
				case err == nil, stream.IsTimeout(err):
				case errors.Is(err, io.EOF):
					log.Info("Recorded %d bytes to %s", total, output)
					return nil
				default:
					return err
				}
			}
			log.Info("Recorded %d bytes to %s", total, output)
			return nil
		},
	}
	flags.AddSourceFlags(cmd, cfg.Source)
	cmd.Flags().StringVar(&output, OutputOptionName, "", "Recording file to append to")
	cmd.MarkFlagRequired(OutputOptionName)
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, timeout, "Read timeout of the source")
	return cmd
}
