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

// Package flags binds the flags shared by several commands directly
// onto the loaded config.
package flags

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/report"
)

const (
	SerialOptionName   = "serial"
	BaudRateOptionName = "baud-rate"
	AddressOptionName  = "address"
	FileOptionName     = "file"
	ChannelOptionName  = "channel"
	FormatOptionName   = "format"
)

// AddSourceFlags lets the command line override the configured byte source
func AddSourceFlags(cmd *cobra.Command, source *config.SourceConfig) {
	cmd.Flags().StringVar(&source.Serial, SerialOptionName, source.Serial, "Serial port to read live data from")
	cmd.Flags().IntVar(&source.BaudRate, BaudRateOptionName, source.BaudRate, "Serial port baud rate")
	cmd.Flags().StringVar(&source.Address, AddressOptionName, source.Address, "TCP address to read live data from. E.g. 192.168.1.10:7053")
	cmd.Flags().StringVar(&source.File, FileOptionName, source.File, "File with raw live data to replay")
	cmd.Flags().Uint8Var(&source.Channel, ChannelOptionName, source.Channel, "Channel assigned to the received data")
}

// AddFormatFlag registers the output format flag
func AddFormatFlag(cmd *cobra.Command, format *string, extra ...string) {
	names := make([]string, 0, len(report.Formats)+len(extra))
	for _, f := range report.Formats {
		names = append(names, string(f))
	}
	names = append(names, extra...)
	cmd.Flags().StringVar(format, FormatOptionName, string(report.FormatText), fmt.Sprintf("Output format. One of %v", names))
}

// SignalContext is cancelled on SIGINT or SIGTERM
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
