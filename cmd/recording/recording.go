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

package recording

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/pkg/stream"
)

const (
	InputOptionName    = "input"
	OutputOptionName   = "output"
	FromOptionName     = "from"
	ToOptionName       = "to"
	ChannelsOptionName = "channels"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recording",
		Short: "Read and convert VBus recordings",
	}
	cmd.AddCommand(NewConvertCommand())
	cmd.AddCommand(NewScanCommand())
	return cmd
}

type ErrWrongTime struct {
	Option string
	Value  string
}

func (e ErrWrongTime) Error() string {
	return fmt.Sprintf("Wrong --%s value %q. Must be RFC 3339, e.g. 2024-01-02T15:04:05Z", e.Option, e.Value)
}

type filterOptions struct {
	from, to string
	channels []uint
}

func addFilterFlags(cmd *cobra.Command, o *filterOptions) {
	cmd.Flags().StringVar(&o.from, FromOptionName, "", "Skip records before this time (RFC 3339)")
	cmd.Flags().StringVar(&o.to, ToOptionName, "", "Skip records at or after this time (RFC 3339)")
	cmd.Flags().UintSliceVar(&o.channels, ChannelsOptionName, nil, "Only keep data of these channels")
}

func parseTime(option, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, ErrWrongTime{Option: option, Value: value}
	}
	return ts, nil
}

func (o *filterOptions) filter() (stream.Filter, error) {
	var f stream.Filter
	var err error
	if f.MinTimestamp, err = parseTime(FromOptionName, o.from); err != nil {
		return f, err
	}
	if f.MaxTimestamp, err = parseTime(ToOptionName, o.to); err != nil {
		return f, err
	}
	f.MaxExclusive = true
	for _, channel := range o.channels {
		if channel > 0xFF {
			return f, fmt.Errorf("channel %d out of range", channel)
		}
		f.Channels = append(f.Channels, uint8(channel))
	}
	return f, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func openOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{stdout}, nil
	}
	return os.Create(path)
}
