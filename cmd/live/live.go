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
	"time"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/pkg/stream"
	"greenlab.dev/go-vbus/pkg/transport"
)

const (
	TimeoutOptionName  = "timeout"
	OutputOptionName   = "output"
	IntervalOptionName = "interval"
	MaxAgeOptionName   = "max-age"
	ServeOptionName    = "serve"

	DefaultReadTimeout = 500 * time.Millisecond
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Work with a live VBus byte stream",
	}
	cmd.AddCommand(NewDumpCommand())
	cmd.AddCommand(NewRecordCommand())
	cmd.AddCommand(NewCollectCommand())
	return cmd
}

// newReader wraps link so reads return regularly and a cancelled
// context is noticed even on a silent bus
func newReader(link transport.Link, channel uint8, timeout time.Duration) (*stream.LiveDataReader, error) {
	reader := stream.NewLiveDataReader(link)
	reader.SetChannel(channel)
	if err := reader.SetReadTimeout(timeout); err != nil {
		return nil, err
	}
	return reader, nil
}
