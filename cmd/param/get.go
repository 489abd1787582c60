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

package param

import (
	"fmt"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/session"
)

func NewGetCommand() *cobra.Command {
	var o options
	var hash int32
	var caps bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read a value by index or look up the index of an ID hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cfg, &o, func(s *session.Session, address uint16) error {
				var rx *layers.Datagram
				var err error
				switch {
				case caps:
					rx, err = s.GetCaps1(address)
				case cmd.Flags().Changed(HashOptionName):
					rx, err = s.GetValueIndexByIDHash(address, hash)
				default:
					rx, err = s.GetValueByIndex(address, o.index, o.subindex)
				}
				if err != nil {
					return err
				}
				if rx == nil {
					return ErrNoAnswer{What: fmt.Sprintf("get request to 0x%04X", address)}
				}
				printValue(cmd, rx)
				return nil
			})
		},
	}
	addOptions(cmd, cfg, &o)
	cmd.Flags().Int32Var(&hash, HashOptionName, 0, "ID hash of the value to look up")
	cmd.Flags().BoolVar(&caps, CapsOptionName, false, "Read the capabilities of the controller")
	return cmd
}
