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
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/session"
)

// bulkTransactionTimeout is the number of seconds the controller waits
// for the commit
const bulkTransactionTimeout = 30

func NewSetCommand() *cobra.Command {
	var o options
	var value int32
	var bulk bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Write a value by index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cfg, &o, func(s *session.Session, address uint16) error {
				var rx *layers.Datagram
				var err error
				if bulk {
					rx, err = setBulk(s, address, o.index, o.subindex, value)
				} else {
					rx, err = s.SetValueByIndex(address, o.index, o.subindex, value)
				}
				if err != nil {
					return err
				}
				if rx == nil {
					return ErrNoAnswer{What: fmt.Sprintf("set request to 0x%04X", address)}
				}
				printValue(cmd, rx)
				return nil
			})
		},
	}
	addOptions(cmd, cfg, &o)
	cmd.Flags().Int32Var(&value, ValueOptionName, 0, "Value to write")
	cmd.MarkFlagRequired(ValueOptionName)
	cmd.Flags().BoolVar(&bulk, BulkOptionName, false, "Write inside a bulk value transaction")
	return cmd
}

// setBulk stages the value in a transaction and commits it. The
// transaction is rolled back when staging gets no answer.
func setBulk(s *session.Session, address uint16, index int16, subindex uint8, value int32) (*layers.Datagram, error) {
	begun, err := s.BeginBulkValueTransaction(address, bulkTransactionTimeout)
	if err != nil {
		return nil, err
	}
	if begun == nil {
		return nil, ErrNoAnswer{What: "bulk transaction start"}
	}
	staged, err := s.SetBulkValueByIndex(address, index, subindex, value)
	if err != nil || staged == nil {
		if _, rbErr := s.RollbackBulkValueTransaction(address); rbErr != nil {
			log.Warning("Unable to roll back bulk transaction: %s", rbErr)
		}
		if err == nil {
			err = ErrNoAnswer{What: "bulk value"}
		}
		return nil, err
	}
	done, err := s.CommitBulkValueTransaction(address)
	if err != nil {
		return nil, err
	}
	if done == nil {
		return nil, ErrNoAnswer{What: "bulk transaction commit"}
	}
	return staged, nil
}
