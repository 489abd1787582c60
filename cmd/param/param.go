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
	"strconv"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/session"
	"greenlab.dev/go-vbus/pkg/transport"
)

const (
	DeviceOptionName   = "device"
	IndexOptionName    = "index"
	SubindexOptionName = "subindex"
	ValueOptionName    = "value"
	HashOptionName     = "hash"
	CapsOptionName     = "caps"
	BulkOptionName     = "bulk"
	WaitBusOptionName  = "wait-bus"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "param",
		Short: "Read and write controller parameters over the bus",
	}
	cmd.AddCommand(NewGetCommand())
	cmd.AddCommand(NewSetCommand())
	return cmd
}

type ErrNoAnswer struct {
	What string
}

func (e ErrNoAnswer) Error() string {
	return fmt.Sprintf("No answer to %s", e.What)
}

type options struct {
	device   string
	index    int16
	subindex uint8
	waitBus  bool
}

func addOptions(cmd *cobra.Command, cfg *config.Config, o *options) {
	flags.AddSourceFlags(cmd, cfg.Source)
	cmd.Flags().StringVar(&o.device, DeviceOptionName, "", "Address of the controller. E.g. 0x7E11")
	cmd.MarkFlagRequired(DeviceOptionName)
	cmd.Flags().Int16Var(&o.index, IndexOptionName, 0, "Index of the value")
	cmd.Flags().Uint8Var(&o.subindex, SubindexOptionName, 0, "Subindex of the value")
	cmd.Flags().BoolVar(&o.waitBus, WaitBusOptionName, true, "Wait for the controller to offer the bus first")
}

func (o *options) address() (uint16, error) {
	address, err := strconv.ParseUint(o.device, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("wrong device address %q: %w", o.device, err)
	}
	return uint16(address), nil
}

// withSession opens the configured link and runs fn while holding the bus
func withSession(cfg *config.Config, o *options, fn func(s *session.Session, address uint16) error) error {
	address, err := o.address()
	if err != nil {
		return err
	}
	link, err := transport.Open(cfg.Source)
	if err != nil {
		return err
	}
	defer link.Close()

	s := session.NewForLink(link, cfg.Source.Channel)
	s.SelfAddress = cfg.Session.SelfAddress
	if !o.waitBus {
		return fn(s, address)
	}

	log.Info("Waiting for the bus to be offered")
	offer, err := s.WaitForFreeBus()
	if err != nil {
		return err
	}
	if offer == nil {
		return ErrNoAnswer{What: "bus request"}
	}
	fnErr := fn(s, address)
	log.Debug("Releasing the bus to 0x%04X", offer.SourceAddress)
	if _, err := s.ReleaseBus(offer.SourceAddress); err != nil {
		log.Warning("Unable to release the bus: %s", err)
	}
	return fnErr
}

func printValue(cmd *cobra.Command, d *layers.Datagram) {
	fmt.Fprintf(cmd.OutOrStdout(), "0x%04X[%d]: %d (0x%08X)\n", d.SourceAddress, d.Param16, d.Param32, uint32(d.Param32))
}
