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
	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/report"
	"greenlab.dev/go-vbus/pkg/stream"
)

func NewScanCommand() *cobra.Command {
	var input, format string
	var fo filterOptions
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List every distinct entity of a recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			filter, err := fo.filter()
			if err != nil {
				return err
			}
			in, err := openInput(input)
			if err != nil {
				return err
			}
			defer in.Close()

			reader := stream.NewRecordingReader(in)
			reader.SetFilter(filter)
			ds, err := reader.ReadTopologyDataSet()
			if err != nil {
				return err
			}
			return report.WriteDataSet(cmd.OutOrStdout(), f, ds)
		},
	}
	cmd.Flags().StringVar(&input, InputOptionName, "", "Recording to read, - for stdin")
	cmd.MarkFlagRequired(InputOptionName)
	flags.AddFormatFlag(cmd, &format)
	addFilterFlags(cmd, &fo)
	return cmd
}
