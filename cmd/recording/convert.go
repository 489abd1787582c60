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
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/report"
	"greenlab.dev/go-vbus/pkg/stream"
)

const (
	SumOptionName        = "sum"
	LiveStreamOptionName = "live-stream"
	CommentsOptionName   = "comments"
	OrderOptionName      = "order"

	FormatLive      = "live"
	FormatRecording = "recording"
)

// sink returns a function writing one data set to w in the given format
func sink(w io.Writer, format string) (func(ds *dataset.DataSet) error, error) {
	switch format {
	case FormatLive:
		writer := stream.NewLiveDataWriter(w)
		return func(ds *dataset.DataSet) error {
			return writer.WriteData(ds.Data()...)
		}, nil
	case FormatRecording:
		writer := stream.NewRecordingWriter(w)
		return writer.WriteDataSet, nil
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return func(ds *dataset.DataSet) error {
		return report.WriteDataSet(w, f, ds)
	}, nil
}

func parseOrder(ids []string) ([]layers.PacketID, error) {
	order := make([]layers.PacketID, 0, len(ids))
	for _, s := range ids {
		id, err := layers.ParsePacketID(s)
		if err != nil {
			return nil, err
		}
		order = append(order, id)
	}
	return order, nil
}

// readDataSets calls fn for every data set of a recording. Unsupported
// records are reported and skipped.
func readDataSets(r io.Reader, filter stream.Filter, comments bool, fn func(ds *dataset.DataSet) error) error {
	reader := stream.NewRecordingReader(r)
	reader.SetFilter(filter)
	if comments {
		reader.SetCommentHandler(func(ts time.Time, comment []byte) {
			log.Info("Comment at %s: %s", ts.Format(time.RFC3339Nano), comment)
		})
	}
	for {
		ds, err := reader.ReadDataSet()
		var unsupported stream.ErrUnsupportedRecord
		if errors.As(err, &unsupported) {
			log.Warning("%s", err)
			continue
		}
		if err != nil {
			return err
		}
		if ds == nil {
			return nil
		}
		if err := fn(ds); err != nil {
			return err
		}
	}
}

// readLiveStream calls fn with a single entity data set for every entity
// decoded from the live data stream records of a recording
func readLiveStream(r io.Reader, filter stream.Filter, fn func(ds *dataset.DataSet) error) error {
	reader := stream.NewLiveDataRecordingReader(r)
	reader.SetFilter(filter)
	for {
		d, err := reader.ReadData()
		var unsupported stream.ErrUnsupportedRecord
		if errors.As(err, &unsupported) {
			log.Warning("%s", err)
			continue
		}
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		ds := dataset.New()
		ds.AddData(d)
		if err := fn(ds); err != nil {
			return err
		}
	}
}

func NewConvertCommand() *cobra.Command {
	var input, output, format string
	var sum, liveStream, comments bool
	var orderIDs []string
	var fo filterOptions
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a recording into another format",
		Long: `Convert the data sets of a recording. Formats text, json, yaml and cbor
render every data set as a report, live writes raw live data and recording
writes a new recording holding only the filtered data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := fo.filter()
			if err != nil {
				return err
			}
			order, err := parseOrder(orderIDs)
			if err != nil {
				return err
			}
			in, err := openInput(input)
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer out.Close()
			write, err := sink(out, format)
			if err != nil {
				return err
			}

			total := dataset.New()
			var count int
			fn := func(ds *dataset.DataSet) error {
				count++
				if sum {
					total.AddDataSet(ds)
					return nil
				}
				if len(order) > 0 {
					ds.SortByIDSlice(order)
				}
				return write(ds)
			}
			if liveStream {
				err = readLiveStream(in, filter, fn)
			} else {
				err = readDataSets(in, filter, comments, fn)
			}
			if err != nil {
				return err
			}
			log.Debug("Read %d data sets from %s", count, input)
			if !sum {
				return nil
			}
			if len(order) > 0 {
				total.SortByIDSlice(order)
			} else {
				total.Sort()
			}
			return write(total)
		},
	}
	cmd.Flags().StringVar(&input, InputOptionName, "", "Recording to read, - for stdin")
	cmd.MarkFlagRequired(InputOptionName)
	cmd.Flags().StringVar(&output, OutputOptionName, "", "File to write, stdout by default")
	flags.AddFormatFlag(cmd, &format, FormatLive, FormatRecording)
	addFilterFlags(cmd, &fo)
	cmd.Flags().BoolVar(&sum, SumOptionName, false, "Merge all data sets into one")
	cmd.Flags().BoolVar(&liveStream, LiveStreamOptionName, false, "Decode the raw live data captured in the recording")
	cmd.Flags().BoolVar(&comments, CommentsOptionName, false, "Log comment records")
	cmd.Flags().StringSliceVar(&orderIDs, OrderOptionName, nil, "Packet IDs to put first, e.g. 00_0010_7E11_10_0100")
	return cmd
}
