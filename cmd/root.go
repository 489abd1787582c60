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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"greenlab.dev/go-vbus/cmd/completion"
	"greenlab.dev/go-vbus/cmd/config"
	"greenlab.dev/go-vbus/cmd/discover"
	"greenlab.dev/go-vbus/cmd/live"
	"greenlab.dev/go-vbus/cmd/param"
	"greenlab.dev/go-vbus/cmd/recording"
	"greenlab.dev/go-vbus/cmd/show"
	pkgconfig "greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string
	cfg := pkgconfig.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "go-vbus",
		Short: "Tool to work with RESOL VBus live data and recordings",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
		},
		SilenceUsage: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(config.NewCommand())
	cmd.AddCommand(discover.NewCommand())
	cmd.AddCommand(live.NewCommand())
	cmd.AddCommand(recording.NewCommand())
	cmd.AddCommand(param.NewCommand())
	cmd.AddCommand(show.NewCommand())
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}
