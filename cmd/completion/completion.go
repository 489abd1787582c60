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

package completion

import (
	"github.com/spf13/cobra"
)

const (
	completionExample = `
Save shell completion to a file
# go-vbus completion > $HOME/.go-vbus_completions

Apply completions to the current bash instance
# source <(go-vbus completion)

Generate zsh completion instead
# go-vbus completion --shell zsh > "${fpath[1]}/_go-vbus"
`
	ShellOptionName = "shell"
)

type ErrWrongShell struct {
	Shell string
}

func (e ErrWrongShell) Error() string {
	return "Wrong shell " + e.Shell + ". Must be one of: bash, zsh, fish."
}

// NewCommand creates a cobra command object for generating shell completion scripts
func NewCommand() *cobra.Command {
	var shell string
	cmd := &cobra.Command{
		Use:     "completion",
		Short:   "Generate completion script for bash, zsh or fish",
		Example: completionExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			}
			return ErrWrongShell{Shell: shell}
		},
	}
	cmd.Flags().StringVar(&shell, ShellOptionName, "bash", "Shell to generate the script for")
	return cmd
}
