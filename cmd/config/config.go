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

package config

import (
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"greenlab.dev/go-vbus/cmd/flags"
	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/log"
)

const (
	OverwriteOptionName = "overwrite"
	StorePathOptionName = "store-path"
	ApiPortOptionName   = "api-port"
	NatsURLOptionName   = "nats-url"
	RedisOptionName     = "redis-address"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewShowCommand())
	return cmd
}

func NewInitCommand() *cobra.Command {
	var overwrite bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Persist(overwrite); err != nil {
				return err
			}
			log.Info("Config written to %s", cfg.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, OverwriteOptionName, false, "Replace an existing configuration file")
	flags.AddSourceFlags(cmd, cfg.Source)
	cmd.Flags().StringVar(&cfg.Store.Path, StorePathOptionName, cfg.Store.Path, "Path of the state database")
	cmd.Flags().IntVar(&cfg.Api.Port, ApiPortOptionName, cfg.Api.Port, "Port of the REST API")
	cmd.Flags().StringVar(&cfg.Nats.URL, NatsURLOptionName, cfg.Nats.URL, "NATS server URL to publish data sets to")
	cmd.Flags().StringVar(&cfg.Redis.Address, RedisOptionName, cfg.Redis.Address, "Redis address to mirror the latest values to")
	return cmd
}

func NewShowCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	return cmd
}
