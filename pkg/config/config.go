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
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// SourceConfig selects the byte source live data is read from.
// Exactly one of Serial, Address and File is expected to be set.
type SourceConfig struct {
	Serial   string `json:"serial,omitempty"`
	BaudRate int    `json:"baudRate,omitempty"`
	Address  string `json:"address,omitempty"`
	File     string `json:"file,omitempty"`
	Channel  uint8  `json:"channel"`
}

type SessionConfig struct {
	SelfAddress uint16 `json:"selfAddress"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

type ApiConfig struct {
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}

type NatsConfig struct {
	URL     string `json:"url,omitempty"`
	Subject string `json:"subject,omitempty"`
}

type RedisConfig struct {
	Address   string `json:"address,omitempty"`
	KeyPrefix string `json:"keyPrefix,omitempty"`
	// TTL of the shadow keys in seconds, 0 keeps them forever
	TTL int `json:"ttl,omitempty"`
}

type Config struct {
	LogLevel string         `json:"logLevel,omitempty"`
	Source   *SourceConfig  `json:"source,omitempty"`
	Session  *SessionConfig `json:"session,omitempty"`
	Store    *StoreConfig   `json:"store,omitempty"`
	Api      *ApiConfig     `json:"api,omitempty"`
	Nats     *NatsConfig    `json:"nats,omitempty"`
	Redis    *RedisConfig   `json:"redis,omitempty"`
	filepath string
}

// Path returns the file the config is loaded from and persisted to
func (c *Config) Path() string {
	return c.filepath
}

// SetPath changes the file the config is loaded from and persisted to
func (c *Config) SetPath(path string) {
	c.filepath = path
}

// Persist writes the config as YAML. An existing file is only replaced
// when overwrite is set.
func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// Load overlays the config file onto c. A missing file leaves the defaults in place.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filepath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Source: &SourceConfig{
			Serial:   DefaultSerialPort,
			BaudRate: DefaultBaudRate,
		},
		Session: &SessionConfig{
			SelfAddress: DefaultSelfAddress,
		},
		Store: &StoreConfig{
			Path: DefaultStorePath(),
		},
		Api: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		Nats: &NatsConfig{
			Subject: DefaultNatsSubject,
		},
		Redis: &RedisConfig{
			KeyPrefix: DefaultRedisKeyPrefix,
		},
		filepath: DefaultConfigPath(),
	}
}

func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, DefaultStoreFile)
}
