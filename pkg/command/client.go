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

package command

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/imroc/req"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/report"
)

// ApiClient talks to the REST API of a running collector
type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", cfg.Api.Address, cfg.Api.Port),
	}
}

func (c *ApiClient) dataSetUrl() string {
	return fmt.Sprintf("%s/dataset", c.ApiPrefix)
}

func (c *ApiClient) dataUrl(id string) string {
	return fmt.Sprintf("%s/dataset/%s", c.ApiPrefix, url.PathEscape(id))
}

func (c *ApiClient) channelsUrl() string {
	return fmt.Sprintf("%s/channels", c.ApiPrefix)
}

func (c *ApiClient) get(u string, v interface{}) error {
	r, err := req.Get(u)
	if err != nil {
		return err
	}
	if r.Response().StatusCode != 200 {
		return errors.New(r.Response().Status)
	}
	return r.ToJSON(v)
}

// GetDataSet fetches the latest observation of every known entity
func (c *ApiClient) GetDataSet() ([]report.Entry, error) {
	var entries []report.Entry
	if err := c.get(c.dataSetUrl(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetData fetches a single entity by its ID string
func (c *ApiClient) GetData(id string) (report.Entry, error) {
	var entry report.Entry
	err := c.get(c.dataUrl(id), &entry)
	return entry, err
}

// Channels lists the channels the collector has seen
func (c *ApiClient) Channels() ([]uint8, error) {
	var numbers []int
	if err := c.get(c.channelsUrl(), &numbers); err != nil {
		return nil, err
	}
	channels := make([]uint8, len(numbers))
	for i, n := range numbers {
		channels[i] = uint8(n)
	}
	return channels, nil
}
