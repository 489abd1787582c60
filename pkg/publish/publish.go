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

// Package publish fans collected data sets out to NATS subjects and a Redis shadow.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/report"
)

type Publisher interface {
	Publish(ctx context.Context, ds *dataset.DataSet) error
	Close()
}

// Multi publishes to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ds *dataset.DataSet) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() {
	for _, p := range m {
		p.Close()
	}
}

// NatsPublisher sends the whole data set as a JSON array to one subject
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNatsPublisher(url, subject string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("go-vbus"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	log.Info("Connected to NATS %s", url)
	return &NatsPublisher{conn: conn, subject: subject}, nil
}

func natsMessage(ds *dataset.DataSet) ([]byte, error) {
	return json.Marshal(report.Entries(ds))
}

func (p *NatsPublisher) Publish(_ context.Context, ds *dataset.DataSet) error {
	data, err := natsMessage(ds)
	if err != nil {
		return err
	}
	log.Debug("Publishing %d entities to %s", ds.Len(), p.subject)
	return p.conn.Publish(p.subject, data)
}

func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// RedisPublisher mirrors the latest value of every entity into a hash
// keyed by prefix and ID string.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPublisher(address, prefix string, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{Addr: address}),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Ping checks the connection to the server
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func redisKey(prefix string, e report.Entry) string {
	return prefix + e.ID
}

func redisFields(e report.Entry) map[string]interface{} {
	fields := map[string]interface{}{
		"kind":    e.Kind,
		"ts":      e.Timestamp.UnixMilli(),
		"channel": e.Channel,
		"command": e.Command,
	}
	if e.Kind == "Datagram" {
		fields["param16"] = e.Param16
		fields["param32"] = e.Param32
	} else {
		fields["frames"] = e.FrameCount
		fields["payload"] = e.Payload
	}
	return fields
}

func (p *RedisPublisher) Publish(ctx context.Context, ds *dataset.DataSet) error {
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range report.Entries(ds) {
			key := redisKey(p.prefix, e)
			pipe.HSet(ctx, key, redisFields(e))
			if p.ttl > 0 {
				pipe.Expire(ctx, key, p.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() {
	p.client.Close()
}

// FromConfig connects every publisher the config enables. The result is
// empty when neither NATS nor Redis is configured.
func FromConfig(ctx context.Context, cfg *config.Config) (Multi, error) {
	var m Multi
	if cfg.Nats != nil && cfg.Nats.URL != "" {
		p, err := NewNatsPublisher(cfg.Nats.URL, cfg.Nats.Subject)
		if err != nil {
			return nil, err
		}
		m = append(m, p)
	}
	if cfg.Redis != nil && cfg.Redis.Address != "" {
		p := NewRedisPublisher(cfg.Redis.Address, cfg.Redis.KeyPrefix, time.Duration(cfg.Redis.TTL)*time.Second)
		if err := p.Ping(ctx); err != nil {
			m.Close()
			p.Close()
			return nil, fmt.Errorf("connect to Redis %s: %w", cfg.Redis.Address, err)
		}
		log.Info("Connected to Redis %s", cfg.Redis.Address)
		m = append(m, p)
	}
	return m, nil
}
