package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

type ESConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

func NewESClient(ctx context.Context, cfg ESConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// AuditSink indexes session events so they can be searched later.
type AuditSink struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewAuditSink(es *elasticsearch.Client, index string) *AuditSink {
	return &AuditSink{es: es, index: index, timeout: 5 * time.Second}
}

func (s *AuditSink) Publish(ctx context.Context, ev SessionEvent) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ev); err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.es.Index(
		s.index,
		&buf,
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(ev.ID),
	)
	if err != nil {
		return fmt.Errorf("audit: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("audit: index: %s", res.Status())
	}
	return nil
}
