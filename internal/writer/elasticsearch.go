package writer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/scenario"
)

const esInitTimeout = 10 * time.Second

// elasticWriter indexes one document per scenario.
type elasticWriter struct {
	log   zerolog.Logger
	now   func() time.Time
	runID string

	mu     sync.Mutex
	client *elasticsearch.TypedClient
	index  string
}

// scenarioDocument is the indexed form of a finished scenario.
type scenarioDocument struct {
	ID         string          `json:"id"`
	RunID      string          `json:"run_id"`
	Scenario   string          `json:"scenario"`
	Passed     bool            `json:"passed"`
	Counts     scenario.Counts `json:"counts"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Queries    []queryOutcome  `json:"queries"`
	Failures   []failedQuery   `json:"failures,omitempty"`
	IndexedAt  time.Time       `json:"indexed_at"`
}

type queryOutcome struct {
	Suite      string          `json:"suite"`
	QuerySet   string          `json:"query_set"`
	Query      string          `json:"query"`
	Status     scenario.Status `json:"status"`
	DurationMS int64           `json:"duration_ms"`
	Reason     string          `json:"reason,omitempty"`
}

type failedQuery struct {
	Suite    string `json:"suite"`
	QuerySet string `json:"query_set"`
	Query    string `json:"query"`
	Reason   string `json:"reason"`
}

func newElasticsearch(env Env) *elasticWriter {
	return &elasticWriter{log: env.Log, now: env.Now, runID: env.RunID}
}

func (w *elasticWriter) Name() string { return NameElasticsearch }

// Init connects to writer.elasticsearch.addresses and makes sure the index
// exists.
func (w *elasticWriter) Init(props config.Properties) bool {
	addrs := props.List(config.KeyElasticAddrs)
	if len(addrs) == 0 {
		w.log.Error().Msgf("cannot index results: %s is not set", config.KeyElasticAddrs)
		return false
	}
	index := props.GetOr(config.KeyElasticIndex, config.DefaultElasticIndex)

	cfg := elasticsearch.Config{Addresses: addrs}
	if user, pass := props.Get(config.KeyElasticUsername), props.Get(config.KeyElasticPassword); user != "" && pass != "" {
		cfg.Username = user
		cfg.Password = pass
	}
	client, err := elasticsearch.NewTypedClient(cfg)
	if err != nil {
		w.log.Error().Err(err).Msg("cannot index results: failed to create Elasticsearch client")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), esInitTimeout)
	defer cancel()
	if err := ensureIndex(ctx, client, index); err != nil {
		w.log.Error().Err(err).Strs("addresses", addrs).Msg("cannot index results")
		return false
	}

	w.mu.Lock()
	w.client = client
	w.index = index
	w.mu.Unlock()
	return true
}

func ensureIndex(ctx context.Context, client *elasticsearch.TypedClient, index string) error {
	up, err := client.Ping().IsSuccess(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach Elasticsearch: %w", err)
	}
	if !up {
		return fmt.Errorf("Elasticsearch did not answer ping")
	}

	exists, err := client.Indices.Exists(index).IsSuccess(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := client.Indices.Create(index).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	return nil
}

func (w *elasticWriter) WriteScenario(ctx context.Context, s *scenario.Scenario) error {
	w.mu.Lock()
	client, index := w.client, w.index
	w.mu.Unlock()
	if client == nil {
		return fmt.Errorf("%s writer is not initialized", NameElasticsearch)
	}

	doc := w.document(s)
	res, err := client.Index(index).Id(doc.ID).Document(doc).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index scenario %s: %w", s.ID, err)
	}
	w.log.Debug().Str("id", doc.ID).Str("index", index).Str("result", res.Result.String()).Msg("scenario indexed")
	return nil
}

func (w *elasticWriter) document(s *scenario.Scenario) scenarioDocument {
	doc := scenarioDocument{
		ID:         uuid.NewString(),
		RunID:      w.runID,
		Scenario:   s.ID,
		Passed:     s.Passed(),
		Counts:     s.Counts(),
		DurationMS: s.Duration().Milliseconds(),
		IndexedAt:  w.now().UTC(),
	}
	if !s.Start.IsZero() {
		t := s.Start.UTC()
		doc.StartedAt = &t
	}
	if !s.End.IsZero() {
		t := s.End.UTC()
		doc.FinishedAt = &t
	}
	if s.Err != nil {
		doc.Error = s.Err.Error()
	}
	for _, q := range s.Queries() {
		r := q.Result()
		out := queryOutcome{
			Suite:      q.Suite,
			QuerySet:   q.Set,
			Query:      q.ID,
			Status:     r.Status(),
			DurationMS: q.Duration().Milliseconds(),
		}
		if !r.Passed() {
			out.Reason = r.Reason()
		}
		doc.Queries = append(doc.Queries, out)
	}
	for _, q := range s.FailedQueries() {
		doc.Failures = append(doc.Failures, failedQuery{
			Suite:    q.Suite,
			QuerySet: q.Set,
			Query:    q.ID,
			Reason:   q.Result().Reason(),
		})
	}
	return doc
}

func (w *elasticWriter) Destroy() {
	w.mu.Lock()
	w.client = nil
	w.mu.Unlock()
}
