// internal/fixtures/manager.go
// Package fixtures provisions test indices into the cluster from on-disk
// definitions. Groups live under the fixtures directory, one subdirectory per
// index, each holding a mappings.json and a documents.ndjson.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/askbench/askbench/internal/appconfig"
	"github.com/askbench/askbench/internal/logging"
	"github.com/askbench/askbench/internal/pool"
	"github.com/askbench/askbench/internal/search"
)

// Cluster is the slice of the cluster client the fixture manager needs.
type Cluster interface {
	CatIndices(ctx context.Context) ([]string, error)
	CreateIndex(ctx context.Context, name string, mappings json.RawMessage) error
	BulkIndex(ctx context.Context, index string, docs []search.Document) error
	DeleteIndices(ctx context.Context, names []string) error
	GetMapping(ctx context.Context, index string) (json.RawMessage, error)
	Sample(ctx context.Context, index string, size int) (*search.SearchResponse, error)
	PutClusterSettings(ctx context.Context, persistent map[string]any) error
}

// mappingsSchema is the shape a mappings.json must satisfy before any cluster
// call is made. The cluster would reject worse, but failing locally keeps the
// error close to the file that caused it.
const mappingsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"properties": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {"type": "object"}
		},
		"dynamic": {},
		"_meta": {"type": "object"},
		"date_detection": {"type": "boolean"}
	}
}`

// dumpSize is how many documents Dump reads from an index.
const dumpSize = 10000

// alertingGroup is the one fixture group whose documents carry their own ids;
// monitors reference each other by id, so they must survive a round trip.
const alertingGroup = "alerting"

// Manager provisions, deletes, and dumps fixture index groups.
type Manager struct {
	cluster     Cluster
	fixturesDir string
	pool        *pool.Pool
	chunkSize   int
	schema      *gojsonschema.Schema
}

// CreateOptions controls Create behavior.
type CreateOptions struct {
	// IgnoreExisting skips indices already present in the cluster, resolved
	// with a single listing call up front.
	IgnoreExisting bool
}

// NewManager builds a Manager over the configured fixtures directory.
func NewManager(cfg *appconfig.Config, cluster Cluster) (*Manager, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(mappingsSchema))
	if err != nil {
		return nil, fmt.Errorf("compile mappings schema: %w", err)
	}
	return &Manager{
		cluster:     cluster,
		fixturesDir: cfg.FixturesDirPath(),
		pool:        pool.New(cfg.FixtureConcurrencyLimit()),
		chunkSize:   cfg.DeleteChunkSize(),
		schema:      schema,
	}, nil
}

// resolveGroups expands a nil or empty group list to every group on disk.
func (m *Manager) resolveGroups(groups []string) ([]string, error) {
	if len(groups) > 0 {
		return groups, nil
	}
	entries, err := os.ReadDir(m.fixturesDir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir %q: %w", m.fixturesDir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// groupIndices lists the index names defined for a group on disk.
func (m *Manager) groupIndices(group string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.fixturesDir, group))
	if err != nil {
		return nil, fmt.Errorf("read fixture group %q: %w", group, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Create provisions every index of the given groups (all groups when nil).
// An index already present in the cluster is skipped; any other provisioning
// failure is fatal and fails the whole call.
func (m *Manager) Create(ctx context.Context, groups []string, options CreateOptions) error {
	resolved, err := m.resolveGroups(groups)
	if err != nil {
		return err
	}

	ignored := map[string]bool{}
	if options.IgnoreExisting {
		existing, err := m.cluster.CatIndices(ctx)
		if err != nil {
			return fmt.Errorf("list existing indices: %w", err)
		}
		for _, name := range existing {
			ignored[name] = true
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, group := range resolved {
		indices, err := m.groupIndices(group)
		if err != nil {
			return err
		}
		for _, name := range indices {
			if ignored[name] {
				continue
			}
			group, name := group, name
			eg.Go(func() error {
				return m.pool.Do(func() error {
					return m.createIndex(ctx, group, name)
				})
			})
		}
	}
	return eg.Wait()
}

// createIndex provisions one index: validate and apply the mapping, then bulk
// load its documents with refresh-on-write. An index whose definition files
// are missing is skipped with a warning rather than failing the group.
func (m *Manager) createIndex(ctx context.Context, group, name string) error {
	indexDir := filepath.Join(m.fixturesDir, group, name)
	mappingsPath := filepath.Join(indexDir, "mappings.json")
	documentsPath := filepath.Join(indexDir, "documents.ndjson")

	for _, file := range []string{mappingsPath, documentsPath} {
		if _, err := os.Stat(file); err != nil {
			logging.LogEvent("skipping index %q: %v", name, err)
			return nil
		}
	}

	mappings, err := os.ReadFile(mappingsPath)
	if err != nil {
		return err
	}
	if err := m.validateMappings(name, mappings); err != nil {
		return err
	}

	if err := m.cluster.CreateIndex(ctx, name, mappings); err != nil {
		if !search.IsAlreadyExists(err) {
			return fmt.Errorf("create index %q: %w", name, err)
		}
		logging.LogEvent("index %q already exists, skipping creation", name)
	}

	docs, err := readDocuments(documentsPath, group == alertingGroup)
	if err != nil {
		return fmt.Errorf("read documents for index %q: %w", name, err)
	}
	if err := m.cluster.BulkIndex(ctx, name, docs); err != nil {
		return fmt.Errorf("load documents into index %q: %w", name, err)
	}

	logging.LogEvent("created index %s", name)
	return nil
}

// validateMappings checks a mappings.json against the embedded schema.
func (m *Manager) validateMappings(name string, mappings []byte) error {
	result, err := m.schema.Validate(gojsonschema.NewBytesLoader(mappings))
	if err != nil {
		return fmt.Errorf("mappings for index %q are not valid json: %w", name, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("mappings for index %q are invalid: %s", name, strings.Join(details, "; "))
	}
	return nil
}

// readDocuments parses a documents.ndjson. When withIDs is set, each
// document's "id" field becomes its index id.
func readDocuments(path string, withIDs bool) ([]search.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []search.Document
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			return nil, fmt.Errorf("line %d is not valid json", i+1)
		}
		doc := search.Document{Source: json.RawMessage(line)}
		if withIDs {
			var idHolder struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal([]byte(line), &idHolder); err == nil {
				doc.ID = idHolder.ID
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes every index of the given groups from the cluster, batching
// names to keep the request count down. Missing indices are ignored.
func (m *Manager) Delete(ctx context.Context, groups []string) error {
	resolved, err := m.resolveGroups(groups)
	if err != nil {
		return err
	}

	var indices []string
	for _, group := range resolved {
		names, err := m.groupIndices(group)
		if err != nil {
			return err
		}
		indices = append(indices, names...)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(indices); start += m.chunkSize {
		chunk := indices[start:min(start+m.chunkSize, len(indices))]
		eg.Go(func() error {
			return m.pool.Do(func() error {
				if err := m.cluster.DeleteIndices(ctx, chunk); err != nil {
					logging.LogEvent("failed to delete %v: %v", chunk, err)
					return err
				}
				return nil
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	logging.LogEvent("deleted index group: %s", strings.Join(resolved, ", "))
	return nil
}

// Dump writes the live mapping and documents of the named indices back into
// the on-disk fixture format, so a hand-built index can become a fixture.
func (m *Manager) Dump(ctx context.Context, group string, names []string) error {
	for _, name := range names {
		indexDir := filepath.Join(m.fixturesDir, group, name)
		if err := os.MkdirAll(indexDir, 0o755); err != nil {
			return err
		}

		mappings, err := m.cluster.GetMapping(ctx, name)
		if err != nil {
			return fmt.Errorf("dump mapping for %q: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(indexDir, "mappings.json"), mappings, 0o644); err != nil {
			return err
		}

		resp, err := m.cluster.Sample(ctx, name, dumpSize)
		if err != nil {
			return fmt.Errorf("dump documents for %q: %w", name, err)
		}
		lines := make([]string, 0, len(resp.Hits.Hits))
		for _, hit := range resp.Hits.Hits {
			lines = append(lines, string(hit.Source))
		}
		contents := strings.Join(lines, "\n")
		if err := os.WriteFile(filepath.Join(indexDir, "documents.ndjson"), []byte(contents), 0o644); err != nil {
			return err
		}

		logging.LogEvent("dumped index %s", name)
	}
	return nil
}

// Init raises the shard ceiling so many small fixture indices fit on one node.
func (m *Manager) Init(ctx context.Context) error {
	return m.cluster.PutClusterSettings(ctx, map[string]any{
		"cluster.max_shards_per_node": "10000",
	})
}
