// Package knowledge enriches vulnerability ids with knowledge-base metadata:
// title, CVE identifiers, CVSS base scores, diagnosis, and solution text.
// Records are fetched in batches and held in a per-run cache.
package knowledge

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/vulnwatch/go-recon/recon/qparse"
)

// DefaultBatchSize is the number of QIDs requested per knowledge-base call
// when no explicit batch size is configured.
const DefaultBatchSize = 50

// Fetcher retrieves the raw knowledge-base blob for a batch of QIDs.
type Fetcher interface {
	FetchKnowledgeBatch(ctx context.Context, qids []string) (string, error)
}

// Record is the cached enrichment data for one QID. Score fields are kept as
// the source's strings; an empty score means the knowledge base carries none.
type Record struct {
	QID       string   `json:"qid"`
	Title     string   `json:"title"`
	CVEs      []string `json:"cves,omitempty"`
	CVSSBase  string   `json:"cvssBase,omitempty"`
	CVSS3Base string   `json:"cvss3Base,omitempty"`
	Diagnosis string   `json:"diagnosis,omitempty"`
	Solution  string   `json:"solution,omitempty"`
}

// Cache is a per-run knowledge cache. It is owned by a single run, populated
// lazily via FetchBatch, and discarded when the run ends. Merges are guarded
// so batches may be fetched from concurrent workers.
type Cache struct {
	fetcher   Fetcher
	batchSize int

	mu      sync.RWMutex
	records map[string]Record
}

// NewCache builds an empty cache backed by the given fetcher. A batchSize of
// zero or less selects DefaultBatchSize.
func NewCache(fetcher Fetcher, batchSize int) *Cache {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Cache{
		fetcher:   fetcher,
		batchSize: batchSize,
		records:   make(map[string]Record),
	}
}

// FetchBatch partitions qids into fixed-size batches and merges each batch's
// records into the cache. A failed batch is logged and skipped; its QIDs
// simply stay unenriched for this run.
func (c *Cache) FetchBatch(ctx context.Context, qids []string) {
	for start := 0; start < len(qids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(qids) {
			end = len(qids)
		}
		batch := qids[start:end]

		blob, err := c.fetcher.FetchKnowledgeBatch(ctx, batch)
		if err != nil {
			slog.Warn("Knowledge batch failed, skipping", "batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}

		records := parseKnowledgeBlob(blob)
		c.mu.Lock()
		for qid, rec := range records {
			c.records[qid] = rec
		}
		c.mu.Unlock()
		slog.Debug("Merged knowledge batch", "batch_size", len(batch), "records", len(records))
	}
}

// Lookup returns the cached record for a QID.
func (c *Cache) Lookup(qid string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[qid]
	return rec, ok
}

// Len reports how many QIDs have been enriched so far.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

var (
	vulnBlockPattern = regexp.MustCompile(`(?is)<VULN(?:\s[^>]*)?>(.*?)</VULN>`)
	cveListPattern   = regexp.MustCompile(`(?is)<CVE_LIST>(.*?)</CVE_LIST>`)
	idEntryPattern   = regexp.MustCompile(`(?is)<ID>(.*?)</ID>`)
)

func parseKnowledgeBlob(blob string) map[string]Record {
	records := make(map[string]Record)
	for _, m := range vulnBlockPattern.FindAllStringSubmatch(blob, -1) {
		block := m[1]
		qid := qparse.StripCDATA(qparse.ExtractTag(block, "QID"))
		if qid == "" {
			continue
		}
		records[qid] = Record{
			QID:       qid,
			Title:     qparse.StripCDATA(qparse.ExtractTag(block, "TITLE")),
			CVEs:      extractCVEs(block),
			CVSSBase:  qparse.StripCDATA(qparse.ExtractNestedTag(block, "CVSS", "BASE")),
			CVSS3Base: qparse.StripCDATA(qparse.ExtractNestedTag(block, "CVSS_V3", "BASE")),
			Diagnosis: qparse.StripCDATA(qparse.ExtractTag(block, "DIAGNOSIS")),
			Solution:  qparse.StripCDATA(qparse.ExtractTag(block, "SOLUTION")),
		}
	}
	return records
}

// extractCVEs pulls CVE identifiers from a VULN block. The primary pattern
// reads <ID> entries inside <CVE_LIST>; when that yields nothing, a fallback
// scans the whole block for any <ID> entry starting with "CVE". The fallback
// covers a known format variance in the knowledge-base export.
func extractCVEs(block string) []string {
	var cves []string
	if m := cveListPattern.FindStringSubmatch(block); m != nil {
		for _, entry := range idEntryPattern.FindAllStringSubmatch(m[1], -1) {
			if id := qparse.StripCDATA(entry[1]); id != "" {
				cves = append(cves, id)
			}
		}
	}
	if len(cves) == 0 {
		for _, entry := range idEntryPattern.FindAllStringSubmatch(block, -1) {
			if id := qparse.StripCDATA(entry[1]); strings.HasPrefix(id, "CVE") {
				cves = append(cves, id)
			}
		}
	}
	return cves
}
