// Package keyword provides an in-memory inverted index scored with BM25.
package keyword

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

// Service is an inverted index over chunk text scored with BM25
// (k1=1.5, b=0.75 by default). The index is rebuilt from the document
// store on startup rather than persisted.
type Service struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	// postings maps term -> chunkID -> term frequency.
	postings map[string]map[string]int
	// docLen maps chunkID -> token count.
	docLen map[string]int
	// byDoc maps documentID -> chunk IDs, for whole-document removal.
	byDoc map[string][]string

	totalLen int

	logger arbor.ILogger
}

// NewService creates an empty index. Non-positive k1 and negative b fall
// back to the standard defaults; b=0 is a legal tuning that disables
// length normalization.
func NewService(k1, b float64, logger arbor.ILogger) *Service {
	if k1 <= 0 {
		k1 = common.DefaultBM25K1
	}
	if b < 0 {
		b = common.DefaultBM25B
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		k1:       k1,
		b:        b,
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		byDoc:    make(map[string][]string),
		logger:   logger,
	}
}

// Tokenize lowercases and splits on any non-letter, non-digit rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Index replaces the entire index contents with the given chunks.
// Indexing the same corpus twice yields identical search results.
func (s *Service) Index(chunks []models.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.postings = make(map[string]map[string]int)
	s.docLen = make(map[string]int)
	s.byDoc = make(map[string][]string)
	s.totalLen = 0

	for _, chunk := range chunks {
		s.indexChunkLocked(chunk)
	}

	s.logger.Debug().
		Int("chunks", len(s.docLen)).
		Int("terms", len(s.postings)).
		Msg("Keyword index rebuilt")
}

// IndexDocument adds or replaces the chunks of a single document.
func (s *Service) IndexDocument(docID string, chunks []models.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeDocumentLocked(docID)
	for _, chunk := range chunks {
		s.indexChunkLocked(chunk)
	}
}

// RemoveDocument drops every chunk belonging to the document. Removing
// an unknown document is a no-op.
func (s *Service) RemoveDocument(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeDocumentLocked(docID)
}

func (s *Service) indexChunkLocked(chunk models.Chunk) {
	chunkID := chunk.ID()
	tokens := Tokenize(chunk.Text)

	s.docLen[chunkID] = len(tokens)
	s.totalLen += len(tokens)
	s.byDoc[chunk.DocumentID] = append(s.byDoc[chunk.DocumentID], chunkID)

	for _, token := range tokens {
		if s.postings[token] == nil {
			s.postings[token] = make(map[string]int)
		}
		s.postings[token][chunkID]++
	}
}

func (s *Service) removeDocumentLocked(docID string) {
	chunkIDs, ok := s.byDoc[docID]
	if !ok {
		return
	}
	removed := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		removed[id] = true
		s.totalLen -= s.docLen[id]
		delete(s.docLen, id)
	}
	for term, posting := range s.postings {
		for id := range posting {
			if removed[id] {
				delete(posting, id)
			}
		}
		if len(posting) == 0 {
			delete(s.postings, term)
		}
	}
	delete(s.byDoc, docID)
}

// Search scores every chunk containing at least one query term and
// returns the topK by descending score, ties broken by ascending chunk
// ID. A query with no indexed terms returns an empty result.
func (s *Service) Search(query string, topK int) []models.ScoredID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.docLen)
	if n == 0 || topK <= 0 {
		return nil
	}
	avgLen := float64(s.totalLen) / float64(n)

	scores := make(map[string]float64)
	for _, term := range Tokenize(query) {
		posting, ok := s.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			tfF := float64(tf)
			norm := s.k1 * (1 - s.b + s.b*float64(s.docLen[chunkID])/avgLen)
			scores[chunkID] += idf * (tfF * (s.k1 + 1)) / (tfF + norm)
		}
	}

	results := make([]models.ScoredID, 0, len(scores))
	for id, score := range scores {
		results = append(results, models.ScoredID{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Stats reports the number of indexed chunks and distinct terms.
func (s *Service) Stats() (chunks int, terms int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docLen), len(s.postings)
}

var _ interfaces.KeywordIndex = (*Service)(nil)
