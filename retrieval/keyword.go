package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Algorithm selects the scoring formula KeywordRetriever uses.
type Algorithm string

const (
	AlgorithmBM25  Algorithm = "bm25"
	AlgorithmTFIDF Algorithm = "tfidf"
)

// bm25K1 and bm25B are the standard BM25 term-frequency-saturation and
// length-normalization constants, unchanged from the teacher.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// invertedIndex is the teacher's InvertedIndex: term -> docs containing
// it, plus per-doc term frequencies and lengths needed for BM25/TF-IDF.
type invertedIndex struct {
	postings    map[string][]int
	termFreq    map[int]map[string]int
	docLengths  map[int]int
}

func newInvertedIndex() *invertedIndex {
	return &invertedIndex{
		postings:   make(map[string][]int),
		termFreq:   make(map[int]map[string]int),
		docLengths: make(map[int]int),
	}
}

func (idx *invertedIndex) addDocument(docID int, terms []string) {
	freq := make(map[string]int)
	seen := make(map[string]bool)
	for _, term := range terms {
		freq[term]++
		if !seen[term] {
			idx.postings[term] = append(idx.postings[term], docID)
			seen[term] = true
		}
	}
	idx.termFreq[docID] = freq
	idx.docLengths[docID] = len(terms)
}

func (idx *invertedIndex) documentFrequency(term string) int { return len(idx.postings[term]) }

func (idx *invertedIndex) termFrequency(docID int, term string) int {
	return idx.termFreq[docID][term]
}

func (idx *invertedIndex) averageDocLength() float64 {
	if len(idx.docLengths) == 0 {
		return 0
	}
	sum := 0
	for _, l := range idx.docLengths {
		sum += l
	}
	return float64(sum) / float64(len(idx.docLengths))
}

// KeywordRetriever is an in-memory BM25/TF-IDF retriever over a document
// set built up via Index. Ported from the teacher's KeywordRetriever,
// dropping the core.Runnable pipeline machinery in favor of the plain
// Retriever dock contract.
type KeywordRetriever struct {
	id        string
	Algorithm Algorithm

	mu    sync.RWMutex
	docs  []Document
	index *invertedIndex
}

func NewKeywordRetriever(id string) *KeywordRetriever {
	return &KeywordRetriever{id: id, Algorithm: AlgorithmBM25, index: newInvertedIndex()}
}

func (k *KeywordRetriever) ID() string { return k.id }

// Index adds docs to the retrieval set and rebuilds the inverted index
// over the combined set. Safe to call incrementally as chunks land.
func (k *KeywordRetriever) Index(docs ...Document) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.docs = append(k.docs, docs...)
	k.index = newInvertedIndex()
	for i, doc := range k.docs {
		k.index.addDocument(i, tokenize(doc.Text))
	}
}

func (k *KeywordRetriever) Retrieve(_ context.Context, query string, topK int) ([]Document, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if len(k.docs) == 0 {
		return nil, nil
	}

	var scores []float64
	switch k.Algorithm {
	case AlgorithmTFIDF:
		scores = k.tfidfScores(query)
	default:
		scores = k.bm25Scores(query)
	}

	out := make([]Document, 0, len(k.docs))
	for i, doc := range k.docs {
		if scores[i] > 0 {
			d := doc
			d.Score = scores[i]
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (k *KeywordRetriever) bm25Scores(query string) []float64 {
	terms := tokenize(query)
	scores := make([]float64, len(k.docs))
	numDocs := float64(len(k.docs))
	avgLen := k.index.averageDocLength()

	for _, term := range terms {
		df := float64(k.index.documentFrequency(term))
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (numDocs-df+0.5)/(df+0.5))

		for i := range k.docs {
			tf := float64(k.index.termFrequency(i, term))
			docLen := float64(k.index.docLengths[i])
			numerator := tf * (bm25K1 + 1)
			denominator := tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
			scores[i] += idf * (numerator / denominator)
		}
	}
	return scores
}

func (k *KeywordRetriever) tfidfScores(query string) []float64 {
	terms := tokenize(query)
	scores := make([]float64, len(k.docs))
	numDocs := float64(len(k.docs))

	for _, term := range terms {
		df := float64(k.index.documentFrequency(term))
		if df == 0 {
			continue
		}
		idf := math.Log(numDocs / df)

		for i := range k.docs {
			totalTerms := float64(k.index.docLengths[i])
			if totalTerms == 0 {
				continue
			}
			tf := float64(k.index.termFrequency(i, term)) / totalTerms
			scores[i] += tf * idf
		}
	}
	return scores
}

var _ Retriever = (*KeywordRetriever)(nil)

func tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 2 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "is": true, "at": true, "which": true, "on": true,
	"and": true, "a": true, "an": true, "as": true, "are": true,
	"was": true, "for": true, "with": true, "this": true, "that": true,
	"of": true, "to": true, "in": true, "it": true, "be": true,
}
