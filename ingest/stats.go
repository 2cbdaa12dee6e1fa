package ingest

// Stats accumulates the counters spec §4.3 requires the RAG node to
// report as its "stats" output.
type Stats struct {
	ItemsTotal  int `json:"items_total"`
	ItemsDone   int `json:"items_done"`
	ItemsFailed int `json:"items_failed"`

	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Parsed  int `json:"parsed"`

	Chunks             int `json:"chunks"`
	Vectors            int `json:"vectors"`
	VectorsSkippedEmpty int `json:"vectors_skipped_empty"`

	StoreUpserts int `json:"store_upserts"`
	StoreErrors  int `json:"store_errors"`

	ExtractErrors int `json:"extract_errors"`
	ParseErrors   int `json:"parse_errors"`
	ChunkErrors   int `json:"chunk_errors"`
	EmbedErrors   int `json:"embed_errors"`

	AckErrors  int `json:"ack_errors"`
	FailErrors int `json:"fail_errors"`
}

// AsMap renders Stats as a plain map for the node's "stats" output port.
func (s Stats) AsMap() map[string]interface{} {
	return map[string]interface{}{
		"items_total":            s.ItemsTotal,
		"items_done":             s.ItemsDone,
		"items_failed":           s.ItemsFailed,
		"skipped":                s.Skipped,
		"deleted":                s.Deleted,
		"parsed":                 s.Parsed,
		"chunks":                 s.Chunks,
		"vectors":                s.Vectors,
		"vectors_skipped_empty":  s.VectorsSkippedEmpty,
		"store_upserts":          s.StoreUpserts,
		"store_errors":           s.StoreErrors,
		"extract_errors":         s.ExtractErrors,
		"parse_errors":           s.ParseErrors,
		"chunk_errors":           s.ChunkErrors,
		"embed_errors":           s.EmbedErrors,
		"ack_errors":             s.AckErrors,
		"fail_errors":            s.FailErrors,
	}
}
