// Package search implements the product search index on PostgreSQL with
// pgvector. It covers schema provisioning (vector + full-text fields),
// document upserts, and hybrid retrieval that fuses lexical and vector
// rankings.
package search

// Document is one indexed row: a catalog record plus its content embedding.
// Vector length must equal the index's configured dimensionality.
type Document struct {
	ID      string
	Title   string
	Content string
	Vector  []float32
}

// Hit is the projection returned by hybrid search: the id/title/content
// subset of an indexed document, without the vector.
type Hit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Query is one hybrid search request. Text drives the lexical match over
// title and content; Vector drives cosine nearest-neighbor ranking.
type Query struct {
	Text   string
	Vector []float32
	TopK   int
}
