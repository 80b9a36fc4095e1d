package store

import "time"

// Feed statuses.
const (
	FeedActive   = "active"
	FeedDisabled = "disabled"
	FeedError    = "error"
)

// Raw article lifecycle: pending → fetching → stored | duplicate | error.
const (
	RawPending   = "pending"
	RawFetching  = "fetching"
	RawStored    = "stored"
	RawDuplicate = "duplicate"
	RawError     = "error"
)

// Chunking statuses on articles_index.
const (
	ChunkingPending = "pending"
	ChunkingDone    = "done"
	ChunkingError   = "error"
)

// Embedding statuses on article_chunks.
const (
	EmbedPending = "pending"
	EmbedDone    = "done"
	EmbedError   = "error"
)

// Chunk types.
const (
	ChunkIntro      = "intro"
	ChunkBody       = "body"
	ChunkConclusion = "conclusion"
	ChunkOther      = "other"
)

// Feed is a registered RSS/Atom source.
type Feed struct {
	ID                  int64
	URL                 string
	Status              string
	LastFetchedAt       *time.Time
	LastETag            string
	LastModified        string
	ConsecutiveFailures int
	NextPollAt          time.Time
}

// RawArticle is a freshly seen feed entry awaiting processing.
type RawArticle struct {
	ID                 int64
	FeedID             int64
	URL                string
	URLHash            string
	GUID               string
	SourceDomain       string
	Title              string
	Summary            string
	Language           string
	PublishedAt        *time.Time
	FetchedAt          time.Time
	Status             string
	AttemptCount       int
	LastError          string
	CanonicalArticleID *int64
}

// Article is a canonical deduplicated row in articles_index.
type Article struct {
	ID           int64
	URL          string
	CanonicalURL string
	Source       string
	Domain       string
	Title        string
	TitleNorm    string
	CleanText    string
	TextHash     string
	PublishedAt  time.Time
	Language     string
	IsCanonical  bool
}

// Chunk is a contiguous segment of one article's body.
type Chunk struct {
	ID            int64
	ArticleID     int64
	Index         int
	Text          string
	Topic         *string
	Type          string
	TokenEstimate int
}

// TrendPoint is one article joined with its first chunk's embedding,
// the unit the trends service clusters over.
type TrendPoint struct {
	ArticleID   int64
	Title       string
	Domain      string
	PublishedAt time.Time
	Embedding   []float32
}
