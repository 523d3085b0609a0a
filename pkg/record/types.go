package record

import "time"

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	// StatusPending marks a document that has been created but not processed.
	StatusPending DocumentStatus = "pending"
	// StatusProcessing marks a document whose text is being chunked and embedded.
	StatusProcessing DocumentStatus = "processing"
	// StatusIndexed marks a document whose chunks are searchable.
	StatusIndexed DocumentStatus = "indexed"
	// StatusFailed is the terminal state of a failed ingestion.
	StatusFailed DocumentStatus = "failed"
)

// CaseStatus tracks a legal case through its lifecycle.
type CaseStatus string

const (
	CaseStatusNew        CaseStatus = "new"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusReview     CaseStatus = "review"
	CaseStatusResolved   CaseStatus = "resolved"
	CaseStatusClosed     CaseStatus = "closed"
)

// KnowledgeBase is a named collection of documents indexed as one partition.
type KnowledgeBase struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Partition   string    `json:"partition"` // stable key of the vector partition
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KnowledgeBaseInfo is a knowledge base with its document count, as returned
// by listings.
type KnowledgeBaseInfo struct {
	KnowledgeBase
	DocumentCount int `json:"document_count"`
}

// Document is a single ingested source of chunks.
type Document struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	FilePath         string         `json:"file_path"`
	FileType         string         `json:"file_type"`
	SourceURL        string         `json:"source_url,omitempty"`
	OriginalFilename string         `json:"original_filename,omitempty"`
	Status           DocumentStatus `json:"status"`
	KnowledgeBaseID  string         `json:"knowledge_base_id,omitempty"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	UploadedAt       time.Time      `json:"uploaded_at"`
}

// Chunk is a bounded passage of document text. Ordinal is unique per document,
// assigned sequentially from 0 at ingestion and immutable afterwards.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// QueryRecord stores a user query and its eventual response for history.
type QueryRecord struct {
	ID              string    `json:"id"`
	QueryText       string    `json:"query_text"`
	ResponseText    string    `json:"response_text,omitempty"`
	KnowledgeBaseID string    `json:"knowledge_base_id,omitempty"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Conversation is a thread of messages, optionally carrying attached documents
// and a case.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Message is a single utterance in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	FromUser       bool      `json:"from_user"`
	CreatedAt      time.Time `json:"created_at"`
}

// Lawyer is a practitioner who can claim cases.
type Lawyer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Specialization string    `json:"specialization,omitempty"`
	YearsExp       int       `json:"years_of_experience"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Case is a legal case generated from a conversation. One case per conversation.
type Case struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	LawyerID       string     `json:"lawyer_id,omitempty"`
	Status         CaseStatus `json:"status"`
	Priority       int        `json:"priority"` // 1 (low) through 5 (critical)
	LegalAnalysis  string     `json:"legal_analysis,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
