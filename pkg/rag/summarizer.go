package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/counselops/lexrag/pkg/record"
)

// maxDirectFileRead bounds how much raw file content feeds the analysis when
// a document was never chunked.
const maxDirectFileRead = 10000

const summarySystemPrompt = `You are a legal analyst preparing a case intake summary for a practicing attorney. Base your analysis strictly on the material provided. Include only factual information and avoid making assumptions where information is lacking.`

// documentDigest is the per-document material fed into the analysis prompt.
type documentDigest struct {
	DocumentID  string `json:"document_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FileType    string `json:"file_type"`
	Content     string `json:"content"`
	ChunkCount  int    `json:"chunk_count,omitempty"`
}

// SummarizeCase builds a structured legal analysis from a conversation's
// history and attached documents, stores it on the conversation's case
// (creating one if needed) and returns it. A conversation without messages
// yields an explanatory message without calling the generative provider.
func (s *Service) SummarizeCase(ctx context.Context, conversationID string) (string, error) {
	messages, err := s.records.MessagesByConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "No messages found in this conversation to analyze.", nil
	}

	history := formatHistory(messages)
	digests, err := s.collectDocumentDigests(ctx, conversationID)
	if err != nil {
		return "", err
	}

	prompt, err := buildSummaryPrompt(history, digests)
	if err != nil {
		return "", err
	}

	analysis, err := s.completer.Complete(ctx, summarySystemPrompt, prompt, 0.2)
	if err != nil {
		return "", fmt.Errorf("case analysis failed: %w", err)
	}

	if err := s.storeAnalysis(ctx, conversationID, analysis); err != nil {
		return "", err
	}
	s.log.Info("case analysis generated",
		zap.String("conversation_id", conversationID),
		zap.Int("documents", len(digests)))
	return analysis, nil
}

func (s *Service) storeAnalysis(ctx context.Context, conversationID, analysis string) error {
	c, err := s.records.GetCaseByConversation(ctx, conversationID)
	if errors.Is(err, record.ErrNotFound) {
		c, err = s.records.CreateCase(ctx, conversationID, 3)
	}
	if err != nil {
		return err
	}
	return s.records.SetCaseLegalAnalysis(ctx, c.ID, analysis)
}

// collectDocumentDigests gathers content for every attached document: chunk
// text when the document was indexed, otherwise a bounded read of the stored
// file. Documents with no recoverable content are skipped.
func (s *Service) collectDocumentDigests(ctx context.Context, conversationID string) ([]documentDigest, error) {
	docs, err := s.records.DocumentsByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var digests []documentDigest
	for _, doc := range docs {
		digest := documentDigest{
			DocumentID:  doc.ID,
			Title:       doc.Title,
			Description: doc.Description,
			FileType:    doc.FileType,
		}

		chunks, err := s.records.ChunksByDocument(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.Content
			}
			digest.Content = strings.Join(texts, "\n\n")
			digest.ChunkCount = len(chunks)
		} else if doc.FilePath != "" {
			digest.Content = readFileBounded(doc.FilePath)
		}

		if digest.Content == "" {
			s.log.Warn("no content recovered for attached document",
				zap.String("document_id", doc.ID),
				zap.String("title", doc.Title))
			continue
		}
		digests = append(digests, digest)
	}
	return digests, nil
}

func readFileBounded(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > maxDirectFileRead {
		return string(data[:maxDirectFileRead]) + "... (content truncated)"
	}
	return string(data)
}

func formatHistory(messages []record.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		sender := "AI Assistant"
		if m.FromUser {
			sender = "Client"
		}
		lines[i] = fmt.Sprintf("%s: %s", sender, m.Content)
	}
	return strings.Join(lines, "\n")
}

func buildSummaryPrompt(history string, digests []documentDigest) (string, error) {
	var sb strings.Builder
	sb.WriteString("Based on the following conversation between a client and AI assistant, " +
		"please provide a comprehensive legal analysis including:\n" +
		"1. Key legal issues identified\n" +
		"2. Potential legal claims or defenses\n" +
		"3. Applicable laws or regulations\n" +
		"4. Recommended next steps\n\n")
	sb.WriteString("CONVERSATION HISTORY:\n")
	sb.WriteString(history)
	sb.WriteString("\n\n")

	if len(digests) > 0 {
		encoded, err := json.MarshalIndent(digests, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode document digests: %w", err)
		}
		sb.WriteString("RELEVANT DOCUMENTS:\n")
		sb.Write(encoded)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Please format your analysis in a clear, structured manner suitable " +
		"for a legal professional to review.")
	return sb.String(), nil
}
