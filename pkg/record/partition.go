package record

import "context"

// PartitionRef names a vector partition together with its human-readable
// label, as used for planning and result provenance.
type PartitionRef struct {
	Partition string
	Label     string
}

// IndexedConversationPartitions returns the distinct knowledge-base partitions
// referenced by a conversation's documents, restricted to documents whose
// ingestion reached the indexed state. Order follows first attachment.
func (s *Store) IndexedConversationPartitions(ctx context.Context, conversationID string) ([]PartitionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("indexed_conversation_partitions", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kb.partition_key, kb.name
		 FROM documents d
		 JOIN knowledge_bases kb ON kb.id = d.knowledge_base_id
		 WHERE d.conversation_id = ? AND d.status = ?
		 GROUP BY kb.partition_key
		 ORDER BY MIN(d.uploaded_at)`,
		conversationID, string(StatusIndexed))
	if err != nil {
		return nil, wrapError("indexed_conversation_partitions", err)
	}
	defer rows.Close()

	var out []PartitionRef
	for rows.Next() {
		var ref PartitionRef
		if err := rows.Scan(&ref.Partition, &ref.Label); err != nil {
			return nil, wrapError("indexed_conversation_partitions", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
