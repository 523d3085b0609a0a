package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateLawyer registers a lawyer.
func (s *Store) CreateLawyer(ctx context.Context, l *Lawyer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("create_lawyer", ErrStoreClosed)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lawyers (id, name, email, specialization, years_of_experience, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		l.ID, l.Name, l.Email, l.Specialization, l.YearsExp, l.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return wrapError("create_lawyer", ErrConflict)
		}
		return wrapError("create_lawyer", err)
	}
	return nil
}

// GetLawyer retrieves a lawyer by ID.
func (s *Store) GetLawyer(ctx context.Context, id string) (*Lawyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_lawyer", ErrStoreClosed)
	}

	var l Lawyer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, COALESCE(specialization, ''), years_of_experience, is_active, created_at
		 FROM lawyers WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Email, &l.Specialization, &l.YearsExp, &l.IsActive, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, wrapError("get_lawyer", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_lawyer", err)
	}
	return &l, nil
}

// CreateCase opens a case for a conversation. A conversation carries at most
// one case.
func (s *Store) CreateCase(ctx context.Context, conversationID string, priority int) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("create_case", ErrStoreClosed)
	}
	if priority < 1 || priority > 5 {
		return nil, wrapError("create_case", fmt.Errorf("priority %d out of range 1..5", priority))
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (id, conversation_id, status, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, conversationID, string(CaseStatusNew), priority)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, wrapError("create_case", ErrConflict)
		}
		return nil, wrapError("create_case", err)
	}
	return s.getCaseLocked(ctx, `id = ?`, id)
}

// GetCaseByConversation retrieves the case attached to a conversation.
func (s *Store) GetCaseByConversation(ctx context.Context, conversationID string) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_case", ErrStoreClosed)
	}
	return s.getCaseLocked(ctx, `conversation_id = ?`, conversationID)
}

func (s *Store) getCaseLocked(ctx context.Context, where string, arg any) (*Case, error) {
	var c Case
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, COALESCE(lawyer_id, ''), status, priority,
		        COALESCE(legal_analysis, ''), created_at, updated_at
		 FROM cases WHERE `+where, arg).
		Scan(&c.ID, &c.ConversationID, &c.LawyerID, &status, &c.Priority,
			&c.LegalAnalysis, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, wrapError("get_case", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_case", err)
	}
	c.Status = CaseStatus(status)
	return &c, nil
}

// ClaimCase assigns a lawyer to an unclaimed case and moves it in progress.
func (s *Store) ClaimCase(ctx context.Context, caseID, lawyerID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("claim_case", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET lawyer_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lawyer_id IS NULL`,
		lawyerID, string(CaseStatusInProgress), caseID)
	if err != nil {
		return wrapError("claim_case", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrapError("claim_case", fmt.Errorf("case missing or already claimed: %w", ErrConflict))
	}
	return nil
}

// UpdateCaseStatus transitions a case's status.
func (s *Store) UpdateCaseStatus(ctx context.Context, caseID string, status CaseStatus) error {
	return s.updateCaseField(ctx, "update_case_status",
		`UPDATE cases SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), caseID)
}

// SetCasePriority changes a case's priority.
func (s *Store) SetCasePriority(ctx context.Context, caseID string, priority int) error {
	if priority < 1 || priority > 5 {
		return wrapError("set_case_priority", fmt.Errorf("priority %d out of range 1..5", priority))
	}
	return s.updateCaseField(ctx, "set_case_priority",
		`UPDATE cases SET priority = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, priority, caseID)
}

// SetCaseLegalAnalysis stores the generated legal analysis on a case.
func (s *Store) SetCaseLegalAnalysis(ctx context.Context, caseID, analysis string) error {
	return s.updateCaseField(ctx, "set_case_legal_analysis",
		`UPDATE cases SET legal_analysis = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, analysis, caseID)
}

func (s *Store) updateCaseField(ctx context.Context, op, query string, args ...any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError(op, ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrapError(op, ErrNotFound)
	}
	return nil
}
