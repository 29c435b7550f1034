package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/types"
)

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*types.ChatSession
	created  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*types.ChatSession{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) (*types.ChatSession, error) {
	f.sessions[session.ID] = session
	f.created++
	return session, nil
}

func (f *fakeSessionRepo) GetActiveOwned(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.ChatSession, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID || s.Status != types.SessionStatusActive {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) TouchActivity(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	if s, ok := f.sessions[id]; ok {
		s.LastActivityAt = at
		s.UpdatedAt = at
	}
	return nil
}

func (f *fakeSessionRepo) IncrementStats(ctx context.Context, tx *gorm.DB, id uuid.UUID, messageDelta, tokenDelta int, at time.Time) error {
	if s, ok := f.sessions[id]; ok {
		s.TotalMessages += messageDelta
		s.TotalTokenEstimate += tokenDelta
		s.LastActivityAt = at
	}
	return nil
}

func (f *fakeSessionRepo) Close(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	if s, ok := f.sessions[id]; ok {
		s.Status = types.SessionStatusClosed
		s.ClosedAt = &at
	}
	return nil
}

type fakeMessageRepo struct {
	messages []*types.ChatMessage
}

func (f *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, message *types.ChatMessage) (*types.ChatMessage, error) {
	f.messages = append(f.messages, message)
	return message, nil
}

func (f *fakeMessageRepo) RecentBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	var matched []*types.ChatMessage
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			matched = append(matched, m)
		}
	}
	// Newest first, like the real query.
	var out []*types.ChatMessage
	for i := len(matched) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, matched[i])
	}
	return out, nil
}

func TestGetOrCreate_NewSessionWhenNoneSupplied(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewChatSessionService(nil, testLogger(), repo, &fakeMessageRepo{})

	session, err := svc.GetOrCreate(context.Background(), uuid.New(), uuid.New(), "en", "gemini", "m", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != types.SessionStatusActive {
		t.Fatalf("new session must be active, got %q", session.Status)
	}
	if repo.created != 1 {
		t.Fatalf("want 1 created session got %d", repo.created)
	}
}

func TestGetOrCreate_ReusesOwnActiveSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewChatSessionService(nil, testLogger(), repo, &fakeMessageRepo{})
	userID := uuid.New()
	gameID := uuid.New()

	first, err := svc.GetOrCreate(context.Background(), userID, gameID, "en", "gemini", "m", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := time.Now().UTC().Add(-time.Minute)
	repo.sessions[first.ID].LastActivityAt = before

	second, err := svc.GetOrCreate(context.Background(), userID, gameID, "en", "gemini", "m", &first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected session reuse, got new id")
	}
	if repo.created != 1 {
		t.Fatalf("reuse must not create a second session")
	}
	if !repo.sessions[first.ID].LastActivityAt.After(before) {
		t.Fatalf("reuse must advance last activity")
	}
}

func TestGetOrCreate_OtherUsersSessionGetsFreshOne(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewChatSessionService(nil, testLogger(), repo, &fakeMessageRepo{})
	gameID := uuid.New()

	theirs, err := svc.GetOrCreate(context.Background(), uuid.New(), gameID, "en", "gemini", "m", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mine, err := svc.GetOrCreate(context.Background(), uuid.New(), gameID, "en", "gemini", "m", &theirs.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mine.ID == theirs.ID {
		t.Fatalf("one user must never continue another user's session")
	}
}

func TestGetOrCreate_GameMismatchGetsFreshOne(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewChatSessionService(nil, testLogger(), repo, &fakeMessageRepo{})
	userID := uuid.New()

	chessSession, err := svc.GetOrCreate(context.Background(), userID, uuid.New(), "en", "gemini", "m", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other, err := svc.GetOrCreate(context.Background(), userID, uuid.New(), "en", "gemini", "m", &chessSession.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID == chessSession.ID {
		t.Fatalf("a session is bound to its game; mismatch must start a new one")
	}
}

func TestHistory_ChronologicalOrderAndLimit(t *testing.T) {
	sessionID := uuid.New()
	messages := &fakeMessageRepo{}
	svc := NewChatSessionService(nil, testLogger(), newFakeSessionRepo(), messages)

	for _, content := range []string{"m1", "m2", "m3"} {
		if _, err := svc.AppendMessage(context.Background(), sessionID, types.SenderUser, content, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := svc.History(context.Background(), sessionID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("want 2 messages got %d", len(history))
	}
	if history[0].Content != "m2" || history[1].Content != "m3" {
		t.Fatalf("want [m2 m3] got [%s %s]", history[0].Content, history[1].Content)
	}
}

func TestClose_OwnershipRequired(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewChatSessionService(nil, testLogger(), repo, &fakeMessageRepo{})
	owner := uuid.New()

	session, err := svc.GetOrCreate(context.Background(), owner, uuid.New(), "en", "gemini", "m", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Close(context.Background(), uuid.New(), session.ID); err == nil {
		t.Fatalf("closing someone else's session must fail")
	} else if !apierr.IsCode(err, "session_not_found") {
		t.Fatalf("want session_not_found got %v", err)
	}

	if err := svc.Close(context.Background(), owner, session.ID); err != nil {
		t.Fatalf("owner close failed: %v", err)
	}
	if repo.sessions[session.ID].Status != types.SessionStatusClosed {
		t.Fatalf("session must be closed, got %q", repo.sessions[session.ID].Status)
	}
}
