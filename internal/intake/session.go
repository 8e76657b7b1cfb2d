package intake

import "sync"

// stage is the dialogue position of one chat identity. Client chats move
// through the draft stages; staff chats use the reply stages. Stages are
// ephemeral process state, distinct from the durable request rows.
type stage int

const (
	stageIdle stage = iota
	stageBranchSelect
	stageCollecting
	stageReview
	stageDispatched
	stageAwaitingReply
	stageReplyPreview
	stageClosed
)

// session holds the per-chat scratch state: the in-progress request and
// branch on the client side, the reply target on the staff side.
type session struct {
	stage     stage
	requestID string
	branch    string

	replyClientID  int64
	replyRequestID string
}

// sessionTable is a mutex-guarded map of chat identity to session. The
// transport delivers events for one chat sequentially, but different chats
// arrive concurrently, so the table itself must be safe for concurrent use.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[int64]*session)}
}

// get returns the session for chatID, creating an idle one if absent.
func (t *sessionTable) get(chatID int64) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[chatID]
	if !ok {
		s = &session{stage: stageIdle}
		t.sessions[chatID] = s
	}
	return s
}

// reset replaces the session for chatID with a fresh idle one.
func (t *sessionTable) reset(chatID int64) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &session{stage: stageIdle}
	t.sessions[chatID] = s
	return s
}
