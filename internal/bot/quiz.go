package bot

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// pendingQuiz is a question waiting for its answer.
type pendingQuiz struct {
	id      string
	userID  string
	options []string
	correct int
}

// QuizTracker holds the quizzes in flight. The oldest quiz is evicted when
// capacity is reached; its answer then reads as stale. Contents are
// process-local and lost on restart.
type QuizTracker struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

// NewQuizTracker creates a tracker holding at most capacity quizzes.
func NewQuizTracker(capacity int) *QuizTracker {
	if capacity <= 0 {
		capacity = 1
	}
	return &QuizTracker{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Add registers a quiz and returns its id.
func (t *QuizTracker) Add(userID string, options []string, correct int) string {
	q := &pendingQuiz{id: uuid.NewString(), userID: userID, options: options, correct: correct}

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.order.Len() >= t.capacity {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.items, oldest.Value.(*pendingQuiz).id)
	}
	t.items[q.id] = t.order.PushFront(q)
	return q.id
}

// Take removes and returns the quiz id asked to userID.
func (t *QuizTracker) Take(id, userID string) (pendingQuiz, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.items[id]
	if !ok {
		return pendingQuiz{}, false
	}
	q := el.Value.(*pendingQuiz)
	if q.userID != userID {
		return pendingQuiz{}, false
	}
	t.order.Remove(el)
	delete(t.items, id)
	return *q, true
}

// Len returns the number of quizzes in flight.
func (t *QuizTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
