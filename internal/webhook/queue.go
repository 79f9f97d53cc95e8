package webhook

import "sync"

// userQueue runs the tasks of one key in arrival order and tasks of
// different keys concurrently. A key owns a goroutine only while it has
// pending work.
type userQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

func newUserQueue() *userQueue {
	return &userQueue{pending: make(map[string][]func())}
}

func (q *userQueue) enqueue(key string, task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if tasks, running := q.pending[key]; running {
		q.pending[key] = append(tasks, task)
		return
	}
	q.pending[key] = nil
	q.wg.Go(func() { q.run(key, task) })
}

func (q *userQueue) run(key string, task func()) {
	for {
		task()

		q.mu.Lock()
		tasks := q.pending[key]
		if len(tasks) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		task, q.pending[key] = tasks[0], tasks[1:]
		q.mu.Unlock()
	}
}

// active returns the number of keys with running work.
func (q *userQueue) active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// wait blocks until every queued task has finished.
func (q *userQueue) wait() {
	q.wg.Wait()
}
