// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import "sync"

// mailbox is an unbounded FIFO queue of tasks for the worker. Posting
// never blocks: producers append under a short lock and signal the
// worker through a capacity-1 channel. The worker takes every queued
// task at once and runs them in order.
type mailbox struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// post queues task. Returns false if the mailbox is closed.
func (m *mailbox) post(task func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns every queued task.
func (m *mailbox) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := m.tasks
	m.tasks = nil
	return tasks
}

// close rejects further posts and returns the tasks still queued.
func (m *mailbox) close() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	tasks := m.tasks
	m.tasks = nil
	return tasks
}
