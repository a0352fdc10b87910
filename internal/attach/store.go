/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package attach keeps in-memory media attachments and loads them with
// bounded concurrency.
package attach

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

//revive:disable:exported
var ErrQueueClosed = errors.New("attach: queue closed")

// Attachment is a media payload and its declared MIME type.
type Attachment struct {
	ID   uuid.UUID
	Name string
	MIME string
	Data []byte
}

// Store is a concurrent map of attachments keyed by generated IDs.
type Store struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Attachment
}

func NewStore() *Store {
	return &Store{items: make(map[uuid.UUID]Attachment)}
}

// Put stores data under a new ID.
func (s *Store) Put(name, mime string, data []byte) uuid.UUID {
	id := uuid.New()

	s.mu.Lock()
	s.items[id] = Attachment{ID: id, Name: name, MIME: mime, Data: data}
	s.mu.Unlock()

	return id
}

func (s *Store) Get(id uuid.UUID) (Attachment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]

	return a, ok
}

// Remove deletes id and reports whether it was present.
func (s *Store) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[id]
	delete(s.items, id)

	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}
