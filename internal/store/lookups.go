// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import "context"

// Manager is a name/email pair from the meeting_managers lookup table.
type Manager struct {
	Name  string
	Email string
}

// ListClients returns client names for dropdown population, sorted.
func (s *Store) ListClients(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ListManagers returns manager name/email pairs, sorted by name.
func (s *Store) ListManagers(ctx context.Context) ([]Manager, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, email FROM meeting_managers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var managers []Manager
	for rows.Next() {
		var m Manager
		if err := rows.Scan(&m.Name, &m.Email); err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

// EnsureClient persists a new client name if unseen. Convenience for the
// "Other…" intake path; conflicts are ignored.
func (s *Store) EnsureClient(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clients (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, name)
	return err
}

// EnsureManager persists a new manager pair if unseen.
func (s *Store) EnsureManager(ctx context.Context, name, email string) error {
	if name == "" || email == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_managers (name, email) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, email)
	return err
}
