/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import "errors"

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("client not found")
	// ErrEmptyRegistry is returned by Averages when there are no clients.
	ErrEmptyRegistry = errors.New("no clients registered")
	// ErrNotOwner is returned when a session updates a record that another session replaced.
	ErrNotOwner = errors.New("record owned by another session")
	errNilSnapshot = errors.New("snapshot is required")
	errEmptyKey    = errors.New("key is required")
)
