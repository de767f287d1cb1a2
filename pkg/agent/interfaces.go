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

//go:generate mockgen -destination=mock_collector.go -package=agent github.com/carverauto/hostwatch/pkg/agent SnapshotCollector

package agent

import (
	"context"

	"github.com/carverauto/hostwatch/pkg/models"
)

// SnapshotCollector gathers the local host's current resource state.
type SnapshotCollector interface {
	Collect(ctx context.Context) (*models.Snapshot, error)
}

// State is the agent's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistered
	StateServing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateServing:
		return "serving"
	default:
		return "unknown"
	}
}
