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

package models

import "time"

// CloudEvent is a CloudEvents 1.0 envelope in structured JSON mode.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// ClientEventData is the payload of a client lifecycle event.
type ClientEventData struct {
	Key           string    `json:"key"`
	SessionID     string    `json:"session_id"`
	Host          string    `json:"host,omitempty"`
	CPUPhysical   int       `json:"cpu_physical,omitempty"`
	MemoryFreeGiB uint64    `json:"memory_free_gib,omitempty"`
	DiskFreeGiB   uint64    `json:"disk_free_gib,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
