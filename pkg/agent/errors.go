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

package agent

import "errors"

var (
	// ErrConnectFailed means the collector could not be reached.
	ErrConnectFailed = errors.New("failed to connect to collector")
	// ErrCollectionFailed means a snapshot could not be gathered.
	ErrCollectionFailed = errors.New("snapshot collection failed")

	errIdleTimeout       = errors.New("no traffic from collector within max idle time")
	errAddressRequired   = errors.New("collector_address is required")
	errInvalidPort       = errors.New("collector_port must be between 1 and 65535")
	errNegativeDuration  = errors.New("durations must not be negative")
	errCollectorRequired = errors.New("snapshot collector is required")
	errAlreadyRunning    = errors.New("agent already running")
)
