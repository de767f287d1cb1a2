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

package collector

import "errors"

var (
	// ErrRegistrationFailed means a connection did not deliver a valid
	// registration snapshot in time. Nothing is registered for it.
	ErrRegistrationFailed = errors.New("registration failed")

	errAlreadyStarted      = errors.New("collector already started")
	errNotStarted          = errors.New("collector not started")
	errInvalidPort         = errors.New("bind_port must be between 0 and 65535")
	errPollTimeoutTooLarge = errors.New("poll_timeout must be less than poll_interval")
	errInvalidMaxIOErrors  = errors.New("max_io_errors must be at least 1")
	errNegativeMaxMissed   = errors.New("max_missed_polls must not be negative")
	errNegativeDuration    = errors.New("durations must not be negative")
)
