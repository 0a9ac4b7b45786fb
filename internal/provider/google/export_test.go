// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package google

var (
	BuildConfig     = buildConfig
	ConvertMessages = convertMessages
)
