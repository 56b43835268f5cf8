// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RenderConfig holds settings for the scripted rendering session.
type RenderConfig struct {
	// Headless controls whether the browser runs without a visible window
	// (default true; the --visible flag flips it).
	Headless bool `json:"headless" yaml:"headless"`

	// WindowWidth and WindowHeight set the viewport size.
	WindowWidth  int `json:"window_width" yaml:"window_width"`
	WindowHeight int `json:"window_height" yaml:"window_height"`

	// UserAgent is the browser user agent string.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// ContentTimeout bounds each wait for dynamically rendered content
	// (default 20s).
	ContentTimeout time.Duration `json:"content_timeout" yaml:"content_timeout"`

	// ScrollPause is the settle time after each scroll or pagination step
	// (default 2s).
	ScrollPause time.Duration `json:"scroll_pause" yaml:"scroll_pause"`
}

// SearchConfig holds settings for the search extraction stage.
type SearchConfig struct {
	// MaxResults is the maximum number of canonical identifiers to collect
	// (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Language is the result language requested from the search interface
	// (default "en").
	Language string `json:"language" yaml:"language"`

	// StallBudget is the number of consecutive pagination steps that may
	// yield no new identifiers before extraction gives up (default 10).
	StallBudget int `json:"stall_budget" yaml:"stall_budget"`
}

// RetrievalConfig holds settings for the document retrieval stage.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxRetries is the retry budget for transient failures per endpoint
	// (default 3; total attempts = 1 + MaxRetries).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestDelay is the pause between consecutive retrievals (default 2s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// PipelineConfig groups all stage configurations for one harvest run.
type PipelineConfig struct {
	Search    SearchConfig    `json:"search" yaml:"search"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Render    RenderConfig    `json:"render" yaml:"render"`

	// OutputDir is the directory primary artifacts are written to
	// (default "patents"; debug artifacts go under OutputDir/debug).
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Debug enables snapshot and status-record capture.
	Debug bool `json:"debug" yaml:"debug"`

	// Workers enables bounded-concurrency retrieval when > 1. Sequential
	// processing is the baseline; the upstream rate limits by client
	// identity, so concurrency requires the shared rate gate below.
	Workers int `json:"workers" yaml:"workers"`

	// RatePerSecond caps the aggregate request rate across workers
	// (default 1).
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
}
