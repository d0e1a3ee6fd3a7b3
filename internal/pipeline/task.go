package pipeline

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ReasoningDepth hints how much model reasoning a task's worker should
// request. The pipeline never depends on which implementation honours it.
type ReasoningDepth string

const (
	DepthNone    ReasoningDepth = "none"
	DepthShallow ReasoningDepth = "shallow"
	DepthDeep    ReasoningDepth = "deep"
)

// TaskDescriptor is an immutable unit of dispatched work. Its ID is
// derived from the generating dimension tuple, so identical inputs
// always produce identical ids. That supports caller-side dedup and
// tracing, not executor-internal caching.
type TaskDescriptor struct {
	ID      string
	Kind    string
	Payload map[string]string
	Depth   ReasoningDepth
}

// TaskResult is produced exactly once per accepted descriptor.
type TaskResult struct {
	TaskID   string
	Value    any
	Err      error
	Duration time.Duration
}

// Ok reports whether the task produced a usable value.
func (r TaskResult) Ok() bool {
	return r.Err == nil
}

// Worker executes one task. A returned error is captured in the task's
// result and never affects sibling tasks.
type Worker func(ctx context.Context, task TaskDescriptor) (any, error)

// canonicalID builds a deterministic task id from the kind and the
// payload's key-sorted values. Keys and values are query-escaped so
// payloads containing the separator characters cannot produce the
// same id as a differently split tuple.
func canonicalID(kind string, payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, kind)
	for _, key := range keys {
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(payload[key]))
	}

	return strings.Join(parts, ":")
}
