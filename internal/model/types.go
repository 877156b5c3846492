package model

import (
	"encoding/json"
	"strings"
	"time"
)

type NodeType string

const (
	NodeFolder  NodeType = "folder"
	NodeRequest NodeType = "request"
)

type BodyType string

const (
	BodyNone   BodyType = "none"
	BodyForm   BodyType = "form"
	BodyJSON   BodyType = "json"
	BodyText   BodyType = "text"
	BodyHTML   BodyType = "html"
	BodyScript BodyType = "script"
)

type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
)

var Methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// KV is an ordered key/value entry. Slice order is significant: when entries
// are merged into a header map, later same-key entries override earlier ones.
// Disabled entries stay in storage but are skipped at execution time.
type KV struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

type FormValueType string

const (
	FormValueText FormValueType = "text"
	FormValueFile FormValueType = "file"
)

// FormKV extends KV for form bodies, where a value may reference a local file.
type FormKV struct {
	Key       string        `json:"key"`
	Value     string        `json:"value"`
	ValueType FormValueType `json:"valueType"`
	Enabled   bool          `json:"enabled"`
}

type Auth struct {
	Type  AuthType `json:"type"`
	Token string   `json:"token,omitempty"`
}

// Body is a tagged union keyed by Type: Form carries the form entries, the
// remaining types carry Raw (a string for text-like bodies, arbitrary JSON
// for json bodies).
type Body struct {
	Type BodyType        `json:"type"`
	Form []FormKV        `json:"form,omitempty"`
	Raw  json.RawMessage `json:"value,omitempty"`
}

// RawString unwraps Raw when it encodes a JSON string, otherwise returns the
// raw encoding verbatim.
func (b Body) RawString() string {
	if len(b.Raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Raw, &s); err == nil {
		return s
	}
	return string(b.Raw)
}

func TextBody(t BodyType, value string) Body {
	raw, _ := json.Marshal(value)
	return Body{Type: t, Raw: raw}
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// TreeNode is one entry in a project's request hierarchy. Nodes form a forest
// rooted at ParentID == "" and order among siblings by SortOrder.
type TreeNode struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	ParentID  string   `json:"parentId,omitempty"`
	Type      NodeType `json:"type"`
	Name      string   `json:"name"`
	SortOrder int      `json:"sortOrder"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// RequestDefinition is the full configuration behind a request-type node.
// Exactly one definition exists per request node and shares its name.
type RequestDefinition struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	NodeID    string `json:"nodeId"`
	Name      string `json:"name"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Auth      Auth   `json:"auth"`
	Headers   []KV   `json:"headers"`
	Query     []KV   `json:"query"`
	Body      Body   `json:"body"`
	UpdatedAt int64  `json:"updatedAt"`
}

type Environment struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Variables []KV   `json:"variables"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

type ProjectSettings struct {
	ID            string `json:"id"`
	ProjectID     string `json:"projectId"`
	GlobalHeaders []KV   `json:"globalHeaders"`
	ActiveEnvID   string `json:"activeEnvId,omitempty"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// RunResult is the normalized outcome of one request execution. Status is nil
// when the call never produced an HTTP response; Error is empty on success.
type RunResult struct {
	Status     *int              `json:"status"`
	DurationMs int64             `json:"durationMs"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Error      string            `json:"error,omitempty"`
}

func DefaultRequestDefinition(projectID, nodeID, name string, now int64) RequestDefinition {
	return RequestDefinition{
		ProjectID: projectID,
		NodeID:    nodeID,
		Name:      name,
		Method:    "GET",
		URL:       "",
		Auth:      Auth{Type: AuthNone},
		Headers:   []KV{},
		Query:     []KV{},
		Body:      Body{Type: BodyNone},
		UpdatedAt: now,
	}
}

// Now returns the current wall clock as epoch milliseconds, the timestamp
// unit used across all records.
func Now() int64 {
	return time.Now().UnixMilli()
}

func CloneKVs(in []KV) []KV {
	if in == nil {
		return nil
	}
	out := make([]KV, len(in))
	copy(out, in)
	return out
}

// ValidateName enforces the shared naming rule for projects, nodes and
// environments: non-blank after trimming and at most 120 characters.
func ValidateName(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > 120 {
		return "", false
	}
	return trimmed, true
}
