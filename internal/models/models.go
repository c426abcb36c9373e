package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// FileChangeType describes what happened to a file in a commit.
type FileChangeType string

const (
	FileAdded    FileChangeType = "added"
	FileModified FileChangeType = "modified"
	FileDeleted  FileChangeType = "deleted"
	FileRenamed  FileChangeType = "renamed"
)

// FileChange is one file touched by a commit.
type FileChange struct {
	Path      string         `json:"path"`
	Type      FileChangeType `json:"type"`
	Additions int            `json:"additions"`
	Deletions int            `json:"deletions"`
}

// Commit is a single commit as supplied by the commit source.
// Read-only to the engine; classifications are derived, never written back.
type Commit struct {
	SHA         string       `json:"sha" db:"sha"`
	RepoID      string       `json:"repo_id" db:"repo_id"`
	Author      string       `json:"author" db:"author"`
	AuthorEmail string       `json:"author_email" db:"author_email"`
	Message     string       `json:"message" db:"message"`
	Timestamp   time.Time    `json:"timestamp" db:"timestamp"`
	Files       []FileChange `json:"files"`
}

// Subject returns the first line of the commit message.
func (c *Commit) Subject() string {
	msg := strings.TrimSpace(c.Message)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

// ChangeKind labels the nature of a commit.
type ChangeKind string

const (
	KindFeature  ChangeKind = "feature"
	KindFix      ChangeKind = "fix"
	KindDocs     ChangeKind = "docs"
	KindRefactor ChangeKind = "refactor"
	KindTest     ChangeKind = "test"
	KindChore    ChangeKind = "chore"
	KindUnknown  ChangeKind = "unknown"
)

// kindPriority is the fixed tie-break order for dominant-kind selection.
// Earlier entries win ties.
var kindPriority = []ChangeKind{
	KindFeature, KindFix, KindRefactor, KindTest, KindDocs, KindChore, KindUnknown,
}

// KindPriority returns the tie-break rank of a kind (lower wins).
func KindPriority(k ChangeKind) int {
	for i, kind := range kindPriority {
		if kind == k {
			return i
		}
	}
	return len(kindPriority)
}

// KindsByPriority returns all change kinds in tie-break order.
func KindsByPriority() []ChangeKind {
	out := make([]ChangeKind, len(kindPriority))
	copy(out, kindPriority)
	return out
}

// ChangeClassification is the derived label for one commit.
// Immutable after creation: recompute, don't patch.
type ChangeClassification struct {
	CommitSHA  string     `json:"commit_sha"`
	Kind       ChangeKind `json:"kind"`
	Confidence float64    `json:"confidence"` // [0,1]
	Complexity float64    `json:"complexity"` // >= 0
	Rule       string     `json:"rule"`       // name of the matched rule, for observability
}

// ChangeSummary aggregates classifications over an ordered commit set.
// One per generation request; immutable once built.
type ChangeSummary struct {
	DominantKind    ChangeKind         `json:"dominant_kind"`
	KindCounts      map[ChangeKind]int `json:"kind_counts"`
	TotalComplexity float64            `json:"total_complexity"`
	CommitCount     int                `json:"commit_count"`
	FileCount       int                `json:"file_count"`
	FileTypes       []string           `json:"file_types"` // sorted distinct extensions
	Files           []string           `json:"files"`      // sorted distinct paths
	Subjects        []string           `json:"subjects"`   // commit subjects in input order
}

// Tone selects the voice of the generated message.
type Tone string

const (
	ToneConcise   Tone = "concise"
	ToneDetailed  Tone = "detailed"
	ToneTechnical Tone = "technical"
)

// ValidTone reports whether t is a recognized tone.
func ValidTone(t Tone) bool {
	switch t {
	case ToneConcise, ToneDetailed, ToneTechnical:
		return true
	}
	return false
}

// Template is a user-defined PR message template.
type Template struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

// StylePreference is the resolved style input for one generation.
type StylePreference struct {
	Tone     Tone      `json:"tone"`
	Template *Template `json:"template,omitempty"` // nil means the built-in default
}

// GenerationRequest is the canonical unit of work. Two requests with the
// same repository, commit set, tone, and template are the same request
// regardless of commit submission order.
type GenerationRequest struct {
	RepoID     string   `json:"repo_id"`
	UserID     string   `json:"user_id"`
	CommitSHAs []string `json:"commit_shas"`
	Tone       Tone     `json:"tone"`
	TemplateID string   `json:"template_id"`
}

// SortedSHAs returns the deduplicated commit SHAs in lexical order.
func (r *GenerationRequest) SortedSHAs() []string {
	seen := make(map[string]struct{}, len(r.CommitSHAs))
	out := make([]string, 0, len(r.CommitSHAs))
	for _, sha := range r.CommitSHAs {
		if _, ok := seen[sha]; ok {
			continue
		}
		seen[sha] = struct{}{}
		out = append(out, sha)
	}
	sort.Strings(out)
	return out
}

// CanonicalKey returns the cache key for this request: a digest over the
// repository, sorted commit set, tone, and template.
func (r *GenerationRequest) CanonicalKey() string {
	h := sha256.New()
	h.Write([]byte(r.RepoID))
	h.Write([]byte{0})
	for _, sha := range r.SortedSHAs() {
		h.Write([]byte(sha))
		h.Write([]byte{0})
	}
	h.Write([]byte(r.Tone))
	h.Write([]byte{0})
	h.Write([]byte(r.TemplateID))
	return hex.EncodeToString(h.Sum(nil))
}

// ResultSource records whether a result came from the cache or a fresh call.
type ResultSource string

const (
	SourceFresh    ResultSource = "fresh"
	SourceCacheHit ResultSource = "cache-hit"
)

// Provenance records how the message text was produced.
type Provenance string

const (
	ProvenanceGenerated Provenance = "generated"
	ProvenanceRepaired  Provenance = "repaired" // backend JSON needed repair
	ProvenanceFallback  Provenance = "fallback" // synthesized from the change summary
)

// Section is one titled block of the PR message body.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// GenerationResult is a finished PR message. Immutable once persisted,
// except for the append-once feedback attached by the caller.
type GenerationResult struct {
	ID           string       `json:"id" db:"id"`
	RepoID       string       `json:"repo_id" db:"repo_id"`
	Title        string       `json:"title" db:"title"`
	Body         string       `json:"body" db:"body"`
	Sections     []Section    `json:"sections"`
	Source       ResultSource `json:"source" db:"source"`
	Provenance   Provenance   `json:"provenance" db:"provenance"`
	Model        string       `json:"model" db:"model"`
	TokensUsed   int          `json:"tokens_used" db:"tokens_used"`
	ProcessingMS int64        `json:"processing_ms" db:"processing_ms"`
	GeneratedAt  time.Time    `json:"generated_at" db:"generated_at"`
}

// FeedbackStatus is the caller's verdict on a generated message.
type FeedbackStatus string

const (
	FeedbackAccepted FeedbackStatus = "accepted"
	FeedbackEdited   FeedbackStatus = "edited"
	FeedbackRejected FeedbackStatus = "rejected"
)

// ValidFeedbackStatus reports whether s is a recognized feedback status.
func ValidFeedbackStatus(s FeedbackStatus) bool {
	switch s {
	case FeedbackAccepted, FeedbackEdited, FeedbackRejected:
		return true
	}
	return false
}

// Feedback is attached append-once to a persisted result.
type Feedback struct {
	Status    FeedbackStatus `json:"status"`
	Rating    int            `json:"rating,omitempty"` // 1-5, 0 means unset
	Comment   string         `json:"comment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// HistoryEntry is one persisted generation with its originating request.
type HistoryEntry struct {
	Result     GenerationResult `json:"result"`
	UserID     string           `json:"user_id,omitempty"`
	CommitSHAs []string         `json:"commit_shas"`
	Tone       Tone             `json:"tone"`
	TemplateID string           `json:"template_id"`
	Feedback   *Feedback        `json:"feedback,omitempty"`
}
