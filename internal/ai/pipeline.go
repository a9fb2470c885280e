package ai

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sagenotes/sage/internal/store"
	"github.com/sagenotes/sage/pkg/vector"
)

// Pipeline runs the note-facing AI operations against the persistence layer
// and the in-memory vector index.
type Pipeline struct {
	client *Client
	store  store.Storer
	index  *vector.Index // nil when the local index is not configured
	log    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithIndex attaches the local vector index.
func WithIndex(ix *vector.Index) PipelineOption {
	return func(p *Pipeline) { p.index = ix }
}

// WithPipelineLogger injects a logger; slog.Default() otherwise.
func WithPipelineLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline wires the provider client to the store. client must not be nil.
func NewPipeline(client *Client, st store.Storer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client: client,
		store:  st,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Client exposes the underlying provider client.
func (p *Pipeline) Client() *Client { return p.client }

// IndexNote embeds the note and stores the embedding, delete-then-insert.
// A failed insert gets exactly one retry after re-applying the schema; no
// other call in the pipeline retries.
func (p *Pipeline) IndexNote(ctx context.Context, note *store.Note) error {
	embedding, err := p.client.Embed(ctx, note.Title+"\n"+note.Content)
	if err != nil {
		return err
	}

	if err := p.store.SaveEmbedding(note.ID, embedding, note.Content); err != nil {
		p.log.Warn("embedding insert failed, refreshing schema and retrying", "note", note.ID, "error", err)
		if schemaErr := p.store.EnsureSchema(); schemaErr != nil {
			return schemaErr
		}
		if err := p.store.SaveEmbedding(note.ID, embedding, note.Content); err != nil {
			return err
		}
	}

	if p.index != nil {
		if err := p.index.Add(note.ID, embedding); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNote drops the note's embedding from store and index.
func (p *Pipeline) RemoveNote(ctx context.Context, noteID string) error {
	if p.index != nil {
		p.index.Remove(noteID)
	}
	return p.store.DeleteEmbedding(noteID)
}

// FindSimilar embeds the query and returns stored notes above the
// similarity threshold, best first.
func (p *Pipeline) FindSimilar(ctx context.Context, query string, threshold float32, limit int) ([]store.MatchResult, error) {
	embedding, err := p.client.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.store.MatchNotes(embedding, threshold, limit)
}

// sagePrompt constrains the assistant to the supplied note context.
const sagePrompt = `You are Sage, an AI assistant specialized in helping users organize and analyze their notes. Only provide responses based on the content of the user's notes. Do not answer questions or provide information that falls outside the context of these notes. If you are asked about something not included in the notes, politely inform the user that you can only assist with the information provided.

Format your responses using Markdown for better readability. Use headings, lists, and emphasis where appropriate.

When providing summaries or analysis:

- Use clear section headings
- Break down complex information into bullet points
- Use bold for key terms
- Include relevant quotes in blockquotes
- Organize related points under subheadings`

// Chat answers a question over the conversation history. The system prompt
// pins the assistant to note context; a provider failure surfaces as an
// error with no retry.
func (p *Pipeline) Chat(ctx context.Context, history []Message) (*Message, error) {
	messages := append([]Message{{Role: "system", Content: sagePrompt}}, history...)
	return p.client.Chat(ctx, messages, 0.7, 2000)
}

// cleanupPrompt instructs the rewrite pass.
const cleanupPrompt = `You are an expert editor. Improve the given note while maintaining its core meaning.
- Fix grammar and spelling
- Improve clarity and structure
- Format with Markdown
- Preserve all links and references
- Keep the same general length
- Maintain any [[wiki-style links]]`

var (
	cleanupTitleRe   = regexp.MustCompile(`Title:\s*(.*?)\s*\n`)
	cleanupContentRe = regexp.MustCompile(`Content:\s*([\s\S]*)`)
)

// Cleanup rewrites the note through the provider. The improved body replaces
// Content, the prior body is preserved in RawContent, and UpdatedAt is
// refreshed. On provider failure the note is returned unchanged and the
// error is logged; cleanup degrades to a no-op.
func (p *Pipeline) Cleanup(ctx context.Context, note *store.Note) *store.Note {
	reply, err := p.client.Chat(ctx, []Message{
		{Role: "system", Content: cleanupPrompt},
		{Role: "user", Content: "Please improve this note:\n\nTitle: " + note.Title + "\n\nContent:\n" + note.Content},
	}, 0.3, 0)
	if err != nil {
		p.log.Error("note cleanup failed", "note", note.ID, "error", err)
		return note
	}

	improved := *note
	improved.RawContent = note.Content
	improved.UpdatedAt = time.Now().UnixMilli()

	if m := cleanupTitleRe.FindStringSubmatch(reply.Content); m != nil && m[1] != "" {
		improved.Title = m[1]
	}
	if m := cleanupContentRe.FindStringSubmatch(reply.Content); m != nil {
		improved.Content = strings.TrimSpace(m[1])
	} else {
		improved.Content = strings.TrimSpace(reply.Content)
	}
	return &improved
}
