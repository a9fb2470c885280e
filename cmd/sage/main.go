// Command sage runs the notes core. Two modes:
//
//	sage demo   — walk through the note lifecycle against a throwaway store
//	sage serve  — serve public share links over HTTP
//
// Configuration comes from SAGE_* environment variables, see internal/config.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	hackos "github.com/hack-pad/hackpadfs/os"

	"github.com/sagenotes/sage/internal/ai"
	"github.com/sagenotes/sage/internal/config"
	"github.com/sagenotes/sage/internal/folders"
	"github.com/sagenotes/sage/internal/notes"
	"github.com/sagenotes/sage/internal/search"
	"github.com/sagenotes/sage/internal/store"
	"github.com/sagenotes/sage/internal/web"
	"github.com/sagenotes/sage/pkg/backlink"
	"github.com/sagenotes/sage/pkg/graph"
	"github.com/sagenotes/sage/pkg/mentions"
	"github.com/sagenotes/sage/pkg/vector"
)

func main() {
	mode := "demo"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "demo":
		runDemo()
	case "serve":
		runServe()
	default:
		fmt.Fprintf(os.Stderr, "usage: sage [demo|serve]\n")
		os.Exit(2)
	}
}

func runServe() {
	cfg := config.Load()

	st, err := store.NewSQLiteStoreWithDSN(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	server := web.NewServer(st, slog.Default())
	slog.Info("serving shared notes", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// openVectorIndex opens the snapshot file through hackpadfs, which wants
// rooted, slash-separated paths without the leading separator.
func openVectorIndex(path string) (*vector.Index, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	rel := strings.TrimPrefix(filepath.ToSlash(abs), "/")
	return vector.NewIndex(hackos.NewFS(), rel)
}

func runDemo() {
	cfg := config.Load()

	st, err := store.NewSQLiteStore()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	noteStore := notes.New(st)
	folderStore := folders.New(st)

	// AI features come up only when a key is configured.
	var pipeline *ai.Pipeline
	searcher := search.New()
	client := ai.NewClient(cfg.APIKey,
		ai.WithBaseURL(cfg.BaseURL),
		ai.WithModels(cfg.EmbedModel, cfg.ChatModel),
		ai.WithTimeout(cfg.HTTPTimeout))
	if client != nil {
		index, err := openVectorIndex(cfg.VectorPath)
		if err != nil {
			log.Fatalf("open vector index: %v", err)
		}
		pipeline = ai.NewPipeline(client, st, ai.WithIndex(index))
		noteStore = notes.New(st, notes.WithIndexer(pipeline))
		searcher = search.New(search.WithSemantic(client, index), search.WithLimit(cfg.SearchLimit))
	}

	fmt.Println("Creating notes...")

	alpha := notes.NewNote()
	alpha.Title = "Alpha"
	alpha.Content = "The beginning of everything."
	noteStore.Add(alpha)

	beta := notes.NewNote()
	beta.Title = "Beta"
	beta.Content = "See [[Alpha]] for background."
	noteStore.Add(beta)

	fmt.Printf("  Beta links to: %v\n", backlink.ExtractTargets(beta.Content, noteStore.Notes(), beta.ID))

	// Alpha learns about Beta's link on its own next reconciliation.
	noteStore.Update(alpha)
	fmt.Printf("  Alpha backlinks after reconcile: %v\n", alpha.Backlinks)

	inbox := folderStore.Add("Inbox")
	folderStore.MoveNote(beta, inbox.ID)
	fmt.Printf("  Folder %q holds %d note(s)\n", inbox.Name, len(folders.NotesIn(inbox.ID, noteStore.Notes())))

	proj := graph.Project(noteStore.Notes(), graph.Options{IncludeOrphans: true})
	fmt.Printf("  Graph: %d nodes, %d edges\n", len(proj.Nodes), len(proj.Edges))

	scanner := mentions.NewScanner(noteStore.Notes())
	gamma := notes.NewNote()
	gamma.Title = "Gamma"
	gamma.Content = "Alpha deserves a proper link."
	noteStore.Add(gamma)
	fmt.Printf("  Unlinked mentions in Gamma: %d\n", len(scanner.Unlinked(gamma)))

	hits := searcher.Search(context.Background(), "beginning", noteStore.Notes())
	fmt.Printf("  Search %q: %d hit(s)\n", "beginning", len(hits))

	token, err := st.GenerateShareLink(alpha.ID)
	if err != nil {
		log.Fatalf("share link: %v", err)
	}
	fmt.Printf("  Share URL: http://%s/notes/%s\n", cfg.ListenAddr, token)

	if pipeline != nil {
		reply, err := pipeline.Chat(context.Background(), []ai.Message{
			{Role: "user", Content: "Summarize my notes:\n" + alpha.Content + "\n" + beta.Content},
		})
		if err != nil {
			fmt.Printf("  Sage unavailable: %v\n", err)
		} else {
			fmt.Printf("  Sage says: %s\n", reply.Content)
		}
	}

	noteStore.Flush()
	folderStore.Flush()
	if err := noteStore.Err(); err != nil {
		log.Fatalf("persistence error: %v", err)
	}

	fmt.Println("Done.")
}
