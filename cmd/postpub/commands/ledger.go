package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/ledger"
)

// LedgerCmd groups the commands reading the publication ledger.
type LedgerCmd struct {
	DB     string `name:"db" help:"SQLite database written by publish --ledger" required:""`
	Format string `help:"Output format" enum:"yaml,json" default:"yaml"`

	List LedgerListCmd `cmd:"" help:"List every recorded publication"`
	Show LedgerShowCmd `cmd:"" help:"Show the publication of one publisher id"`
}

// LedgerListCmd implements 'ledger list'.
type LedgerListCmd struct{}

// LedgerShowCmd implements 'ledger show'.
type LedgerShowCmd struct {
	PublisherID string `arg:"" name:"publisher-id" help:"Publisher id (post_publisher.id)"`
}

type entryView struct {
	PublisherID  string `json:"publisher_id" yaml:"publisher_id"`
	Path         string `json:"path" yaml:"path"`
	Title        string `json:"title" yaml:"title"`
	CanonicalURL string `json:"canonical_url" yaml:"canonical_url"`
	PublishedAt  string `json:"published_at" yaml:"published_at"`
}

func viewOf(e ledger.Entry) entryView {
	return entryView{
		PublisherID:  e.PublisherID,
		Path:         e.Path,
		Title:        e.Title,
		CanonicalURL: e.CanonicalURL,
		PublishedAt:  e.PublishedAt.UTC().Format(time.RFC3339),
	}
}

func (l *LedgerListCmd) Run(g *Global, root *CLI) error {
	db, err := openLedger(root)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.List(context.Background())
	if err != nil {
		return err
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e))
	}
	return writeView(g.stdout(), root.Ledger.Format, views)
}

func (s *LedgerShowCmd) Run(g *Global, root *CLI) error {
	db, err := openLedger(root)
	if err != nil {
		return err
	}
	defer db.Close()

	e, err := db.Get(context.Background(), s.PublisherID)
	if stderrors.Is(err, ledger.ErrNotFound) {
		return errors.WrapError(err, errors.CategoryNotFound,
			fmt.Sprintf("no publication recorded for %s", s.PublisherID)).Build()
	}
	if err != nil {
		return err
	}
	return writeView(g.stdout(), root.Ledger.Format, viewOf(e))
}

// openLedger opens an existing ledger; a missing file is not created.
func openLedger(root *CLI) (*ledger.SQLiteLedger, error) {
	path := resolve(root.Workdir, root.Ledger.DB)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotFound, "ledger database not found").
			WithContext("path", path).Build()
	}
	return ledger.Open(path)
}

func writeView(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to render ledger entries").Build()
	}
	_, err = w.Write(data)
	return err
}
