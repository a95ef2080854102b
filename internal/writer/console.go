package writer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/scenario"
)

// console prints one verdict line per scenario, followed by the reason of
// each failed query.
type console struct {
	mu  sync.Mutex
	out io.Writer

	pass   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	reason lipgloss.Style
}

func newConsole(env Env) *console {
	r := lipgloss.NewRenderer(env.Stdout)
	return &console{
		out:    env.Stdout,
		pass:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		fail:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		muted:  r.NewStyle().Faint(true),
		reason: r.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (w *console) Name() string { return NameConsole }

func (w *console) Init(config.Properties) bool { return true }

func (w *console) Destroy() {}

func (w *console) WriteScenario(_ context.Context, s *scenario.Scenario) error {
	c := s.Counts()

	var b strings.Builder
	verdict := w.pass.Render("PASS")
	if !s.Passed() {
		verdict = w.fail.Render("FAIL")
	}
	fmt.Fprintf(&b, "%s %s %s\n", verdict, s.ID,
		w.muted.Render(fmt.Sprintf("(%d passed, %d failed, %d skipped of %d in %s)",
			c.Passed, c.Failed, c.Skipped, c.All, formatElapsed(s.Duration()))))
	if s.Err != nil {
		fmt.Fprintf(&b, "    %s\n", w.reason.Render("aborted: "+s.Err.Error()))
	}
	for _, q := range s.FailedQueries() {
		fmt.Fprintf(&b, "    %s/%s: %s\n", q.Suite, q.ID, w.reason.Render(q.Result().Reason()))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, b.String())
	return err
}
