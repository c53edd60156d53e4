package ops

import (
	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/session"
)

// SummaryOutput contains the rolling session summary.
type SummaryOutput struct {
	Summary string `json:"summary"`
	Chars   int    `json:"chars"`
	Path    string `json:"path"`
	Empty   bool   `json:"empty"`
}

// Summary returns the rolling summary, from memory when a session is running
// in this process and from the summary file otherwise.
func Summary(cfg *config.Config, rt *Runtime) (*SummaryOutput, error) {
	var text string
	if rt != nil && rt.Reconciler != nil {
		text = rt.Reconciler.Current()
	} else {
		var err error
		text, err = session.SummaryFile{Path: cfg.SummaryPath()}.Load()
		if err != nil {
			return nil, err
		}
	}
	return &SummaryOutput{
		Summary: text,
		Chars:   len([]rune(text)),
		Path:    cfg.SummaryPath(),
		Empty:   text == "",
	}, nil
}
